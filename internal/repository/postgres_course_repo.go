package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urportal/portal/internal/model"
)

const courseColumns = `c.id, c.code, c.name, c.description, c.credits, c.instructor_name, c.schedule, c.duration, c.total_weeks`

// PostgresCourseRepo はPostgreSQLを使用したコースリポジトリ。
type PostgresCourseRepo struct {
	db *sql.DB
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db *sql.DB) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

func courseScanDest(c *model.Course) []any {
	return []any{
		&c.ID, &c.Code, &c.Name, &c.Description, &c.Credits,
		&c.InstructorName, &c.Schedule, &c.Duration, &c.TotalWeeks,
	}
}

// nullableCourse はLEFT JOIN結果のコース列を受け取るスキャン先。
type nullableCourse struct {
	id, code, name                        sql.NullString
	description, instructorName, schedule sql.NullString
	credits, duration, totalWeeks         sql.NullInt64
}

func (n *nullableCourse) dest() []any {
	return []any{
		&n.id, &n.code, &n.name, &n.description, &n.credits,
		&n.instructorName, &n.schedule, &n.duration, &n.totalWeeks,
	}
}

// toModel はコースが結合されなかった場合にnilを返す。
func (n *nullableCourse) toModel() *model.Course {
	if !n.id.Valid {
		return nil
	}
	c := &model.Course{
		ID:         n.id.String,
		Code:       n.code.String,
		Name:       n.name.String,
		Credits:    int(n.credits.Int64),
		TotalWeeks: int(n.totalWeeks.Int64),
	}
	if n.description.Valid {
		c.Description = &n.description.String
	}
	if n.instructorName.Valid {
		c.InstructorName = &n.instructorName.String
	}
	if n.schedule.Valid {
		c.Schedule = &n.schedule.String
	}
	if n.duration.Valid {
		d := int(n.duration.Int64)
		c.Duration = &d
	}
	return c
}

// List は全コースをコード順に返す。
func (r *PostgresCourseRepo) List(ctx context.Context) ([]model.Course, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+courseColumns+` FROM courses c ORDER BY c.code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	courses := []model.Course{}
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(courseScanDest(&c)...); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}
	return courses, nil
}

func (r *PostgresCourseRepo) findOne(ctx context.Context, column, value string) (*model.Course, error) {
	c := &model.Course{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses c WHERE c.`+column+` = $1`,
		value,
	).Scan(courseScanDest(c)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course by %s: %w", column, err)
	}
	return c, nil
}

// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByID(ctx context.Context, id string) (*model.Course, error) {
	return r.findOne(ctx, "id", id)
}

// FindByCode はコースコードでコースを取得する。
func (r *PostgresCourseRepo) FindByCode(ctx context.Context, code string) (*model.Course, error) {
	return r.findOne(ctx, "code", code)
}

// Create はコースを作成する。
func (r *PostgresCourseRepo) Create(ctx context.Context, c *model.Course) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO courses (id, code, name, description, credits, instructor_name, schedule, duration, total_weeks)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Code, c.Name, c.Description, c.Credits, c.InstructorName, c.Schedule, c.Duration, c.TotalWeeks,
	)
	if err != nil {
		return wrapWriteError("failed to insert course", err)
	}
	return nil
}

var _ CourseRepository = (*PostgresCourseRepo)(nil)
