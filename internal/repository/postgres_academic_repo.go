package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urportal/portal/internal/database"
	"github.com/urportal/portal/internal/model"
)

const academicColumns = `a.id, a.user_id, a.course_id, a.semester, a.academic_year, a.grade, a.score, a.status`

// PostgresAcademicRepo はPostgreSQLを使用した成績記録リポジトリ。
type PostgresAcademicRepo struct {
	db *sql.DB
}

// NewPostgresAcademicRepo はPostgresAcademicRepoを生成する。
func NewPostgresAcademicRepo(db *sql.DB) *PostgresAcademicRepo {
	return &PostgresAcademicRepo{db: db}
}

func academicScanDest(a *model.Academic) []any {
	return []any{&a.ID, &a.UserID, &a.CourseID, &a.Semester, &a.AcademicYear, &a.Grade, &a.Score, &a.Status}
}

func insertAcademic(ctx context.Context, q database.DBTX, a *model.Academic) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO academics (id, user_id, course_id, semester, academic_year, grade, score, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.UserID, a.CourseID, a.Semester, a.AcademicYear, a.Grade, a.Score, a.Status,
	)
	if err != nil {
		return wrapWriteError("failed to insert academic record", err)
	}
	return nil
}

// ListByUserID はユーザーの成績記録をコース情報付きで返す。
func (r *PostgresAcademicRepo) ListByUserID(ctx context.Context, userID string) ([]model.AcademicWithCourse, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+academicColumns+`, `+courseColumns+`
		 FROM academics a
		 LEFT JOIN courses c ON c.id = a.course_id
		 WHERE a.user_id = $1
		 ORDER BY a.academic_year DESC, a.semester, c.code`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list academic records: %w", err)
	}
	defer rows.Close()

	result := []model.AcademicWithCourse{}
	for rows.Next() {
		var awc model.AcademicWithCourse
		var course nullableCourse
		if err := rows.Scan(append(academicScanDest(&awc.Academic), course.dest()...)...); err != nil {
			return nil, fmt.Errorf("failed to scan academic record: %w", err)
		}
		awc.Course = course.toModel()
		result = append(result, awc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate academic records: %w", err)
	}
	return result, nil
}

// FindByID はユーザーの成績記録を取得する。見つからない場合はnilを返す。
func (r *PostgresAcademicRepo) FindByID(ctx context.Context, id, userID string) (*model.AcademicWithCourse, error) {
	awc := &model.AcademicWithCourse{}
	var course nullableCourse
	err := r.db.QueryRowContext(ctx,
		`SELECT `+academicColumns+`, `+courseColumns+`
		 FROM academics a
		 LEFT JOIN courses c ON c.id = a.course_id
		 WHERE a.id = $1 AND a.user_id = $2`,
		id, userID,
	).Scan(append(academicScanDest(&awc.Academic), course.dest()...)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find academic record: %w", err)
	}
	awc.Course = course.toModel()
	return awc, nil
}

// Create は成績記録を作成する。
func (r *PostgresAcademicRepo) Create(ctx context.Context, a *model.Academic) error {
	return insertAcademic(ctx, r.db, a)
}

// Update はnilでないフィールドのみを更新する。
func (r *PostgresAcademicRepo) Update(ctx context.Context, id, userID string, u model.AcademicUpdate) (*model.Academic, error) {
	a := &model.Academic{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE academics a SET
			semester      = COALESCE($3, a.semester),
			academic_year = COALESCE($4, a.academic_year),
			grade         = COALESCE($5, a.grade),
			score         = COALESCE($6, a.score),
			status        = COALESCE($7, a.status)
		 WHERE a.id = $1 AND a.user_id = $2
		 RETURNING `+academicColumns,
		id, userID, u.Semester, u.AcademicYear, u.Grade, u.Score, u.Status,
	).Scan(academicScanDest(a)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update academic record: %w", err)
	}
	return a, nil
}

// Delete は成績記録を削除する。
func (r *PostgresAcademicRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM academics WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete academic record: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

var _ AcademicRepository = (*PostgresAcademicRepo)(nil)
