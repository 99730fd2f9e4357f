package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urportal/portal/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// ListByUserID はユーザーが履修しているコースのタスクを期限の近い順に返す。
func (r *PostgresTaskRepo) ListByUserID(ctx context.Context, userID string) ([]model.TaskWithCourse, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.title, t.description, t.course_id, t.due_date, t.type, t.status, `+courseColumns+`
		 FROM tasks t
		 LEFT JOIN courses c ON c.id = t.course_id
		 WHERE t.course_id IN (SELECT course_id FROM enrollments WHERE user_id = $1)
		 ORDER BY t.due_date ASC NULLS LAST, t.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	result := []model.TaskWithCourse{}
	for rows.Next() {
		var twc model.TaskWithCourse
		var course nullableCourse
		dest := append([]any{
			&twc.ID, &twc.Title, &twc.Description, &twc.CourseID, &twc.DueDate, &twc.Type, &twc.Status,
		}, course.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		twc.Course = course.toModel()
		result = append(result, twc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return result, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, t *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, description, course_id, due_date, type, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Title, t.Description, t.CourseID, t.DueDate, t.Type, t.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

var _ TaskRepository = (*PostgresTaskRepo)(nil)
