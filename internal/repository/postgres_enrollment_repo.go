package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urportal/portal/internal/database"
	"github.com/urportal/portal/internal/model"
)

// PostgresEnrollmentRepo はPostgreSQLを使用した履修登録リポジトリ。
type PostgresEnrollmentRepo struct {
	db *sql.DB
}

// NewPostgresEnrollmentRepo はPostgresEnrollmentRepoを生成する。
func NewPostgresEnrollmentRepo(db *sql.DB) *PostgresEnrollmentRepo {
	return &PostgresEnrollmentRepo{db: db}
}

// ListByUserID はユーザーの履修登録をコース情報付きで登録日順に返す。
func (r *PostgresEnrollmentRepo) ListByUserID(ctx context.Context, userID string) ([]model.EnrollmentWithCourse, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.user_id, e.course_id, e.enrollment_date, e.status, e.current_week, e.progress, `+courseColumns+`
		 FROM enrollments e
		 JOIN courses c ON c.id = e.course_id
		 WHERE e.user_id = $1
		 ORDER BY e.enrollment_date, c.code`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	result := []model.EnrollmentWithCourse{}
	for rows.Next() {
		var ewc model.EnrollmentWithCourse
		course := &model.Course{}
		dest := append([]any{
			&ewc.ID, &ewc.UserID, &ewc.CourseID, &ewc.EnrollmentDate, &ewc.Status, &ewc.CurrentWeek, &ewc.Progress,
		}, courseScanDest(course)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		ewc.Course = course
		result = append(result, ewc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enrollments: %w", err)
	}
	return result, nil
}

// FindByUserAndCourse はユーザーとコースの組で履修登録を検索する。見つからない場合はnilを返す。
func (r *PostgresEnrollmentRepo) FindByUserAndCourse(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, course_id, enrollment_date, status, current_week, progress
		 FROM enrollments WHERE user_id = $1 AND course_id = $2`,
		userID, courseID,
	).Scan(&e.ID, &e.UserID, &e.CourseID, &e.EnrollmentDate, &e.Status, &e.CurrentWeek, &e.Progress)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find enrollment: %w", err)
	}
	return e, nil
}

// CreateWithAcademic は履修登録と成績記録を同一トランザクションで作成する。
// どちらかの挿入に失敗した場合は両方ともロールバックされる。
func (r *PostgresEnrollmentRepo) CreateWithAcademic(ctx context.Context, e *model.Enrollment, a *model.Academic) error {
	return database.WithTx(ctx, r.db, func(ctx context.Context, tx database.DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO enrollments (id, user_id, course_id, enrollment_date, status, current_week, progress)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ID, e.UserID, e.CourseID, e.EnrollmentDate, e.Status, e.CurrentWeek, e.Progress,
		)
		if err != nil {
			return wrapWriteError("failed to insert enrollment", err)
		}

		if err := insertAcademic(ctx, tx, a); err != nil {
			return err
		}
		return nil
	})
}

var _ EnrollmentRepository = (*PostgresEnrollmentRepo)(nil)
