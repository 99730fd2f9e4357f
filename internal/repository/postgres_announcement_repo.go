package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urportal/portal/internal/model"
)

// PostgresAnnouncementRepo はPostgreSQLを使用したお知らせリポジトリ。
type PostgresAnnouncementRepo struct {
	db *sql.DB
}

// NewPostgresAnnouncementRepo はPostgresAnnouncementRepoを生成する。
func NewPostgresAnnouncementRepo(db *sql.DB) *PostgresAnnouncementRepo {
	return &PostgresAnnouncementRepo{db: db}
}

// List は新しい順にお知らせを返す。limitが0以下の場合は全件を返す。
func (r *PostgresAnnouncementRepo) List(ctx context.Context, limit int) ([]model.Announcement, error) {
	query := `SELECT id, title, content, content_html, department, posted_by, posted_at, is_important
		 FROM announcements ORDER BY posted_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	result := []model.Announcement{}
	for rows.Next() {
		var a model.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.ContentHTML, &a.Department, &a.PostedBy, &a.PostedAt, &a.IsImportant); err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate announcements: %w", err)
	}
	return result, nil
}

// Create はお知らせを作成する。ContentHTMLは呼び出し側でサニタイズ済みであること。
func (r *PostgresAnnouncementRepo) Create(ctx context.Context, a *model.Announcement) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO announcements (id, title, content, content_html, department, posted_by, posted_at, is_important)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Title, a.Content, a.ContentHTML, a.Department, a.PostedBy, a.PostedAt, a.IsImportant,
	)
	if err != nil {
		return fmt.Errorf("failed to insert announcement: %w", err)
	}
	return nil
}

var _ AnnouncementRepository = (*PostgresAnnouncementRepo)(nil)
