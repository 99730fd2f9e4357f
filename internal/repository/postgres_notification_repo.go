package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urportal/portal/internal/model"
)

const notificationColumns = `id, user_id, title, content, type, is_read, created_at`

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

func notificationScanDest(n *model.Notification) []any {
	return []any{&n.ID, &n.UserID, &n.Title, &n.Content, &n.Type, &n.IsRead, &n.CreatedAt}
}

// ListByUserID はユーザーの通知を新しい順に返す。
func (r *PostgresNotificationRepo) ListByUserID(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE user_id = $1 ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	result := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(notificationScanDest(&n)...); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return result, nil
}

// Create は通知を作成する。
func (r *PostgresNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, n.Title, n.Content, n.Type, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// MarkAsRead は通知を既読にする。指定ユーザーの通知でない場合はnilを返す。
func (r *PostgresNotificationRepo) MarkAsRead(ctx context.Context, id, userID string) (*model.Notification, error) {
	n := &model.Notification{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE notifications SET is_read = true
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+notificationColumns,
		id, userID,
	).Scan(notificationScanDest(n)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return n, nil
}

// MarkAllAsRead はユーザーの未読通知をすべて既読にする。
func (r *PostgresNotificationRepo) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true WHERE user_id = $1 AND is_read = false`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
