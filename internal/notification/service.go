// Package notification はユーザー宛て通知の閲覧と既読管理を提供する。
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urportal/portal/internal/model"
	"github.com/urportal/portal/internal/repository"
)

// Service は通知のサービス層。
// 既読化は冪等で、既読の通知を再度既読にしても結果は変わらない。
type Service struct {
	repo repository.NotificationRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.NotificationRepository) *Service {
	return &Service{repo: repo}
}

// List はユーザーの通知を新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]model.Notification, error) {
	notifications, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗しました: %w", err)
	}
	return notifications, nil
}

// MarkAsRead は通知を既読にする。
// 他ユーザーの通知はNOTIFICATION_NOT_FOUNDとして扱う。
func (s *Service) MarkAsRead(ctx context.Context, userID, id string) (*model.Notification, error) {
	n, err := s.repo.MarkAsRead(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}
	if n == nil {
		return nil, model.NewNotificationNotFoundError(id)
	}
	return n, nil
}

// MarkAllAsRead はユーザーの未読通知をすべて既読にし、更新件数を返す。
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("通知の一括既読化に失敗しました: %w", err)
	}
	slog.DebugContext(ctx, "notifications marked as read",
		slog.String("user_id", userID),
		slog.Int64("count", count),
	)
	return count, nil
}
