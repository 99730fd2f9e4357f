// Package announcement はお知らせの閲覧・投稿を提供する。
package announcement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/urportal/portal/internal/model"
	"github.com/urportal/portal/internal/repository"
	"github.com/urportal/portal/internal/security"
)

// maxTitleLength はお知らせタイトルの最大文字数。
const maxTitleLength = 200

// CreateInput はお知らせ投稿の入力値。ContentはMarkdown。
type CreateInput struct {
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	Department  *string `json:"department"`
	PostedBy    *string `json:"postedBy"`
	IsImportant bool    `json:"isImportant"`
}

// Service はお知らせのサービス層。
type Service struct {
	repo     repository.AnnouncementRepository
	renderer security.ContentRenderer
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.AnnouncementRepository, renderer security.ContentRenderer) *Service {
	return &Service{
		repo:     repo,
		renderer: renderer,
		now:      time.Now,
	}
}

// List はお知らせを新しい順に返す。limitが0以下の場合は全件を返す。
func (s *Service) List(ctx context.Context, limit int) ([]model.Announcement, error) {
	announcements, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("お知らせ一覧の取得に失敗しました: %w", err)
	}
	return announcements, nil
}

// Create はお知らせを投稿する。管理者のみ実行できる。
// 本文はMarkdownからHTMLに変換し、サニタイズした結果をContentHTMLに保存する。
func (s *Service) Create(ctx context.Context, actor *model.User, in CreateInput) (*model.Announcement, error) {
	if !actor.IsAdmin() {
		return nil, model.NewForbiddenError()
	}

	title := strings.TrimSpace(in.Title)
	if title == "" || strings.TrimSpace(in.Content) == "" {
		return nil, model.NewValidationError("title and content are required")
	}
	if len([]rune(title)) > maxTitleLength {
		return nil, model.NewValidationError(fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}

	html, err := s.renderer.Render(in.Content)
	if err != nil {
		return nil, fmt.Errorf("お知らせ本文の変換に失敗しました: %w", err)
	}

	// 投稿者が未指定の場合は実行ユーザーの氏名を使う
	postedBy := in.PostedBy
	if postedBy == nil || strings.TrimSpace(*postedBy) == "" {
		name := strings.TrimSpace(actor.FirstName + " " + actor.LastName)
		postedBy = &name
	}

	a := &model.Announcement{
		ID:          uuid.New().String(),
		Title:       title,
		Content:     in.Content,
		ContentHTML: html,
		Department:  in.Department,
		PostedBy:    postedBy,
		PostedAt:    s.now().UTC(),
		IsImportant: in.IsImportant,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("お知らせの作成に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "announcement posted",
		slog.String("announcement_id", a.ID),
		slog.String("posted_by", actor.ID),
		slog.Bool("important", a.IsImportant),
	)
	return a, nil
}
