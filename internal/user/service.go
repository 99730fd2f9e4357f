// Package user はログイン中ユーザー自身のプロフィール管理を提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urportal/portal/internal/model"
	"github.com/urportal/portal/internal/repository"
	"github.com/urportal/portal/internal/security"
)

// Service はユーザープロフィールのサービス層。
type Service struct {
	userRepo   repository.UserRepository
	imageGuard security.ImageURLGuard
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, imageGuard security.ImageURLGuard) *Service {
	return &Service{
		userRepo:   userRepo,
		imageGuard: imageGuard,
	}
}

// UpdateLanguage はユーザーの表示言語を更新する。
// サポート外の言語コードの場合は何も変更せずにバリデーションエラーを返す。
func (s *Service) UpdateLanguage(ctx context.Context, userID, language string) (*model.User, error) {
	lang := model.Language(language)
	if !lang.IsValid() {
		return nil, model.NewInvalidLanguageError(language)
	}

	user, err := s.userRepo.UpdateLanguage(ctx, userID, lang)
	if err != nil {
		return nil, fmt.Errorf("表示言語の更新に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.InfoContext(ctx, "language updated",
		slog.String("user_id", userID),
		slog.String("language", language),
	)
	return user.Public(), nil
}

// UpdateProfileImage はプロフィール画像URLを検証して保存する。
// 空文字列の場合は画像を解除する。
func (s *Service) UpdateProfileImage(ctx context.Context, userID, rawURL string) (*model.User, error) {
	rawURL = strings.TrimSpace(rawURL)

	var imageURL *string
	if rawURL != "" {
		if err := s.imageGuard.CheckImage(ctx, rawURL); err != nil {
			slog.WarnContext(ctx, "profile image rejected",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			return nil, toProfileImageError(err)
		}
		imageURL = &rawURL
	}

	user, err := s.userRepo.UpdateProfileImage(ctx, userID, imageURL)
	if err != nil {
		return nil, fmt.Errorf("プロフィール画像の更新に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user.Public(), nil
}

func toProfileImageError(err error) error {
	switch {
	case errors.Is(err, security.ErrBlockedImageURL):
		return model.NewProfileImageBlockedError()
	case errors.Is(err, security.ErrNotAnImage):
		return model.NewInvalidProfileImageError("the URL does not point to an image")
	default:
		return model.NewInvalidProfileImageError("the URL must be an absolute http or https URL")
	}
}
