package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/urportal/portal/internal/middleware"
	"github.com/urportal/portal/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// UpdateLanguage は表示言語を更新する。サポート外の言語は変更せずにエラーを返す。
	UpdateLanguage(ctx context.Context, userID, language string) (*model.User, error)
	// UpdateProfileImage はプロフィール画像URLを検証して保存する。
	UpdateProfileImage(ctx context.Context, userID, rawURL string) (*model.User, error)
}

// UserHandler はログイン中ユーザーのプロフィール更新を扱うHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	cookies SessionCookies
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, cookies SessionCookies) *UserHandler {
	return &UserHandler{
		service: service,
		cookies: cookies,
	}
}

type updateLanguageRequest struct {
	Language string `json:"language"`
}

type updateProfileImageRequest struct {
	URL string `json:"url"`
}

// UpdateLanguage は表示言語を更新する。
// PATCH /api/user/language
func (h *UserHandler) UpdateLanguage(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req updateLanguageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.service.UpdateLanguage(r.Context(), user.ID, req.Language)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.refreshSession(w, r, updated)
	writeJSON(w, http.StatusOK, updated)
}

// UpdateProfileImage はプロフィール画像URLを更新する。空文字列は画像を解除する。
// PATCH /api/user/profile-image
func (h *UserHandler) UpdateProfileImage(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req updateProfileImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.service.UpdateProfileImage(r.Context(), user.ID, req.URL)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.refreshSession(w, r, updated)
	writeJSON(w, http.StatusOK, updated)
}

// refreshSession はトークン内のユーザー情報を更新後の値で再署名する。
// 有効期限は元のセッションのものを引き継ぎ、延長しない。
// 再署名に失敗しても更新自体は成功しているため、ログのみ記録する。
func (h *UserHandler) refreshSession(w http.ResponseWriter, r *http.Request, user *model.User) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		return
	}

	token, err := h.cookies.Reissue(user, session.ExpiresAt)
	if err != nil {
		slog.WarnContext(r.Context(), "failed to reissue session token",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	http.SetCookie(w, h.cookies.SessionCookie(token, session.ExpiresAt))
}
