package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/urportal/portal/internal/auth"
	"github.com/urportal/portal/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Login はユーザー名とパスワードを照合してセッションを発行する。
	Login(ctx context.Context, username, password string) (*auth.IssuedSession, error)
	// Register はユーザーを登録してセッションを発行する。
	Register(ctx context.Context, in auth.RegisterInput) (*auth.IssuedSession, error)
}

// SessionCookies はセッションCookieの組み立てとトークンの再署名を行う。
// auth.TokenManagerが実装する。
type SessionCookies interface {
	SessionCookie(token string, expiresAt time.Time) *http.Cookie
	ClearCookie() *http.Cookie
	Reissue(user *model.User, expiresAt time.Time) (string, error)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	cookies SessionCookies
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, cookies SessionCookies) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: cookies,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login はユーザー名とパスワードでログインする。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	issued, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, h.cookies.SessionCookie(issued.Token, issued.ExpiresAt))
	writeJSON(w, http.StatusOK, issued.User.Public())
}

// Register はユーザーを登録し、そのままログイン状態にする。
// POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}

	issued, err := h.service.Register(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, h.cookies.SessionCookie(issued.Token, issued.ExpiresAt))
	writeJSON(w, http.StatusCreated, issued.User.Public())
}

// Logout はセッションCookieを削除する。
// トークンはステートレスなのでサーバー側で破棄するものはない。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookies.ClearCookie())
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// CurrentUser はセッションのユーザーを返す。
// GET /api/user
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}
