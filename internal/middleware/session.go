// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/urportal/portal/internal/auth"
	"github.com/urportal/portal/internal/metrics"
	"github.com/urportal/portal/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストに解決済みセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionResolver はリクエストからセッションを解決するインターフェース。
// auth.TokenManagerが実装する。
type SessionResolver interface {
	ResolveSession(r *http.Request) (*auth.Session, error)
}

// NewSessionMiddleware はセッショントークンを検証し、解決したセッションを
// リクエストコンテキストに注入するミドルウェアを返す。
// トークンがない・不正・期限切れの場合は匿名として次に渡す。
// このミドルウェアはリクエストを拒否しない。認証の要否は各ハンドラーが判断する。
func NewSessionMiddleware(resolver SessionResolver, mc metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := resolver.ResolveSession(r)
			switch {
			case err != nil:
				mc.RecordSessionResolution(metrics.SessionInvalid)
				level := slog.LevelDebug
				if !errors.Is(err, auth.ErrInvalidToken) {
					level = slog.LevelWarn
				}
				slog.Log(r.Context(), level, "session token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			case session == nil:
				mc.RecordSessionResolution(metrics.SessionAnonymous)
				next.ServeHTTP(w, r)
				return
			}

			mc.RecordSessionResolution(metrics.SessionAuthenticated)
			setLogUserID(r.Context(), session.User.ID)

			ctx := ContextWithSession(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。匿名の場合はnilを返す。
func SessionFromContext(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(sessionContextKey).(*auth.Session)
	return session
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。匿名の場合はnilを返す。
func UserFromContext(ctx context.Context) *model.User {
	if session := SessionFromContext(ctx); session != nil {
		return session.User
	}
	return nil
}

// IsAuthenticated はリクエストが認証済みかどうかを返す。
func IsAuthenticated(ctx context.Context) bool {
	return UserFromContext(ctx) != nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, bool) {
	user := UserFromContext(ctx)
	if user == nil {
		return "", false
	}
	return user.ID, true
}
