package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/urportal/portal/internal/model"
)

const (
	// SessionCookieName はセッショントークンを保持するCookie名。
	SessionCookieName = "session-token"
	// TokenIssuer はセッショントークンのiss。
	TokenIssuer = "urportal"
)

// ErrInvalidToken はトークンの署名・期限・形式のいずれかが不正な場合に返る。
var ErrInvalidToken = errors.New("invalid session token")

// Claims はセッショントークンのクレーム。
// userにはパスワードを除いた公開ユーザー情報を埋め込む。
type Claims struct {
	User *model.User `json:"user"`
	jwt.RegisteredClaims
}

// Session は解決済みのセッションを表す。
type Session struct {
	User      *model.User
	ExpiresAt time.Time
	TokenID   string
}

// TokenConfig はTokenManagerの設定。
type TokenConfig struct {
	Secret       []byte
	MaxAge       time.Duration
	CookieSecure bool
	CookieDomain string
}

// TokenManager はセッショントークンの発行・検証とCookieの組み立てを行う。
// サーバー側にセッション状態は保持しない。
type TokenManager struct {
	secret       []byte
	maxAge       time.Duration
	cookieSecure bool
	cookieDomain string
	now          func() time.Time
}

// NewTokenManager はTokenManagerを生成する。
func NewTokenManager(cfg TokenConfig) *TokenManager {
	return &TokenManager{
		secret:       cfg.Secret,
		maxAge:       cfg.MaxAge,
		cookieSecure: cfg.CookieSecure,
		cookieDomain: cfg.CookieDomain,
		now:          time.Now,
	}
}

// Issue はユーザーのセッショントークンを発行し、トークンと有効期限を返す。
// 有効期限は発行時に固定され、以後延長されない。
func (m *TokenManager) Issue(user *model.User) (string, time.Time, error) {
	expiresAt := m.now().Add(m.maxAge).Truncate(time.Second)
	token, err := m.sign(user, expiresAt)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Reissue は元の有効期限を保ったままユーザー情報を差し替えたトークンを発行する。
func (m *TokenManager) Reissue(user *model.User, expiresAt time.Time) (string, error) {
	if !expiresAt.After(m.now()) {
		return "", ErrInvalidToken
	}
	return m.sign(user, expiresAt)
}

func (m *TokenManager) sign(user *model.User, expiresAt time.Time) (string, error) {
	if user == nil {
		return "", errors.New("user is required")
	}
	pub := user.Public()
	claims := Claims{
		User: pub,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   pub.ID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(m.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Parse はトークンの署名・発行者・有効期限を検証してクレームを返す。
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.User == nil || claims.User.ID == "" || claims.User.ID != claims.Subject {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ResolveSession はリクエストからセッションを解決する。
// トークンがない場合は(nil, nil)、不正な場合は(nil, ErrInvalidToken)を返す。
func (m *TokenManager) ResolveSession(r *http.Request) (*Session, error) {
	tokenString := TokenFromRequest(r)
	if tokenString == "" {
		return nil, nil
	}

	claims, err := m.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	return &Session{
		User:      claims.User,
		ExpiresAt: claims.ExpiresAt.Time,
		TokenID:   claims.ID,
	}, nil
}

// Resolve はリクエストのユーザーを返す。匿名または不正なトークンの場合はnilを返す。
func (m *TokenManager) Resolve(r *http.Request) *model.User {
	session, err := m.ResolveSession(r)
	if err != nil || session == nil {
		return nil
	}
	return session.User
}

// TokenFromRequest はCookieを優先し、次にAuthorization: Bearerヘッダーからトークンを取り出す。
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// SessionCookie はセッショントークンを格納するCookieを生成する。
func (m *TokenManager) SessionCookie(token string, expiresAt time.Time) *http.Cookie {
	maxAge := int(expiresAt.Sub(m.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   m.cookieDomain,
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie はセッションCookieを削除するためのCookieを生成する。
func (m *TokenManager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.cookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
