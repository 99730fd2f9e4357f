package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/urportal/portal/internal/auth"
	"github.com/urportal/portal/internal/metrics"
	"github.com/urportal/portal/internal/middleware"
	"github.com/urportal/portal/internal/model"
	"github.com/urportal/portal/internal/repository"
	"github.com/urportal/portal/internal/user"
)

// --- ルーター統合テスト用のインメモリ実装 ---

// memUserRepo はrepository.UserRepositoryのインメモリ実装。
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (m *memUserRepo) find(match func(u *model.User) bool) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.ID == id }), nil
}

func (m *memUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Username == username }), nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email == email }), nil
}

func (m *memUserRepo) FindByStudentID(ctx context.Context, studentID string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.StudentID != nil && *u.StudentID == studentID }), nil
}

func (m *memUserRepo) Create(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return &repository.DuplicateError{Constraint: repository.ConstraintUsername}
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserRepo) UpdateLanguage(ctx context.Context, id string, language model.Language) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	u.Language = language
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) UpdateProfileImage(ctx context.Context, id string, imageURL *string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	u.ProfileImage = imageURL
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

type allowAllImages struct{}

func (allowAllImages) ValidateURL(string) error { return nil }

func (allowAllImages) CheckImage(context.Context, string) error { return nil }

// authRouter は実際のauth.Serviceとuser.Serviceを組み込んだルーターを返す。
func authRouter(t *testing.T) (http.Handler, *memUserRepo) {
	t.Helper()
	repo := newMemUserRepo()
	tokens := newTestTokenManager()
	router := newTestRouter(t, &RouterDeps{
		Sessions:    tokens,
		Cookies:     tokens,
		AuthService: auth.NewService(repo, tokens, nil),
		UserService: user.NewService(repo, allowAllImages{}),
	})
	return router, repo
}

func serve(router http.Handler, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const registerBody = `{"username":"john","password":"password","email":"john@example.com","firstName":"John","lastName":"Doe","studentId":"219002134"}`

func TestRouter_SessionLifecycle(t *testing.T) {
	router, repo := authRouter(t)

	// 登録するとそのままログイン状態になる
	w := serve(router, jsonRequest(http.MethodPost, "/api/register", registerBody))
	assertStatus(t, w, http.StatusCreated)
	cookie := sessionCookie(w.Result())
	if cookie == nil {
		t.Fatal("registration should set the session cookie")
	}
	if repo.count() != 1 {
		t.Fatalf("users = %d, want 1", repo.count())
	}

	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/user", nil), cookie)
	assertStatus(t, w, http.StatusOK)
	var me model.User
	decodeBody(t, w, &me)
	if me.Username != "john" || me.Language != model.LanguageEnglish {
		t.Errorf("user = %+v", me)
	}

	// 誤ったパスワード
	w = serve(router, jsonRequest(http.MethodPost, "/api/login", `{"username":"john","password":"nope"}`))
	assertErrorCode(t, w, http.StatusUnauthorized, model.ErrCodeInvalidCredentials)

	// 存在しないユーザーも同じ応答
	w = serve(router, jsonRequest(http.MethodPost, "/api/login", `{"username":"ghost","password":"nope"}`))
	assertErrorCode(t, w, http.StatusUnauthorized, model.ErrCodeInvalidCredentials)

	w = serve(router, jsonRequest(http.MethodPost, "/api/login", `{"username":"john","password":"password"}`))
	assertStatus(t, w, http.StatusOK)
	if strings.Contains(w.Body.String(), "password") {
		t.Errorf("login response leaked password data: %s", w.Body.String())
	}
	cookie = sessionCookie(w.Result())

	// サポート外の言語は400で、保存値は変わらない
	w = serve(router, jsonRequest(http.MethodPatch, "/api/user/language", `{"language":"xx"}`), cookie)
	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeInvalidLanguage)
	if stored, _ := repo.FindByUsername(context.Background(), "john"); stored.Language != model.LanguageEnglish {
		t.Errorf("stored language = %q, want en", stored.Language)
	}

	w = serve(router, jsonRequest(http.MethodPatch, "/api/user/language", `{"language":"fr"}`), cookie)
	assertStatus(t, w, http.StatusOK)
	refreshed := sessionCookie(w.Result())
	if refreshed == nil {
		t.Fatal("language change should reissue the session cookie")
	}

	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/user", nil), refreshed)
	assertStatus(t, w, http.StatusOK)
	decodeBody(t, w, &me)
	if me.Language != model.LanguageFrench {
		t.Errorf("language after refresh = %q, want fr", me.Language)
	}

	w = serve(router, httptest.NewRequest(http.MethodPost, "/api/logout", nil), refreshed)
	assertStatus(t, w, http.StatusOK)
	cleared := sessionCookie(w.Result())
	if cleared == nil || cleared.Value != "" {
		t.Fatalf("logout should clear the cookie, got %+v", cleared)
	}

	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/user", nil))
	assertErrorCode(t, w, http.StatusUnauthorized, model.ErrCodeUnauthenticated)
}

func TestRouter_RegisterDuplicateUsername(t *testing.T) {
	router, repo := authRouter(t)

	w := serve(router, jsonRequest(http.MethodPost, "/api/register", registerBody))
	assertStatus(t, w, http.StatusCreated)

	dup := strings.Replace(registerBody, "john@example.com", "other@example.com", 1)
	dup = strings.Replace(dup, "219002134", "219009999", 1)
	w = serve(router, jsonRequest(http.MethodPost, "/api/register", dup))
	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeDuplicateUser)

	if repo.count() != 1 {
		t.Errorf("users = %d, want 1", repo.count())
	}
}

func TestRouter_LanguageRequiresSession(t *testing.T) {
	router, _ := authRouter(t)

	w := serve(router, jsonRequest(http.MethodPatch, "/api/user/language", `{"language":"fr"}`))
	assertErrorCode(t, w, http.StatusUnauthorized, model.ErrCodeUnauthenticated)
}

func TestRouter_TamperedCookieIsAnonymous(t *testing.T) {
	tokens := newTestTokenManager()
	router := newTestRouter(t, &RouterDeps{Sessions: tokens, Cookies: tokens})

	cookie := issueCookie(t, tokens, studentUser())
	cookie.Value = cookie.Value[:len(cookie.Value)-2] + "xx"

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/user", nil), cookie)
	assertErrorCode(t, w, http.StatusUnauthorized, model.ErrCodeUnauthenticated)
}

func TestRouter_UnknownRouteAndWrongMethod(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/does-not-exist", nil))
	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeNotFound)

	w = serve(router, httptest.NewRequest(http.MethodDelete, "/api/login", nil))
	assertErrorCode(t, w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed)

	w = serve(router, httptest.NewRequest(http.MethodPut, "/api/courses", nil))
	assertErrorCode(t, w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed)
}

func TestRouter_ProtectedRoutesRequireSession(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	routes := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/enrollments"},
		{http.MethodPost, "/api/enrollments"},
		{http.MethodGet, "/api/finances"},
		{http.MethodGet, "/api/tasks"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodPatch, "/api/notifications/n-1/read"},
		{http.MethodPatch, "/api/notifications/read-all"},
		{http.MethodGet, "/api/academics"},
		{http.MethodGet, "/api/academics/ac-1"},
		{http.MethodDelete, "/api/academics/ac-1"},
		{http.MethodGet, "/api/dashboard"},
		{http.MethodGet, "/api/academics-page"},
		{http.MethodPatch, "/api/user/profile-image"},
		{http.MethodPost, "/api/courses"},
		{http.MethodPost, "/api/announcements"},
	}
	for _, rt := range routes {
		w := serve(router, jsonRequest(rt.method, rt.path, `{}`))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", rt.method, rt.path, w.Code)
		}
	}
}

func TestRouter_PublicRoutes(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	for _, path := range []string{"/api/courses", "/api/announcements", "/api/health"} {
		w := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: status = %d, want 200", path, w.Code)
		}
	}
}

func TestRouter_AuthenticatedPortalRoute(t *testing.T) {
	tokens := newTestTokenManager()
	var gotUser string
	router := newTestRouter(t, &RouterDeps{
		Sessions: tokens,
		Cookies:  tokens,
		NotificationService: &mockNotificationService{
			markAsReadFn: func(ctx context.Context, userID, id string) (*model.Notification, error) {
				gotUser = userID
				return &model.Notification{ID: id, UserID: userID, IsRead: true}, nil
			},
		},
	})

	w := serve(router, httptest.NewRequest(http.MethodPatch, "/api/notifications/n-7/read", nil), issueCookie(t, tokens, studentUser()))
	assertStatus(t, w, http.StatusOK)
	if gotUser != "user-student-1" {
		t.Errorf("userID = %q, want user-student-1", gotUser)
	}
}

func TestRouter_LoginRateLimit(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     1000,
		GeneralBurst:    1000,
		LoginRate:       0.001,
		LoginBurst:      2,
		CleanupInterval: time.Minute,
	}, nil)
	t.Cleanup(rl.Stop)
	router := newTestRouter(t, &RouterDeps{RateLimiter: rl})

	for i := 0; i < 2; i++ {
		w := serve(router, jsonRequest(http.MethodPost, "/api/login", `{"username":"john","password":"x"}`))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i+1, w.Code)
		}
	}

	w := serve(router, jsonRequest(http.MethodPost, "/api/register", `{}`))
	assertErrorCode(t, w, http.StatusTooManyRequests, model.ErrCodeRateLimited)
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After")
	}

	// 他のエンドポイントには影響しない
	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/courses", nil))
	assertStatus(t, w, http.StatusOK)
}

func TestRouter_CrossCuttingHeaders(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{HSTS: true})

	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := serve(router, req)

	assertStatus(t, w, http.StatusOK)
	h := w.Header()
	if h.Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", h.Get("Access-Control-Allow-Origin"))
	}
	if h.Get("Access-Control-Allow-Credentials") != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q", h.Get("Access-Control-Allow-Credentials"))
	}
	if h.Get(middleware.RequestIDHeader) == "" {
		t.Error("expected request id header")
	}
	if h.Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", h.Get("X-Content-Type-Options"))
	}
	if h.Get("Strict-Transport-Security") == "" {
		t.Error("expected HSTS header")
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := serve(router, req)

	assertStatus(t, w, http.StatusNoContent)
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	router := newTestRouter(t, &RouterDeps{
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
	})

	serve(router, httptest.NewRequest(http.MethodGet, "/api/courses", nil))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assertStatus(t, w, http.StatusOK)
	body := w.Body.String()
	if !strings.Contains(body, "portal_http_requests_total") {
		t.Errorf("metrics output missing portal_http_requests_total:\n%s", body)
	}
	if !strings.Contains(body, `route="/api/courses/"`) && !strings.Contains(body, `route="/api/courses"`) {
		t.Errorf("metrics should be labelled by route pattern:\n%s", body)
	}
}

func TestRouter_NoMetricsHandler(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeNotFound)
}

// メトリクス未設定を含む既定の依存で、どのリクエストもpanicの回復経路を通らないこと。
func TestRouter_DefaultDepsNeverPanic(t *testing.T) {
	var logBuf bytes.Buffer
	tokens := newTestTokenManager()
	router := newTestRouter(t, &RouterDeps{
		Sessions: tokens,
		Cookies:  tokens,
		Logger:   slog.New(slog.NewJSONHandler(&logBuf, nil)),
	})
	cookie := issueCookie(t, tokens, studentUser())

	requests := []struct {
		method, path string
		cookie       *http.Cookie
	}{
		{http.MethodGet, "/api/health", nil},
		{http.MethodGet, "/api/courses", nil},
		{http.MethodGet, "/api/announcements", nil},
		{http.MethodGet, "/api/user", nil},
		{http.MethodGet, "/api/user", cookie},
		{http.MethodPost, "/api/logout", cookie},
		{http.MethodPatch, "/api/notifications/read-all", cookie},
		{http.MethodGet, "/api/does-not-exist", nil},
		{http.MethodDelete, "/api/login", nil},
	}
	for _, rq := range requests {
		w := serve(router, httptest.NewRequest(rq.method, rq.path, nil), rq.cookie)
		if w.Code >= http.StatusInternalServerError {
			t.Errorf("%s %s: status = %d", rq.method, rq.path, w.Code)
		}
	}

	logs := logBuf.String()
	if strings.Contains(logs, "panic recovered") {
		t.Fatalf("requests went through panic recovery:\n%s", logs)
	}
	if got := strings.Count(logs, `"msg":"http_request"`); got != len(requests) {
		t.Errorf("http_request records = %d, want %d", got, len(requests))
	}
}
