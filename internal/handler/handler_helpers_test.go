package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/urportal/portal/internal/academic"
	"github.com/urportal/portal/internal/announcement"
	"github.com/urportal/portal/internal/auth"
	"github.com/urportal/portal/internal/course"
	"github.com/urportal/portal/internal/dashboard"
	"github.com/urportal/portal/internal/enrollment"
	"github.com/urportal/portal/internal/middleware"
	"github.com/urportal/portal/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn    func(ctx context.Context, username, password string) (*auth.IssuedSession, error)
	registerFn func(ctx context.Context, in auth.RegisterInput) (*auth.IssuedSession, error)
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*auth.IssuedSession, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.IssuedSession, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, model.NewValidationError("not configured")
}

type mockUserService struct {
	updateLanguageFn     func(ctx context.Context, userID, language string) (*model.User, error)
	updateProfileImageFn func(ctx context.Context, userID, rawURL string) (*model.User, error)
}

func (m *mockUserService) UpdateLanguage(ctx context.Context, userID, language string) (*model.User, error) {
	if m.updateLanguageFn != nil {
		return m.updateLanguageFn(ctx, userID, language)
	}
	return nil, nil
}

func (m *mockUserService) UpdateProfileImage(ctx context.Context, userID, rawURL string) (*model.User, error) {
	if m.updateProfileImageFn != nil {
		return m.updateProfileImageFn(ctx, userID, rawURL)
	}
	return nil, nil
}

type mockCourseService struct {
	listFn   func(ctx context.Context) ([]model.Course, error)
	getFn    func(ctx context.Context, id string) (*model.Course, error)
	createFn func(ctx context.Context, actor *model.User, in course.CreateInput) (*model.Course, error)
}

func (m *mockCourseService) List(ctx context.Context) ([]model.Course, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockCourseService) Get(ctx context.Context, id string) (*model.Course, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewCourseNotFoundError(id)
}

func (m *mockCourseService) Create(ctx context.Context, actor *model.User, in course.CreateInput) (*model.Course, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, in)
	}
	return nil, nil
}

type mockEnrollmentService struct {
	listFn   func(ctx context.Context, userID string) ([]model.EnrollmentWithCourse, error)
	enrollFn func(ctx context.Context, userID string, in enrollment.EnrollInput) (*model.Enrollment, error)
}

func (m *mockEnrollmentService) List(ctx context.Context, userID string) ([]model.EnrollmentWithCourse, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockEnrollmentService) Enroll(ctx context.Context, userID string, in enrollment.EnrollInput) (*model.Enrollment, error) {
	if m.enrollFn != nil {
		return m.enrollFn(ctx, userID, in)
	}
	return nil, nil
}

type mockAnnouncementService struct {
	listFn   func(ctx context.Context, limit int) ([]model.Announcement, error)
	createFn func(ctx context.Context, actor *model.User, in announcement.CreateInput) (*model.Announcement, error)
}

func (m *mockAnnouncementService) List(ctx context.Context, limit int) ([]model.Announcement, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockAnnouncementService) Create(ctx context.Context, actor *model.User, in announcement.CreateInput) (*model.Announcement, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, in)
	}
	return nil, nil
}

type mockRecordService struct {
	listFinancesFn func(ctx context.Context, userID string) ([]model.Finance, error)
	listTasksFn    func(ctx context.Context, userID string) ([]model.TaskWithCourse, error)
}

func (m *mockRecordService) ListFinances(ctx context.Context, userID string) ([]model.Finance, error) {
	if m.listFinancesFn != nil {
		return m.listFinancesFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockRecordService) ListTasks(ctx context.Context, userID string) ([]model.TaskWithCourse, error) {
	if m.listTasksFn != nil {
		return m.listTasksFn(ctx, userID)
	}
	return nil, nil
}

type mockNotificationService struct {
	listFn          func(ctx context.Context, userID string) ([]model.Notification, error)
	markAsReadFn    func(ctx context.Context, userID, id string) (*model.Notification, error)
	markAllAsReadFn func(ctx context.Context, userID string) (int64, error)
}

func (m *mockNotificationService) List(ctx context.Context, userID string) ([]model.Notification, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockNotificationService) MarkAsRead(ctx context.Context, userID, id string) (*model.Notification, error) {
	if m.markAsReadFn != nil {
		return m.markAsReadFn(ctx, userID, id)
	}
	return nil, model.NewNotificationNotFoundError(id)
}

func (m *mockNotificationService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	if m.markAllAsReadFn != nil {
		return m.markAllAsReadFn(ctx, userID)
	}
	return 0, nil
}

type mockAcademicService struct {
	listFn   func(ctx context.Context, userID string) ([]model.AcademicWithCourse, error)
	getFn    func(ctx context.Context, userID, id string) (*model.AcademicWithCourse, error)
	createFn func(ctx context.Context, userID string, in academic.CreateInput) (*model.Academic, error)
	updateFn func(ctx context.Context, userID, id string, in academic.UpdateInput) (*model.Academic, error)
	deleteFn func(ctx context.Context, userID, id string) error
}

func (m *mockAcademicService) List(ctx context.Context, userID string) ([]model.AcademicWithCourse, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockAcademicService) Get(ctx context.Context, userID, id string) (*model.AcademicWithCourse, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, id)
	}
	return nil, model.NewAcademicNotFoundError(id)
}

func (m *mockAcademicService) Create(ctx context.Context, userID string, in academic.CreateInput) (*model.Academic, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return nil, nil
}

func (m *mockAcademicService) Update(ctx context.Context, userID, id string, in academic.UpdateInput) (*model.Academic, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, id, in)
	}
	return nil, model.NewAcademicNotFoundError(id)
}

func (m *mockAcademicService) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return model.NewAcademicNotFoundError(id)
}

type mockDashboardService struct {
	dashboardFn     func(ctx context.Context, user *model.User) (*dashboard.Dashboard, error)
	academicsPageFn func(ctx context.Context, user *model.User) (*dashboard.AcademicsPage, error)
}

func (m *mockDashboardService) Dashboard(ctx context.Context, user *model.User) (*dashboard.Dashboard, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn(ctx, user)
	}
	return &dashboard.Dashboard{User: user}, nil
}

func (m *mockDashboardService) AcademicsPage(ctx context.Context, user *model.User) (*dashboard.AcademicsPage, error) {
	if m.academicsPageFn != nil {
		return m.academicsPageFn(ctx, user)
	}
	return &dashboard.AcademicsPage{User: user}, nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

// --- テストヘルパー ---

var testSecret = []byte("handler-test-secret-0123456789abcdef")

func newTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(auth.TokenConfig{
		Secret: testSecret,
		MaxAge: time.Hour,
	})
}

func studentUser() *model.User {
	sid := "219002134"
	return &model.User{
		ID:        "user-student-1",
		Username:  "john",
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john@example.com",
		StudentID: &sid,
		Role:      model.RoleStudent,
		Language:  model.LanguageEnglish,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func adminUser() *model.User {
	return &model.User{
		ID:        "user-admin-1",
		Username:  "admin",
		FirstName: "Admin",
		LastName:  "User",
		Email:     "admin@example.com",
		Role:      model.RoleAdmin,
		Language:  model.LanguageEnglish,
	}
}

// withUser はテスト用にリクエストコンテキストへセッションを注入するヘルパー。
func withUser(r *http.Request, user *model.User) *http.Request {
	session := &auth.Session{User: user, ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second)}
	return r.WithContext(middleware.ContextWithSession(r.Context(), session))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var result middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v\nbody: %s", err, w.Body.String())
	}
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d\nbody: %s", w.Code, want, w.Body.String())
	}
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assertStatus(t, w, status)
	if got := parseAPIErrorResponse(t, w); got.Code != code {
		t.Errorf("error code = %q, want %q", got.Code, code)
	}
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

// newTestRouter は未指定の依存をモックで補ったルーターを返す。
func newTestRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()
	tokens := newTestTokenManager()
	if deps.Sessions == nil {
		deps.Sessions = tokens
	}
	if deps.Cookies == nil {
		deps.Cookies = tokens
	}
	if deps.RateLimiter == nil {
		deps.RateLimiter = middleware.NewRateLimiter(middleware.NewRateLimiterConfig(6000, 600), nil)
		t.Cleanup(deps.RateLimiter.Stop)
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if deps.AuthService == nil {
		deps.AuthService = &mockAuthService{}
	}
	if deps.UserService == nil {
		deps.UserService = &mockUserService{}
	}
	if deps.CourseService == nil {
		deps.CourseService = &mockCourseService{}
	}
	if deps.EnrollmentService == nil {
		deps.EnrollmentService = &mockEnrollmentService{}
	}
	if deps.AnnouncementService == nil {
		deps.AnnouncementService = &mockAnnouncementService{}
	}
	if deps.RecordService == nil {
		deps.RecordService = &mockRecordService{}
	}
	if deps.NotificationService == nil {
		deps.NotificationService = &mockNotificationService{}
	}
	if deps.AcademicService == nil {
		deps.AcademicService = &mockAcademicService{}
	}
	if deps.DashboardService == nil {
		deps.DashboardService = &mockDashboardService{}
	}
	if deps.DB == nil {
		deps.DB = &mockPinger{}
	}
	return NewRouter(deps)
}

// issueCookie はユーザーのセッションCookieを発行する。
func issueCookie(t *testing.T, tokens *auth.TokenManager, user *model.User) *http.Cookie {
	t.Helper()
	token, exp, err := tokens.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return tokens.SessionCookie(token, exp)
}
