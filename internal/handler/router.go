package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/urportal/portal/internal/metrics"
	"github.com/urportal/portal/internal/middleware"
	"github.com/urportal/portal/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Sessions           middleware.SessionResolver
	RateLimiter        *middleware.RateLimiter
	Metrics            metrics.MetricsCollector
	Logger             *slog.Logger
	CORSAllowedOrigins []string
	HSTS               bool

	// MetricsHandler はGET /metricsで公開する。nilの場合はルートを登録しない。
	MetricsHandler http.Handler

	// 認証・ユーザー
	Cookies     SessionCookies
	AuthService AuthServiceInterface
	UserService UserServiceInterface

	// ポータル
	CourseService       CourseServiceInterface
	EnrollmentService   EnrollmentServiceInterface
	AnnouncementService AnnouncementServiceInterface
	RecordService       RecordServiceInterface
	NotificationService NotificationServiceInterface
	AcademicService     AcademicServiceInterface
	DashboardService    DashboardServiceInterface

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → Session → RateLimit(General)
//
// POST /api/login と POST /api/register にはログイン専用のレート制限を追加する。
// セッションミドルウェアはリクエストを拒否しないため、認証の要否は各ハンドラーが判断する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(middleware.NewSessionMiddleware(deps.Sessions, deps.Metrics))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError())
	})

	authHandler := NewAuthHandler(deps.AuthService, deps.Cookies)
	userHandler := NewUserHandler(deps.UserService, deps.Cookies)
	courseHandler := NewCourseHandler(deps.CourseService)
	enrollmentHandler := NewEnrollmentHandler(deps.EnrollmentService)
	announcementHandler := NewAnnouncementHandler(deps.AnnouncementService)
	recordHandler := NewRecordHandler(deps.RecordService)
	notificationHandler := NewNotificationHandler(deps.NotificationService)
	academicHandler := NewAcademicHandler(deps.AcademicService)
	dashboardHandler := NewDashboardHandler(deps.DashboardService)
	healthHandler := NewHealthHandler(deps.DB)

	r.Get("/api/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 認証
	loginLimit := deps.RateLimiter.LoginMiddleware()
	r.With(loginLimit).Post("/api/login", authHandler.Login)
	r.With(loginLimit).Post("/api/register", authHandler.Register)
	r.Post("/api/logout", authHandler.Logout)

	// ログイン中ユーザー
	r.Route("/api/user", func(r chi.Router) {
		r.Get("/", authHandler.CurrentUser)
		r.Patch("/language", userHandler.UpdateLanguage)
		r.Patch("/profile-image", userHandler.UpdateProfileImage)
	})

	// コースカタログ
	r.Route("/api/courses", func(r chi.Router) {
		r.Get("/", courseHandler.ListCourses)
		r.Post("/", courseHandler.CreateCourse)
		r.Get("/{id}", courseHandler.GetCourse)
	})

	// 履修登録
	r.Route("/api/enrollments", func(r chi.Router) {
		r.Get("/", enrollmentHandler.ListEnrollments)
		r.Post("/", enrollmentHandler.Enroll)
	})

	// お知らせ
	r.Route("/api/announcements", func(r chi.Router) {
		r.Get("/", announcementHandler.ListAnnouncements)
		r.Post("/", announcementHandler.CreateAnnouncement)
	})

	r.Get("/api/finances", recordHandler.ListFinances)
	r.Get("/api/tasks", recordHandler.ListTasks)

	// 通知
	r.Route("/api/notifications", func(r chi.Router) {
		r.Get("/", notificationHandler.ListNotifications)
		r.Patch("/read-all", notificationHandler.MarkAllAsRead)
		r.Patch("/{id}/read", notificationHandler.MarkAsRead)
	})

	// 成績記録
	r.Route("/api/academics", func(r chi.Router) {
		r.Get("/", academicHandler.ListAcademics)
		r.Post("/", academicHandler.CreateAcademic)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", academicHandler.GetAcademic)
			r.Patch("/", academicHandler.UpdateAcademic)
			r.Delete("/", academicHandler.DeleteAcademic)
		})
	})

	// 集約ページ
	r.Get("/api/dashboard", dashboardHandler.GetDashboard)
	r.Get("/api/academics-page", dashboardHandler.GetAcademicsPage)

	return r
}
