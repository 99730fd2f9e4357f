package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/urportal/portal/internal/academic"
	"github.com/urportal/portal/internal/announcement"
	"github.com/urportal/portal/internal/auth"
	"github.com/urportal/portal/internal/config"
	"github.com/urportal/portal/internal/course"
	"github.com/urportal/portal/internal/dashboard"
	"github.com/urportal/portal/internal/database"
	"github.com/urportal/portal/internal/enrollment"
	"github.com/urportal/portal/internal/handler"
	"github.com/urportal/portal/internal/logger"
	"github.com/urportal/portal/internal/metrics"
	"github.com/urportal/portal/internal/middleware"
	"github.com/urportal/portal/internal/notification"
	"github.com/urportal/portal/internal/record"
	"github.com/urportal/portal/internal/repository"
	"github.com/urportal/portal/internal/security"
	"github.com/urportal/portal/internal/seed"
	"github.com/urportal/portal/internal/user"
	"github.com/urportal/portal/internal/worker/progress"
)

// サーバーのタイムアウト設定
const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再セットアップ
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("env", cfg.AppEnv),
	)

	// SIGINTまたはSIGTERMでキャンセルされるコンテキスト
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mc := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	courseRepo := repository.NewPostgresCourseRepo(db)
	enrollmentRepo := repository.NewPostgresEnrollmentRepo(db)
	announcementRepo := repository.NewPostgresAnnouncementRepo(db)
	financeRepo := repository.NewPostgresFinanceRepo(db)
	taskRepo := repository.NewPostgresTaskRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)
	academicRepo := repository.NewPostgresAcademicRepo(db)

	// 4. セキュリティ・キャッシュの初期化
	tokens := auth.NewTokenManager(auth.TokenConfig{
		Secret:       []byte(cfg.SessionSecret),
		MaxAge:       time.Duration(cfg.SessionMaxAge) * time.Second,
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	})
	imageGuard := security.NewImageURLGuard(cfg.ProfileImageTimeout)
	renderer := security.NewContentRenderer()

	catalogCache, err := course.NewCatalogCache(cfg.CatalogCacheTTL)
	if err != nil {
		return fmt.Errorf("failed to create catalog cache: %w", err)
	}
	defer catalogCache.Close()

	// 5. ドメインサービスの初期化
	authService := auth.NewService(userRepo, tokens, mc)
	userService := user.NewService(userRepo, imageGuard)
	courseService := course.NewService(courseRepo, catalogCache, mc)
	enrollmentService := enrollment.NewService(enrollmentRepo, courseRepo)
	announcementService := announcement.NewService(announcementRepo, renderer)
	recordService := record.NewService(financeRepo, taskRepo)
	notificationService := notification.NewService(notificationRepo)
	academicService := academic.NewService(academicRepo, courseRepo)
	dashboardService := dashboard.NewService(
		enrollmentRepo, announcementRepo, taskRepo, academicRepo, financeRepo, courseService,
	)

	// 6. ルーターの構築（設定値はreq/min単位）
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin), mc,
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Sessions:           tokens,
		RateLimiter:        rateLimiter,
		Metrics:            mc,
		Logger:             slog.Default(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		HSTS:               cfg.IsProduction(),
		MetricsHandler:     metrics.Handler(registry),

		Cookies:     tokens,
		AuthService: authService,
		UserService: userService,

		CourseService:       courseService,
		EnrollmentService:   enrollmentService,
		AnnouncementService: announcementService,
		RecordService:       recordService,
		NotificationService: notificationService,
		AcademicService:     academicService,
		DashboardService:    dashboardService,

		DB: db,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 履修進捗の更新ジョブを起動直後と一定間隔で実行し、ctxのキャンセルで終了する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")
	slog.Info("worker starting", slog.Duration("progress_interval", cfg.ProgressInterval))

	progress.NewJob(db, slog.Default()).Start(ctx, cfg.ProgressInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeed は開発用の初期データを投入する。マイグレーション適用済みであること。
func runSeed(ctx context.Context, cfg *config.Config) error {
	fixture, err := seed.DefaultFixture()
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	seeder := seed.NewSeeder(seed.Repositories{
		Users:         repository.NewPostgresUserRepo(db),
		Courses:       repository.NewPostgresCourseRepo(db),
		Enrollments:   repository.NewPostgresEnrollmentRepo(db),
		Announcements: repository.NewPostgresAnnouncementRepo(db),
		Finances:      repository.NewPostgresFinanceRepo(db),
		Tasks:         repository.NewPostgresTaskRepo(db),
		Notifications: repository.NewPostgresNotificationRepo(db),
	}, security.NewContentRenderer(), slog.Default())

	if _, err := seeder.Run(ctx, fixture); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /api/health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/api/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// URLとして解釈できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
