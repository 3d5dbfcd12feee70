package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/renraku/internal/auth"
	"github.com/hitoshi/renraku/internal/availability"
	"github.com/hitoshi/renraku/internal/calendar"
	"github.com/hitoshi/renraku/internal/config"
	"github.com/hitoshi/renraku/internal/consent"
	"github.com/hitoshi/renraku/internal/contact"
	"github.com/hitoshi/renraku/internal/database"
	"github.com/hitoshi/renraku/internal/handler"
	"github.com/hitoshi/renraku/internal/identity"
	"github.com/hitoshi/renraku/internal/logger"
	"github.com/hitoshi/renraku/internal/metrics"
	"github.com/hitoshi/renraku/internal/middleware"
	"github.com/hitoshi/renraku/internal/momentum"
	"github.com/hitoshi/renraku/internal/repository"
	"github.com/hitoshi/renraku/internal/security"
	"github.com/hitoshi/renraku/internal/tag"
	"github.com/hitoshi/renraku/internal/user"
	"github.com/hitoshi/renraku/internal/worker/calsync"
	"github.com/hitoshi/renraku/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	if w == nil {
		w = os.Stdout
	}

	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映したロガーに差し替える
	slog.SetDefault(logger.SetupWithLevel(w, logger.ParseLevel(cfg.LogLevel)))

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
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	loginIdentRepo := repository.NewPostgresLoginIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	contactRepo := repository.NewPostgresContactRepo(db)
	identityRepo := repository.NewPostgresIdentityRepo(db)
	accountRepo := repository.NewPostgresCalendarAccountRepo(db)
	eventRepo := repository.NewPostgresEventRepo(db)
	projectRepo := repository.NewPostgresProjectRepo(db)
	taskRepo := repository.NewPostgresTaskRepo(db)
	consentRepo := repository.NewPostgresConsentRepo(db)
	tagRepo := repository.NewPostgresTagRepo(db)

	// 3. セキュリティ・メトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, loginIdentRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	identityResolver := identity.NewResolver(identityRepo, contactRepo, collector)
	contactService := contact.NewService(
		contactRepo, identityResolver, tagRepo, consentRepo, taskRepo, sanitizer,
	)
	availabilityCalc := availability.NewCalculator(eventRepo)

	detector := calendar.NewCalendarDetector(ssrfGuard)
	iconFetcher := calendar.NewIconFetcher(ssrfGuard)
	accountService := calendar.NewAccountService(accountRepo, eventRepo, detector, iconFetcher)
	eventService := calendar.NewEventService(eventRepo, sanitizer)

	projectService := momentum.NewProjectService(projectRepo, taskRepo, sanitizer)
	taskService := momentum.NewTaskService(taskRepo, projectRepo, contactRepo, sanitizer)

	consentService := consent.NewService(consentRepo, contactRepo)
	tagService := tag.NewService(tagRepo, contactRepo)

	userService := user.NewService(userRepo, sessionRepo, user.WithdrawDeps{
		Consents:         consentRepo,
		Tags:             tagRepo,
		Tasks:            taskRepo,
		Projects:         projectRepo,
		Identities:       identityRepo,
		Contacts:         contactRepo,
		CalendarEvents:   eventRepo,
		CalendarAccounts: accountRepo,
	})

	// 5. レートリミッターの構築
	// デフォルト値から変更する場合のみ上書きする
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(cfg.RateLimitRPS)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitBurst
	rateLimiterCfg.AccountRegRate = rate.Limit(cfg.AccountRegLimitRPS)
	rateLimiterCfg.AccountRegBurst = cfg.AccountRegLimitBurst
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,
		Logger:      slog.Default(),

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ContactService:  handler.NewContactServiceAdapter(contactService),
		IdentityService: handler.NewIdentityServiceAdapter(identityResolver),

		AvailabilityService:    handler.NewAvailabilityServiceAdapter(availabilityCalc),
		CalendarAccountService: handler.NewCalendarAccountServiceAdapter(accountService),
		EventService:           handler.NewEventServiceAdapter(eventService),

		ProjectService: handler.NewProjectServiceAdapter(projectService),
		TaskService:    handler.NewTaskServiceAdapter(taskService),

		ConsentService: handler.NewConsentServiceAdapter(consentService),
		TagService:     handler.NewTagServiceAdapter(tagService),

		UserService: handler.NewUserServiceAdapter(userService),
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、カレンダー同期スケジューラとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	accountRepo := repository.NewPostgresCalendarAccountRepo(db)
	eventRepo := repository.NewPostgresEventRepo(db)

	// 3. セキュリティ・メトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. シンカーの初期化
	syncer := calsync.NewSyncer(
		accountRepo, eventRepo, sanitizer, ssrfGuard, collector,
		slog.Default(), cfg.SyncTimeout, cfg.SyncMaxFeedSize,
	)

	// 5. スケジューラの初期化
	scheduler := calsync.NewScheduler(
		accountRepo, syncer, slog.Default(), cfg.SyncMaxConcurrent, cfg.SyncTimeout,
	)

	// 6. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, eventRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.EventRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sync_interval", cfg.SyncInterval),
		slog.Int("max_concurrent", cfg.SyncMaxConcurrent),
		slog.Int("event_retention_days", cfg.EventRetentionDays),
	)

	// クリーンアップジョブを定期バックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 同期スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.SyncInterval)

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

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
