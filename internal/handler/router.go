package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/renraku/internal/middleware"
)

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
func SetupAuthRoutes(service AuthServiceInterface, config AuthHandlerConfig) http.Handler {
	r := chi.NewRouter()
	h := NewAuthHandler(service, config)

	r.Route("/auth", func(r chi.Router) {
		// OAuthフロー
		r.Get("/google/login", h.Login)
		r.Get("/google/callback", h.Callback)

		// セッション管理
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})

	return r
}

// healthCheckTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthCheckTimeout = 5 * time.Second

// HealthChecker はヘルスチェックハンドラーが必要とするDB疎通確認インターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// NewHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /healthz
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := checker.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 連絡先
	ContactService  ContactServiceInterface
	IdentityService IdentityServiceInterface

	// カレンダー
	AvailabilityService    AvailabilityServiceInterface
	CalendarAccountService CalendarAccountServiceInterface
	EventService           EventServiceInterface

	// 案件・タスク
	ProjectService ProjectServiceInterface
	TaskService    TaskServiceInterface

	// 同意・タグ
	ConsentService ConsentServiceInterface
	TagService     TagServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging →（保護ルートのみ）CSRF → Session → RateLimit(General)
//
// 認証ルート（/auth/*）、ヘルスチェック、メトリクス、CSRFトークン取得は
// セッション認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	contactHandler := NewContactHandler(deps.ContactService)
	identityHandler := NewIdentityHandler(deps.IdentityService)
	availabilityHandler := NewAvailabilityHandler(deps.AvailabilityService)
	accountHandler := NewCalendarAccountHandler(deps.CalendarAccountService)
	eventHandler := NewEventHandler(deps.EventService)
	momentumHandler := NewMomentumHandler(deps.ProjectService, deps.TaskService)
	consentHandler := NewConsentHandler(deps.ConsentService)
	tagHandler := NewTagHandler(deps.TagService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// CSRFトークン取得（Cookieの発行もここで行う）
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// ヘルスチェック
	if deps.HealthChecker != nil {
		r.Get("/healthz", NewHealthHandler(deps.HealthChecker))
	}

	// Prometheusメトリクス
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: CSRF → Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 連絡先管理
		r.Route("/api/contacts", func(r chi.Router) {
			r.Get("/", contactHandler.ListContacts)
			r.Post("/", contactHandler.CreateContact)

			// POST /api/contacts/merge - 重複連絡先の統合
			r.Post("/merge", contactHandler.MergeContacts)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", contactHandler.GetContact)
				r.Put("/", contactHandler.UpdateContact)
				r.Delete("/", contactHandler.DeleteContact)
				r.Post("/archive", contactHandler.ArchiveContact)
				r.Post("/unarchive", contactHandler.UnarchiveContact)

				// 連絡手段
				r.Route("/identities", func(r chi.Router) {
					r.Get("/", identityHandler.ListContactIdentities)
					r.Post("/", identityHandler.AddIdentity)
				})

				// 同意記録
				r.Route("/consents", func(r chi.Router) {
					r.Get("/", consentHandler.ListContactConsents)
					r.Post("/", consentHandler.GrantConsent)
					r.Post("/revoke", consentHandler.RevokeConsent)
					r.Get("/check", consentHandler.CheckConsent)
				})

				// タグ付与
				r.Route("/tags", func(r chi.Router) {
					r.Get("/", tagHandler.ListContactTags)
					r.Put("/{tagId}", tagHandler.TagContact)
					r.Delete("/{tagId}", tagHandler.UntagContact)
				})
			})
		})

		// 連絡手段の横断操作（名寄せ・重複検出）
		r.Route("/api/identities", func(r chi.Router) {
			r.Post("/resolve", identityHandler.Resolve)
			r.Get("/duplicates", identityHandler.ListDuplicates)
			r.Get("/stats", identityHandler.GetStats)
			r.Delete("/{id}", identityHandler.RemoveIdentity)
		})

		// 空き時間検索
		r.Get("/api/availability", availabilityHandler.FindAvailability)

		// カレンダーアカウント管理
		r.Route("/api/calendar/accounts", func(r chi.Router) {
			r.Get("/", accountHandler.ListAccounts)

			// POST /api/calendar/accounts - アカウント登録（登録専用レート制限を追加）
			r.With(deps.RateLimiter.AccountRegistrationMiddleware()).Post("/", accountHandler.RegisterAccount)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", accountHandler.DeleteAccount)
				r.Put("/settings", accountHandler.UpdateSettings)
				r.Post("/resume", accountHandler.ResumeSync)
				r.Get("/icon", accountHandler.GetAccountIcon)
			})
		})

		// 予定管理
		r.Route("/api/events", func(r chi.Router) {
			r.Get("/", eventHandler.ListEvents)
			r.Post("/", eventHandler.CreateEvent)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", eventHandler.GetEvent)
				r.Put("/", eventHandler.UpdateEvent)
				r.Delete("/", eventHandler.DeleteEvent)
			})
		})

		// 案件管理
		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", momentumHandler.ListProjects)
			r.Post("/", momentumHandler.CreateProject)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", momentumHandler.UpdateProject)
				r.Delete("/", momentumHandler.DeleteProject)
				r.Post("/complete", momentumHandler.CompleteProject)
				r.Post("/archive", momentumHandler.ArchiveProject)
			})
		})

		// タスク管理
		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", momentumHandler.ListTasks)
			r.Post("/", momentumHandler.CreateTask)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", momentumHandler.GetTask)
				r.Put("/", momentumHandler.UpdateTask)
				r.Delete("/", momentumHandler.DeleteTask)
				r.Put("/status", momentumHandler.SetTaskStatus)
			})
		})

		// 活動量サマリー
		r.Get("/api/momentum", momentumHandler.GetMomentum)

		// 同意サマリー
		r.Get("/api/consents/overview", consentHandler.GetOverview)

		// タグ管理
		r.Route("/api/tags", func(r chi.Router) {
			r.Get("/", tagHandler.ListTags)
			r.Post("/", tagHandler.CreateTag)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", tagHandler.UpdateTag)
				r.Delete("/", tagHandler.DeleteTag)
				r.Get("/contacts", tagHandler.ListContactsByTag)
			})
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}
