package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/tablero/internal/metrics"
	"github.com/hitoshi/tablero/internal/middleware"
	"github.com/hitoshi/tablero/internal/view"
)

// Renderer はページ全体・断片・タスクリストを描画するインターフェース。
// *view.Rendererが満たす。
type Renderer interface {
	PageRenderer
	ListRenderer
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 監視
	HealthChecker HealthChecker
	Metrics       metrics.MetricsCollector
	Gatherer      prometheus.Gatherer

	// 描画
	Renderer Renderer

	// 認証
	AuthService AuthServiceInterface
	AuthChanges AuthChangeSource
	AuthConfig  AuthHandlerConfig

	// タスク
	TaskService     TaskServiceInterface
	TaskSubscriber  view.TaskSubscriber
	StreamKeepAlive time.Duration
	// StreamClosing が閉じられると配信中のライブ更新を終了させる。
	StreamClosing <-chan struct{}
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Session → CSRF
//
// /api/* はさらに RequireUser → RateLimit(General)、
// POST /login と POST /register は RateLimit(AuthAttempt) を通る。
// /health と /metrics と /static/* はミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	pageHandler := NewPageHandler(deps.Renderer, deps.TaskService, logger)
	authHandler := NewAuthHandler(deps.AuthService, deps.Renderer, deps.Metrics, deps.AuthConfig, logger)
	taskHandler := NewTaskHandler(deps.TaskService)
	streamHandler := NewStreamHandler(deps.TaskSubscriber, deps.AuthChanges, deps.Renderer, deps.StreamKeepAlive, deps.StreamClosing, logger)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.SetupMetricsRoute(deps.Gatherer))
	}
	r.Method(http.MethodGet, "/static/*", view.StaticHandler())

	// --- アプリケーション ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRecoveryMiddleware(logger))
		r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewSessionMiddleware(deps.UserResolver))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// 認証フォーム
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthAttemptMiddleware())
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
		})
		r.Post("/logout", authHandler.Logout)
		r.Get("/auth/me", authHandler.Me)

		// ボードのライブ更新
		r.Get("/tablero/stream", streamHandler.ServeHTTP)

		// タスクAPI
		r.Route("/api/tasks", func(r chi.Router) {
			r.Use(middleware.NewRequireUserMiddleware())
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/", taskHandler.ListTasks)
			r.Post("/", taskHandler.CreateTask)
			r.Put("/{id}/status", taskHandler.UpdateTaskStatus)
			r.Delete("/{id}", taskHandler.DeleteTask)
		})

		// シェル（それ以外の全パス）
		r.Get("/*", pageHandler.ServeHTTP)
	})

	return r
}
