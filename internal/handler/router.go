package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/gymqr/internal/middleware"
	"github.com/hitoshi/gymqr/internal/model"
)

// DefaultAPIBase はAPIのベースパス。
const DefaultAPIBase = "/api/v1"

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder // nilの場合はHTTPステータスを記録しない

	// 公開エンドポイント
	APIBase        string
	Health         HealthChecker
	MetricsHandler http.Handler // nilの場合は/metricsを公開しない

	// サービス
	AuthService     AuthServiceInterface
	UserService     UserServiceInterface
	MachineService  MachineServiceInterface
	ExerciseService ExerciseServiceInterface
	UsageService    UsageServiceInterface
	StatsService    StatsServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	  → (認証が必要なルート) Auth → RateLimit(General) [→ RateLimit(Claim)] [→ RequireRole(admin)]
//
// 参照系のカタログ・統計は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	apiBase := deps.APIBase
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "ROUTE_NOT_FOUND",
			Message:  "エンドポイントが見つかりません。",
			Category: "system",
			Action:   "URLを確認してください。",
		})
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService, deps.UsageService)
	machineHandler := NewMachineHandler(deps.MachineService)
	exerciseHandler := NewExerciseHandler(deps.ExerciseService)
	usageHandler := NewUsageHandler(deps.UsageService)
	statsHandler := NewStatsHandler(deps.StatsService)

	authenticated := func(r chi.Router) chi.Router {
		return r.With(
			middleware.NewAuthMiddleware(deps.TokenVerifier),
			deps.RateLimiter.GeneralMiddleware(),
		)
	}
	adminOnly := func(r chi.Router) chi.Router {
		return authenticated(r).With(middleware.RequireRole(model.RoleAdmin))
	}

	r.Route(apiBase, func(r chi.Router) {
		r.Get("/health", NewHealthHandler(deps.Health))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)

			authenticated(r).Get("/profile", authHandler.Profile)
			authenticated(r).Post("/refresh-token", authHandler.RefreshToken)
			authenticated(r).Post("/change-password", authHandler.ChangePassword)
		})

		r.Route("/users", func(r chi.Router) {
			adminOnly(r).Post("/create", userHandler.Create)
			authenticated(r).Get("/getAll", userHandler.List)
			authenticated(r).Get("/get/{id}", userHandler.Get)
			adminOnly(r).Put("/update/{id}", userHandler.Update)
			adminOnly(r).Delete("/delete/{id}", userHandler.Delete)
			authenticated(r).Get("/mis-usos", userHandler.MyActiveSessions)
			authenticated(r).Get("/historial", userHandler.MyHistory)
		})

		r.Route("/machines", func(r chi.Router) {
			r.Get("/getAll", machineHandler.List)
			r.Get("/get/{id}", machineHandler.Get)
			r.Get("/disponibles", machineHandler.ListByStatus(model.MachineStatusAvailable))
			r.Get("/en-uso", machineHandler.ListByStatus(model.MachineStatusInUse))
			r.Get("/mantenimiento", machineHandler.ListByStatus(model.MachineStatusMaintenance))

			adminOnly(r).Post("/create", machineHandler.Create)
			adminOnly(r).Put("/update/{id}", machineHandler.Update)
			adminOnly(r).Delete("/delete/{id}", machineHandler.Delete)
			adminOnly(r).Put("/cambiar-estado/{id}", machineHandler.ChangeStatus)
		})

		r.Route("/exercises", func(r chi.Router) {
			r.Get("/getAll", exerciseHandler.List)
			r.Get("/get/{id}", exerciseHandler.Get)
			r.Get("/por-maquina/{maquinaId}", exerciseHandler.ListByMachine)

			adminOnly(r).Post("/create", exerciseHandler.Create)
			adminOnly(r).Put("/update/{id}", exerciseHandler.Update)
			adminOnly(r).Delete("/delete/{id}", exerciseHandler.Delete)
		})

		r.Route("/statistics", func(r chi.Router) {
			r.Get("/summary", statsHandler.Summary)
			r.Get("/machines-by-status", statsHandler.MachinesByStatus)
			r.Get("/usage-today", statsHandler.UsageToday)
			r.Get("/most-used", statsHandler.MostUsed)
			authenticated(r).Get("/report", statsHandler.Report)
		})

		r.Route("/usos", func(r chi.Router) {
			// 利用開始は専用のレート制限を追加
			claim := authenticated(r).With(deps.RateLimiter.ClaimMiddleware())
			claim.Post("/iniciar", usageHandler.Start)
			claim.Post("/escanear", usageHandler.Scan)

			authenticated(r).Put("/finalizar/{id}", usageHandler.Finish)
			authenticated(r).Get("/activos", usageHandler.Active)
			authenticated(r).Get("/mis-activos", usageHandler.MyActive)
			authenticated(r).Get("/historial", usageHandler.MyHistory)
			authenticated(r).Get("/historial/{userId}", usageHandler.UserHistory)
			authenticated(r).Get("/maquina/{maquinaId}", usageHandler.MachineHistory)
		})
	})

	return r
}
