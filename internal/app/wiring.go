package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/gymqr/internal/auth"
	"github.com/hitoshi/gymqr/internal/catalog"
	"github.com/hitoshi/gymqr/internal/config"
	"github.com/hitoshi/gymqr/internal/handler"
	"github.com/hitoshi/gymqr/internal/metrics"
	"github.com/hitoshi/gymqr/internal/middleware"
	"github.com/hitoshi/gymqr/internal/security"
	"github.com/hitoshi/gymqr/internal/stats"
	"github.com/hitoshi/gymqr/internal/usage"
	"github.com/hitoshi/gymqr/internal/user"
)

// Services はバックエンド上に組み立てたドメインサービス群。
type Services struct {
	Tokens   *auth.TokenService
	Auth     *auth.Service
	Users    *user.Service
	Machines *catalog.MachineService
	Exercise *catalog.ExerciseService
	Usage    *usage.Service
	Stats    *stats.Service
}

// NewServices はドメインサービスを組み立てる。collectorはnilでもよい。
func NewServices(cfg *config.Config, b *Backend, collector *metrics.Collector, logger *slog.Logger) *Services {
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiration)
	sanitizer := security.NewTextSanitizer()

	var recorder usage.MetricsRecorder
	if collector != nil {
		recorder = collector
	}
	usageService := usage.NewService(b.Usage, recorder, logger)

	return &Services{
		Tokens:   tokens,
		Auth:     auth.NewService(b.Users, hasher, tokens),
		Users:    user.NewService(b.Users, hasher, usageService),
		Machines: catalog.NewMachineService(b.Machines, sanitizer),
		Exercise: catalog.NewExerciseService(b.Exercises, b.Machines, sanitizer),
		Usage:    usageService,
		Stats:    stats.NewService(b.Machines, b.Users, b.Usage),
	}
}

// NewHandler はAPIサーバーのHTTPハンドラーを組み立てる。
// 返されたRateLimiterはサーバー停止時にStopすること。
func NewHandler(
	cfg *config.Config,
	b *Backend,
	svc *Services,
	collector *metrics.Collector,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) (http.Handler, *middleware.RateLimiter) {
	rl := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitClaim),
	)

	deps := &handler.RouterDeps{
		TokenVerifier:     svc.Tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		Logger:            logger,
		APIBase:           cfg.APIBase,
		Health:            b.Health,

		AuthService:     svc.Auth,
		UserService:     svc.Users,
		MachineService:  svc.Machines,
		ExerciseService: svc.Exercise,
		UsageService:    svc.Usage,
		StatsService:    svc.Stats,
	}
	if collector != nil {
		deps.StatusRecorder = collector
	}
	if gatherer != nil {
		deps.MetricsHandler = metrics.SetupMetricsRoute(gatherer)
	}

	return handler.NewRouter(deps), rl
}

// syncActiveSessions は起動時点の利用中レコード数をゲージに反映する。
func syncActiveSessions(ctx context.Context, b *Backend, collector *metrics.Collector) error {
	active, err := b.Usage.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active sessions: %w", err)
	}
	collector.SetActiveSessions(len(active))
	return nil
}
