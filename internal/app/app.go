package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/gymqr/internal/config"
	"github.com/hitoshi/gymqr/internal/database"
	"github.com/hitoshi/gymqr/internal/logger"
	"github.com/hitoshi/gymqr/internal/metrics"
	"github.com/hitoshi/gymqr/internal/worker/audit"
)

// errPostgresRequired はPostgreSQLバックエンドでのみ意味を持つコマンドの実行時に返す。
var errPostgresRequired = errors.New("this command requires STORAGE_BACKEND=postgres")

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

	// 3. 設定されたログレベルで再初期化
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
			port = "3000"
		}
		apiBase := strings.TrimRight(os.Getenv("API_BASE"), "/")
		if apiBase == "" {
			apiBase = "/api/v1"
		}
		return runHealthcheck(fmt.Sprintf("http://localhost:%s%s/health", port, apiBase))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("storage", cfg.StorageBackend),
	)

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

// runServe はAPIサーバーモードで起動する。
// バックエンドを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
//
// メモリバックエンドの場合は状態がこのプロセスにしか存在しないため、
// 初期データの投入と整合性点検もこのプロセス内で行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. バックエンド
	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	// 2. メトリクスとサービス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	svc := NewServices(cfg, backend, collector, slog.Default())

	if backend.Kind == config.StorageMemory || cfg.SeedDemoData {
		if err := Seed(ctx, cfg, svc.Users, svc.Machines); err != nil {
			return err
		}
	}
	if err := syncActiveSessions(ctx, backend, collector); err != nil {
		return err
	}

	if backend.Kind == config.StorageMemory {
		job := audit.NewJob(backend.Machines, backend.Usage, collector, slog.Default())
		job.StaleAfter = cfg.StaleSessionAfter
		go job.Start(ctx, cfg.AuditInterval)
	}

	// 3. ルーター
	router, rl := NewHandler(cfg, backend, svc, collector, registry, slog.Default())
	defer rl.Stop()

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilDone(ctx, server, "API server")
}

// runWorker は整合性点検ワーカーとして起動する。
// 点検結果のゲージは /metrics で公開する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("worker: %w", errPostgresRequired)
	}

	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	job := audit.NewJob(backend.Machines, backend.Usage, collector, slog.Default())
	job.StaleAfter = cfg.StaleSessionAfter

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go job.Start(ctx, cfg.AuditInterval)

	return serveUntilDone(ctx, server, "worker metrics server")
}

// serveUntilDone はserverを起動し、ctxがキャンセルされたらシャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name + "...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("migrate: %w", errPostgresRequired)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runSeed は管理者とデモ用マシンをPostgreSQLに投入する。
func runSeed(ctx context.Context, cfg *config.Config) error {
	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("seed: %w", errPostgresRequired)
	}

	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	svc := NewServices(cfg, backend, nil, slog.Default())
	if err := Seed(ctx, cfg, svc.Users, svc.Machines); err != nil {
		return err
	}

	slog.Info("seed completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// ヘルスエンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(url string) error {
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
