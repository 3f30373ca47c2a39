package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/hitoshi/gymqr/internal/config"
	"github.com/hitoshi/gymqr/internal/database"
	"github.com/hitoshi/gymqr/internal/repository"
)

// pingAttempts はPostgreSQL接続確認の最大試行回数。
const pingAttempts = 6

// Backend は選択されたストレージバックエンドのリポジトリ群。
type Backend struct {
	Kind      string
	Users     repository.UserRepository
	Machines  repository.MachineRepository
	Exercises repository.ExerciseRepository
	Usage     repository.UsageRepository
	Health    database.Pinger

	db *sql.DB
}

// Close はバックエンドが保持する接続を閉じる。
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// NewMemoryBackend はプロセス内メモリのバックエンドを生成する。
func NewMemoryBackend() *Backend {
	store := repository.NewMemoryStore()
	return &Backend{
		Kind:      config.StorageMemory,
		Users:     repository.NewMemoryUserRepo(store),
		Machines:  repository.NewMemoryMachineRepo(store),
		Exercises: repository.NewMemoryExerciseRepo(store),
		Usage:     repository.NewMemoryUsageRepo(store),
		Health:    store,
	}
}

// OpenBackend は設定に応じたバックエンドを開く。
// PostgreSQLの場合は疎通確認が取れるまで指数バックオフで再試行する。
func OpenBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	if cfg.StorageBackend != config.StoragePostgres {
		slog.Info("using in-memory storage backend")
		return NewMemoryBackend(), nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.PingWithRetry(ctx, db, pingAttempts); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	return &Backend{
		Kind:      config.StoragePostgres,
		Users:     repository.NewPostgresUserRepo(db),
		Machines:  repository.NewPostgresMachineRepo(db),
		Exercises: repository.NewPostgresExerciseRepo(db),
		Usage:     repository.NewPostgresUsageRepo(db),
		Health:    db,
		db:        db,
	}, nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
