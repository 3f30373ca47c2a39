package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストレージバックエンドの種類。
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageBackend string
	DatabaseURL    string

	// Auth
	JWTSecret     string
	JWTExpiration time.Duration
	BcryptCost    int

	// Server
	ServerPort string
	APIBase    string

	// CORS
	CORSAllowedOrigin string

	// Rate Limit (requests/min/user)
	RateLimitGeneral int
	RateLimitClaim   int

	// Audit worker
	AuditInterval     time.Duration
	StaleSessionAfter time.Duration

	// Logging
	LogLevel string

	// Seed
	SeedDemoData      bool
	SeedAdminEmail    string
	SeedAdminPassword string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.StorageBackend = strings.ToLower(getEnvString("STORAGE_BACKEND", StorageMemory))
	if cfg.StorageBackend != StorageMemory && cfg.StorageBackend != StoragePostgres {
		return nil, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q",
			StorageMemory, StoragePostgres, cfg.StorageBackend)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.StorageBackend == StoragePostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.JWTExpiration = getEnvDuration("JWT_EXPIRATION", 12*time.Hour)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "3000")
	cfg.APIBase = strings.TrimRight(getEnvString("API_BASE", "/api/v1"), "/")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitClaim = getEnvInt("RATE_LIMIT_CLAIM", 20)
	cfg.AuditInterval = getEnvDuration("AUDIT_INTERVAL", 5*time.Minute)
	cfg.StaleSessionAfter = getEnvDuration("STALE_SESSION_AFTER", 4*time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.SeedDemoData = getEnvBool("SEED_DEMO_DATA", false)
	cfg.SeedAdminEmail = getEnvString("SEED_ADMIN_EMAIL", "admin@mail.com")
	cfg.SeedAdminPassword = getEnvString("SEED_ADMIN_PASSWORD", "123456")

	if cfg.APIBase == "" || !strings.HasPrefix(cfg.APIBase, "/") {
		return nil, fmt.Errorf("API_BASE must start with '/', got %q", cfg.APIBase)
	}
	if cfg.RateLimitGeneral <= 0 || cfg.RateLimitClaim <= 0 {
		return nil, fmt.Errorf("rate limits must be positive")
	}
	if cfg.AuditInterval <= 0 {
		return nil, fmt.Errorf("AUDIT_INTERVAL must be positive")
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
