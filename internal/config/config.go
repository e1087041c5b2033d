package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment with
// an optional .env file for local development.
type Config struct {
	Environment string
	Port        string
	LogLevel    slog.Level

	// Postgres. ReadDatabaseURL is optional; when set, read-mostly queries
	// are routed to a separate reader pool.
	DatabaseURL     string
	ReadDatabaseURL string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBStmtTimeout   time.Duration

	// Redis serves the attempt cache, submit locks and rate limits.
	RedisURL string

	// Kafka brokers for the audit/metric event stream. Empty disables
	// publishing (events fall back to the in-process mock).
	KafkaBrokers string
	AuditTopic   string

	// JWT bearer auth.
	JWTSecret string

	// Attempt subsystem tuning.
	CacheTTL          time.Duration
	LockTTL           time.Duration
	AnswerRateLimit   int
	AnswerRateWindow  time.Duration
	WarmupInterval    time.Duration
	ReconcileInterval time.Duration
}

func LoadConfig() (*Config, error) {
	// Missing .env is fine; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		Port:              getEnv("PORT", "8080"),
		LogLevel:          parseLogLevel(getEnv("LOG_LEVEL", "info")),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ReadDatabaseURL:   os.Getenv("READ_DATABASE_URL"),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBStmtTimeout:     getEnvDuration("DB_STATEMENT_TIMEOUT", 10*time.Second),
		RedisURL:          os.Getenv("REDIS_URL"),
		KafkaBrokers:      os.Getenv("KAFKA_BROKERS"),
		AuditTopic:        getEnv("AUDIT_TOPIC", "olympiad.audit"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		CacheTTL:          getEnvDuration("OLYMPIAD_CACHE_TTL", 300*time.Second),
		LockTTL:           getEnvDuration("SUBMIT_LOCK_TTL", 15*time.Second),
		AnswerRateLimit:   getEnvInt("ANSWER_RATE_LIMIT", 20),
		AnswerRateWindow:  getEnvDuration("ANSWER_RATE_WINDOW", 10*time.Second),
		WarmupInterval:    getEnvDuration("CACHE_WARMUP_INTERVAL", 5*time.Minute),
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 10*time.Minute),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
