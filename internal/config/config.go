package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported values for DatabaseDriver.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Supported values for RateLimitBackend.
const (
	BackendDatabase = "database"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	DatabaseDriver      string
	DatabaseURL         string
	ServerPort          string
	FrontendURL         string
	EnableHSTS          bool
	TrustProxyHeaders   bool
	ServerDebugMode     bool
	RedisURL            string
	RateLimitBackend    string
	ChatRateLimitMax    int
	ChatRateLimitWindow time.Duration
	RateLimitGCInterval time.Duration
	BurstRate           string
	UpstreamProvider    string
	UpstreamModel       string
	UpstreamBaseURL     string
	UpstreamTimeout     time.Duration
	AssistantOwner      string
	MetricsEnabled      bool
	OTELEnabled         bool
	OTELEndpoint        string
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first if present; real environment
// variables take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := &Config{
		DatabaseDriver:      strings.ToLower(getEnv("DATABASE_DRIVER", DriverPostgres)),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:          getEnvBool("ENABLE_HSTS", false),
		TrustProxyHeaders:   getEnvBool("TRUST_PROXY_HEADERS", false),
		ServerDebugMode:     getEnvBool("SERVER_DEBUG_MODE", false),
		RedisURL:            getEnv("REDIS_URL", ""),
		RateLimitBackend:    strings.ToLower(getEnv("RATE_LIMIT_BACKEND", BackendDatabase)),
		ChatRateLimitMax:    getEnvInt("CHAT_RATE_LIMIT_MAX", 20),
		ChatRateLimitWindow: getEnvDuration("CHAT_RATE_LIMIT_WINDOW", time.Hour),
		RateLimitGCInterval: getEnvDuration("RATE_LIMIT_GC_INTERVAL", time.Hour),
		BurstRate:           getEnv("BURST_RATE_DEFAULT", "5-S"),
		UpstreamProvider:    strings.ToLower(getEnv("UPSTREAM_PROVIDER", "gemini")),
		UpstreamModel:       getEnv("UPSTREAM_MODEL", ""),
		UpstreamBaseURL:     getEnv("UPSTREAM_BASE_URL", ""),
		UpstreamTimeout:     getEnvDuration("UPSTREAM_TIMEOUT", 60*time.Second),
		AssistantOwner:      getEnv("ASSISTANT_OWNER_NAME", "the portfolio owner"),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", true),
		OTELEnabled:         getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.DatabaseDriver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q (supported: postgres, mysql, sqlite)", cfg.DatabaseDriver)
	}

	switch cfg.RateLimitBackend {
	case BackendDatabase, BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("unsupported RATE_LIMIT_BACKEND %q (supported: database, redis, memory)", cfg.RateLimitBackend)
	}

	if cfg.ChatRateLimitMax <= 0 {
		return nil, fmt.Errorf("CHAT_RATE_LIMIT_MAX must be positive, got %d", cfg.ChatRateLimitMax)
	}
	if cfg.ChatRateLimitWindow <= 0 {
		return nil, fmt.Errorf("CHAT_RATE_LIMIT_WINDOW must be positive, got %s", cfg.ChatRateLimitWindow)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "1h") and falls back on parse errors.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
