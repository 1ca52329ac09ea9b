// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Analysis  AnalysisConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Retention RetentionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds settings for the optional run history store.
// With no URL, finished analyses are kept in memory only.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// AnalysisConfig holds duplicate analysis settings.
type AnalysisConfig struct {
	// ChunkSize is the number of bytes parsed per step (default: 256KiB)
	ChunkSize int `env:"ANALYSIS_CHUNK_SIZE" default:"262144"`

	// MaxFileSize is the maximum accepted ledger size in bytes (default: 100MB)
	MaxFileSize int64 `env:"ANALYSIS_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of analyses running at once (default: 5)
	MaxConcurrent int `env:"ANALYSIS_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an analysis slot (default: 30s)
	MaxWaitTime time.Duration `env:"ANALYSIS_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single analysis (default: 10m)
	Timeout time.Duration `env:"ANALYSIS_TIMEOUT" default:"10m"`

	// ResultTTL is how long a finished analysis stays subscribable in memory (default: 5m)
	ResultTTL time.Duration `env:"ANALYSIS_RESULT_TTL" default:"5m"`

	// DateWindowDays is used when a request does not set one (default: 7)
	DateWindowDays int `env:"ANALYSIS_DATE_WINDOW_DAYS" default:"7"`

	// AmountTolerance is used when a request does not set one (default: 0.00)
	AmountTolerance decimal.Decimal `env:"ANALYSIS_AMOUNT_TOLERANCE" default:"0.00"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// AnalysisLimit is requests per minute for endpoints that accept files (default: 10)
	AnalysisLimit int `env:"RATE_LIMIT_ANALYSIS" envAlt:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey turns on X-API-Key authentication for /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// RetentionConfig controls purging of stored analysis runs.
type RetentionConfig struct {
	// Enabled schedules the purge job (default: true)
	Enabled bool `env:"RETENTION_ENABLED" default:"true"`

	// Schedule is a five-field cron expression (default: 03:00 daily)
	Schedule string `env:"RETENTION_SCHEDULE" default:"0 3 * * *"`

	// Days is how long stored runs are kept (default: 30)
	Days int `env:"RETENTION_DAYS" default:"30"`

	// Timezone is the IANA zone the schedule is evaluated in (default: UTC)
	Timezone string `env:"RETENTION_TIMEZONE" default:"UTC"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
