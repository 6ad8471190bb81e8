// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles,
// optionally seeded from a local .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Cache mirror backends.
const (
	MirrorRedis  = "redis"
	MirrorMemory = "memory"
)

// ErrInvalidMirror is returned when CACHE_MIRROR names an unknown backend.
var ErrInvalidMirror = errors.New("invalid cache mirror")

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`

	// Cache (Redis)
	RedisURL          string `env:"REDIS_URL,required"`
	RedisPoolSize     int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
	RedisMinIdleConns int    `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`

	// Record cache
	CacheTTL       time.Duration `env:"CACHE_TTL" envDefault:"10m"`
	CacheMirror    string        `env:"CACHE_MIRROR" envDefault:"redis"`
	SnapshotPrefix string        `env:"CACHE_SNAPSHOT_PREFIX" envDefault:"tagdesk:snapshot"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitAPIEnabled    bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitVerifyEnabled bool `env:"RATE_LIMIT_VERIFY_ENABLED" envDefault:"true"`
	RateLimitVerifyRPM     int  `env:"RATE_LIMIT_VERIFY_RPM" envDefault:"10"`
	RateLimitVerifyBurst   int  `env:"RATE_LIMIT_VERIFY_BURST" envDefault:"5"`

	// Bulk spreadsheet operations
	BulkDeleteConcurrency int   `env:"BULK_DELETE_CONCURRENCY" envDefault:"8"`
	MaxUploadSize         int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"`

	// Activity log stream
	ActivityEnabled    bool   `env:"ACTIVITY_ENABLED" envDefault:"true"`
	ActivityConsumerID string `env:"ACTIVITY_CONSUMER_ID" envDefault:""`

	// Metrics
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://admin.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes for JSON endpoints (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	switch c.CacheMirror {
	case MirrorRedis, MirrorMemory:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMirror, c.CacheMirror)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.BulkDeleteConcurrency < 1 {
		return fmt.Errorf("BULK_DELETE_CONCURRENCY must be at least 1, got %d", c.BulkDeleteConcurrency)
	}
	if c.RedisPoolSize < 1 || c.RedisMinIdleConns < 0 || c.RedisMinIdleConns > c.RedisPoolSize {
		return fmt.Errorf("invalid Redis pool: size %d, min idle %d", c.RedisPoolSize, c.RedisMinIdleConns)
	}
	return nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// CLI is the subset of settings tagctl needs. Redis is optional; without it
// tagctl cannot drop the API's cache snapshots.
type CLI struct {
	DatabaseURL           string        `env:"DATABASE_URL,required"`
	RedisURL              string        `env:"REDIS_URL"`
	CacheTTL              time.Duration `env:"CACHE_TTL" envDefault:"10m"`
	SnapshotPrefix        string        `env:"CACHE_SNAPSHOT_PREFIX" envDefault:"tagdesk:snapshot"`
	LogLevel              string        `env:"LOG_LEVEL" envDefault:"warn"`
	BulkDeleteConcurrency int           `env:"BULK_DELETE_CONCURRENCY" envDefault:"8"`
}

// LoadCLI reads the tagctl settings, seeding the environment from envFile
// when it exists.
func LoadCLI(envFile string) (*CLI, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	cfg := &CLI{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.BulkDeleteConcurrency < 1 {
		return nil, fmt.Errorf("BULK_DELETE_CONCURRENCY must be at least 1, got %d", cfg.BulkDeleteConcurrency)
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("CACHE_TTL must be positive, got %s", cfg.CacheTTL)
	}
	return cfg, nil
}

// loadDotEnv loads path if it exists. Variables already set in the
// environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
