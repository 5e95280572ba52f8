package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for cabinprep.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Poll     PollConfig
	Session  SessionConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           int
	Env            string
	APIKeyHash     string
	RateLimit      int
	HealthCacheTTL time.Duration
	MaxMediaBytes  int64
}

type BackendConfig struct {
	BaseURL       string
	Timeout       time.Duration
	UploadTimeout time.Duration
}

// PollConfig bounds the status polling loop. MaxAttempts of 0 means no
// attempt limit; Timeout still applies.
type PollConfig struct {
	InitialDelay   time.Duration
	Interval       time.Duration
	Timeout        time.Duration
	MaxAttempts    int
	MaxQueryErrors int
}

type SessionConfig struct {
	Tick        time.Duration
	ContentType string
}

// DatabaseConfig is optional. With an empty URL reports are kept in memory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

// RedisConfig is optional. With an empty URL an in-process cache is used.
type RedisConfig struct {
	URL string
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any value is invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("CABINPREP_PORT", 8080),
			Env:            envString("CABINPREP_ENV", "development"),
			APIKeyHash:     os.Getenv("CABINPREP_API_KEY_HASH"),
			RateLimit:      envInt("RATE_LIMIT_PER_MINUTE", 60),
			HealthCacheTTL: envDuration("HEALTH_CACHE_TTL", 10*time.Second),
			MaxMediaBytes:  int64(envInt("MAX_MEDIA_MB", 200)) << 20,
		},
		Backend: BackendConfig{
			BaseURL:       strings.TrimRight(envString("BACKEND_BASE_URL", "http://localhost:3000"), "/"),
			Timeout:       envDuration("BACKEND_TIMEOUT", 30*time.Second),
			UploadTimeout: envDuration("BACKEND_UPLOAD_TIMEOUT", 60*time.Second),
		},
		Poll: PollConfig{
			InitialDelay:   envDuration("POLL_INITIAL_DELAY", 2*time.Second),
			Interval:       envDuration("POLL_INTERVAL", 5*time.Second),
			Timeout:        envDuration("POLL_TIMEOUT", 10*time.Minute),
			MaxAttempts:    envInt("POLL_MAX_ATTEMPTS", 0),
			MaxQueryErrors: envInt("POLL_MAX_QUERY_ERRORS", 3),
		},
		Session: SessionConfig{
			Tick:        envDuration("SESSION_TICK", time.Second),
			ContentType: envString("SESSION_CONTENT_TYPE", "video/webm"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Log: LogConfig{
			Level:      strings.ToLower(envString("LOG_LEVEL", "info")),
			Format:     strings.ToLower(envString("LOG_FORMAT", "json")),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 14),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UsesDatabase reports whether reports should be persisted to Postgres.
func (c *Config) UsesDatabase() bool {
	return c.Database.URL != ""
}

// UsesRedis reports whether the shared Redis cache is configured.
func (c *Config) UsesRedis() bool {
	return c.Redis.URL != ""
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("BACKEND_BASE_URL must start with http:// or https://, got %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive")
	}
	if c.Backend.UploadTimeout <= 0 {
		return fmt.Errorf("BACKEND_UPLOAD_TIMEOUT must be positive")
	}

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.Poll.InitialDelay < 0 {
		return fmt.Errorf("POLL_INITIAL_DELAY must not be negative")
	}
	if c.Poll.Timeout <= 0 && c.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("POLL_TIMEOUT or POLL_MAX_ATTEMPTS must bound polling")
	}

	if c.Session.Tick <= 0 {
		return fmt.Errorf("SESSION_TICK must be positive")
	}
	if c.Session.ContentType == "" {
		return fmt.Errorf("SESSION_CONTENT_TYPE is required")
	}

	if c.Database.URL != "" && !strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
		return fmt.Errorf("DATABASE_URL must be a postgres:// URL")
	}

	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text; got %q", c.Log.Format)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
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

func envDuration(key string, defaultVal time.Duration) time.Duration {
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
