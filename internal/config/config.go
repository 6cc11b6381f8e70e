package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the darkwatch client and CLI.
type Config struct {
	API      APIConfig
	Poll     PollConfig
	Session  SessionConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// SessionConfig selects where the token pair is persisted between runs.
type SessionConfig struct {
	Store      string
	File       string
	Passphrase string
	Namespace  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

var validStores = map[string]bool{
	StoreMemory:   true,
	StoreFile:     true,
	StoreRedis:    true,
	StorePostgres: true,
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Load reads configuration from environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL: envString("DARKWATCH_API_BASE_URL", "http://localhost:8000/api"),
			Timeout: envDuration("DARKWATCH_HTTP_TIMEOUT", 10*time.Second),
		},
		Poll: PollConfig{
			Interval:    envDuration("DARKWATCH_POLL_INTERVAL", 2*time.Second),
			MaxAttempts: envInt("DARKWATCH_POLL_MAX_ATTEMPTS", 60),
		},
		Session: SessionConfig{
			Store:      strings.ToLower(envString("DARKWATCH_TOKEN_STORE", StoreFile)),
			File:       envString("DARKWATCH_TOKEN_FILE", defaultTokenFile()),
			Passphrase: os.Getenv("DARKWATCH_TOKEN_PASSPHRASE"),
			Namespace:  envString("DARKWATCH_SESSION_NAMESPACE", "default"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 4),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 1),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envString("DARKWATCH_LOG_LEVEL", "warn")),
			Format: strings.ToLower(envString("DARKWATCH_LOG_FORMAT", "json")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	return logLevels[c.Log.Level]
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("DARKWATCH_API_BASE_URL must start with http:// or https://, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("DARKWATCH_HTTP_TIMEOUT must be positive, got %s", c.API.Timeout)
	}

	if c.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("DARKWATCH_POLL_MAX_ATTEMPTS must be positive, got %d", c.Poll.MaxAttempts)
	}
	if c.Poll.Interval < 0 {
		return fmt.Errorf("DARKWATCH_POLL_INTERVAL must not be negative, got %s", c.Poll.Interval)
	}

	if !validStores[c.Session.Store] {
		return fmt.Errorf("DARKWATCH_TOKEN_STORE must be one of memory, file, redis, postgres; got %q", c.Session.Store)
	}
	if c.Session.Store == StoreFile && c.Session.File == "" {
		return fmt.Errorf("DARKWATCH_TOKEN_FILE is required when DARKWATCH_TOKEN_STORE is file")
	}
	if c.Session.Store == StoreRedis && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required when DARKWATCH_TOKEN_STORE is redis")
	}
	if c.Session.Store == StorePostgres && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when DARKWATCH_TOKEN_STORE is postgres")
	}

	if _, ok := logLevels[c.Log.Level]; !ok {
		return fmt.Errorf("DARKWATCH_LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("DARKWATCH_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	return nil
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "darkwatch", "session.json")
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
