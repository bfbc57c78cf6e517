package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`

	// Persistence
	DBPath            string        `envconfig:"DB_PATH" default:"quill.db"`
	DraftDir          string        `envconfig:"DRAFT_DIR" default:"drafts"`
	RetentionDays     int           `envconfig:"RETENTION_DAYS" default:"0"` // 0 = keep forever
	DraftMaxAge       time.Duration `envconfig:"DRAFT_MAX_AGE" default:"720h"`
	RetentionInterval time.Duration `envconfig:"RETENTION_INTERVAL" default:"1h"`

	// Session capture
	RulesPath        string        `envconfig:"RULES_PATH"` // empty = built-in catalog
	PauseThreshold   time.Duration `envconfig:"PAUSE_THRESHOLD" default:"2s"`
	AutosaveInterval time.Duration `envconfig:"AUTOSAVE_INTERVAL" default:"30s"`
	SessionMaxIdle   time.Duration `envconfig:"SESSION_MAX_IDLE" default:"2h"` // 0 = never evict
	SessionCacheSize int           `envconfig:"SESSION_CACHE_SIZE" default:"128"`

	// API
	AuthMode        string        `envconfig:"AUTH_MODE" default:"token"` // "token", "api-key", "none"
	APIKey          string        `envconfig:"API_KEY"`
	JWTSecret       string        `envconfig:"JWT_SECRET"`
	SessionTokenTTL time.Duration `envconfig:"SESSION_TOKEN_TTL" default:"4h"`
	RateLimitRPS    int           `envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst  int           `envconfig:"RATE_LIMIT_BURST" default:"200"`
	CORSOrigins     string        `envconfig:"CORS_ORIGINS"`
}

// TokenAuthEnabled returns true if per-session participant tokens are in use.
func (c *Config) TokenAuthEnabled() bool {
	return c.AuthMode == "token" && c.JWTSecret != ""
}

// Validate rejects configurations that cannot serve requests.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case "token", "api-key", "none":
	default:
		return fmt.Errorf("unknown auth mode %q", c.AuthMode)
	}
	if c.AuthMode == "token" && c.JWTSecret == "" {
		return fmt.Errorf("AUTH_MODE=token requires JWT_SECRET")
	}
	if c.AuthMode == "api-key" && c.APIKey == "" {
		return fmt.Errorf("AUTH_MODE=api-key requires API_KEY")
	}
	if c.PauseThreshold <= 0 {
		return fmt.Errorf("PAUSE_THRESHOLD must be positive")
	}
	if c.AutosaveInterval <= 0 {
		return fmt.Errorf("AUTOSAVE_INTERVAL must be positive")
	}
	if c.SessionCacheSize < 1 {
		return fmt.Errorf("SESSION_CACHE_SIZE must be >= 1")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
