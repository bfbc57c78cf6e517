package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets the variables Load reads so host environment doesn't leak in.
// t.Setenv first so the original values are restored after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENVIRONMENT", "LOG_LEVEL", "LISTEN_ADDR",
		"DB_PATH", "DRAFT_DIR", "RETENTION_DAYS", "DRAFT_MAX_AGE", "RETENTION_INTERVAL",
		"RULES_PATH", "PAUSE_THRESHOLD", "AUTOSAVE_INTERVAL", "SESSION_MAX_IDLE", "SESSION_CACHE_SIZE",
		"AUTH_MODE", "API_KEY", "JWT_SECRET", "SESSION_TOKEN_TTL",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ORIGINS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_MODE", "none")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "quill.db", cfg.DBPath)
	assert.Equal(t, "drafts", cfg.DraftDir)
	assert.Equal(t, 0, cfg.RetentionDays)
	assert.Equal(t, 2*time.Second, cfg.PauseThreshold)
	assert.Equal(t, 30*time.Second, cfg.AutosaveInterval)
	assert.Equal(t, 2*time.Hour, cfg.SessionMaxIdle)
	assert.Equal(t, 128, cfg.SessionCacheSize)
	assert.Equal(t, 4*time.Hour, cfg.SessionTokenTTL)
	assert.Equal(t, 100, cfg.RateLimitRPS)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_MODE", "token")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("PAUSE_THRESHOLD", "5s")
	t.Setenv("RETENTION_DAYS", "90")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.PauseThreshold)
	assert.Equal(t, 90, cfg.RetentionDays)
	assert.True(t, cfg.TokenAuthEnabled())
}

func TestLoad_TokenModeRequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_MODE", "token")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AuthMode:         "none",
			PauseThreshold:   2 * time.Second,
			AutosaveInterval: 30 * time.Second,
			SessionCacheSize: 128,
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("unknown auth mode", func(t *testing.T) {
		c := valid()
		c.AuthMode = "oauth"
		assert.ErrorContains(t, c.Validate(), "unknown auth mode")
	})

	t.Run("api-key mode requires key", func(t *testing.T) {
		c := valid()
		c.AuthMode = "api-key"
		assert.ErrorContains(t, c.Validate(), "API_KEY")

		c.APIKey = "k"
		assert.NoError(t, c.Validate())
	})

	t.Run("non-positive pause threshold", func(t *testing.T) {
		c := valid()
		c.PauseThreshold = 0
		assert.ErrorContains(t, c.Validate(), "PAUSE_THRESHOLD")
	})

	t.Run("cache size", func(t *testing.T) {
		c := valid()
		c.SessionCacheSize = 0
		assert.ErrorContains(t, c.Validate(), "SESSION_CACHE_SIZE")
	})
}

func TestTokenAuthEnabled(t *testing.T) {
	cfg := &Config{AuthMode: "token", JWTSecret: "s"}
	assert.True(t, cfg.TokenAuthEnabled())

	cfg.JWTSecret = ""
	assert.False(t, cfg.TokenAuthEnabled())

	cfg = &Config{AuthMode: "none", JWTSecret: "s"}
	assert.False(t, cfg.TokenAuthEnabled())
}
