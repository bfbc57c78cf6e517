package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/inklab/quill/internal/api"
	"github.com/inklab/quill/internal/cache"
	"github.com/inklab/quill/internal/clock"
	"github.com/inklab/quill/internal/config"
	"github.com/inklab/quill/internal/health"
	"github.com/inklab/quill/internal/metrics"
	"github.com/inklab/quill/internal/rules"
	"github.com/inklab/quill/internal/store"
	"github.com/inklab/quill/pkg/draftstore"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Str("db_path", cfg.DBPath).
		Str("auth_mode", cfg.AuthMode).
		Msg("starting quilld")

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Rule catalog
	catalog, err := rules.Load(cfg.RulesPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.RulesPath).Msg("failed to load rule catalog")
	}
	logger.Info().
		Int("rules", len(catalog.Rules)).
		Int("wildcards", len(catalog.Wildcards)).
		Msg("rule catalog loaded")

	// Session store (SQLite)
	st, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("store close error")
		}
	}()

	// Draft store (local fallback persistence)
	drafts, err := draftstore.NewFileStore(cfg.DraftDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DraftDir).Msg("failed to open draft store")
	}

	// Metrics
	m := metrics.New()

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := st.Ping(); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})
	checker.Register("drafts", func(ctx context.Context) health.Status {
		if _, err := os.Stat(drafts.Dir()); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	// API server
	handlers := api.NewHandlers(
		catalog,
		st,
		drafts,
		cache.NewSessions(cfg.SessionCacheSize),
		m,
		checker,
		clock.System(),
		api.AuthConfig{
			Mode:      cfg.AuthMode,
			APIKey:    cfg.APIKey,
			JWTSecret: cfg.JWTSecret,
			TokenTTL:  cfg.SessionTokenTTL,
		},
		cfg.PauseThreshold,
		logger,
	)

	server := api.NewServer(api.ServerConfig{
		ListenAddr: cfg.ListenAddr,
		AuthConfig: api.AuthConfig{
			Mode:      cfg.AuthMode,
			APIKey:    cfg.APIKey,
			JWTSecret: cfg.JWTSecret,
			TokenTTL:  cfg.SessionTokenTTL,
		},
		RateLimit: api.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
		CORSOrigins: cfg.CORSOrigins,
	}, handlers, m, logger)

	// WaitGroup for background loops
	var wg sync.WaitGroup

	// Start API server
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
		}
	}()

	// Autosave loop: flush live session text to the draft store and evict
	// sessions abandoned past the idle limit
	wg.Add(1)
	go func() {
		defer wg.Done()
		handlers.RunAutosave(ctx, cfg.AutosaveInterval, cfg.SessionMaxIdle)
	}()

	// Retention loop: expire old sessions and stale drafts, refresh DB size
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.RetentionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := st.RunRetention(ctx, cfg.RetentionDays); err != nil {
					logger.Error().Err(err).Msg("session retention error")
				} else if n > 0 {
					logger.Info().Int("deleted", n).Msg("expired sessions removed")
				}

				if n, err := drafts.Cleanup(ctx, cfg.DraftMaxAge); err != nil {
					logger.Error().Err(err).Msg("draft cleanup error")
				} else if n > 0 {
					logger.Info().Int("deleted", n).Msg("stale drafts removed")
				}

				if size, err := st.DBSizeBytes(); err == nil {
					m.DBSizeBytes.Set(float64(size))
				}
			}
		}
	}()

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	// Cancel context to signal all goroutines
	cancel()

	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("API server shutdown error")
	}

	// Wait for background loops to drain
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("quilld stopped")
}
