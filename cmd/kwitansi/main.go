package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"kwitansi/internal/backend"
	"kwitansi/internal/cli"
	"kwitansi/internal/config"
	apphttp "kwitansi/internal/http"
	applog "kwitansi/internal/log"
	"kwitansi/internal/middleware/ratelimit"
	"kwitansi/internal/session"
)

func main() {
	logger := cli.SetupLogger(applog.ComponentApp)
	cli.LoadEnvFile(logger)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	// Choose data backend (api, sqlite or memory)
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	sessions, closeSessions, err := newSessionStore(cfg)
	if err != nil {
		logger.Error("Failed to initialize session store", "error", err, "session_backend", cfg.SessionBackend)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, result.Backend, sessions,
		apphttp.WithLogger(logger.WithComponent(applog.ComponentHTTP)),
		apphttp.WithSecureCookies(strings.HasPrefix(cfg.PublicURL, "https://")),
		apphttp.WithRateLimit(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}),
	)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting kwitansi server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"session_backend", cfg.SessionBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			os.Exit(1)
		}
	}

	cli.RunCleanup(logger, 30*time.Second,
		srv.Shutdown,
		func(context.Context) error {
			if result.Cleanup == nil {
				return nil
			}
			return result.Cleanup()
		},
		func(context.Context) error { return closeSessions() },
	)
}

// newSessionStore returns the configured session store and its closer.
func newSessionStore(cfg *config.Config) (session.Store, func() error, error) {
	if cfg.SessionBackend == "redis" {
		store, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return session.NewMemoryStore(cfg.SessionTTL), func() error { return nil }, nil
}
