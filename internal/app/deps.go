package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vidtube/backend/internal/accounts"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// The returned cleanup releases any clients opened here; the pool is owned by the caller.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, func(context.Context) error, error) {
	var closers []func() error
	cleanup := func(context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	checks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error {
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return err
			}
			defer conn.Release()
			return conn.Ping(ctx)
		},
	}

	var sessionStore auth.SessionStore
	switch cfg.Sessions.Backend {
	case config.SessionStoreRedis:
		client, err := repositories.NewRedisClient(ctx, cfg.Sessions)
		if err != nil {
			return handlers.Dependencies{}, nil, err
		}
		closers = append(closers, client.Close)
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		sessionStore = repositories.NewRedisSessionStore(client)
	case config.SessionStoreMemory:
		slog.Warn("using in-memory session store; sessions are lost on restart")
		sessionStore = auth.NewInMemorySessionStore()
	default:
		sessionStore = repositories.NewPostgresSessionStore(pool)
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  cfg.Tokens.AccessSecret,
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshSecret: cfg.Tokens.RefreshSecret,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
	})
	if err != nil {
		_ = cleanup(ctx)
		return handlers.Dependencies{}, nil, fmt.Errorf("configure tokens: %w", err)
	}

	objects, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		_ = cleanup(ctx)
		return handlers.Dependencies{}, nil, fmt.Errorf("configure media storage: %w", err)
	}

	service := accounts.NewService(
		repositories.NewPostgresUserRepository(pool),
		auth.NewManager(issuer, sessionStore),
		media.NewUploader(objects, "users"),
		auth.BcryptHasher{},
	)

	var limiter middleware.RateLimiter
	if cfg.RateLimit.Requests > 0 {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, 2*cfg.RateLimit.Window)
	}

	deps := handlers.Dependencies{
		Accounts:   service,
		Tokens:     issuer,
		Uploads:    media.TempFiles{Dir: cfg.UploadDir},
		Limiter:    limiter,
		TrustProxy: cfg.RateLimit.TrustProxy,
		Cookies: handlers.CookieSettings{
			Secure:     true,
			SameSite:   http.SameSiteLaxMode,
			AccessTTL:  issuer.AccessTTL(),
			RefreshTTL: issuer.RefreshTTL(),
		},
		MaxBodyBytes: cfg.MaxBodyBytes,
		HealthChecks: checks,
	}
	return deps, cleanup, nil
}
