package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/config"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func testConfig() config.Config {
	return config.Config{
		UploadDir:    "testdata/uploads",
		MaxBodyBytes: 1 << 20,
		Tokens: config.TokenConfig{
			AccessSecret:  "access",
			AccessTTL:     time.Minute,
			RefreshSecret: "refresh",
			RefreshTTL:    time.Hour,
		},
		Sessions:    config.SessionStoreConfig{Backend: config.SessionStorePostgres},
		ObjectStore: config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"},
		RateLimit:   config.RateLimitConfig{Requests: 5, Window: time.Minute, Burst: 2, TrustProxy: true},
	}
}

func TestBuildDependencies(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	deps, cleanup, err := buildDependencies(context.Background(), fakePool{}, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected cleanup function")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = cleanup(ctx)
	}()

	if deps.Accounts == nil {
		t.Fatal("expected account service to be configured")
	}
	if deps.Tokens == nil {
		t.Fatal("expected token verifier to be configured")
	}
	if deps.Uploads == nil {
		t.Fatal("expected upload spool to be configured")
	}
	if deps.Limiter == nil {
		t.Fatal("expected rate limiter to be configured")
	}
	if !deps.TrustProxy {
		t.Fatal("expected trust proxy setting to be passed through")
	}
	if deps.Cookies.RefreshTTL != time.Hour || !deps.Cookies.Secure {
		t.Fatalf("unexpected cookie settings %+v", deps.Cookies)
	}
	if _, ok := deps.HealthChecks["database"]; !ok {
		t.Fatal("expected database health check")
	}
}

func TestBuildDependenciesMemorySessions(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg := testConfig()
	cfg.Sessions.Backend = config.SessionStoreMemory
	cfg.RateLimit.Requests = 0

	deps, cleanup, err := buildDependencies(context.Background(), fakePool{}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup(context.Background())

	if deps.Limiter != nil {
		t.Fatal("expected rate limiting to be disabled")
	}
}

func TestBuildDependenciesRequiresBucket(t *testing.T) {
	cfg := testConfig()
	cfg.ObjectStore.Bucket = ""

	if _, _, err := buildDependencies(context.Background(), fakePool{}, cfg); err == nil {
		t.Fatal("expected missing bucket to fail")
	}
}
