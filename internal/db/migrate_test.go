package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestListMigrationsSortsSQLFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_videos.sql", "0001_init.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "archive.sql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	names, err := ListMigrations(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 || names[0] != "0001_init.sql" || names[1] != "0002_videos.sql" {
		t.Fatalf("unexpected migrations %v", names)
	}

	if _, err := ListMigrations(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected missing directory to fail")
	}
}

func TestShouldRetry(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":           {nil, false},
		"deadline":      {context.DeadlineExceeded, true},
		"serialization": {fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40001"}), true},
		"syntax":        {&pgconn.PgError{Code: "42601"}, false},
		"plain":         {fmt.Errorf("boom"), false},
	}
	for name, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v got %v", name, tc.want, got)
		}
	}
}

func TestBackoffIsCapped(t *testing.T) {
	if got := backoff(1); got != migrationBaseBackoff {
		t.Fatalf("expected base backoff got %s", got)
	}
	if got := backoff(2); got != 2*migrationBaseBackoff {
		t.Fatalf("expected doubled backoff got %s", got)
	}
	if got := backoff(20); got != migrationMaxBackoff {
		t.Fatalf("expected capped backoff got %s", got)
	}
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleep(ctx, time.Hour); err == nil {
		t.Fatal("expected canceled context to abort sleep")
	}
}
