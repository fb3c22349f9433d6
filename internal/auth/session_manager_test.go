package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

func newTestManager(t *testing.T, accessTTL, refreshTTL time.Duration) (*Manager, *InMemorySessionStore) {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     accessTTL,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    refreshTTL,
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	store := NewInMemorySessionStore()
	return NewManager(issuer, store), store
}

var testUser = models.User{ID: "user-1", Username: "annlee", Email: "ann@x.com"}

func TestManagerIssueAndRotate(t *testing.T) {
	manager, store := newTestManager(t, time.Minute, time.Hour)
	ctx := context.Background()

	tokens, err := manager.Issue(ctx, testUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected non-empty tokens: %+v", tokens)
	}
	if !store.Has(tokens.SessionID) {
		t.Fatal("expected session to be stored")
	}

	claims, err := manager.Verify(tokens.RefreshToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != testUser.ID || claims.SessionID != tokens.SessionID {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	rotated, err := manager.Rotate(ctx, claims, tokens.RefreshToken, testUser)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.RefreshToken == tokens.RefreshToken {
		t.Fatal("expected new refresh token")
	}
	if rotated.SessionID != tokens.SessionID {
		t.Fatal("rotation should keep the session id")
	}

	if _, err := manager.Rotate(ctx, claims, tokens.RefreshToken, testUser); !errors.Is(err, ErrRefreshTokenReused) {
		t.Fatalf("expected reused token error got %v", err)
	}
}

func TestManagerIssueValidation(t *testing.T) {
	manager, _ := newTestManager(t, time.Minute, time.Hour)
	if _, err := manager.Issue(context.Background(), models.User{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestManagerMultipleSessions(t *testing.T) {
	manager, store := newTestManager(t, time.Minute, time.Hour)
	ctx := context.Background()

	first, err := manager.Issue(ctx, testUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := manager.Issue(ctx, testUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if first.SessionID == second.SessionID {
		t.Fatal("expected distinct sessions")
	}

	if err := manager.Revoke(ctx, first.SessionID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if store.Has(first.SessionID) || !store.Has(second.SessionID) {
		t.Fatal("revoke should only remove the targeted session")
	}

	if err := manager.RevokeAll(ctx, testUser.ID); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if store.Has(second.SessionID) {
		t.Fatal("expected all sessions removed")
	}
}

func TestManagerRotateFailures(t *testing.T) {
	manager, _ := newTestManager(t, time.Minute, time.Hour)
	ctx := context.Background()

	tokens, err := manager.Issue(ctx, testUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := manager.Verify(tokens.RefreshToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	other := models.User{ID: "user-2"}
	if _, err := manager.Rotate(ctx, claims, tokens.RefreshToken, other); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found for other user got %v", err)
	}

	if err := manager.Revoke(ctx, tokens.SessionID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := manager.Rotate(ctx, claims, tokens.RefreshToken, testUser); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found after revoke got %v", err)
	}
}

func TestManagerRotateExpiredSession(t *testing.T) {
	manager, store := newTestManager(t, time.Minute, time.Hour)
	ctx := context.Background()

	tokens, err := manager.Issue(ctx, testUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := manager.Verify(tokens.RefreshToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	manager.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	if _, err := manager.Rotate(ctx, claims, tokens.RefreshToken, testUser); !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expected refresh expired got %v", err)
	}
	if store.Has(tokens.SessionID) {
		t.Fatal("expired session should be deleted")
	}
}

type deleteFailingStore struct {
	*InMemorySessionStore
}

func (deleteFailingStore) Delete(context.Context, string) error {
	return errors.New("store unavailable")
}

func TestManagerRotateExpiredSessionLogsDeleteFailure(t *testing.T) {
	issuer, err := NewTokenIssuer(TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	store := deleteFailingStore{NewInMemorySessionStore()}
	manager := NewManager(issuer, store)

	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	tokens, err := manager.Issue(ctx, testUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := manager.Verify(tokens.RefreshToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	manager.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	if _, err := manager.Rotate(ctx, claims, tokens.RefreshToken, testUser); !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expected refresh expired got %v", err)
	}
	logged := buf.String()
	if !strings.Contains(logged, "delete expired session") || !strings.Contains(logged, "store unavailable") {
		t.Fatalf("expected delete failure to be logged, got %q", logged)
	}
	if !strings.Contains(logged, tokens.SessionID) {
		t.Fatalf("expected session id in log, got %q", logged)
	}
}

func TestInMemorySessionStoreRotateIsConditional(t *testing.T) {
	store := NewInMemorySessionStore()
	ctx := context.Background()

	if err := store.Create(ctx, Session{ID: "s1", UserID: "u1", TokenHash: "h1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Rotate(ctx, "h1", Session{ID: "s1", UserID: "u1", TokenHash: "h2"}); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := store.Rotate(ctx, "h1", Session{ID: "s1", UserID: "u1", TokenHash: "h3"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected stale rotation to fail got %v", err)
	}
	session, err := store.Find(ctx, "s1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if session.TokenHash != "h2" {
		t.Fatalf("unexpected hash %q", session.TokenHash)
	}
}
