package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the session behind a refresh token no longer exists,
	// or that its stored token changed underneath a rotation.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenExpired indicates the session has passed its expiry.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrRefreshTokenReused indicates the presented refresh token is not the one
	// currently stored for its session.
	ErrRefreshTokenReused = errors.New("refresh token already used")
)

// SessionStore persists refresh-token sessions so they can survive process restarts.
type SessionStore interface {
	Create(ctx context.Context, session Session) error
	Find(ctx context.Context, id string) (Session, error)
	// Rotate replaces the token hash of session next.ID only if the stored hash
	// still equals previousHash. It returns ErrSessionNotFound otherwise.
	Rotate(ctx context.Context, previousHash string, next Session) error
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID string) error
}

// Session is one signed-in client. Only the hash of the current refresh token is stored.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager manages the lifecycle of issued session tokens backed by a persistent store.
type Manager struct {
	tokens *TokenIssuer
	store  SessionStore
	now    func() time.Time
}

// NewManager constructs a Manager that signs tokens with issuer and records sessions in store.
func NewManager(issuer *TokenIssuer, store SessionStore) *Manager {
	if issuer == nil {
		panic("auth: token issuer must not be nil")
	}
	if store == nil {
		panic("auth: session store must not be nil")
	}
	return &Manager{
		tokens: issuer,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue opens a new session for the user and returns its access and refresh tokens.
func (m *Manager) Issue(ctx context.Context, user models.User) (models.SessionTokens, error) {
	if user.ID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	now := m.now()
	tokens, err := m.tokens.SignPair(user, uuid.NewString(), now)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.store.Create(ctx, Session{
		ID:        tokens.SessionID,
		UserID:    user.ID,
		TokenHash: HashToken(tokens.RefreshToken),
		IssuedAt:  now,
		ExpiresAt: tokens.RefreshExpiresAt,
	}); err != nil {
		return models.SessionTokens{}, fmt.Errorf("create session: %w", err)
	}

	return tokens, nil
}

// Verify checks the signature, type and expiry of a refresh token.
func (m *Manager) Verify(refreshToken string) (*Claims, error) {
	return m.tokens.ParseRefresh(refreshToken)
}

// Rotate exchanges a verified refresh token for a new pair on the same session.
// The presented token must equal the one currently stored for the session.
func (m *Manager) Rotate(ctx context.Context, claims *Claims, refreshToken string, user models.User) (models.SessionTokens, error) {
	if claims == nil || claims.Subject != user.ID {
		return models.SessionTokens{}, ErrSessionNotFound
	}

	session, err := m.store.Find(ctx, claims.SessionID)
	if err != nil {
		return models.SessionTokens{}, err
	}
	if session.UserID != user.ID {
		return models.SessionTokens{}, ErrSessionNotFound
	}

	now := m.now()
	if now.After(session.ExpiresAt) {
		if err := m.store.Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			logging.FromContext(ctx).Warn("delete expired session",
				slog.String("session_id", session.ID),
				slog.Any("error", err),
			)
		}
		return models.SessionTokens{}, ErrRefreshTokenExpired
	}

	presented := HashToken(refreshToken)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(session.TokenHash)) != 1 {
		return models.SessionTokens{}, ErrRefreshTokenReused
	}

	tokens, err := m.tokens.SignPair(user, session.ID, now)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.store.Rotate(ctx, presented, Session{
		ID:        session.ID,
		UserID:    user.ID,
		TokenHash: HashToken(tokens.RefreshToken),
		IssuedAt:  now,
		ExpiresAt: tokens.RefreshExpiresAt,
	}); err != nil {
		return models.SessionTokens{}, err
	}

	return tokens, nil
}

// Revoke removes a single session.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := m.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}

// RevokeAll removes every session belonging to the user.
func (m *Manager) RevokeAll(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return m.store.DeleteForUser(ctx, userID)
}
