package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/db"
)

// PostgresSessionStore persists refresh-token sessions to PostgreSQL.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Create stores a new session record.
func (s *PostgresSessionStore) Create(ctx context.Context, session auth.Session) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO sessions (id, user_id, token_hash, issued_at, expires_at)
        VALUES ($1, $2, $3, $4, $5)
    `, session.ID, session.UserID, session.TokenHash, session.IssuedAt.UTC(), session.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// Find loads a session by id.
func (s *PostgresSessionStore) Find(ctx context.Context, id string) (auth.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return auth.Session{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, user_id, token_hash, issued_at, expires_at
        FROM sessions
        WHERE id = $1
    `, id)

	var session auth.Session
	var issuedAt, expiresAt time.Time
	if err := row.Scan(&session.ID, &session.UserID, &session.TokenHash, &issuedAt, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("select session: %w", err)
	}

	session.IssuedAt = issuedAt.UTC()
	session.ExpiresAt = expiresAt.UTC()
	return session, nil
}

// Rotate swaps the session's token hash if the stored hash still equals previousHash.
func (s *PostgresSessionStore) Rotate(ctx context.Context, previousHash string, next auth.Session) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE sessions
        SET token_hash = $3, issued_at = $4, expires_at = $5
        WHERE id = $1 AND token_hash = $2
    `, next.ID, previousHash, next.TokenHash, next.IssuedAt.UTC(), next.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}

	return nil
}

// Delete removes a session by id.
func (s *PostgresSessionStore) Delete(ctx context.Context, id string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM sessions
        WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}

	return nil
}

// DeleteForUser removes every session owned by the user.
func (s *PostgresSessionStore) DeleteForUser(ctx context.Context, userID string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

var _ auth.SessionStore = (*PostgresSessionStore)(nil)
