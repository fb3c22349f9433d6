package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
)

// RedisSessionStore keeps refresh-token sessions in Redis. Each session is a
// hash that expires with the session; a per-user set indexes session ids.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, cfg config.SessionStoreConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewRedisSessionStore constructs a session store on top of client.
func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: "vidtube"}
}

func (s *RedisSessionStore) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

func (s *RedisSessionStore) userKey(userID string) string {
	return fmt.Sprintf("%s:user_sessions:%s", s.prefix, userID)
}

// Create stores a new session record.
func (s *RedisSessionStore) Create(ctx context.Context, session auth.Session) error {
	key := s.sessionKey(session.ID)
	userKey := s.userKey(session.UserID)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, sessionFields(session))
		pipe.ExpireAt(ctx, key, session.ExpiresAt)
		pipe.SAdd(ctx, userKey, session.ID)
		pipe.ExpireAt(ctx, userKey, session.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Find loads a session by id.
func (s *RedisSessionStore) Find(ctx context.Context, id string) (auth.Session, error) {
	values, err := s.client.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return auth.Session{}, fmt.Errorf("load session: %w", err)
	}
	if len(values) == 0 {
		return auth.Session{}, auth.ErrSessionNotFound
	}
	return parseSession(id, values)
}

// Rotate swaps the session's token hash if the stored hash still equals
// previousHash, using WATCH so concurrent rotations have a single winner.
func (s *RedisSessionStore) Rotate(ctx context.Context, previousHash string, next auth.Session) error {
	key := s.sessionKey(next.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "token_hash").Result()
		if errors.Is(err, redis.Nil) {
			return auth.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		if current != previousHash {
			return auth.ErrSessionNotFound
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, sessionFields(next))
			pipe.ExpireAt(ctx, key, next.ExpiresAt)
			pipe.ExpireAt(ctx, s.userKey(next.UserID), next.ExpiresAt)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr), errors.Is(err, auth.ErrSessionNotFound):
		return auth.ErrSessionNotFound
	default:
		return fmt.Errorf("rotate session: %w", err)
	}
}

// Delete removes a session by id.
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	key := s.sessionKey(id)
	userID, err := s.client.HGet(ctx, key, "user_id").Result()
	if errors.Is(err, redis.Nil) {
		return auth.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("load session owner: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, s.userKey(userID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteForUser removes every session owned by the user.
func (s *RedisSessionStore) DeleteForUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)
	ids, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.sessionKey(id))
	}
	keys = append(keys, userKey)

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

func sessionFields(session auth.Session) map[string]any {
	return map[string]any{
		"user_id":    session.UserID,
		"token_hash": session.TokenHash,
		"issued_at":  session.IssuedAt.UTC().Format(time.RFC3339Nano),
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseSession(id string, values map[string]string) (auth.Session, error) {
	issuedAt, err := time.Parse(time.RFC3339Nano, values["issued_at"])
	if err != nil {
		return auth.Session{}, fmt.Errorf("parse session issued_at: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, values["expires_at"])
	if err != nil {
		return auth.Session{}, fmt.Errorf("parse session expires_at: %w", err)
	}
	return auth.Session{
		ID:        id,
		UserID:    values["user_id"],
		TokenHash: values["token_hash"],
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

var _ auth.SessionStore = (*RedisSessionStore)(nil)
