package auth

import (
	"context"
	"sync"
)

// NewInMemorySessionStore returns a SessionStore backed by an in-memory map.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]Session)}
}

// InMemorySessionStore implements SessionStore for tests and local development.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// Create persists the provided session record.
func (s *InMemorySessionStore) Create(_ context.Context, session Session) error {
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return nil
}

// Find retrieves a session by id.
func (s *InMemorySessionStore) Find(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Rotate swaps the stored token hash when it still matches previousHash.
func (s *InMemorySessionStore) Rotate(_ context.Context, previousHash string, next Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[next.ID]
	if !ok || current.TokenHash != previousHash {
		return ErrSessionNotFound
	}
	s.sessions[next.ID] = next
	return nil
}

// Delete removes the session with the given id.
func (s *InMemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// DeleteForUser removes every session owned by userID.
func (s *InMemorySessionStore) DeleteForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	return nil
}

// Has reports whether a session exists. Useful for tests.
func (s *InMemorySessionStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}
