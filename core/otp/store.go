package otp

import (
	"context"
	"sync"
)

// MemorySessionStore keeps sessions in process memory; the backing store
// of the signup flow, where a lost session only means re-requesting a code.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func key(email string, purpose Purpose) string {
	return string(purpose) + ":" + email
}

func (s *MemorySessionStore) GetSession(_ context.Context, email string, purpose Purpose) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key(email, purpose)]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *MemorySessionStore) SetSession(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[key(sess.Email, sess.Purpose)] = sess
	return nil
}

func (s *MemorySessionStore) DeleteSession(_ context.Context, email string, purpose Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key(email, purpose))
	return nil
}
