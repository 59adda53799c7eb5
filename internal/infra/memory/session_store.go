package memory

import (
	"context"
	"sync"

	"daypo-quiz-service/internal/app"
	"daypo-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Create(_ context.Context) (*app.Session, error) {
	session := app.NewSession(uuid.NewString())
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()
	return session, nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*app.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Save is a no-op: sessions are mutated in place.
func (s *SessionStore) Save(_ context.Context, session *app.Session) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[session.ID()]; !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
