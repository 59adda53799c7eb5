package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"daypo-quiz-service/internal/app"
	"daypo-quiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-backed implementation of app.SessionRepository.
// The JSON snapshot under quiz:session:{id} is the only copy of a session:
// Get always restores from it, so every instance sees the last Save and a
// session disappears everywhere once its key expires.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *SessionStore) Create(ctx context.Context) (*app.Session, error) {
	session := app.NewSession(uuid.NewString())
	if err := s.write(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns a fresh session restored from the snapshot. Changes to it are
// visible to others only after Save.
func (s *SessionStore) Get(ctx context.Context, id string) (*app.Session, error) {
	raw, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, domain.Storage("load session", err)
	}
	var snap app.SessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, domain.Storage("decode session", err)
	}
	return app.RestoreSession(snap, time.Now), nil
}

func (s *SessionStore) Save(ctx context.Context, session *app.Session) error {
	return s.write(ctx, session)
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return domain.Storage("delete session", err)
	}
	return nil
}

func (s *SessionStore) write(ctx context.Context, session *app.Session) error {
	raw, err := json.Marshal(session.Snapshot())
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, key(session.ID()), raw, s.ttl).Err(); err != nil {
		return domain.Storage("save session", err)
	}
	return nil
}

func key(id string) string {
	return "quiz:session:" + id
}
