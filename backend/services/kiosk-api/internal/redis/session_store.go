package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kioskpos/backend/services/kiosk-api/internal/models"
)

// ErrNotFound is returned when no value is stored under the key.
var ErrNotFound = errors.New("redisstore: not found")

// SessionStore keeps customer sessions keyed by terminal.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore returns redis-backed store. ttl bounds how long a session survives without writes.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(terminalID string) string {
	return fmt.Sprintf("kiosk:session:%s", terminalID)
}

// Get returns the stored session of a terminal.
func (s *SessionStore) Get(ctx context.Context, terminalID string) (*models.CustomerSession, error) {
	data, err := s.client.Get(ctx, sessionKey(terminalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var session models.CustomerSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// Create stores the session only if the terminal has none. It reports false when one already exists.
func (s *SessionStore) Create(ctx context.Context, session *models.CustomerSession) (bool, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return false, fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, sessionKey(session.TerminalID), data, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx session: %w", err)
	}
	return ok, nil
}

// Save overwrites the session and refreshes its TTL.
func (s *SessionStore) Save(ctx context.Context, session *models.CustomerSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.TerminalID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Delete removes the session. It reports whether something was deleted.
func (s *SessionStore) Delete(ctx context.Context, terminalID string) (bool, error) {
	n, err := s.client.Del(ctx, sessionKey(terminalID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis delete session: %w", err)
	}
	return n > 0, nil
}

// Exists reports whether the terminal currently has a session.
func (s *SessionStore) Exists(ctx context.Context, terminalID string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKey(terminalID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists session: %w", err)
	}
	return n > 0, nil
}
