package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ericfisherdev/keygate/internal/domain/model"
	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionStore)(nil)

const sessionPrefix = "keygate:session:"

// SessionStore is the Redis implementation of the SessionStore port
// interface. Bindings carry their own TTL; an evicted binding only
// costs the anti-refresh convenience.
type SessionStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewSessionStore creates a SessionStore whose bindings live for ttl.
func NewSessionStore(rdb redis.UniversalClient, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl}
}

// Bind stores or replaces the key binding for the session.
func (s *SessionStore) Bind(ctx context.Context, binding model.SessionBinding) error {
	if err := s.rdb.Set(ctx, sessionPrefix+binding.SessionID, binding.KeySecret, s.ttl).Err(); err != nil {
		return fmt.Errorf("bind session %q: %w", binding.SessionID, err)
	}
	return nil
}

// Get returns the binding for the session ID.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*model.SessionBinding, error) {
	secret, err := s.rdb.Get(ctx, sessionPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, driven.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %q: %w", sessionID, err)
	}

	return &model.SessionBinding{
		SessionID: sessionID,
		KeySecret: secret,
	}, nil
}
