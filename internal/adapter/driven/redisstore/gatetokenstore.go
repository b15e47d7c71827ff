// Package redisstore implements the ephemeral store ports (gate
// tokens, session bindings) on Redis, for deployments where several
// service replicas must share short-lived state.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ericfisherdev/keygate/internal/domain/model"
	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GateTokenStore = (*GateTokenStore)(nil)

const (
	gateTokenPrefix = "keygate:gatetoken:"
	// usedMarker replaces the token payload once consumed so replays are
	// reported as used rather than not-found.
	usedMarker = "used"
	// tombstoneTTL keeps consumed and expired tokens around long enough
	// to answer replays with the precise reason.
	tombstoneTTL = 24 * time.Hour
)

// GateTokenStore is the Redis implementation of the GateTokenStore
// port interface. The payload is the token's expiry in Unix
// nanoseconds; GETDEL serves as the compare-and-swap so exactly one
// concurrent consumer wins.
type GateTokenStore struct {
	rdb redis.UniversalClient
}

// NewGateTokenStore creates a GateTokenStore backed by the given client.
func NewGateTokenStore(rdb redis.UniversalClient) *GateTokenStore {
	return &GateTokenStore{rdb: rdb}
}

// Save persists a freshly minted correlation token.
func (s *GateTokenStore) Save(ctx context.Context, token model.GateToken) error {
	key := gateTokenPrefix + token.Value
	payload := strconv.FormatInt(token.ExpiresAt.UnixNano(), 10)
	ttl := time.Until(token.ExpiresAt) + tombstoneTTL

	if err := s.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save gate token: %w", err)
	}
	return nil
}

// Consume atomically marks the token used. GETDEL hands the payload to
// exactly one caller; everyone else observes the used tombstone.
func (s *GateTokenStore) Consume(ctx context.Context, value string, now time.Time) error {
	key := gateTokenPrefix + value

	payload, err := s.rdb.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return driven.ErrGateTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("consume gate token: %w", err)
	}

	if payload == usedMarker {
		// Lost the race or replayed: restore the tombstone for the next replay.
		s.rdb.Set(ctx, key, usedMarker, tombstoneTTL)
		return driven.ErrGateTokenUsed
	}

	expiresNano, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return fmt.Errorf("consume gate token: bad payload %q", payload)
	}
	if now.After(time.Unix(0, expiresNano)) {
		// Put the unconsumed token back; it stays expired, not used.
		s.rdb.Set(ctx, key, payload, tombstoneTTL)
		return driven.ErrGateTokenExpired
	}

	if err := s.rdb.Set(ctx, key, usedMarker, tombstoneTTL).Err(); err != nil {
		return fmt.Errorf("mark gate token used: %w", err)
	}
	return nil
}
