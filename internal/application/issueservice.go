package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ericfisherdev/keygate/internal/domain/model"
	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

const (
	keySecretBytes = 24
	// mintAttempts bounds regeneration on the astronomically unlikely
	// secret collision before giving up.
	mintAttempts = 5
)

// RateLimitedError reports that the identity must wait before a new
// key may be minted. RetryAfter is the exact remaining duration;
// clients see it rounded up to whole minutes.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("issuance rate limited: retry in %d minutes", e.RetryAfterMinutes())
}

// RetryAfterMinutes returns the remaining wait rounded up to whole
// minutes, never reporting zero while the limit still applies.
func (e *RateLimitedError) RetryAfterMinutes() int {
	return int(math.Ceil(e.RetryAfter.Minutes()))
}

// IssueService decides, for a derived identity, whether to reuse the
// existing key, reject for cooldown, or mint a new one.
type IssueService struct {
	keys     driven.KeyStore
	binder   *SessionBinder // nil when session binding is disabled.
	ttl      time.Duration
	cooldown time.Duration
	now      func() time.Time

	// mu serializes the whole scan-decide-mint sequence. Without it two
	// concurrent requests for the same identity could both miss the
	// owner scan and mint twice, violating the one-active-key invariant.
	mu sync.Mutex
}

// NewIssueService creates an IssueService. binder may be nil to disable
// session binding; issuance then relies on the fingerprint scan alone.
func NewIssueService(keys driven.KeyStore, binder *SessionBinder, ttl, cooldown time.Duration) *IssueService {
	return &IssueService{
		keys:     keys,
		binder:   binder,
		ttl:      ttl,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Issue returns the key for the identity, minting one if allowed.
// Decision order, first match wins:
//  1. a live session-bound key is returned unchanged (reloading the
//     issuance page must show the same key);
//  2. a live key owned by the identity is bound to the session and
//     returned (same network+agent from a fresh browser);
//     a dead key still inside its cooldown horizon fails with
//     RateLimitedError;
//  3. otherwise a new key is minted, persisted, and bound.
//
// sessionID may be empty when the client presented no session token.
func (s *IssueService) Issue(ctx context.Context, identity, sessionID string) (*model.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()

	if s.binder != nil && sessionID != "" {
		if key, ok := s.sessionKey(ctx, sessionID, now); ok {
			return key, nil
		}
	}

	prior, err := s.keys.FindLatestByOwner(ctx, identity)
	switch {
	case err == nil && prior.Active(now):
		s.bind(ctx, sessionID, prior.Secret)
		return prior, nil
	case err == nil:
		// Cooldown outlives the prior key: expiry or redemption does
		// not reopen issuance before NextIssuanceAt.
		if wait := prior.CooldownRemaining(now); wait > 0 {
			return nil, &RateLimitedError{RetryAfter: wait}
		}
	case !errors.Is(err, driven.ErrKeyNotFound):
		return nil, fmt.Errorf("scan keys for owner: %w", err)
	}

	key, err := s.mint(ctx, identity, now)
	if err != nil {
		return nil, err
	}

	s.bind(ctx, sessionID, key.Secret)
	return key, nil
}

// Existing returns the identity's live key without ever minting. It
// backs the reload path: a consumed gate token may still re-display a
// key the identity already holds, but never opens issuance.
func (s *IssueService) Existing(ctx context.Context, identity, sessionID string) (*model.Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()

	if s.binder != nil && sessionID != "" {
		if key, ok := s.sessionKey(ctx, sessionID, now); ok {
			return key, true
		}
	}

	prior, err := s.keys.FindLatestByOwner(ctx, identity)
	if err == nil && prior.Active(now) {
		return prior, true
	}
	return nil, false
}

// sessionKey resolves the session binding to a key that is still
// redeemable. Dead bindings are ignored, not errors.
func (s *IssueService) sessionKey(ctx context.Context, sessionID string, now time.Time) (*model.Key, bool) {
	secret, err := s.binder.BoundSecret(ctx, sessionID)
	if err != nil {
		return nil, false
	}

	key, err := s.keys.GetBySecret(ctx, secret)
	if err != nil || !key.Active(now) {
		return nil, false
	}
	return key, true
}

// bind refreshes the session binding so a later visit short-circuits on
// the session branch. Binding failures are deliberately swallowed: the
// fingerprint scan keeps issuance correct without it.
func (s *IssueService) bind(ctx context.Context, sessionID, secret string) {
	if s.binder == nil || sessionID == "" {
		return
	}
	_ = s.binder.Bind(ctx, sessionID, secret)
}

// mint creates and persists a new key, regenerating the secret on the
// off chance it collides with an existing store entry.
func (s *IssueService) mint(ctx context.Context, identity string, now time.Time) (*model.Key, error) {
	for range mintAttempts {
		secret, err := newKeySecret()
		if err != nil {
			return nil, err
		}

		key := model.Key{
			Secret:         secret,
			Owner:          identity,
			CreatedAt:      now,
			ExpiresAt:      now.Add(s.ttl),
			NextIssuanceAt: now.Add(s.cooldown),
		}

		err = s.keys.Save(ctx, key)
		if errors.Is(err, driven.ErrDuplicateSecret) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("persist minted key: %w", err)
		}
		return &key, nil
	}

	return nil, errors.New("mint key: exhausted secret generation attempts")
}

// newKeySecret mints a high-entropy key secret, hex-encoded.
func newKeySecret() (string, error) {
	b := make([]byte, keySecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand key secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
