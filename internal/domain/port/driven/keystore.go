package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/keygate/internal/domain/model"
)

var (
	// ErrKeyNotFound is returned when no key exists for the given secret.
	ErrKeyNotFound = errors.New("key not found")
	// ErrKeyAlreadyRedeemed is returned by Redeem when the key was
	// consumed by an earlier (possibly concurrent) redemption.
	ErrKeyAlreadyRedeemed = errors.New("key already redeemed")
	// ErrKeyExpired is returned by Redeem when the key's validity
	// horizon has passed. The key is left unredeemed.
	ErrKeyExpired = errors.New("key expired")
	// ErrDuplicateSecret is returned by Save when the secret already
	// exists in the store. Secrets are unique across the store's lifetime.
	ErrDuplicateSecret = errors.New("duplicate key secret")
)

// KeyStore defines the driven port for durable key persistence.
//
// Redeem is the single-use guarantee of the whole system and must be
// atomic with respect to concurrent Redeem calls on the same secret:
// the check of the redeemed flag and the flip to true execute as one
// indivisible unit, so exactly one caller wins.
type KeyStore interface {
	// Save persists a newly minted key. Returns ErrDuplicateSecret if a
	// key with the same secret already exists.
	Save(ctx context.Context, key model.Key) error

	// GetBySecret returns the key for the given secret, or ErrKeyNotFound.
	GetBySecret(ctx context.Context, secret string) (*model.Key, error)

	// FindLatestByOwner returns the most recently created key owned by
	// the given identity, or ErrKeyNotFound when the owner has none.
	// Stale keys are never deleted, so this may return an expired or
	// redeemed key; callers evaluate state lazily.
	FindLatestByOwner(ctx context.Context, owner string) (*model.Key, error)

	// Redeem atomically marks the key redeemed at now and returns its
	// final state. Returns ErrKeyNotFound, ErrKeyAlreadyRedeemed, or
	// ErrKeyExpired; exactly one concurrent caller on a live key succeeds.
	Redeem(ctx context.Context, secret string, now time.Time) (*model.Key, error)
}
