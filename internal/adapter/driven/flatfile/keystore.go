package flatfile

import (
	"context"
	"time"

	"github.com/ericfisherdev/keygate/internal/domain/model"
	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.KeyStore = (*KeyStore)(nil)

// KeyStore is the flat-file implementation of the KeyStore port interface.
type KeyStore struct {
	s *Store
}

// Save persists a newly minted key.
func (k *KeyStore) Save(_ context.Context, key model.Key) error {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()

	doc := k.s.load()
	if _, exists := doc.Keys[key.Secret]; exists {
		return driven.ErrDuplicateSecret
	}

	doc.Keys[key.Secret] = keyRecord{
		Owner:          key.Owner,
		CreatedAt:      key.CreatedAt,
		ExpiresAt:      key.ExpiresAt,
		NextIssuanceAt: key.NextIssuanceAt,
		Redeemed:       key.Redeemed,
		RedeemedAt:     key.RedeemedAt,
	}
	return k.s.save(doc)
}

// GetBySecret returns the key for the given secret.
func (k *KeyStore) GetBySecret(_ context.Context, secret string) (*model.Key, error) {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()

	doc := k.s.load()
	rec, ok := doc.Keys[secret]
	if !ok {
		return nil, driven.ErrKeyNotFound
	}
	return rec.toKey(secret), nil
}

// FindLatestByOwner returns the most recently created key for the owner.
func (k *KeyStore) FindLatestByOwner(_ context.Context, owner string) (*model.Key, error) {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()

	doc := k.s.load()
	var latest *model.Key
	for secret, rec := range doc.Keys {
		if rec.Owner != owner {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec.toKey(secret)
		}
	}
	if latest == nil {
		return nil, driven.ErrKeyNotFound
	}
	return latest, nil
}

// Redeem marks the key redeemed. The full read-decide-write sequence
// runs under the store mutex, which is what makes the single-use
// guarantee hold for this backend.
func (k *KeyStore) Redeem(_ context.Context, secret string, now time.Time) (*model.Key, error) {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()

	doc := k.s.load()
	rec, ok := doc.Keys[secret]
	if !ok {
		return nil, driven.ErrKeyNotFound
	}
	if rec.Redeemed {
		return nil, driven.ErrKeyAlreadyRedeemed
	}
	if now.After(rec.ExpiresAt) {
		return nil, driven.ErrKeyExpired
	}

	rec.Redeemed = true
	rec.RedeemedAt = now
	doc.Keys[secret] = rec
	if err := k.s.save(doc); err != nil {
		return nil, err
	}
	return rec.toKey(secret), nil
}
