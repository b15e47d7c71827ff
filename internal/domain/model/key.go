package model

import "time"

// Key is a single-use access key. Secret is the high-entropy store
// identity and never changes after minting; Owner is the derived
// fingerprint of the client that obtained the key.
type Key struct {
	Secret         string
	Owner          string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	NextIssuanceAt time.Time
	Redeemed       bool
	RedeemedAt     time.Time
}

// Expired reports whether the key's validity horizon has passed at now.
// Expiry is evaluated lazily; nothing sweeps stale keys.
func (k *Key) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}

// Active reports whether the key can still be redeemed at now:
// not yet redeemed and not yet expired.
func (k *Key) Active(now time.Time) bool {
	return !k.Redeemed && !k.Expired(now)
}

// CooldownRemaining returns how long the owner must still wait before a
// new key may be minted, or zero if the cooldown horizon has passed.
func (k *Key) CooldownRemaining(now time.Time) time.Duration {
	if now.After(k.NextIssuanceAt) {
		return 0
	}
	return k.NextIssuanceAt.Sub(now)
}
