package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

// RedeemReason is the stable reason code reported for a failed redemption.
type RedeemReason string

const (
	ReasonInvalidEncoding RedeemReason = "invalid_encoding"
	ReasonNotFound        RedeemReason = "not_found"
	ReasonAlreadyUsed     RedeemReason = "already_used"
	ReasonExpired         RedeemReason = "expired"
)

// RedeemResult is the structured outcome of a redemption attempt.
// Client-facing failures are results with a reason code, never faults.
type RedeemResult struct {
	Valid     bool
	Reason    RedeemReason
	ExpiresAt time.Time
}

// RedeemService validates and irrevocably consumes keys on behalf of
// the downstream application.
type RedeemService struct {
	keys   driven.KeyStore
	cipher *KeyCipher
	now    func() time.Time
}

// NewRedeemService creates a RedeemService.
func NewRedeemService(keys driven.KeyStore, cipher *KeyCipher) *RedeemService {
	return &RedeemService{
		keys:   keys,
		cipher: cipher,
		now:    time.Now,
	}
}

// Redeem internalizes the externally presented key value and atomically
// consumes it. The check-and-mark runs inside the store's Redeem, so
// two concurrent redemptions of the same key yield exactly one Valid
// and one AlreadyUsed. A non-nil error means the store itself failed;
// every per-key outcome is expressed in the result.
func (s *RedeemService) Redeem(ctx context.Context, external string) (RedeemResult, error) {
	secret, err := s.cipher.Internalize(external)
	if err != nil {
		return RedeemResult{Reason: ReasonInvalidEncoding}, nil
	}

	key, err := s.keys.Redeem(ctx, secret, s.now().UTC())
	switch {
	case err == nil:
		return RedeemResult{Valid: true, ExpiresAt: key.ExpiresAt}, nil
	case errors.Is(err, driven.ErrKeyNotFound):
		return RedeemResult{Reason: ReasonNotFound}, nil
	case errors.Is(err, driven.ErrKeyAlreadyRedeemed):
		return RedeemResult{Reason: ReasonAlreadyUsed}, nil
	case errors.Is(err, driven.ErrKeyExpired):
		return RedeemResult{Reason: ReasonExpired}, nil
	default:
		return RedeemResult{}, fmt.Errorf("redeem key: %w", err)
	}
}
