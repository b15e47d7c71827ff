package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/keygate/internal/domain/model"
)

var (
	// ErrGateTokenNotFound is returned when the correlation token was never minted.
	ErrGateTokenNotFound = errors.New("gate token not found")
	// ErrGateTokenUsed is returned by Consume for a token that already
	// authorized an issuance request.
	ErrGateTokenUsed = errors.New("gate token already used")
	// ErrGateTokenExpired is returned by Consume when the return window has closed.
	ErrGateTokenExpired = errors.New("gate token expired")
)

// GateTokenStore defines the driven port for correlation tokens minted
// around the external gate hand-off. Consume must be atomic under
// concurrent calls on the same token value.
type GateTokenStore interface {
	// Save persists a freshly minted token.
	Save(ctx context.Context, token model.GateToken) error

	// Consume atomically marks the token used. Returns
	// ErrGateTokenNotFound, ErrGateTokenUsed, or ErrGateTokenExpired.
	Consume(ctx context.Context, value string, now time.Time) error
}
