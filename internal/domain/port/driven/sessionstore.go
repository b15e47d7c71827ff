package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/keygate/internal/domain/model"
)

// ErrSessionNotFound is returned when no binding exists for a session ID.
var ErrSessionNotFound = errors.New("session binding not found")

// SessionStore defines the driven port for the advisory session-to-key
// bindings. Bind replaces any existing binding for the same session.
type SessionStore interface {
	Bind(ctx context.Context, binding model.SessionBinding) error

	// Get returns the binding for the session ID, or ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (*model.SessionBinding, error)
}
