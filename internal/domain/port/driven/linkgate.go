package driven

import (
	"context"
	"errors"
)

// ErrGateUnavailable is returned when the link-gate collaborator
// errored, timed out, or answered with a non-success status. The gate
// is an unreliable upstream; callers make exactly one attempt.
var ErrGateUnavailable = errors.New("link gate unavailable")

// LinkGate defines the driven port for the external link-gating
// service. Shorten submits the post-gate return URL and yields the
// gated URL the client must be redirected through.
type LinkGate interface {
	Shorten(ctx context.Context, returnURL string) (string, error)
}
