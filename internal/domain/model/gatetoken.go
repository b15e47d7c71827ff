package model

import "time"

// GateToken is the correlation token minted before the client is sent
// through the external link gate. It carries no secret material; it
// only authorizes one post-gate issuance request.
type GateToken struct {
	Value     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// Expired reports whether the token's return window has closed at now.
func (t *GateToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
