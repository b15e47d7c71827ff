package model

import "time"

// SessionBinding associates a browser session with the key it was most
// recently issued. Purely advisory: losing a binding only costs the
// anti-refresh convenience, never correctness.
type SessionBinding struct {
	SessionID string
	KeySecret string
	CreatedAt time.Time
}
