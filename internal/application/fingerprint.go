package application

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
)

// Fingerprinter derives the pseudo-identity used as the rate-limiting
// key for anonymous clients. The identity is a one-way digest of the
// declared network origin and agent string; nothing personally
// identifying is stored in clear form. This is an anti-abuse heuristic,
// not a security identity: spoofing either input defeats it, and that
// is an accepted limitation.
type Fingerprinter struct {
	enabled bool
}

// NewFingerprinter creates a Fingerprinter. When disabled, Derive
// returns the bare network origin instead of a digest.
func NewFingerprinter(enabled bool) *Fingerprinter {
	return &Fingerprinter{enabled: enabled}
}

// Derive computes the identity for a client. forwardedFor is the raw
// X-Forwarded-For header (the left-most entry wins); remoteAddr is the
// direct connection fallback. The same (origin, agent) pair always
// yields the same identity within a process lifetime; there is no salt.
func (f *Fingerprinter) Derive(remoteAddr, forwardedFor, agent string) string {
	origin := clientOrigin(remoteAddr, forwardedFor)
	if !f.enabled {
		return origin
	}

	sum := sha256.Sum256([]byte(origin + agent))
	return hex.EncodeToString(sum[:])
}

// clientOrigin picks the client's declared network origin: the
// left-most forwarded-for entry when present, otherwise the host part
// of the direct connection address.
func clientOrigin(remoteAddr, forwardedFor string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if origin := strings.TrimSpace(first); origin != "" {
			return origin
		}
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
