package application

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ericfisherdev/keygate/internal/domain/model"
	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

// ErrSessionTokenInvalid is returned when a presented session token is
// malformed, carries a bad signature, or has expired.
var ErrSessionTokenInvalid = errors.New("invalid session token")

const sessionIDBytes = 16

// SessionBinder maintains the advisory association between a browser
// session and its most recently issued key. The client holds a signed
// token (HS256 JWT) naming an opaque session ID; the binding itself
// lives server-side in a SessionStore. Losing either only costs the
// reload-safe display, never correctness.
type SessionBinder struct {
	store      driven.SessionStore
	signingKey []byte
	tokenTTL   time.Duration
	now        func() time.Time
}

// NewSessionBinder creates a SessionBinder. signingKey is explicit
// configuration; it is never defaulted.
func NewSessionBinder(store driven.SessionStore, signingKey []byte, tokenTTL time.Duration) *SessionBinder {
	return &SessionBinder{
		store:      store,
		signingKey: signingKey,
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}
}

// NewSessionID mints an unguessable opaque session identifier.
func NewSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// IssueToken signs a client-held token for the given session ID.
func (b *SessionBinder) IssueToken(sessionID string) (string, error) {
	now := b.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(b.tokenTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// ParseToken verifies a client-held token and returns the session ID it
// names. Any failure maps to ErrSessionTokenInvalid.
func (b *SessionBinder) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return b.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrSessionTokenInvalid
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrSessionTokenInvalid
	}
	return claims.Subject, nil
}

// Bind records the session's current key secret, replacing any prior binding.
func (b *SessionBinder) Bind(ctx context.Context, sessionID, secret string) error {
	return b.store.Bind(ctx, model.SessionBinding{
		SessionID: sessionID,
		KeySecret: secret,
		CreatedAt: b.now().UTC(),
	})
}

// BoundSecret returns the key secret currently bound to the session,
// or driven.ErrSessionNotFound.
func (b *SessionBinder) BoundSecret(ctx context.Context, sessionID string) (string, error) {
	binding, err := b.store.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return binding.KeySecret, nil
}
