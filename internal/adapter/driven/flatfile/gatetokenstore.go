package flatfile

import (
	"context"
	"time"

	"github.com/ericfisherdev/keygate/internal/domain/model"
	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GateTokenStore = (*GateTokenStore)(nil)

// GateTokenStore is the flat-file implementation of the GateTokenStore
// port interface.
type GateTokenStore struct {
	s *Store
}

// Save persists a freshly minted correlation token.
func (g *GateTokenStore) Save(_ context.Context, token model.GateToken) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	doc := g.s.load()
	doc.GateTokens[token.Value] = tokenRecord{
		CreatedAt: token.CreatedAt,
		ExpiresAt: token.ExpiresAt,
		Used:      token.Used,
	}
	return g.s.save(doc)
}

// Consume marks the correlation token used, once; the store mutex
// covers the whole read-decide-write sequence.
func (g *GateTokenStore) Consume(_ context.Context, value string, now time.Time) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	doc := g.s.load()
	rec, ok := doc.GateTokens[value]
	if !ok {
		return driven.ErrGateTokenNotFound
	}
	if rec.Used {
		return driven.ErrGateTokenUsed
	}
	if now.After(rec.ExpiresAt) {
		return driven.ErrGateTokenExpired
	}

	rec.Used = true
	doc.GateTokens[value] = rec
	return g.s.save(doc)
}
