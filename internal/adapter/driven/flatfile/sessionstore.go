package flatfile

import (
	"context"

	"github.com/ericfisherdev/keygate/internal/domain/model"
	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore is the flat-file implementation of the SessionStore
// port interface.
type SessionStore struct {
	s *Store
}

// Bind stores or replaces the key binding for the session.
func (b *SessionStore) Bind(_ context.Context, binding model.SessionBinding) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	doc := b.s.load()
	doc.Sessions[binding.SessionID] = sessionRecord{
		KeySecret: binding.KeySecret,
		CreatedAt: binding.CreatedAt,
	}
	return b.s.save(doc)
}

// Get returns the binding for the session ID.
func (b *SessionStore) Get(_ context.Context, sessionID string) (*model.SessionBinding, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	doc := b.s.load()
	rec, ok := doc.Sessions[sessionID]
	if !ok {
		return nil, driven.ErrSessionNotFound
	}
	return &model.SessionBinding{
		SessionID: sessionID,
		KeySecret: rec.KeySecret,
		CreatedAt: rec.CreatedAt,
	}, nil
}
