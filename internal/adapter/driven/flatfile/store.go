// Package flatfile implements the driven store ports on a single JSON
// document, the persistence layout the service originally shipped
// with. Every mutation rewrites the document atomically: the new state
// is staged into a temporary file in the same directory and moved into
// place with one rename, so a crash mid-write leaves either the old
// complete document or the new one, never a mixture.
package flatfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ericfisherdev/keygate/internal/domain/model"
)

// document is the on-disk layout: one mapping per concern, keyed by
// raw secret, token value, and session ID respectively.
type document struct {
	Keys       map[string]keyRecord     `json:"keys"`
	GateTokens map[string]tokenRecord   `json:"gate_tokens"`
	Sessions   map[string]sessionRecord `json:"sessions"`
}

type keyRecord struct {
	Owner          string    `json:"owner"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	NextIssuanceAt time.Time `json:"next_issuance_at"`
	Redeemed       bool      `json:"redeemed"`
	RedeemedAt     time.Time `json:"redeemed_at,omitzero"`
}

type tokenRecord struct {
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

type sessionRecord struct {
	KeySecret string    `json:"key_secret"`
	CreatedAt time.Time `json:"created_at"`
}

// Store holds the shared document state. A single mutex guards every
// load-decide-save sequence; without it two concurrent redemptions
// could both read redeemed=false before either writes. That exclusion
// is a correctness requirement, not an optimization. The port
// implementations are per-concern views over this core: see
// Keys, GateTokens, and Sessions.
type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore creates a Store persisting to path. The file need not exist
// yet; a corrupt file degrades to an empty store with a logged error
// rather than failing the service.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Keys returns the KeyStore view of the document.
func (s *Store) Keys() *KeyStore { return &KeyStore{s: s} }

// GateTokens returns the GateTokenStore view of the document.
func (s *Store) GateTokens() *GateTokenStore { return &GateTokenStore{s: s} }

// Sessions returns the SessionStore view of the document.
func (s *Store) Sessions() *SessionStore { return &SessionStore{s: s} }

// load reads the current document. Callers must hold mu.
func (s *Store) load() document {
	doc := emptyDocument()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc
	}
	if err != nil {
		s.logger.Error("read store file, starting empty", "path", s.path, "error", err)
		return doc
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		// Explicit data-loss tradeoff: a corrupted document resets the
		// store instead of taking the service down.
		s.logger.Error("store file corrupted, resetting to empty", "path", s.path, "error", err)
		return emptyDocument()
	}

	if doc.Keys == nil {
		doc.Keys = map[string]keyRecord{}
	}
	if doc.GateTokens == nil {
		doc.GateTokens = map[string]tokenRecord{}
	}
	if doc.Sessions == nil {
		doc.Sessions = map[string]sessionRecord{}
	}
	return doc
}

func emptyDocument() document {
	return document{
		Keys:       map[string]keyRecord{},
		GateTokens: map[string]tokenRecord{},
		Sessions:   map[string]sessionRecord{},
	}
}

// save writes the document via temp file + rename. Callers must hold mu.
func (s *Store) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store document: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".keygate-*.json")
	if err != nil {
		return fmt.Errorf("stage store document: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write store document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sync store document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close store document: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish store document: %w", err)
	}
	return nil
}

func (r keyRecord) toKey(secret string) *model.Key {
	return &model.Key{
		Secret:         secret,
		Owner:          r.Owner,
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
		NextIssuanceAt: r.NextIssuanceAt,
		Redeemed:       r.Redeemed,
		RedeemedAt:     r.RedeemedAt,
	}
}
