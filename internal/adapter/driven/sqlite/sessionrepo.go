package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/keygate/internal/domain/model"
	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionRepo)(nil)

// SessionRepo is the SQLite implementation of the SessionStore port interface.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new SessionRepo.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Bind stores or replaces the key binding for the session.
func (r *SessionRepo) Bind(ctx context.Context, binding model.SessionBinding) error {
	const query = `INSERT OR REPLACE INTO session_bindings (session_id, key_secret, created_at) VALUES (?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, query,
		binding.SessionID, binding.KeySecret, binding.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("bind session %q: %w", binding.SessionID, err)
	}
	return nil
}

// Get returns the binding for the session ID.
func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*model.SessionBinding, error) {
	const query = `SELECT session_id, key_secret, created_at FROM session_bindings WHERE session_id = ?`

	var binding model.SessionBinding
	var createdAt int64
	err := r.db.Reader.QueryRowContext(ctx, query, sessionID).Scan(&binding.SessionID, &binding.KeySecret, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %q: %w", sessionID, err)
	}

	binding.CreatedAt = time.Unix(0, createdAt).UTC()
	return &binding, nil
}
