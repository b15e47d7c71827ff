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
var _ driven.GateTokenStore = (*GateTokenRepo)(nil)

// GateTokenRepo is the SQLite implementation of the GateTokenStore
// port interface. Consume uses the same single-statement CAS shape as
// key redemption.
type GateTokenRepo struct {
	db *DB
}

// NewGateTokenRepo creates a new GateTokenRepo.
func NewGateTokenRepo(db *DB) *GateTokenRepo {
	return &GateTokenRepo{db: db}
}

// Save persists a freshly minted correlation token.
func (r *GateTokenRepo) Save(ctx context.Context, token model.GateToken) error {
	const query = `INSERT INTO gate_tokens (value, created_at, expires_at, used) VALUES (?, ?, ?, 0)`
	_, err := r.db.Writer.ExecContext(ctx, query,
		token.Value, token.CreatedAt.UnixNano(), token.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save gate token: %w", err)
	}
	return nil
}

// Consume atomically marks the token used.
func (r *GateTokenRepo) Consume(ctx context.Context, value string, now time.Time) error {
	const query = `UPDATE gate_tokens SET used = 1
		WHERE value = ? AND used = 0 AND expires_at >= ?`
	res, err := r.db.Writer.ExecContext(ctx, query, value, now.UnixNano())
	if err != nil {
		return fmt.Errorf("consume gate token: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume gate token rows: %w", err)
	}
	if rows == 1 {
		return nil
	}

	const lookup = `SELECT used, expires_at FROM gate_tokens WHERE value = ?`
	var used bool
	var expiresAt int64
	err = r.db.Reader.QueryRowContext(ctx, lookup, value).Scan(&used, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return driven.ErrGateTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect gate token: %w", err)
	}

	if used {
		return driven.ErrGateTokenUsed
	}
	return driven.ErrGateTokenExpired
}
