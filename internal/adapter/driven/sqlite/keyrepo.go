package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/keygate/internal/domain/model"
	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.KeyStore = (*KeyRepo)(nil)

// KeyRepo is the SQLite implementation of the KeyStore port interface.
// Redemption is a single-statement compare-and-swap on the redeemed
// column, so the single-use guarantee holds across processes too.
type KeyRepo struct {
	db *DB
}

// NewKeyRepo creates a new KeyRepo.
func NewKeyRepo(db *DB) *KeyRepo {
	return &KeyRepo{db: db}
}

// Save persists a newly minted key.
func (r *KeyRepo) Save(ctx context.Context, key model.Key) error {
	const query = `INSERT INTO keys (secret, owner, created_at, expires_at, next_issuance_at, redeemed, redeemed_at)
		VALUES (?, ?, ?, ?, ?, 0, 0)`
	_, err := r.db.Writer.ExecContext(ctx, query,
		key.Secret, key.Owner,
		key.CreatedAt.UnixNano(), key.ExpiresAt.UnixNano(), key.NextIssuanceAt.UnixNano(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return driven.ErrDuplicateSecret
		}
		return fmt.Errorf("save key: %w", err)
	}
	return nil
}

// GetBySecret returns the key for the given secret.
func (r *KeyRepo) GetBySecret(ctx context.Context, secret string) (*model.Key, error) {
	const query = `SELECT secret, owner, created_at, expires_at, next_issuance_at, redeemed, redeemed_at
		FROM keys WHERE secret = ?`
	return r.scanKey(r.db.Reader.QueryRowContext(ctx, query, secret))
}

// FindLatestByOwner returns the most recently created key for the owner.
func (r *KeyRepo) FindLatestByOwner(ctx context.Context, owner string) (*model.Key, error) {
	const query = `SELECT secret, owner, created_at, expires_at, next_issuance_at, redeemed, redeemed_at
		FROM keys WHERE owner = ? ORDER BY created_at DESC LIMIT 1`
	return r.scanKey(r.db.Reader.QueryRowContext(ctx, query, owner))
}

// Redeem atomically flips the redeemed flag. The UPDATE checks the
// flag and the expiry horizon in the same statement; a zero row count
// is then classified by re-reading the record.
func (r *KeyRepo) Redeem(ctx context.Context, secret string, now time.Time) (*model.Key, error) {
	const query = `UPDATE keys SET redeemed = 1, redeemed_at = ?
		WHERE secret = ? AND redeemed = 0 AND expires_at >= ?`
	res, err := r.db.Writer.ExecContext(ctx, query, now.UnixNano(), secret, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("redeem key: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("redeem key rows: %w", err)
	}

	key, getErr := r.GetBySecret(ctx, secret)
	if getErr != nil {
		return nil, getErr
	}

	if rows == 1 {
		return key, nil
	}

	if key.Redeemed {
		return nil, driven.ErrKeyAlreadyRedeemed
	}
	return nil, driven.ErrKeyExpired
}

// scanKey maps a single row onto the domain model.
func (r *KeyRepo) scanKey(row *sql.Row) (*model.Key, error) {
	var key model.Key
	var createdAt, expiresAt, nextIssuanceAt, redeemedAt int64

	err := row.Scan(&key.Secret, &key.Owner, &createdAt, &expiresAt, &nextIssuanceAt, &key.Redeemed, &redeemedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan key: %w", err)
	}

	key.CreatedAt = time.Unix(0, createdAt).UTC()
	key.ExpiresAt = time.Unix(0, expiresAt).UTC()
	key.NextIssuanceAt = time.Unix(0, nextIssuanceAt).UTC()
	if redeemedAt != 0 {
		key.RedeemedAt = time.Unix(0, redeemedAt).UTC()
	}

	return &key, nil
}
