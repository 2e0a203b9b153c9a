package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/chroma-cms/agent-api/internal/models"
)

// ErrNotFound marks a missing row; services translate it into API errors.
var ErrNotFound = errors.New("record not found")

// KeyRepository persists agent keys.
type KeyRepository struct {
	db *sqlx.DB
}

// NewKeyRepository builds a key repository.
func NewKeyRepository(db *sqlx.DB) *KeyRepository {
	return &KeyRepository{db: db}
}

const keyColumns = `id, label, key_prefix, key_hash, scopes, status, rate_limit,
	allowed_ips, created_by, created_at, expires_at, last_used_at, last_used_ip, revoked_at`

// Create inserts a key in two phases inside one transaction: a pending
// placeholder row reserves the id, finalize mints the token around that id,
// and the row is then completed and activated. A failure at any point leaves
// no partial key behind.
func (r *KeyRepository) Create(ctx context.Context, key *models.APIKey, finalize func(id int64) (hash, prefix string, err error)) (*models.APIKey, error) {
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO agent_keys (label, scopes, status, rate_limit, allowed_ips, created_by, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at`,
			key.Label, key.Scopes, models.KeyStatusPending, key.RateLimit,
			key.AllowedIPs, key.CreatedBy, key.ExpiresAt,
		)
		if err := row.Scan(&key.ID, &key.CreatedAt); err != nil {
			return fmt.Errorf("insert pending key: %w", err)
		}

		hash, prefix, err := finalize(key.ID)
		if err != nil {
			return err
		}
		key.KeyHash = hash
		key.KeyPrefix = prefix
		key.Status = models.KeyStatusActive

		if _, err := tx.ExecContext(ctx, `
			UPDATE agent_keys
			SET key_hash = $1, key_prefix = $2, status = $3
			WHERE id = $4`,
			hash, prefix, models.KeyStatusActive, key.ID,
		); err != nil {
			return fmt.Errorf("activate key %d: %w", key.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// GetByID loads a key by its numeric id.
func (r *KeyRepository) GetByID(ctx context.Context, id int64) (*models.APIKey, error) {
	var key models.APIKey
	err := r.db.GetContext(ctx, &key,
		`SELECT `+keyColumns+` FROM agent_keys WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get key %d: %w", id, err)
	}
	return &key, nil
}

// List returns keys filtered by status, newest first.
func (r *KeyRepository) List(ctx context.Context, status string, limit, offset int) ([]models.APIKey, error) {
	query := `SELECT ` + keyColumns + ` FROM agent_keys`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	keys := []models.APIKey{}
	if err := r.db.SelectContext(ctx, &keys, query, args...); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// Count returns the key total for the same filter as List.
func (r *KeyRepository) Count(ctx context.Context, status string) (int64, error) {
	query := `SELECT COUNT(*) FROM agent_keys`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	var total int64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count keys: %w", err)
	}
	return total, nil
}

// Update persists mutable key attributes.
func (r *KeyRepository) Update(ctx context.Context, key *models.APIKey) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE agent_keys
		SET label = $1, scopes = $2, rate_limit = $3, allowed_ips = $4
		WHERE id = $5`,
		key.Label, key.Scopes, key.RateLimit, key.AllowedIPs, key.ID,
	)
	if err != nil {
		return fmt.Errorf("update key %d: %w", key.ID, err)
	}
	return requireRow(result, key.ID)
}

// Revoke marks a key revoked. Revocation is permanent and idempotent: a key
// that is already revoked keeps its original revoked_at and succeeds as a
// no-op.
func (r *KeyRepository) Revoke(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE agent_keys
		SET status = $1, revoked_at = $2
		WHERE id = $3 AND status != $1`,
		models.KeyStatusRevoked, at, id,
	)
	if err != nil {
		return fmt.Errorf("revoke key %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for key %d: %w", id, err)
	}
	if affected > 0 {
		return nil
	}

	// No row matched: either the key does not exist, or it was already
	// revoked.
	var status string
	err = r.db.GetContext(ctx, &status,
		`SELECT status FROM agent_keys WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("revoke key %d: %w", id, err)
	}
	return nil
}

// ReplaceSecret swaps in a new hash and prefix, used on rotation.
func (r *KeyRepository) ReplaceSecret(ctx context.Context, id int64, hash, prefix string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE agent_keys
		SET key_hash = $1, key_prefix = $2
		WHERE id = $3`,
		hash, prefix, id,
	)
	if err != nil {
		return fmt.Errorf("replace key secret %d: %w", id, err)
	}
	return requireRow(result, id)
}

// UpdateHash stores a recomputed hash, used when bcrypt cost parameters
// change and a verified token is opportunistically rehashed.
func (r *KeyRepository) UpdateHash(ctx context.Context, id int64, hash string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE agent_keys SET key_hash = $1 WHERE id = $2`, hash, id); err != nil {
		return fmt.Errorf("update key hash %d: %w", id, err)
	}
	return nil
}

// TouchLastUsed records activity and the caller's address. Callers throttle
// this; the repository writes unconditionally.
func (r *KeyRepository) TouchLastUsed(ctx context.Context, id int64, at time.Time, ip string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE agent_keys SET last_used_at = $1, last_used_ip = $2 WHERE id = $3`, at, ip, id); err != nil {
		return fmt.Errorf("touch key %d: %w", id, err)
	}
	return nil
}

func requireRow(result sql.Result, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for key %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
