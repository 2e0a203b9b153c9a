package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chroma-cms/agent-api/internal/models"
)

// SettingsRepository persists site options and theme mods.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository builds a settings repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get loads one setting. Missing settings return ErrNotFound; callers treat
// that as a nil value, not a failure.
func (r *SettingsRepository) Get(ctx context.Context, kind, name string) (*models.Setting, error) {
	var setting models.Setting
	err := r.db.GetContext(ctx, &setting,
		`SELECT kind, name, value, updated_at FROM settings WHERE kind = $1 AND name = $2`,
		kind, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %s/%s: %w", kind, name, err)
	}
	return &setting, nil
}

// GetMany loads current values for a set of names. Absent names are simply
// not present in the result.
func (r *SettingsRepository) GetMany(ctx context.Context, kind string, names []string) (map[string]any, error) {
	if len(names) == 0 {
		return map[string]any{}, nil
	}

	query, args, err := sqlx.In(
		`SELECT kind, name, value, updated_at FROM settings WHERE kind = ? AND name IN (?)`,
		kind, names)
	if err != nil {
		return nil, fmt.Errorf("build settings query: %w", err)
	}
	query = r.db.Rebind(query)

	settings := []models.Setting{}
	if err := r.db.SelectContext(ctx, &settings, query, args...); err != nil {
		return nil, fmt.Errorf("get settings %s: %w", kind, err)
	}

	out := make(map[string]any, len(settings))
	for _, s := range settings {
		out[s.Name] = s.Value.V
	}
	return out, nil
}

// UpsertTx writes one setting inside an existing transaction.
func (r *SettingsRepository) UpsertTx(ctx context.Context, tx *sqlx.Tx, kind, name string, value any) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO settings (kind, name, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (kind, name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		kind, name, models.JSONValue{V: value, Valid: true},
	); err != nil {
		return fmt.Errorf("upsert setting %s/%s: %w", kind, name, err)
	}
	return nil
}

// Transact exposes the transaction helper so the service can combine
// snapshot inserts and setting writes atomically.
func (r *SettingsRepository) Transact(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return withTx(ctx, r.db, fn)
}
