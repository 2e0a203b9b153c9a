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

// SnapshotRepository persists pre-write value snapshots.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository builds a snapshot repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const snapshotColumns = `id, target_type, target_key, old_value, new_value,
	scope, key_id, request_id, restored_at, created_at`

// InsertTx appends a snapshot inside an existing transaction, so the
// snapshot and the write it guards commit or roll back together.
func (r *SnapshotRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, snap *models.Snapshot) error {
	row := tx.QueryRowContext(ctx, `
		INSERT INTO agent_option_snapshots
			(target_type, target_key, old_value, new_value, scope, key_id, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		snap.TargetType, snap.TargetKey, snap.OldValue, snap.NewValue,
		snap.Scope, snap.KeyID, snap.RequestID,
	)
	if err := row.Scan(&snap.ID, &snap.CreatedAt); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetByID loads a snapshot.
func (r *SnapshotRepository) GetByID(ctx context.Context, id int64) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := r.db.GetContext(ctx, &snap,
		`SELECT `+snapshotColumns+` FROM agent_option_snapshots WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %d: %w", id, err)
	}
	return &snap, nil
}

// List returns snapshots filtered by target, newest first.
func (r *SnapshotRepository) List(ctx context.Context, targetType, targetKey string, limit, offset int) ([]models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM agent_option_snapshots`
	args := []any{}

	if targetType != "" {
		args = append(args, targetType)
		query += fmt.Sprintf(` WHERE target_type = $%d`, len(args))
		if targetKey != "" {
			args = append(args, targetKey)
			query += fmt.Sprintf(` AND target_key = $%d`, len(args))
		}
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	snaps := []models.Snapshot{}
	if err := r.db.SelectContext(ctx, &snaps, query, args...); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}

// Count returns the snapshot total for the same filter as List.
func (r *SnapshotRepository) Count(ctx context.Context, targetType, targetKey string) (int64, error) {
	query := `SELECT COUNT(*) FROM agent_option_snapshots`
	args := []any{}
	if targetType != "" {
		args = append(args, targetType)
		query += fmt.Sprintf(` WHERE target_type = $%d`, len(args))
		if targetKey != "" {
			args = append(args, targetKey)
			query += fmt.Sprintf(` AND target_key = $%d`, len(args))
		}
	}
	var total int64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return total, nil
}

// MarkRestoredTx records a restore timestamp inside the restore transaction.
// The snapshot row itself is kept.
func (r *SnapshotRepository) MarkRestoredTx(ctx context.Context, tx *sqlx.Tx, id int64, at time.Time) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE agent_option_snapshots SET restored_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("mark snapshot %d restored: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for snapshot %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
