package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/chroma-cms/agent-api/internal/models"
)

// AuditRepository persists the append-only action log.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository builds an audit repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditColumns = `id, key_id, actor_label, action, method, route, scope,
	target_type, target_id, dry_run, before_json, after_json, diff, meta,
	error_code, ip_address, user_agent, request_id, status_code, created_at`

// Insert appends one audit entry.
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO agent_audit_log
			(key_id, actor_label, action, method, route, scope,
			 target_type, target_id, dry_run, before_json, after_json, diff,
			 meta, error_code, ip_address, user_agent, request_id, status_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at`,
		entry.KeyID, entry.ActorLabel, entry.Action, entry.Method, entry.Route,
		entry.Scope, entry.TargetType, entry.TargetID, entry.DryRun,
		entry.Before, entry.After, entry.Diff, entry.Meta, entry.ErrorCode,
		entry.IPAddress, entry.UserAgent, entry.RequestID, entry.StatusCode,
	)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// GetByID loads one audit entry.
func (r *AuditRepository) GetByID(ctx context.Context, id int64) (*models.AuditEntry, error) {
	var entry models.AuditEntry
	err := r.db.GetContext(ctx, &entry,
		`SELECT `+auditColumns+` FROM agent_audit_log WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get audit entry %d: %w", id, err)
	}
	return &entry, nil
}

// List returns audit entries matching the filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	where, args := auditWhere(filter)

	query := `SELECT ` + auditColumns + ` FROM agent_audit_log` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	offset := (filter.Page - 1) * filter.Limit
	args = append(args, filter.Limit, offset)

	entries := []models.AuditEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// Count returns the entry total for the same filter as List.
func (r *AuditRepository) Count(ctx context.Context, filter models.AuditFilter) (int64, error) {
	where, args := auditWhere(filter)

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM agent_audit_log`+where, args...); err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return total, nil
}

func auditWhere(filter models.AuditFilter) (string, []any) {
	conditions := []string{}
	args := []any{}

	add := func(cond string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.KeyID > 0 {
		add("key_id = $%d", filter.KeyID)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.Route != "" {
		add("route LIKE $%d", filter.Route+"%")
	}
	if filter.TargetType != "" {
		add("target_type = $%d", filter.TargetType)
	}
	if filter.TargetID != "" {
		add("target_id = $%d", filter.TargetID)
	}
	if filter.Since != nil {
		add("created_at >= $%d", *filter.Since)
	}
	if filter.Until != nil {
		add("created_at <= $%d", *filter.Until)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
