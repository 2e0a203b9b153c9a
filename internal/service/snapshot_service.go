package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/chroma-cms/agent-api/internal/diff"
	"github.com/chroma-cms/agent-api/internal/dto"
	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/repository"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
)

// SnapshotRepository is the storage surface the snapshot service needs.
type SnapshotRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Snapshot, error)
	List(ctx context.Context, targetType, targetKey string, limit, offset int) ([]models.Snapshot, error)
	Count(ctx context.Context, targetType, targetKey string) (int64, error)
	MarkRestoredTx(ctx context.Context, tx *sqlx.Tx, id int64, at time.Time) error
}

// SnapshotService lists snapshots and restores their old values back onto
// settings (rollback).
type SnapshotService struct {
	repo      SnapshotRepository
	settings  SettingsRepository
	audit     Auditor
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSnapshotService builds a snapshot service.
func NewSnapshotService(repo SnapshotRepository, settings SettingsRepository, audit Auditor, logger *zap.Logger) *SnapshotService {
	return &SnapshotService{
		repo:      repo,
		settings:  settings,
		audit:     audit,
		validator: validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// Get loads one snapshot.
func (s *SnapshotService) Get(ctx context.Context, id int64) (*models.Snapshot, error) {
	snap, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, appErrors.ErrNotFound
	}
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	return snap, nil
}

// List returns snapshots plus the filtered total.
func (s *SnapshotService) List(ctx context.Context, query dto.ListSnapshotsQuery) ([]models.Snapshot, int64, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrValidation, err)
	}
	page, limit := normalizePage(query.Page, query.Limit)

	snaps, err := s.repo.List(ctx, query.TargetType, query.TargetKey, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	total, err := s.repo.Count(ctx, query.TargetType, query.TargetKey)
	if err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	return snaps, total, nil
}

// Restore writes a snapshot's old value back onto its target. The setting
// write and the restored-at mark share one transaction; the snapshot row is
// kept so a rollback can itself be rolled forward again.
func (s *SnapshotService) Restore(ctx context.Context, req dto.RollbackRequest, actor Actor) (*WriteResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrValidation, err)
	}

	snap, err := s.Get(ctx, req.SnapshotID)
	if err != nil {
		return nil, err
	}

	kind := settingKindFor(snap.TargetType)
	if kind == "" {
		return nil, appErrors.WithDetails(appErrors.ErrValidation,
			map[string]any{"target_type": snap.TargetType})
	}

	var current any
	setting, err := s.settings.Get(ctx, kind, snap.TargetKey)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	if setting != nil {
		current = setting.Value.V
	}

	change := diff.Compare(current, snap.OldValue.V)
	result := &WriteResult{
		Values: map[string]any{snap.TargetKey: snap.OldValue.V},
		Diff:   map[string]any{},
		DryRun: req.DryRun,
	}
	if len(change) > 0 {
		result.Diff[snap.TargetKey] = change
	}

	before := models.JSONMap{snap.TargetKey: current}
	after := models.JSONMap{snap.TargetKey: snap.OldValue.V}

	if req.DryRun {
		s.audit.Record(ctx, actor.Stamp(&models.AuditEntry{
			Action:     "rollback.snapshot",
			Scope:      models.ScopeAdminAudit,
			TargetType: snap.TargetType,
			TargetID:   snap.TargetKey,
			DryRun:     true,
			Before:     before,
			After:      after,
			Diff:       models.JSONMap(result.Diff),
			Meta:       models.JSONMap{"snapshot_id": snap.ID},
			StatusCode: 200,
		}))
		return result, nil
	}
	if len(change) == 0 {
		result.Warning = "target already holds the snapshot value"
		s.audit.Record(ctx, actor.Stamp(&models.AuditEntry{
			Action:     "rollback.snapshot",
			Scope:      models.ScopeAdminAudit,
			TargetType: snap.TargetType,
			TargetID:   snap.TargetKey,
			Before:     before,
			After:      after,
			Meta:       models.JSONMap{"snapshot_id": snap.ID},
			StatusCode: 200,
		}))
		return result, nil
	}

	err = s.settings.Transact(ctx, func(tx *sqlx.Tx) error {
		if err := s.settings.UpsertTx(ctx, tx, kind, snap.TargetKey, snap.OldValue.V); err != nil {
			return err
		}
		return s.repo.MarkRestoredTx(ctx, tx, snap.ID, s.now())
	})
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	s.audit.Record(ctx, actor.Stamp(&models.AuditEntry{
		Action:     "rollback.snapshot",
		Scope:      models.ScopeAdminAudit,
		TargetType: snap.TargetType,
		TargetID:   snap.TargetKey,
		Before:     before,
		After:      after,
		Diff:       models.JSONMap(result.Diff),
		Meta:       models.JSONMap{"snapshot_id": snap.ID},
		StatusCode: 200,
	}))

	s.logger.Info("snapshot restored",
		zap.Int64("snapshot_id", snap.ID),
		zap.String("target_type", snap.TargetType),
		zap.String("target_key", snap.TargetKey),
	)
	return result, nil
}

func settingKindFor(targetType string) string {
	switch targetType {
	case models.SnapshotTargetOption:
		return models.SettingKindOption
	case models.SnapshotTargetThemeMod:
		return models.SettingKindThemeMod
	default:
		return ""
	}
}
