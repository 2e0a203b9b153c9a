package service

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/chroma-cms/agent-api/internal/diff"
	"github.com/chroma-cms/agent-api/internal/dto"
	"github.com/chroma-cms/agent-api/internal/models"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
)

// Surface is one settings write route: a named group of allowlisted keys of
// a single kind. Keys outside the allowlist are reported, never written.
type Surface struct {
	Name      string
	Kind      string
	Action    string
	Scope     string
	Allowlist []string
}

// SettingsRepository is the storage surface the settings service needs.
type SettingsRepository interface {
	Get(ctx context.Context, kind, name string) (*models.Setting, error)
	GetMany(ctx context.Context, kind string, names []string) (map[string]any, error)
	UpsertTx(ctx context.Context, tx *sqlx.Tx, kind, name string, value any) error
	Transact(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// SnapshotWriter appends snapshots inside the write transaction.
type SnapshotWriter interface {
	InsertTx(ctx context.Context, tx *sqlx.Tx, snap *models.Snapshot) error
}

// Auditor records completed actions.
type Auditor interface {
	Record(ctx context.Context, entry *models.AuditEntry)
}

// SettingsService reads and writes allowlisted site settings with pre-write
// snapshots and audit trails.
type SettingsService struct {
	repo      SettingsRepository
	snapshots SnapshotWriter
	audit     Auditor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService builds a settings service.
func NewSettingsService(repo SettingsRepository, snapshots SnapshotWriter, audit Auditor, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		repo:      repo,
		snapshots: snapshots,
		audit:     audit,
		validator: validator.New(),
		logger:    logger,
	}
}

// WriteResult reports the effect of a settings write (or what a dry run
// would have done).
type WriteResult struct {
	Values      map[string]any
	Diff        map[string]any
	BlockedKeys []string
	SnapshotIDs []int64
	Mismatches  map[string]any
	Allowlist   []string
	Warning     string
	DryRun      bool
}

// Read returns current values for every allowlisted key of the surface.
// Keys with no stored value are returned as nil so agents see the full
// writable set.
func (s *SettingsService) Read(ctx context.Context, surface Surface) (map[string]any, error) {
	stored, err := s.repo.GetMany(ctx, surface.Kind, surface.Allowlist)
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	values := make(map[string]any, len(surface.Allowlist))
	for _, name := range surface.Allowlist {
		values[name] = stored[name]
	}
	return values, nil
}

// Update applies allowlisted writes. Each changed key gets a snapshot of its
// previous value in the same transaction as the write. Keys outside the
// allowlist are collected into BlockedKeys; unchanged keys are skipped
// entirely (no snapshot, no write).
func (s *SettingsService) Update(ctx context.Context, surface Surface, req dto.UpdateSettingsRequest, actor Actor) (*WriteResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrValidation, err)
	}

	allowed, blocked := partitionKeys(req.Values, surface.Allowlist)

	result := &WriteResult{
		Diff:        map[string]any{},
		BlockedKeys: blocked,
		Allowlist:   surface.Allowlist,
		DryRun:      req.DryRun,
	}
	if len(blocked) > 0 {
		result.Warning = "keys outside the allowlist were not written: " + strings.Join(blocked, ", ")
	}

	before, err := s.repo.GetMany(ctx, surface.Kind, keysOf(allowed))
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	changed := map[string]any{}
	for name, newValue := range allowed {
		change := diff.Compare(before[name], newValue)
		if len(change) == 0 {
			continue
		}
		result.Diff[name] = change
		changed[name] = newValue
	}

	beforeChanged := map[string]any{}
	for name := range changed {
		beforeChanged[name] = before[name]
	}

	if req.DryRun || len(changed) == 0 {
		result.Values, err = s.currentValues(ctx, surface, nil)
		if err != nil {
			return nil, err
		}
		if !req.DryRun && len(changed) == 0 && len(allowed) > 0 {
			result.Warning = strings.TrimSpace(result.Warning + " no values changed")
		}
		s.audit.Record(ctx, actor.Stamp(&models.AuditEntry{
			Action:     surface.Action,
			Scope:      surface.Scope,
			TargetType: surface.Name,
			TargetID:   strings.Join(sortedKeys(changed), ","),
			DryRun:     req.DryRun,
			Before:     models.JSONMap(beforeChanged),
			After:      models.JSONMap(changed),
			Diff:       models.JSONMap(result.Diff),
			StatusCode: 200,
		}))
		return result, nil
	}

	err = s.repo.Transact(ctx, func(tx *sqlx.Tx) error {
		for _, name := range sortedKeys(changed) {
			snap := &models.Snapshot{
				TargetType: snapshotTarget(surface.Kind),
				TargetKey:  name,
				OldValue:   models.JSONValue{V: before[name], Valid: true},
				NewValue:   models.JSONValue{V: changed[name], Valid: true},
				Scope:      surface.Scope,
				KeyID:      actor.KeyID,
				RequestID:  actor.RequestID,
			}
			if err := s.snapshots.InsertTx(ctx, tx, snap); err != nil {
				return err
			}
			result.SnapshotIDs = append(result.SnapshotIDs, snap.ID)

			if err := s.repo.UpsertTx(ctx, tx, surface.Kind, name, changed[name]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	s.audit.Record(ctx, actor.Stamp(&models.AuditEntry{
		Action:     surface.Action,
		Scope:      surface.Scope,
		TargetType: surface.Name,
		TargetID:   strings.Join(sortedKeys(changed), ","),
		Before:     models.JSONMap(beforeChanged),
		After:      models.JSONMap(changed),
		Diff:       models.JSONMap(result.Diff),
		StatusCode: 200,
	}))

	result.Values, err = s.currentValues(ctx, surface, changed)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SettingsService) currentValues(ctx context.Context, surface Surface, written map[string]any) (map[string]any, error) {
	stored, err := s.repo.GetMany(ctx, surface.Kind, surface.Allowlist)
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	values := make(map[string]any, len(surface.Allowlist))
	for _, name := range surface.Allowlist {
		values[name] = stored[name]
	}
	for name, v := range written {
		values[name] = v
	}
	return values, nil
}

func partitionKeys(values map[string]any, allowlist []string) (map[string]any, []string) {
	allowed := map[string]any{}
	blocked := []string{}
	set := make(map[string]struct{}, len(allowlist))
	for _, name := range allowlist {
		set[name] = struct{}{}
	}
	for name, value := range values {
		if _, ok := set[name]; ok {
			allowed[name] = value
		} else {
			blocked = append(blocked, name)
		}
	}
	sort.Strings(blocked)
	return allowed, blocked
}

func snapshotTarget(kind string) string {
	if kind == models.SettingKindThemeMod {
		return models.SnapshotTargetThemeMod
	}
	return models.SnapshotTargetOption
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	out := keysOf(m)
	sort.Strings(out)
	return out
}
