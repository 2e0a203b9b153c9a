package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/chroma-cms/agent-api/internal/dto"
	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/redact"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
	"github.com/chroma-cms/agent-api/pkg/export"
)

// AuditRepository is the storage surface the audit service needs.
type AuditRepository interface {
	Insert(ctx context.Context, entry *models.AuditEntry) error
	GetByID(ctx context.Context, id int64) (*models.AuditEntry, error)
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)
	Count(ctx context.Context, filter models.AuditFilter) (int64, error)
}

// Exporter renders a tabular dataset into bytes.
type Exporter interface {
	Render(data export.Dataset) ([]byte, error)
}

// AuditService records and queries the append-only action log. Recording
// never fails the request it describes: persistence errors are logged and
// swallowed.
type AuditService struct {
	repo      AuditRepository
	redactor  *redact.Redactor
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuditService builds an audit service.
func NewAuditService(repo AuditRepository, redactor *redact.Redactor, logger *zap.Logger) *AuditService {
	return &AuditService{
		repo:      repo,
		redactor:  redactor,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validator.New(),
		logger:    logger,
	}
}

// Record scrubs sensitive values and appends an entry. The caller's write
// has already committed; an audit failure must not unwind it, so errors are
// reported at WARN and not returned.
func (s *AuditService) Record(ctx context.Context, entry *models.AuditEntry) {
	entry.Before = models.JSONMap(s.redactor.Map(entry.Before))
	entry.After = models.JSONMap(s.redactor.Map(entry.After))
	entry.Diff = models.JSONMap(s.redactor.Map(entry.Diff))
	entry.Meta = models.JSONMap(s.redactor.Map(entry.Meta))

	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Warn("audit entry dropped",
			zap.String("action", entry.Action),
			zap.String("target_type", entry.TargetType),
			zap.String("target_id", entry.TargetID),
			zap.Int64("key_id", entry.KeyID),
			zap.Error(err),
		)
	}
}

// Get loads one audit entry.
func (s *AuditService) Get(ctx context.Context, id int64) (*models.AuditEntry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return entry, nil
}

// List returns audit entries plus the filtered total.
func (s *AuditService) List(ctx context.Context, query dto.ListAuditQuery) ([]models.AuditEntry, int64, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrValidation, err)
	}
	filter, err := auditFilterFrom(query)
	if err != nil {
		return nil, 0, err
	}

	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	return entries, total, nil
}

// ExportResult carries a rendered export document.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// Export renders matching audit entries as CSV or PDF.
func (s *AuditService) Export(ctx context.Context, query dto.ExportAuditQuery) (*ExportResult, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrValidation, err)
	}
	filter, err := auditFilterFrom(query.ListAuditQuery)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	dataset := auditDataset(entries)
	stamp := time.Now().UTC().Format("20060102-150405")

	switch query.Format {
	case "pdf":
		content, renderErr := s.pdf.Render(dataset, "Agent Audit Log")
		if renderErr != nil {
			return nil, appErrors.WithCause(appErrors.ErrInternal, renderErr)
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("audit-%s.pdf", stamp),
		}, nil
	default:
		content, renderErr := s.csv.Render(dataset)
		if renderErr != nil {
			return nil, appErrors.WithCause(appErrors.ErrInternal, renderErr)
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("audit-%s.csv", stamp),
		}, nil
	}
}

func auditDataset(entries []models.AuditEntry) export.Dataset {
	headers := []string{"id", "created_at", "key_id", "actor", "action",
		"method", "route", "target_type", "target_id", "dry_run", "status",
		"error_code", "ip", "request_id", "diff"}

	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		diff := ""
		if len(e.Diff) > 0 {
			if encoded, err := json.Marshal(e.Diff); err == nil {
				diff = string(encoded)
			}
		}
		rows = append(rows, map[string]string{
			"id":          fmt.Sprintf("%d", e.ID),
			"created_at":  e.CreatedAt.UTC().Format(time.RFC3339),
			"key_id":      fmt.Sprintf("%d", e.KeyID),
			"actor":       e.ActorLabel,
			"action":      e.Action,
			"method":      e.Method,
			"route":       e.Route,
			"target_type": e.TargetType,
			"target_id":   e.TargetID,
			"dry_run":     fmt.Sprintf("%t", e.DryRun),
			"status":      fmt.Sprintf("%d", e.StatusCode),
			"error_code":  e.ErrorCode,
			"ip":          e.IPAddress,
			"request_id":  e.RequestID,
			"diff":        diff,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func auditFilterFrom(query dto.ListAuditQuery) (models.AuditFilter, error) {
	page, limit := normalizePage(query.Page, query.Limit)
	filter := models.AuditFilter{
		KeyID:      query.KeyID,
		Action:     query.Action,
		Route:      query.Route,
		TargetType: query.TargetType,
		TargetID:   query.TargetID,
		Page:       page,
		Limit:      limit,
	}

	if query.Since != "" {
		since, err := time.Parse(time.RFC3339, query.Since)
		if err != nil {
			return filter, appErrors.WithDetails(appErrors.ErrValidation,
				map[string]any{"since": "must be RFC 3339"})
		}
		filter.Since = &since
	}
	if query.Until != "" {
		until, err := time.Parse(time.RFC3339, query.Until)
		if err != nil {
			return filter, appErrors.WithDetails(appErrors.ErrValidation,
				map[string]any{"until": "must be RFC 3339"})
		}
		filter.Until = &until
	}
	return filter, nil
}
