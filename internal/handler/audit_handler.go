package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chroma-cms/agent-api/internal/dto"
	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/service"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
	"github.com/chroma-cms/agent-api/pkg/response"
)

// AuditService is the surface the audit handler needs.
type AuditService interface {
	Get(ctx context.Context, id int64) (*models.AuditEntry, error)
	List(ctx context.Context, query dto.ListAuditQuery) ([]models.AuditEntry, int64, error)
	Export(ctx context.Context, query dto.ExportAuditQuery) (*service.ExportResult, error)
}

// SnapshotService is the surface the snapshot/rollback routes need.
type SnapshotService interface {
	Get(ctx context.Context, id int64) (*models.Snapshot, error)
	List(ctx context.Context, query dto.ListSnapshotsQuery) ([]models.Snapshot, int64, error)
	Restore(ctx context.Context, req dto.RollbackRequest, actor service.Actor) (*service.WriteResult, error)
}

// AuditHandler serves the audit log, export and rollback routes.
type AuditHandler struct {
	audit     AuditService
	snapshots SnapshotService
}

// NewAuditHandler builds an audit handler.
func NewAuditHandler(audit AuditService, snapshots SnapshotService) *AuditHandler {
	return &AuditHandler{audit: audit, snapshots: snapshots}
}

// List godoc
// @Summary List audit entries
// @Tags audit
// @Router /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	var query dto.ListAuditQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	entries, total, err := h.audit.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, limit := query.Page, query.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}
	response.Paginated(c, http.StatusOK, entries, models.NewPagination(page, limit, total))
}

// Get godoc
// @Summary Fetch one audit entry
// @Tags audit
// @Router /audit/{id} [get]
func (h *AuditHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	entry, err := h.audit.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry)
}

// Export godoc
// @Summary Export audit entries as CSV or PDF
// @Tags audit
// @Router /audit/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	var query dto.ExportAuditQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	result, err := h.audit.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// ListSnapshots godoc
// @Summary List pre-write snapshots
// @Tags audit
// @Router /snapshots [get]
func (h *AuditHandler) ListSnapshots(c *gin.Context) {
	var query dto.ListSnapshotsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	snaps, total, err := h.snapshots.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, limit := query.Page, query.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}
	response.Paginated(c, http.StatusOK, snaps, models.NewPagination(page, limit, total))
}

// GetSnapshot godoc
// @Summary Fetch one snapshot
// @Tags audit
// @Router /snapshots/{id} [get]
func (h *AuditHandler) GetSnapshot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	snap, err := h.snapshots.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap)
}

// Rollback godoc
// @Summary Restore a snapshot's old value onto its target
// @Tags audit
// @Router /rollback/snapshot [post]
func (h *AuditHandler) Rollback(c *gin.Context) {
	var req dto.RollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	result, err := h.snapshots.Restore(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Write(c, http.StatusOK, response.Envelope{
		DryRun:  response.Bool(result.DryRun),
		Data:    dto.SettingsResponse{Values: result.Values},
		Diff:    result.Diff,
		Warning: result.Warning,
	})
}
