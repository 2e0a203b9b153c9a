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

// SEOMetaService is the per-post half of the SEO surface: allowlisted meta
// fields plus the fixed schema key set.
type SEOMetaService interface {
	ReadMeta(ctx context.Context, postID int64) (map[string]any, []string, error)
	UpdateMeta(ctx context.Context, postID int64, req dto.UpdateSEOMetaRequest, actor service.Actor) (*service.WriteResult, error)
	SchemaKeys() []string
	ReadSchema(ctx context.Context, postID int64) (map[string]any, error)
	UpdateSchema(ctx context.Context, postID int64, req dto.UpdateSchemaRequest, actor service.Actor) (*service.WriteResult, error)
	ListSchema(ctx context.Context, query dto.ListSchemaQuery) ([]service.SchemaItem, int64, error)
}

// SEOHandler serves per-post SEO meta routes. Site-wide SEO options are a
// SettingsHandler surface.
type SEOHandler struct {
	meta SEOMetaService
}

// NewSEOHandler builds an SEO handler.
func NewSEOHandler(meta SEOMetaService) *SEOHandler {
	return &SEOHandler{meta: meta}
}

// ReadMeta godoc
// @Summary Read allowlisted SEO meta for a post
// @Tags seo
func (h *SEOHandler) ReadMeta(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	values, allowlist, err := h.meta.ReadMeta(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Write(c, http.StatusOK, response.Envelope{
		Data:      dto.SettingsResponse{Values: values},
		Allowlist: allowlist,
	})
}

// UpdateMeta godoc
// @Summary Write allowlisted SEO meta for a post
// @Tags seo
func (h *SEOHandler) UpdateMeta(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.UpdateSEOMetaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	result, err := h.meta.UpdateMeta(c.Request.Context(), id, req, actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Write(c, http.StatusOK, response.Envelope{
		DryRun:      response.Bool(result.DryRun),
		Data:        dto.SettingsResponse{Values: result.Values},
		Diff:        result.Diff,
		BlockedKeys: result.BlockedKeys,
		Allowlist:   result.Allowlist,
		Warning:     result.Warning,
	})
}

// ReadSchema godoc
// @Summary Read the schema meta of a post
// @Tags seo
func (h *SEOHandler) ReadSchema(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	values, err := h.meta.ReadSchema(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Write(c, http.StatusOK, response.Envelope{
		Data:      dto.SettingsResponse{Values: values},
		Allowlist: h.meta.SchemaKeys(),
	})
}

// UpdateSchema godoc
// @Summary Write the schema meta of a post
// @Tags seo
func (h *SEOHandler) UpdateSchema(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.UpdateSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	result, err := h.meta.UpdateSchema(c.Request.Context(), id, req, actorFrom(c))
	if err != nil {
		if result != nil && len(result.Mismatches) > 0 {
			appErr := appErrors.FromError(err)
			c.Header("Cache-Control", "no-store")
			c.JSON(appErr.Status, response.Envelope{
				Success:         false,
				DryRun:          response.Bool(result.DryRun),
				WriteMismatches: result.Mismatches,
				Error:           appErr,
			})
			return
		}
		response.Error(c, err)
		return
	}

	response.Write(c, http.StatusOK, response.Envelope{
		DryRun:          response.Bool(result.DryRun),
		Data:            dto.SettingsResponse{Values: result.Values},
		Diff:            result.Diff,
		BlockedKeys:     result.BlockedKeys,
		WriteMismatches: result.Mismatches,
		Allowlist:       result.Allowlist,
		Warning:         result.Warning,
	})
}

// ListSchema godoc
// @Summary Inventory posts carrying schema meta
// @Tags seo
func (h *SEOHandler) ListSchema(c *gin.Context) {
	var query dto.ListSchemaQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	items, total, err := h.meta.ListSchema(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, limit := query.Page, query.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	response.Paginated(c, http.StatusOK, items, models.NewPagination(page, limit, total))
}
