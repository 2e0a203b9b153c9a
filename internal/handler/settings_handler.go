package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chroma-cms/agent-api/internal/dto"
	"github.com/chroma-cms/agent-api/internal/service"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
	"github.com/chroma-cms/agent-api/pkg/response"
)

// SettingsWriter is the surface the settings handlers need.
type SettingsWriter interface {
	Read(ctx context.Context, surface service.Surface) (map[string]any, error)
	Update(ctx context.Context, surface service.Surface, req dto.UpdateSettingsRequest, actor service.Actor) (*service.WriteResult, error)
}

// SettingsHandler serves one settings surface (theme options, theme mods or
// SEO site options). Each surface is a distinct route group with its own
// allowlist and scope requirements.
type SettingsHandler struct {
	settings SettingsWriter
	surface  service.Surface
}

// NewSettingsHandler builds a handler bound to one surface.
func NewSettingsHandler(settings SettingsWriter, surface service.Surface) *SettingsHandler {
	return &SettingsHandler{settings: settings, surface: surface}
}

// Read godoc
// @Summary Read allowlisted settings for this surface
// @Tags settings
func (h *SettingsHandler) Read(c *gin.Context) {
	values, err := h.settings.Read(c.Request.Context(), h.surface)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Write(c, http.StatusOK, response.Envelope{
		Data:      dto.SettingsResponse{Values: values},
		Allowlist: h.surface.Allowlist,
	})
}

// Update godoc
// @Summary Write allowlisted settings for this surface
// @Tags settings
func (h *SettingsHandler) Update(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	result, err := h.settings.Update(c.Request.Context(), h.surface, req, actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Write(c, http.StatusOK, response.Envelope{
		DryRun:      response.Bool(result.DryRun),
		Data:        dto.SettingsResponse{Values: result.Values},
		Diff:        result.Diff,
		BlockedKeys: result.BlockedKeys,
		SnapshotIDs: result.SnapshotIDs,
		Allowlist:   result.Allowlist,
		Warning:     result.Warning,
	})
}
