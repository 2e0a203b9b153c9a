package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chroma-cms/agent-api/internal/dto"
	"github.com/chroma-cms/agent-api/internal/models"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
	"github.com/chroma-cms/agent-api/pkg/response"
)

// KeyService is the surface the key handler needs.
type KeyService interface {
	Create(ctx context.Context, req dto.CreateKeyRequest) (*dto.MintedKeyResponse, error)
	Get(ctx context.Context, id int64) (*dto.KeyResponse, error)
	List(ctx context.Context, query dto.ListKeysQuery) ([]dto.KeyResponse, int64, error)
	Update(ctx context.Context, id int64, req dto.UpdateKeyRequest) (*dto.KeyResponse, error)
	Rotate(ctx context.Context, id int64) (*dto.MintedKeyResponse, error)
	Revoke(ctx context.Context, id int64) error
}

// KeyHandler manages agent key administration routes.
type KeyHandler struct {
	keys  KeyService
	audit Auditor
}

// NewKeyHandler builds a key handler.
func NewKeyHandler(keys KeyService, audit Auditor) *KeyHandler {
	return &KeyHandler{keys: keys, audit: audit}
}

// Create godoc
// @Summary Mint a new agent key
// @Tags keys
// @Router /keys [post]
func (h *KeyHandler) Create(c *gin.Context) {
	var req dto.CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	minted, err := h.keys.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.record(c, "keys.create", minted.ID, nil)
	response.Created(c, minted)
}

// List godoc
// @Summary List agent keys
// @Tags keys
// @Router /keys [get]
func (h *KeyHandler) List(c *gin.Context) {
	var query dto.ListKeysQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	keys, total, err := h.keys.List(c.Request.Context(), query)
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
	response.Paginated(c, http.StatusOK, keys, models.NewPagination(page, limit, total))
}

// Get godoc
// @Summary Fetch one agent key
// @Tags keys
// @Router /keys/{id} [get]
func (h *KeyHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	key, err := h.keys.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, key)
}

// Update godoc
// @Summary Patch an agent key
// @Tags keys
// @Router /keys/{id} [patch]
func (h *KeyHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.UpdateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	key, err := h.keys.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.record(c, "keys.update", id, nil)
	response.JSON(c, http.StatusOK, key)
}

// Rotate godoc
// @Summary Rotate an agent key secret
// @Tags keys
// @Router /keys/{id}/rotate [post]
func (h *KeyHandler) Rotate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	minted, err := h.keys.Rotate(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.record(c, "keys.rotate", id, nil)
	response.JSON(c, http.StatusOK, minted)
}

// Revoke godoc
// @Summary Revoke an agent key
// @Tags keys
// @Router /keys/{id}/revoke [post]
func (h *KeyHandler) Revoke(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.keys.Revoke(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	h.record(c, "keys.revoke", id, nil)
	response.JSON(c, http.StatusOK, gin.H{"revoked": true, "id": id})
}

func (h *KeyHandler) record(c *gin.Context, action string, keyID int64, meta models.JSONMap) {
	actor := actorFrom(c)
	h.audit.Record(c.Request.Context(), actor.Stamp(&models.AuditEntry{
		Action:     action,
		Scope:      models.ScopeAdminKeys,
		TargetType: "api_key",
		TargetID:   itoa(keyID),
		Meta:       meta,
		StatusCode: http.StatusOK,
	}))
}
