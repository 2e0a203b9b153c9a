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

// ContentService is the surface the content handler needs.
type ContentService interface {
	Get(ctx context.Context, id int64) (*models.Post, error)
	List(ctx context.Context, query dto.ListPostsQuery) ([]models.Post, int64, error)
	Create(ctx context.Context, req dto.CreatePostRequest, actor service.Actor) (*service.ContentResult, error)
	Update(ctx context.Context, id int64, req dto.UpdatePostRequest, actor service.Actor) (*service.ContentResult, error)
	Delete(ctx context.Context, id int64, query dto.DeletePostQuery, actor service.Actor) (*service.ContentResult, error)
}

// ContentHandler serves the content routes. Posts and pages share the
// surface; post_type is a filter on list and a field on create.
type ContentHandler struct {
	content ContentService
}

// NewContentHandler builds a content handler.
func NewContentHandler(content ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

// List godoc
// @Summary List posts
// @Tags content
func (h *ContentHandler) List(c *gin.Context) {
	var query dto.ListPostsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	posts, total, err := h.content.List(c.Request.Context(), query)
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
	response.Paginated(c, http.StatusOK, posts, models.NewPagination(page, limit, total))
}

// Get godoc
// @Summary Fetch one post
// @Tags content
func (h *ContentHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	post, err := h.content.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, post)
}

// Create godoc
// @Summary Create a post
// @Tags content
func (h *ContentHandler) Create(c *gin.Context) {
	var req dto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	result, err := h.content.Create(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		if result != nil && len(result.Mismatches) > 0 {
			writeMismatchError(c, result, err)
			return
		}
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if result.DryRun {
		status = http.StatusOK
	}
	response.Write(c, status, response.Envelope{
		DryRun:            response.Bool(result.DryRun),
		Data:              result.Post,
		Diff:              result.Diff,
		WritePolicyBlocks: result.PolicyBlocks,
		WriteMismatches:   result.Mismatches,
		Warning:           result.Warning,
	})
}

// Update godoc
// @Summary Patch a post
// @Tags content
func (h *ContentHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	result, err := h.content.Update(c.Request.Context(), id, req, actorFrom(c))
	if err != nil {
		if result != nil && len(result.Mismatches) > 0 {
			writeMismatchError(c, result, err)
			return
		}
		response.Error(c, err)
		return
	}

	response.Write(c, http.StatusOK, response.Envelope{
		DryRun:            response.Bool(result.DryRun),
		Data:              result.Post,
		Diff:              result.Diff,
		WritePolicyBlocks: result.PolicyBlocks,
		WriteMismatches:   result.Mismatches,
		Warning:           result.Warning,
	})
}

// writeMismatchError renders a strict write failure with the observed
// mismatches alongside the error body.
func writeMismatchError(c *gin.Context, result *service.ContentResult, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.JSON(appErr.Status, response.Envelope{
		Success:         false,
		DryRun:          response.Bool(result.DryRun),
		WriteMismatches: result.Mismatches,
		Error:           appErr,
	})
}

// Delete godoc
// @Summary Trash or delete a post
// @Tags content
func (h *ContentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var query dto.DeletePostQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	result, err := h.content.Delete(c.Request.Context(), id, query, actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Write(c, http.StatusOK, response.Envelope{
		DryRun: response.Bool(result.DryRun),
		Data:   result.Post,
		Diff:   result.Diff,
	})
}
