package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chroma-cms/agent-api/internal/dto"
	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/service"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
	"github.com/chroma-cms/agent-api/pkg/response"
)

// MediaService is the surface the media handler needs.
type MediaService interface {
	Upload(ctx context.Context, originalName, mimeType string, size int64, content io.Reader, actor service.Actor) (*models.Media, error)
	Get(ctx context.Context, id int64) (*models.Media, error)
	List(ctx context.Context, page, limit int) ([]models.Media, int64, error)
	Update(ctx context.Context, id int64, req dto.UpdateMediaRequest, actor service.Actor) (*models.Media, error)
	Attach(ctx context.Context, req dto.AttachMediaRequest, actor service.Actor) (*models.Media, map[string]any, error)
	Delete(ctx context.Context, id int64, actor service.Actor) error
}

// MediaHandler serves upload and media management routes.
type MediaHandler struct {
	media MediaService
}

// NewMediaHandler builds a media handler.
func NewMediaHandler(media MediaService) *MediaHandler {
	return &MediaHandler{media: media}
}

// Upload godoc
// @Summary Upload a media file (multipart "file" field)
// @Tags media
// @Router /media [post]
func (h *MediaHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrInternal, err))
		return
	}
	defer file.Close() //nolint:errcheck

	media, err := h.media.Upload(c.Request.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
		actorFrom(c),
	)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.MediaFromModel(media))
}

// List godoc
// @Summary List media records
// @Tags media
// @Router /media [get]
func (h *MediaHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	media, total, err := h.media.List(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.MediaResponse, len(media))
	for i := range media {
		out[i] = dto.MediaFromModel(&media[i])
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}
	response.Paginated(c, http.StatusOK, out, models.NewPagination(page, limit, total))
}

// Get godoc
// @Summary Fetch one media record
// @Tags media
// @Router /media/{id} [get]
func (h *MediaHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	media, err := h.media.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.MediaFromModel(media))
}

// Update godoc
// @Summary Patch media metadata or attach to a post
// @Tags media
// @Router /media/{id} [patch]
func (h *MediaHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.UpdateMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	media, err := h.media.Update(c.Request.Context(), id, req, actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.MediaFromModel(media))
}

// Attach godoc
// @Summary Attach an upload to a parent post
// @Tags media
// @Router /media/attach [post]
func (h *MediaHandler) Attach(c *gin.Context) {
	var req dto.AttachMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WithCause(appErrors.ErrValidation, err))
		return
	}

	media, change, err := h.media.Attach(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Write(c, http.StatusOK, response.Envelope{
		DryRun: response.Bool(req.DryRun),
		Data:   dto.MediaFromModel(media),
		Diff:   change,
	})
}

// Delete godoc
// @Summary Remove a media record and its file
// @Tags media
// @Router /media/{id} [delete]
func (h *MediaHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.media.Delete(c.Request.Context(), id, actorFrom(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": true, "id": id})
}
