package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chroma-cms/agent-api/internal/diff"
	"github.com/chroma-cms/agent-api/internal/dto"
	"github.com/chroma-cms/agent-api/internal/models"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
)

// MediaRepository is the storage surface the media service needs.
type MediaRepository interface {
	Insert(ctx context.Context, media *models.Media) error
	GetByID(ctx context.Context, id int64) (*models.Media, error)
	List(ctx context.Context, limit, offset int) ([]models.Media, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, media *models.Media) error
	Delete(ctx context.Context, id int64) error
}

// BlobStore persists file content.
type BlobStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// MediaService handles uploads: MIME and size limits, disk persistence and
// the metadata record.
type MediaService struct {
	repo         MediaRepository
	posts        PostRepository
	store        BlobStore
	audit        Auditor
	allowedMIMEs map[string]struct{}
	maxBytes     int64
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewMediaService builds a media service. The post store is consulted when
// attaching uploads to a parent post.
func NewMediaService(repo MediaRepository, posts PostRepository, store BlobStore, audit Auditor, allowedMIMEs []string, maxBytes int64, logger *zap.Logger) *MediaService {
	mimes := make(map[string]struct{}, len(allowedMIMEs))
	for _, m := range allowedMIMEs {
		mimes[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &MediaService{
		repo:         repo,
		posts:        posts,
		store:        store,
		audit:        audit,
		allowedMIMEs: mimes,
		maxBytes:     maxBytes,
		validator:    validator.New(),
		logger:       logger,
	}
}

// Upload validates and stores a file. The stored filename is randomized;
// the client's name survives only in the title default and extension.
func (s *MediaService) Upload(ctx context.Context, originalName, mimeType string, size int64, content io.Reader, actor Actor) (*models.Media, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if _, ok := s.allowedMIMEs[mimeType]; !ok {
		return nil, appErrors.WithDetails(appErrors.ErrValidation,
			map[string]any{"mime_type": mimeType})
	}
	if size <= 0 || size > s.maxBytes {
		return nil, appErrors.WithDetails(appErrors.ErrValidation,
			map[string]any{"size_bytes": size, "max_bytes": s.maxBytes})
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	stored := fmt.Sprintf("%s/%s%s", time.Now().UTC().Format("2006/01"), uuid.NewString(), ext)

	if _, err := s.store.SaveStream(stored, io.LimitReader(content, s.maxBytes)); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	media := &models.Media{
		Filename:   stored,
		MimeType:   mimeType,
		SizeBytes:  size,
		Title:      strings.TrimSuffix(filepath.Base(originalName), ext),
		UploadedBy: actor.KeyID,
	}
	if err := s.repo.Insert(ctx, media); err != nil {
		// Keep disk and database consistent when the insert fails.
		if cleanupErr := s.store.Delete(stored); cleanupErr != nil {
			s.logger.Warn("orphaned media file", zap.String("filename", stored), zap.Error(cleanupErr))
		}
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	s.audit.Record(ctx, actor.Stamp(&models.AuditEntry{
		Action:     "media.upload",
		Scope:      models.ScopeWriteMedia,
		TargetType: "media",
		TargetID:   fmt.Sprintf("%d", media.ID),
		After:      models.JSONMap{"filename": stored, "mime_type": mimeType, "size_bytes": size},
		Meta:       models.JSONMap{"filename": stored, "mime_type": mimeType, "size_bytes": size},
		StatusCode: 201,
	}))
	return media, nil
}

// Get loads one media record.
func (s *MediaService) Get(ctx context.Context, id int64) (*models.Media, error) {
	media, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return media, nil
}

// List returns media records plus the total.
func (s *MediaService) List(ctx context.Context, page, limit int) ([]models.Media, int64, error) {
	page, limit = normalizePage(page, limit)

	media, err := s.repo.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	return media, total, nil
}

// Update patches media metadata or attaches it to a post.
func (s *MediaService) Update(ctx context.Context, id int64, req dto.UpdateMediaRequest, actor Actor) (*models.Media, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrValidation, err)
	}

	media, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	before := map[string]any{"title": media.Title, "alt_text": media.AltText, "attached_to": media.AttachedTo}
	if req.Title != nil {
		media.Title = *req.Title
	}
	if req.AltText != nil {
		media.AltText = *req.AltText
	}
	if req.AttachedTo != nil {
		media.AttachedTo = req.AttachedTo
	}
	after := map[string]any{"title": media.Title, "alt_text": media.AltText, "attached_to": media.AttachedTo}

	if err := s.repo.Update(ctx, media); err != nil {
		return nil, translateNotFound(err)
	}

	s.audit.Record(ctx, actor.Stamp(&models.AuditEntry{
		Action:     "media.update",
		Scope:      models.ScopeWriteMedia,
		TargetType: "media",
		TargetID:   fmt.Sprintf("%d", media.ID),
		Before:     models.JSONMap(before),
		After:      models.JSONMap(after),
		Diff:       models.JSONMap(diff.Compare(before, after)),
		StatusCode: 200,
	}))
	return media, nil
}

// Attach binds an upload to a parent post. Both sides must exist; dry run
// previews the change without persisting.
func (s *MediaService) Attach(ctx context.Context, req dto.AttachMediaRequest, actor Actor) (*models.Media, map[string]any, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.WithCause(appErrors.ErrValidation, err)
	}

	media, err := s.Get(ctx, req.MediaID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.posts.GetByID(ctx, req.PostID); err != nil {
		return nil, nil, translateNotFound(err)
	}

	before := map[string]any{"attached_to": media.AttachedTo}
	after := map[string]any{"attached_to": req.PostID}
	change := diff.Compare(before, after)

	if !req.DryRun {
		media.AttachedTo = &req.PostID
		if err := s.repo.Update(ctx, media); err != nil {
			return nil, nil, translateNotFound(err)
		}
	}

	s.audit.Record(ctx, actor.Stamp(&models.AuditEntry{
		Action:     "media.attach",
		Scope:      models.ScopeWriteMedia,
		TargetType: "media",
		TargetID:   fmt.Sprintf("%d", media.ID),
		DryRun:     req.DryRun,
		Before:     models.JSONMap(before),
		After:      models.JSONMap(after),
		Diff:       models.JSONMap(change),
		Meta:       models.JSONMap{"post_id": req.PostID},
		StatusCode: 200,
	}))
	return media, change, nil
}

// Delete removes a media record and its file.
func (s *MediaService) Delete(ctx context.Context, id int64, actor Actor) error {
	media, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return translateNotFound(err)
	}
	if err := s.store.Delete(media.Filename); err != nil {
		s.logger.Warn("media file removal failed", zap.String("filename", media.Filename), zap.Error(err))
	}

	s.audit.Record(ctx, actor.Stamp(&models.AuditEntry{
		Action:     "media.delete",
		Scope:      models.ScopeWriteMedia,
		TargetType: "media",
		TargetID:   fmt.Sprintf("%d", id),
		Before:     models.JSONMap{"filename": media.Filename, "title": media.Title},
		Meta:       models.JSONMap{"filename": media.Filename},
		StatusCode: 200,
	}))
	return nil
}
