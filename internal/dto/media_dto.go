package dto

import (
	"time"

	"github.com/chroma-cms/agent-api/internal/models"
)

// UpdateMediaRequest patches media metadata or attachment.
type UpdateMediaRequest struct {
	Title      *string `json:"title,omitempty"`
	AltText    *string `json:"alt_text,omitempty"`
	AttachedTo *int64  `json:"attached_to,omitempty" validate:"omitempty,min=1"`
}

// AttachMediaRequest binds an upload to a parent post.
type AttachMediaRequest struct {
	MediaID int64 `json:"media_id" validate:"required,min=1"`
	PostID  int64 `json:"post_id" validate:"required,min=1"`
	DryRun  bool  `json:"dry_run"`
}

// MediaResponse is the public view of an upload.
type MediaResponse struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	Title      string    `json:"title"`
	AltText    string    `json:"alt_text"`
	AttachedTo *int64    `json:"attached_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// MediaFromModel maps a stored media row onto its public view.
func MediaFromModel(m *models.Media) MediaResponse {
	return MediaResponse{
		ID:         m.ID,
		Filename:   m.Filename,
		MimeType:   m.MimeType,
		SizeBytes:  m.SizeBytes,
		Title:      m.Title,
		AltText:    m.AltText,
		AttachedTo: m.AttachedTo,
		CreatedAt:  m.CreatedAt,
	}
}
