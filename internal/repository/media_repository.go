package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chroma-cms/agent-api/internal/models"
)

// MediaRepository persists upload records.
type MediaRepository struct {
	db *sqlx.DB
}

// NewMediaRepository builds a media repository.
func NewMediaRepository(db *sqlx.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

const mediaColumns = `id, filename, mime_type, size_bytes, title, alt_text,
	attached_to, uploaded_by, created_at`

// Insert records an upload.
func (r *MediaRepository) Insert(ctx context.Context, media *models.Media) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO media (filename, mime_type, size_bytes, title, alt_text, attached_to, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		media.Filename, media.MimeType, media.SizeBytes, media.Title,
		media.AltText, media.AttachedTo, media.UploadedBy,
	)
	if err := row.Scan(&media.ID, &media.CreatedAt); err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

// GetByID loads one media record.
func (r *MediaRepository) GetByID(ctx context.Context, id int64) (*models.Media, error) {
	var media models.Media
	err := r.db.GetContext(ctx, &media,
		`SELECT `+mediaColumns+` FROM media WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get media %d: %w", id, err)
	}
	return &media, nil
}

// List returns media records, newest first.
func (r *MediaRepository) List(ctx context.Context, limit, offset int) ([]models.Media, error) {
	media := []models.Media{}
	if err := r.db.SelectContext(ctx, &media,
		`SELECT `+mediaColumns+` FROM media ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset); err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return media, nil
}

// Count returns the media total.
func (r *MediaRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM media`); err != nil {
		return 0, fmt.Errorf("count media: %w", err)
	}
	return total, nil
}

// Update rewrites media metadata.
func (r *MediaRepository) Update(ctx context.Context, media *models.Media) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE media SET title = $1, alt_text = $2, attached_to = $3 WHERE id = $4`,
		media.Title, media.AltText, media.AttachedTo, media.ID,
	)
	if err != nil {
		return fmt.Errorf("update media %d: %w", media.ID, err)
	}
	return requireRow(result, media.ID)
}

// Delete removes a media record.
func (r *MediaRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete media %d: %w", id, err)
	}
	return requireRow(result, id)
}
