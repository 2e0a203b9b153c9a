package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/chroma-cms/agent-api/internal/models"
)

// PostRepository persists posts and pages.
type PostRepository struct {
	db *sqlx.DB
}

// NewPostRepository builds a post repository.
func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db}
}

const postColumns = `id, post_type, title, slug, content, excerpt, status,
	author, meta, taxonomies, created_at, updated_at, deleted_at`

// Create inserts a post.
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO posts (post_type, title, slug, content, excerpt, status, author, meta, taxonomies)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		post.PostType, post.Title, post.Slug, post.Content, post.Excerpt,
		post.Status, post.Author, post.Meta, post.Taxonomies,
	)
	if err := row.Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetByID loads a non-deleted post.
func (r *PostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	err := r.db.GetContext(ctx, &post,
		`SELECT `+postColumns+` FROM posts WHERE id = $1 AND deleted_at IS NULL`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return &post, nil
}

// List returns posts matching the filter, newest first.
func (r *PostRepository) List(ctx context.Context, filter models.PostFilter) ([]models.Post, error) {
	where, args := postWhere(filter)

	query := `SELECT ` + postColumns + ` FROM posts` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	offset := (filter.Page - 1) * filter.Limit
	args = append(args, filter.Limit, offset)

	posts := []models.Post{}
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// Count returns the post total for the same filter as List.
func (r *PostRepository) Count(ctx context.Context, filter models.PostFilter) (int64, error) {
	where, args := postWhere(filter)

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM posts`+where, args...); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return total, nil
}

// Update rewrites mutable post fields.
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET title = $1, slug = $2, content = $3, excerpt = $4, status = $5,
		    meta = $6, taxonomies = $7, updated_at = now()
		WHERE id = $8 AND deleted_at IS NULL`,
		post.Title, post.Slug, post.Content, post.Excerpt, post.Status,
		post.Meta, post.Taxonomies, post.ID,
	)
	if err != nil {
		return fmt.Errorf("update post %d: %w", post.ID, err)
	}
	return requireRow(result, post.ID)
}

// Trash moves a post into trash status without removing it.
func (r *PostRepository) Trash(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE posts SET status = $1, updated_at = now()
		WHERE id = $2 AND deleted_at IS NULL`,
		models.PostStatusTrash, id,
	)
	if err != nil {
		return fmt.Errorf("trash post %d: %w", id, err)
	}
	return requireRow(result, id)
}

// Delete soft-deletes a post permanently (force delete).
func (r *PostRepository) Delete(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE posts SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	return requireRow(result, id)
}

func postWhere(filter models.PostFilter) (string, []any) {
	conditions := []string{"deleted_at IS NULL"}
	args := []any{}

	if filter.PostType != "" {
		args = append(args, filter.PostType)
		conditions = append(conditions, fmt.Sprintf("post_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if len(filter.HasMetaAny) > 0 {
		args = append(args, pq.Array(filter.HasMetaAny))
		conditions = append(conditions, fmt.Sprintf("meta ?| $%d", len(args)))
	}
	if filter.MetaExists != "" {
		args = append(args, filter.MetaExists)
		conditions = append(conditions, fmt.Sprintf("meta ? $%d", len(args)))
	}
	if filter.MetaAbsent != "" {
		args = append(args, filter.MetaAbsent)
		conditions = append(conditions, fmt.Sprintf("NOT (meta ? $%d)", len(args)))
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}
