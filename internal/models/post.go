package models

import "time"

// Post types served by the content routes.
const (
	PostTypePost = "post"
	PostTypePage = "page"
)

// Post statuses accepted through the write surface.
const (
	PostStatusDraft   = "draft"
	PostStatusPending = "pending"
	PostStatusPublish = "publish"
	PostStatusPrivate = "private"
	PostStatusTrash   = "trash"
)

// Post is a content entry (posts and pages share the table, split by
// post_type).
type Post struct {
	ID         int64      `db:"id" json:"id"`
	PostType   string     `db:"post_type" json:"post_type"`
	Title      string     `db:"title" json:"title"`
	Slug       string     `db:"slug" json:"slug"`
	Content    string     `db:"content" json:"content"`
	Excerpt    string     `db:"excerpt" json:"excerpt"`
	Status     string     `db:"status" json:"status"`
	Author     string     `db:"author" json:"author"`
	Meta       JSONMap    `db:"meta" json:"meta"`
	Taxonomies JSONMap    `db:"taxonomies" json:"taxonomies"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// PostFilter narrows content listings. The meta fields filter on the
// presence of JSONB meta keys (schema inventory queries).
type PostFilter struct {
	PostType   string
	Status     string
	Search     string
	HasMetaAny []string
	MetaExists string
	MetaAbsent string
	Page       int
	Limit      int
}
