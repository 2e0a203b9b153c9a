package dto

import "encoding/json"

// CreatePostRequest creates a post or page. Every write is re-read and
// verified after persistence; StrictWrite escalates verification drift from
// a warning to a failure.
type CreatePostRequest struct {
	PostType    string              `json:"post_type" validate:"omitempty,oneof=post page"`
	Title       string              `json:"title" validate:"required,min=1"`
	Slug        string              `json:"slug" validate:"omitempty,max=200"`
	Content     string              `json:"content"`
	Excerpt     string              `json:"excerpt"`
	Status      string              `json:"status" validate:"omitempty,oneof=draft pending publish private"`
	Meta        map[string]any      `json:"meta,omitempty"`
	Taxonomies  map[string][]string `json:"taxonomies,omitempty"`
	StrictWrite bool                `json:"strict_write"`
	DryRun      bool                `json:"dry_run"`
}

// UpdatePostRequest patches a post. Nil fields are left untouched. The
// stored row is re-read after every write and compared against the intended
// values; StrictWrite turns any drift into a failure instead of a
// write_mismatches report.
type UpdatePostRequest struct {
	Title       *string             `json:"title,omitempty" validate:"omitempty,min=1"`
	Slug        *string             `json:"slug,omitempty" validate:"omitempty,max=200"`
	Content     *string             `json:"content,omitempty"`
	Excerpt     *string             `json:"excerpt,omitempty"`
	Status      *string             `json:"status,omitempty" validate:"omitempty,oneof=draft pending publish private trash"`
	Meta        map[string]any      `json:"meta,omitempty"`
	Taxonomies  map[string][]string `json:"taxonomies,omitempty"`
	StrictWrite bool                `json:"strict_write"`
	DryRun      bool                `json:"dry_run"`
}

// postFieldAliases maps legacy field names still used by older agent
// clients onto the canonical ones. Canonical names win when both appear.
type postFieldAliases struct {
	PostTitle   *string `json:"post_title"`
	PostContent *string `json:"post_content"`
	PostExcerpt *string `json:"post_excerpt"`
	PostName    *string `json:"post_name"`
	PostStatus  *string `json:"post_status"`
}

// UnmarshalJSON accepts post_title/post_content/post_excerpt/post_name/
// post_status as aliases for the canonical field names.
func (r *CreatePostRequest) UnmarshalJSON(data []byte) error {
	type plain CreatePostRequest
	aux := struct {
		*plain
		postFieldAliases
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.Title == "" && aux.PostTitle != nil {
		r.Title = *aux.PostTitle
	}
	if r.Content == "" && aux.PostContent != nil {
		r.Content = *aux.PostContent
	}
	if r.Excerpt == "" && aux.PostExcerpt != nil {
		r.Excerpt = *aux.PostExcerpt
	}
	if r.Slug == "" && aux.PostName != nil {
		r.Slug = *aux.PostName
	}
	if r.Status == "" && aux.PostStatus != nil {
		r.Status = *aux.PostStatus
	}
	return nil
}

// UnmarshalJSON accepts the same legacy aliases as CreatePostRequest.
func (r *UpdatePostRequest) UnmarshalJSON(data []byte) error {
	type plain UpdatePostRequest
	aux := struct {
		*plain
		postFieldAliases
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.Title == nil {
		r.Title = aux.PostTitle
	}
	if r.Content == nil {
		r.Content = aux.PostContent
	}
	if r.Excerpt == nil {
		r.Excerpt = aux.PostExcerpt
	}
	if r.Slug == nil {
		r.Slug = aux.PostName
	}
	if r.Status == nil {
		r.Status = aux.PostStatus
	}
	return nil
}

// DeletePostQuery controls delete behavior. Without force the post is
// trashed; with force it is removed.
type DeletePostQuery struct {
	Force  bool `form:"force"`
	DryRun bool `form:"dry_run"`
}

// ListPostsQuery filters content listings.
type ListPostsQuery struct {
	PostType string `form:"post_type" validate:"omitempty,oneof=post page"`
	Status   string `form:"status" validate:"omitempty,oneof=draft pending publish private trash"`
	Search   string `form:"search" validate:"omitempty,max=200"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	Limit    int    `form:"limit" validate:"omitempty,min=1,max=200"`
}

// UpdateSEOMetaRequest writes allowlisted SEO meta fields on a post.
type UpdateSEOMetaRequest struct {
	Meta   map[string]any `json:"meta" validate:"required,min=1"`
	DryRun bool           `json:"dry_run"`
}

// UpdateSchemaRequest writes the fixed schema meta key set on a post.
// Values may use short aliases (schema_type, needs_review, ...) for the
// underscored meta keys; a null value deletes the key.
type UpdateSchemaRequest struct {
	Values      map[string]any `json:"values" validate:"required,min=1"`
	StrictWrite bool           `json:"strict_write"`
	DryRun      bool           `json:"dry_run"`
}

// ListSchemaQuery filters the schema inventory listing.
type ListSchemaQuery struct {
	PostType    string `form:"post_type" validate:"omitempty,oneof=post page"`
	Search      string `form:"search" validate:"omitempty,max=200"`
	NeedsReview *bool  `form:"needs_review"`
	IncludeData bool   `form:"include_data"`
	Page        int    `form:"page" validate:"omitempty,min=1"`
	Limit       int    `form:"limit" validate:"omitempty,min=1,max=100"`
}
