package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/chroma-cms/agent-api/internal/diff"
	"github.com/chroma-cms/agent-api/internal/dto"
	"github.com/chroma-cms/agent-api/internal/models"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
)

// SEOService writes the allowlisted per-post SEO meta fields. Site-wide SEO
// options go through the settings service; this covers the post-level half.
type SEOService struct {
	posts     PostRepository
	audit     Auditor
	allowlist []string
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSEOService builds an SEO service around the post store.
func NewSEOService(posts PostRepository, audit Auditor, metaAllowlist []string, logger *zap.Logger) *SEOService {
	return &SEOService{
		posts:     posts,
		audit:     audit,
		allowlist: metaAllowlist,
		validator: validator.New(),
		logger:    logger,
	}
}

// ReadMeta returns the allowlisted SEO meta for a post. Absent fields come
// back as nil so agents see the full writable set.
func (s *SEOService) ReadMeta(ctx context.Context, postID int64) (map[string]any, []string, error) {
	post, err := getPost(ctx, s.posts, postID)
	if err != nil {
		return nil, nil, err
	}

	values := make(map[string]any, len(s.allowlist))
	for _, key := range s.allowlist {
		values[key] = post.Meta[key]
	}
	return values, s.allowlist, nil
}

// UpdateMeta writes allowlisted SEO meta fields on a post. Keys outside the
// allowlist are reported as blocked and skipped, matching the settings
// surfaces.
func (s *SEOService) UpdateMeta(ctx context.Context, postID int64, req dto.UpdateSEOMetaRequest, actor Actor) (*WriteResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrValidation, err)
	}

	post, err := getPost(ctx, s.posts, postID)
	if err != nil {
		return nil, err
	}

	allowed, blocked := partitionKeys(req.Meta, s.allowlist)

	result := &WriteResult{
		Diff:        map[string]any{},
		BlockedKeys: blocked,
		Allowlist:   s.allowlist,
		DryRun:      req.DryRun,
	}
	if len(blocked) > 0 {
		result.Warning = "keys outside the SEO meta allowlist were not written: " + strings.Join(blocked, ", ")
	}

	changed := map[string]any{}
	beforeVals := map[string]any{}
	for key, newValue := range allowed {
		change := diff.Compare(post.Meta[key], newValue)
		if len(change) == 0 {
			continue
		}
		result.Diff[key] = change
		changed[key] = newValue
		beforeVals[key] = post.Meta[key]
	}

	result.Values = make(map[string]any, len(s.allowlist))
	for _, key := range s.allowlist {
		result.Values[key] = post.Meta[key]
	}

	if req.DryRun || len(changed) == 0 {
		if !req.DryRun && len(changed) == 0 && len(allowed) > 0 {
			result.Warning = strings.TrimSpace(result.Warning + " no values changed")
		}
		s.recordAudit(ctx, actor, "seo.update_meta", post, beforeVals, changed, result.Diff, req.DryRun, nil)
		return result, nil
	}

	if post.Meta == nil {
		post.Meta = models.JSONMap{}
	}
	for key, value := range changed {
		post.Meta[key] = value
		result.Values[key] = value
	}

	if err := s.posts.Update(ctx, post); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	changedKeys := make([]string, 0, len(changed))
	for key := range changed {
		changedKeys = append(changedKeys, key)
	}
	sort.Strings(changedKeys)

	s.recordAudit(ctx, actor, "seo.update_meta", post, beforeVals, changed, result.Diff, false,
		models.JSONMap{"keys": strings.Join(changedKeys, ",")})

	return result, nil
}

func (s *SEOService) recordAudit(ctx context.Context, actor Actor, action string, post *models.Post, before, after, change map[string]any, dryRun bool, meta models.JSONMap) {
	s.audit.Record(ctx, actor.Stamp(&models.AuditEntry{
		Action:     action,
		Scope:      models.ScopeWriteSEO,
		TargetType: post.PostType,
		TargetID:   fmt.Sprintf("%d", post.ID),
		DryRun:     dryRun,
		Before:     models.JSONMap(before),
		After:      models.JSONMap(after),
		Diff:       models.JSONMap(change),
		Meta:       meta,
		StatusCode: 200,
	}))
}

// Schema meta keys managed through the schema routes. This is a fixed set,
// not a configured allowlist; agents may use the short aliases below.
var schemaMetaKeys = []string{
	"_chroma_post_schemas",
	"_chroma_schema_override",
	"_chroma_schema_type",
	"_chroma_schema_data",
	"_chroma_schema_confidence",
	"_chroma_needs_review",
	"_chroma_review_reason",
	"_chroma_schema_history",
	"_chroma_schema_validation_status",
	"_chroma_schema_errors",
}

var schemaAliases = map[string]string{
	"schemas":           "_chroma_post_schemas",
	"schema_override":   "_chroma_schema_override",
	"schema_type":       "_chroma_schema_type",
	"schema_data":       "_chroma_schema_data",
	"schema_confidence": "_chroma_schema_confidence",
	"needs_review":      "_chroma_needs_review",
	"review_reason":     "_chroma_review_reason",
	"schema_history":    "_chroma_schema_history",
	"validation_status": "_chroma_schema_validation_status",
	"schema_errors":     "_chroma_schema_errors",
}

// SchemaKeys returns the fixed schema meta key set.
func (s *SEOService) SchemaKeys() []string {
	return append([]string(nil), schemaMetaKeys...)
}

// SchemaItem is one row of the schema inventory listing.
type SchemaItem struct {
	PostID           int64          `json:"post_id"`
	PostType         string         `json:"post_type"`
	Status           string         `json:"status"`
	Title            string         `json:"title"`
	Slug             string         `json:"slug"`
	UpdatedAt        time.Time      `json:"updated_at"`
	SchemaCount      int            `json:"schema_count"`
	HasOverride      bool           `json:"has_schema_override"`
	NeedsReview      bool           `json:"needs_review"`
	ValidationStatus any            `json:"validation_status,omitempty"`
	Schema           map[string]any `json:"schema,omitempty"`
}

// ReadSchema returns the schema meta of one post, keyed by the full meta
// key names.
func (s *SEOService) ReadSchema(ctx context.Context, postID int64) (map[string]any, error) {
	post, err := getPost(ctx, s.posts, postID)
	if err != nil {
		return nil, err
	}
	return schemaValues(post), nil
}

// UpdateSchema writes schema meta on a post. Keys outside the fixed set are
// reported as blocked; a null value deletes the key. With StrictWrite the
// persisted row is re-read and any drift fails the request.
func (s *SEOService) UpdateSchema(ctx context.Context, postID int64, req dto.UpdateSchemaRequest, actor Actor) (*WriteResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrValidation, err)
	}

	post, err := getPost(ctx, s.posts, postID)
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]any, len(req.Values))
	blocked := []string{}
	for key, value := range req.Values {
		full := key
		if mapped, ok := schemaAliases[key]; ok {
			full = mapped
		}
		if !schemaKeyKnown(full) {
			blocked = append(blocked, key)
			continue
		}
		resolved[full] = value
	}
	sort.Strings(blocked)

	result := &WriteResult{
		Diff:        map[string]any{},
		BlockedKeys: blocked,
		Allowlist:   s.SchemaKeys(),
		DryRun:      req.DryRun,
	}
	if len(blocked) > 0 {
		result.Warning = "keys outside the schema key set were not written: " + strings.Join(blocked, ", ")
	}

	beforeVals := map[string]any{}
	for key, newValue := range resolved {
		beforeVals[key] = post.Meta[key]
		change := diff.Compare(post.Meta[key], newValue)
		if len(change) > 0 {
			result.Diff[key] = change
		}
	}

	if req.DryRun {
		result.Values = resolved
		s.recordAudit(ctx, actor, "seo.update_schema", post, beforeVals, resolved, result.Diff, true, nil)
		return result, nil
	}

	if post.Meta == nil {
		post.Meta = models.JSONMap{}
	}
	for key, value := range resolved {
		if value == nil {
			delete(post.Meta, key)
			continue
		}
		post.Meta[key] = value
	}

	if err := s.posts.Update(ctx, post); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	persisted, err := getPost(ctx, s.posts, postID)
	if err != nil {
		return nil, err
	}
	mismatches := map[string]any{}
	for key, expected := range resolved {
		actual := persisted.Meta[key]
		if len(diff.Compare(expected, actual)) > 0 {
			mismatches[key] = map[string]any{"expected": expected, "actual": actual}
		}
	}

	result.Values = schemaValues(persisted)
	result.Mismatches = mismatches

	entry := actor.Stamp(&models.AuditEntry{
		Action:     "seo.update_schema",
		Scope:      models.ScopeWriteSEO,
		TargetType: post.PostType,
		TargetID:   fmt.Sprintf("%d", post.ID),
		Before:     models.JSONMap(beforeVals),
		After:      models.JSONMap(resolved),
		Diff:       models.JSONMap(result.Diff),
		StatusCode: 200,
	})
	if req.StrictWrite && len(mismatches) > 0 {
		entry.StatusCode = 409
		entry.ErrorCode = appErrors.ErrWriteIntegrity.Code
	}
	s.audit.Record(ctx, entry)

	if req.StrictWrite && len(mismatches) > 0 {
		return result, appErrors.WithDetails(appErrors.ErrWriteIntegrity,
			map[string]any{"post_id": postID, "write_mismatches": mismatches})
	}
	return result, nil
}

// ListSchema inventories posts carrying schema meta.
func (s *SEOService) ListSchema(ctx context.Context, query dto.ListSchemaQuery) ([]SchemaItem, int64, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrValidation, err)
	}

	page, limit := query.Page, query.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	filter := models.PostFilter{
		PostType: query.PostType,
		Search:   query.Search,
		HasMetaAny: []string{
			"_chroma_post_schemas",
			"_chroma_schema_override",
			"_chroma_schema_data",
		},
		Page:  page,
		Limit: limit,
	}
	if query.NeedsReview != nil {
		if *query.NeedsReview {
			filter.MetaExists = "_chroma_needs_review"
		} else {
			filter.MetaAbsent = "_chroma_needs_review"
		}
	}

	posts, err := s.posts.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	total, err := s.posts.Count(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	items := make([]SchemaItem, 0, len(posts))
	for i := range posts {
		post := &posts[i]
		item := SchemaItem{
			PostID:           post.ID,
			PostType:         post.PostType,
			Status:           post.Status,
			Title:            post.Title,
			Slug:             post.Slug,
			UpdatedAt:        post.UpdatedAt,
			SchemaCount:      schemaCount(post.Meta["_chroma_post_schemas"]),
			HasOverride:      post.Meta["_chroma_schema_override"] != nil,
			NeedsReview:      post.Meta["_chroma_needs_review"] != nil,
			ValidationStatus: post.Meta["_chroma_schema_validation_status"],
		}
		if query.IncludeData {
			item.Schema = schemaValues(post)
		}
		items = append(items, item)
	}
	return items, total, nil
}

func schemaValues(post *models.Post) map[string]any {
	values := make(map[string]any, len(schemaMetaKeys))
	for _, key := range schemaMetaKeys {
		values[key] = post.Meta[key]
	}
	return values
}

func schemaKeyKnown(key string) bool {
	for _, known := range schemaMetaKeys {
		if key == known {
			return true
		}
	}
	return false
}

func schemaCount(v any) int {
	switch t := v.(type) {
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	default:
		return 0
	}
}

func getPost(ctx context.Context, repo PostRepository, id int64) (*models.Post, error) {
	post, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return post, nil
}
