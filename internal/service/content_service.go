package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/chroma-cms/agent-api/internal/diff"
	"github.com/chroma-cms/agent-api/internal/dto"
	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/repository"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
)

// PostRepository is the storage surface the content service needs.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	List(ctx context.Context, filter models.PostFilter) ([]models.Post, error)
	Count(ctx context.Context, filter models.PostFilter) (int64, error)
	Update(ctx context.Context, post *models.Post) error
	Trash(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64, at time.Time) error
}

// MetaPolicy decides which meta keys the generic content routes may write.
// SEO-managed keys are steered to the SEO routes; protected keys (leading
// underscore) are refused outright.
type MetaPolicy struct {
	seoKeys   map[string]struct{}
	seoRoute  string
	protected string
}

// NewMetaPolicy builds the content meta write policy. seoManagedKeys come
// from the SEO meta allowlist so the two surfaces stay in sync.
func NewMetaPolicy(seoManagedKeys []string, seoRouteTemplate string) *MetaPolicy {
	set := make(map[string]struct{}, len(seoManagedKeys))
	for _, k := range seoManagedKeys {
		set[k] = struct{}{}
	}
	return &MetaPolicy{
		seoKeys:   set,
		seoRoute:  seoRouteTemplate,
		protected: "_",
	}
}

// Check returns policy blocks for every refused key in the requested meta.
func (p *MetaPolicy) Check(meta map[string]any) []models.PolicyBlock {
	blocks := []models.PolicyBlock{}
	for key := range meta {
		if _, seo := p.seoKeys[key]; seo {
			blocks = append(blocks, models.PolicyBlock{
				Key:            key,
				Reason:         "SEO meta is managed through the SEO routes",
				PreferredRoute: p.seoRoute,
			})
			continue
		}
		if strings.HasPrefix(key, p.protected) {
			blocks = append(blocks, models.PolicyBlock{
				Key:    key,
				Reason: "protected meta keys cannot be written through the content routes",
			})
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Key < blocks[j].Key })
	return blocks
}

// ContentService manages posts and pages, including the content-side meta
// write policy and strict write verification.
type ContentService struct {
	repo      PostRepository
	policy    *MetaPolicy
	audit     Auditor
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewContentService builds a content service.
func NewContentService(repo PostRepository, policy *MetaPolicy, audit Auditor, logger *zap.Logger) *ContentService {
	return &ContentService{
		repo:      repo,
		policy:    policy,
		audit:     audit,
		validator: validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// ContentResult reports the effect of a content write.
type ContentResult struct {
	Post         *models.Post
	Diff         map[string]any
	PolicyBlocks []models.PolicyBlock
	Mismatches   map[string]any
	Warning      string
	DryRun       bool
}

// Get loads one post.
func (s *ContentService) Get(ctx context.Context, id int64) (*models.Post, error) {
	post, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, appErrors.ErrNotFound
	}
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	return post, nil
}

// List returns posts plus the filtered total.
func (s *ContentService) List(ctx context.Context, query dto.ListPostsQuery) ([]models.Post, int64, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrValidation, err)
	}
	page, limit := normalizePage(query.Page, query.Limit)
	filter := models.PostFilter{
		PostType: query.PostType,
		Status:   query.Status,
		Search:   query.Search,
		Page:     page,
		Limit:    limit,
	}

	posts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	return posts, total, nil
}

// Create inserts a post. Meta keys refused by policy fail the request with
// the full block list unless this is a dry run, which reports them instead.
func (s *ContentService) Create(ctx context.Context, req dto.CreatePostRequest, actor Actor) (*ContentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrValidation, err)
	}

	blocks := s.policy.Check(req.Meta)
	if len(blocks) > 0 && !req.DryRun {
		return nil, policyError(blocks)
	}

	post := &models.Post{
		PostType:   defaultString(req.PostType, "post"),
		Title:      req.Title,
		Slug:       defaultString(req.Slug, slugify(req.Title)),
		Content:    req.Content,
		Excerpt:    req.Excerpt,
		Status:     defaultString(req.Status, models.PostStatusDraft),
		Author:     actor.Label,
		Meta:       models.JSONMap(withoutBlocked(req.Meta, blocks)),
		Taxonomies: taxonomyMap(req.Taxonomies),
	}

	after := postDocument(post)
	result := &ContentResult{
		Post:         post,
		Diff:         diff.Compare(nil, after),
		PolicyBlocks: blocks,
		DryRun:       req.DryRun,
	}
	if req.DryRun {
		s.recordAudit(ctx, actor, "content.create", post, nil, after, result.Diff, auditFlags{dryRun: true}, 200, "")
		return result, nil
	}

	if err := s.repo.Create(ctx, post); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	intended := intendedCreate(post)
	mismatches, err := s.verifyPersisted(ctx, post.ID, intended)
	if err != nil {
		return nil, err
	}
	result.Mismatches = mismatches

	status, errCode := 201, ""
	if req.StrictWrite && len(mismatches) > 0 {
		status, errCode = 409, appErrors.ErrWriteIntegrity.Code
	}
	s.recordAudit(ctx, actor, "content.create", post, nil, after, result.Diff, auditFlags{}, status, errCode)

	if req.StrictWrite && len(mismatches) > 0 {
		return result, appErrors.WithDetails(appErrors.ErrWriteIntegrity,
			map[string]any{"post_id": post.ID, "write_mismatches": mismatches})
	}
	return result, nil
}

// Update patches a post. After every persisted write the stored row is
// re-read and compared field by field against the intended values; drift is
// reported as write mismatches, and fails the request when StrictWrite is
// set.
func (s *ContentService) Update(ctx context.Context, id int64, req dto.UpdatePostRequest, actor Actor) (*ContentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrValidation, err)
	}

	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	blocks := s.policy.Check(req.Meta)
	if len(blocks) > 0 && !req.DryRun {
		return nil, policyError(blocks)
	}

	before := postDocument(post)
	applyPatch(post, req, blocks)
	after := postDocument(post)

	result := &ContentResult{
		Post:         post,
		Diff:         diff.Compare(before, after),
		PolicyBlocks: blocks,
		DryRun:       req.DryRun,
	}
	if req.DryRun {
		s.recordAudit(ctx, actor, "content.update", post, before, after, result.Diff, auditFlags{dryRun: true}, 200, "")
		return result, nil
	}
	if len(result.Diff) == 0 {
		result.Warning = "no fields changed"
		s.recordAudit(ctx, actor, "content.update", post, before, after, result.Diff, auditFlags{}, 200, "")
		return result, nil
	}

	if err := s.repo.Update(ctx, post); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	intended := intendedWrites(req, post, blocks)
	mismatches, err := s.verifyPersisted(ctx, id, intended)
	if err != nil {
		return nil, err
	}
	result.Mismatches = mismatches

	status, errCode := 200, ""
	if req.StrictWrite && len(mismatches) > 0 {
		status, errCode = 409, appErrors.ErrWriteIntegrity.Code
	}
	s.recordAudit(ctx, actor, "content.update", post, before, after, result.Diff, auditFlags{}, status, errCode)

	if req.StrictWrite && len(mismatches) > 0 {
		return result, appErrors.WithDetails(appErrors.ErrWriteIntegrity,
			map[string]any{"post_id": id, "write_mismatches": mismatches})
	}
	return result, nil
}

// Delete trashes a post, or removes it when force is set.
func (s *ContentService) Delete(ctx context.Context, id int64, query dto.DeletePostQuery, actor Actor) (*ContentResult, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	action := "content.trash"
	if query.Force {
		action = "content.delete"
	}
	before := map[string]any{"status": post.Status}
	after := map[string]any{"status": deletedStatus(query.Force)}
	result := &ContentResult{
		Post:   post,
		Diff:   diff.Compare(before, after),
		DryRun: query.DryRun,
	}
	if query.DryRun {
		s.recordAudit(ctx, actor, action, post, before, after, result.Diff, auditFlags{dryRun: true, force: query.Force}, 200, "")
		return result, nil
	}

	if query.Force {
		err = s.repo.Delete(ctx, id, s.now())
	} else {
		err = s.repo.Trash(ctx, id)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, appErrors.ErrNotFound
	}
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	s.recordAudit(ctx, actor, action, post, before, after, result.Diff, auditFlags{force: query.Force}, 200, "")
	return result, nil
}

type auditFlags struct {
	dryRun bool
	force  bool
}

func (s *ContentService) recordAudit(ctx context.Context, actor Actor, action string, post *models.Post, before, after, change map[string]any, flags auditFlags, status int, errCode string) {
	meta := models.JSONMap{"post_type": post.PostType}
	if flags.force {
		meta["force"] = true
	}
	s.audit.Record(ctx, actor.Stamp(&models.AuditEntry{
		Action:     action,
		Scope:      models.ScopeWriteContent,
		TargetType: post.PostType,
		TargetID:   fmt.Sprintf("%d", post.ID),
		DryRun:     flags.dryRun,
		Before:     models.JSONMap(before),
		After:      models.JSONMap(after),
		Diff:       models.JSONMap(change),
		Meta:       meta,
		ErrorCode:  errCode,
		StatusCode: status,
	}))
}

// verifyPersisted re-reads the stored row and compares it against the
// intended values of this write.
func (s *ContentService) verifyPersisted(ctx context.Context, id int64, intended map[string]any) (map[string]any, error) {
	stored, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return verifyWrite(intended, observedWrites(intended, stored)), nil
}

// intendedWrites lists the fields the request asked to change and the values
// they should hold after the write. Meta keys are tracked individually; a
// deleted key is intended to read back as absent.
func intendedWrites(req dto.UpdatePostRequest, post *models.Post, blocks []models.PolicyBlock) map[string]any {
	intended := map[string]any{}
	if req.Title != nil {
		intended["title"] = post.Title
	}
	if req.Slug != nil {
		intended["slug"] = post.Slug
	}
	if req.Content != nil {
		intended["content"] = post.Content
	}
	if req.Excerpt != nil {
		intended["excerpt"] = post.Excerpt
	}
	if req.Status != nil {
		intended["status"] = post.Status
	}
	for key := range withoutBlocked(req.Meta, blocks) {
		intended["meta."+key] = post.Meta[key]
	}
	if req.Taxonomies != nil {
		intended["taxonomies"] = map[string]any(post.Taxonomies)
	}
	return intended
}

// intendedCreate covers the whole document, since a create writes every
// field.
func intendedCreate(post *models.Post) map[string]any {
	intended := map[string]any{
		"title":      post.Title,
		"slug":       post.Slug,
		"content":    post.Content,
		"excerpt":    post.Excerpt,
		"status":     post.Status,
		"taxonomies": map[string]any(post.Taxonomies),
	}
	for key, value := range post.Meta {
		intended["meta."+key] = value
	}
	return intended
}

// observedWrites projects the stored row onto the intended field set.
func observedWrites(intended map[string]any, stored *models.Post) map[string]any {
	doc := postDocument(stored)
	observed := make(map[string]any, len(intended))
	for field := range intended {
		if key, isMeta := strings.CutPrefix(field, "meta."); isMeta {
			observed[field] = stored.Meta[key]
			continue
		}
		observed[field] = doc[field]
	}
	return observed
}

func applyPatch(post *models.Post, req dto.UpdatePostRequest, blocks []models.PolicyBlock) {
	if req.Title != nil {
		post.Title = *req.Title
	}
	if req.Slug != nil {
		post.Slug = *req.Slug
	}
	if req.Content != nil {
		post.Content = *req.Content
	}
	if req.Excerpt != nil {
		post.Excerpt = *req.Excerpt
	}
	if req.Status != nil {
		post.Status = *req.Status
	}
	if req.Meta != nil {
		if post.Meta == nil {
			post.Meta = models.JSONMap{}
		}
		for key, value := range withoutBlocked(req.Meta, blocks) {
			// A null meta value deletes the key.
			if value == nil {
				delete(post.Meta, key)
				continue
			}
			post.Meta[key] = value
		}
	}
	if req.Taxonomies != nil {
		post.Taxonomies = taxonomyMap(req.Taxonomies)
	}
}

// postDocument is the diffable projection of a post.
func postDocument(post *models.Post) map[string]any {
	return map[string]any{
		"title":      post.Title,
		"slug":       post.Slug,
		"content":    post.Content,
		"excerpt":    post.Excerpt,
		"status":     post.Status,
		"meta":       map[string]any(post.Meta),
		"taxonomies": map[string]any(post.Taxonomies),
	}
}

func verifyWrite(intended map[string]any, observed map[string]any) map[string]any {
	mismatches := map[string]any{}
	for field, want := range intended {
		got := observed[field]
		if change := diff.Compare(want, got); len(change) > 0 {
			mismatches[field] = map[string]any{"expected": want, "actual": got}
		}
	}
	return mismatches
}

func policyError(blocks []models.PolicyBlock) error {
	detail := make([]any, len(blocks))
	for i, b := range blocks {
		detail[i] = map[string]any{
			"key":             b.Key,
			"reason":          b.Reason,
			"preferred_route": b.PreferredRoute,
		}
	}
	return appErrors.WithDetails(appErrors.ErrWritePolicyBlocked,
		map[string]any{"write_policy_blocks": detail})
}

func withoutBlocked(meta map[string]any, blocks []models.PolicyBlock) map[string]any {
	if len(meta) == 0 {
		return map[string]any{}
	}
	blocked := make(map[string]struct{}, len(blocks))
	for _, b := range blocks {
		blocked[b.Key] = struct{}{}
	}
	out := make(map[string]any, len(meta))
	for key, value := range meta {
		if _, skip := blocked[key]; !skip {
			out[key] = value
		}
	}
	return out
}

func taxonomyMap(in map[string][]string) models.JSONMap {
	if in == nil {
		return models.JSONMap{}
	}
	out := make(models.JSONMap, len(in))
	for taxonomy, terms := range in {
		values := make([]any, len(terms))
		for i, term := range terms {
			values[i] = term
		}
		out[taxonomy] = values
	}
	return out
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	lastDash := false
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func deletedStatus(force bool) string {
	if force {
		return "deleted"
	}
	return models.PostStatusTrash
}
