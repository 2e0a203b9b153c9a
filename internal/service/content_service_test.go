package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chroma-cms/agent-api/internal/dto"
	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/repository"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
)

type fakePostRepo struct {
	posts  map[int64]*models.Post
	nextID int64

	// createHook and updateHook mutate the stored row after the write,
	// simulating another writer changing the row between the write and the
	// verification read.
	createHook func(post *models.Post)
	updateHook func(post *models.Post)
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: map[int64]*models.Post{}, nextID: 1}
}

func (f *fakePostRepo) Create(ctx context.Context, post *models.Post) error {
	post.ID = f.nextID
	f.nextID++
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	copied := clonePost(post)
	f.posts[post.ID] = copied
	if f.createHook != nil {
		f.createHook(copied)
	}
	return nil
}

func (f *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	post, ok := f.posts[id]
	if !ok || post.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	return clonePost(post), nil
}

func (f *fakePostRepo) List(ctx context.Context, filter models.PostFilter) ([]models.Post, error) {
	out := []models.Post{}
	for _, post := range f.posts {
		if post.DeletedAt == nil {
			out = append(out, *clonePost(post))
		}
	}
	return out, nil
}

func (f *fakePostRepo) Count(ctx context.Context, filter models.PostFilter) (int64, error) {
	posts, _ := f.List(ctx, filter)
	return int64(len(posts)), nil
}

func (f *fakePostRepo) Update(ctx context.Context, post *models.Post) error {
	if _, ok := f.posts[post.ID]; !ok {
		return repository.ErrNotFound
	}
	f.posts[post.ID] = clonePost(post)
	if f.updateHook != nil {
		f.updateHook(f.posts[post.ID])
	}
	return nil
}

func (f *fakePostRepo) Trash(ctx context.Context, id int64) error {
	post, ok := f.posts[id]
	if !ok {
		return repository.ErrNotFound
	}
	post.Status = models.PostStatusTrash
	return nil
}

func (f *fakePostRepo) Delete(ctx context.Context, id int64, at time.Time) error {
	post, ok := f.posts[id]
	if !ok {
		return repository.ErrNotFound
	}
	post.DeletedAt = &at
	return nil
}

func clonePost(post *models.Post) *models.Post {
	copied := *post
	copied.Meta = models.JSONMap{}
	for k, v := range post.Meta {
		copied.Meta[k] = v
	}
	copied.Taxonomies = models.JSONMap{}
	for k, v := range post.Taxonomies {
		copied.Taxonomies[k] = v
	}
	return &copied
}

func newTestContentService(repo *fakePostRepo, audit *fakeAuditor) *ContentService {
	policy := NewMetaPolicy(
		[]string{"_chroma_seo_title", "_chroma_seo_description", "_chroma_canonical", "_chroma_noindex"},
		"/agent/v1/seo/meta/{id}",
	)
	return NewContentService(repo, policy, audit, zap.NewNop())
}

func TestContentCreate(t *testing.T) {
	repo := newFakePostRepo()
	audit := &fakeAuditor{}
	svc := newTestContentService(repo, audit)

	result, err := svc.Create(context.Background(), dto.CreatePostRequest{
		Title:   "Hello World",
		Content: "body",
		Meta:    map[string]any{"subtitle": "greetings"},
	}, Actor{KeyID: 7, Label: "bot"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Post.ID)
	assert.Equal(t, "hello-world", result.Post.Slug)
	assert.Equal(t, models.PostStatusDraft, result.Post.Status)
	assert.Equal(t, "greetings", result.Post.Meta["subtitle"])

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "content.create", audit.entries[0].Action)
}

func TestContentCreateSEOMetaBlocked(t *testing.T) {
	svc := newTestContentService(newFakePostRepo(), &fakeAuditor{})

	_, err := svc.Create(context.Background(), dto.CreatePostRequest{
		Title: "Post",
		Meta:  map[string]any{"_chroma_seo_title": "sneaky"},
	}, Actor{})

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrWritePolicyBlocked))
	appErr := appErrors.FromError(err)
	assert.Contains(t, appErr.Details, "write_policy_blocks")
}

func TestContentCreateDryRunReportsBlocks(t *testing.T) {
	repo := newFakePostRepo()
	svc := newTestContentService(repo, &fakeAuditor{})

	result, err := svc.Create(context.Background(), dto.CreatePostRequest{
		Title:  "Post",
		Meta:   map[string]any{"_chroma_seo_title": "x", "ok_key": "y"},
		DryRun: true,
	}, Actor{})
	require.NoError(t, err)

	require.Len(t, result.PolicyBlocks, 1)
	assert.Equal(t, "_chroma_seo_title", result.PolicyBlocks[0].Key)
	assert.Equal(t, "/agent/v1/seo/meta/{id}", result.PolicyBlocks[0].PreferredRoute)
	assert.Empty(t, repo.posts)
}

func TestContentCreateProtectedMetaBlocked(t *testing.T) {
	svc := newTestContentService(newFakePostRepo(), &fakeAuditor{})

	_, err := svc.Create(context.Background(), dto.CreatePostRequest{
		Title: "Post",
		Meta:  map[string]any{"_edit_lock": "1"},
	}, Actor{})
	assert.True(t, appErrors.Is(err, appErrors.ErrWritePolicyBlocked))
}

func TestContentUpdateDiff(t *testing.T) {
	repo := newFakePostRepo()
	audit := &fakeAuditor{}
	svc := newTestContentService(repo, audit)

	created, err := svc.Create(context.Background(), dto.CreatePostRequest{Title: "Original"}, Actor{})
	require.NoError(t, err)

	title := "Updated"
	result, err := svc.Update(context.Background(), created.Post.ID, dto.UpdatePostRequest{Title: &title}, Actor{})
	require.NoError(t, err)

	assert.Contains(t, result.Diff, "title")
	assert.Equal(t, "Updated", repo.posts[created.Post.ID].Title)
}

func TestContentUpdateStrictWriteMismatch(t *testing.T) {
	repo := newFakePostRepo()
	audit := &fakeAuditor{}
	svc := newTestContentService(repo, audit)

	created, err := svc.Create(context.Background(), dto.CreatePostRequest{Title: "Original"}, Actor{})
	require.NoError(t, err)

	repo.updateHook = func(post *models.Post) { post.Title = "Something Else" }

	title := "Updated"
	result, err := svc.Update(context.Background(), created.Post.ID, dto.UpdatePostRequest{
		Title:       &title,
		StrictWrite: true,
	}, Actor{})

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrWriteIntegrity))
	require.NotNil(t, result)
	assert.Contains(t, result.Mismatches, "title")

	entry := audit.entries[len(audit.entries)-1]
	assert.Equal(t, 409, entry.StatusCode)
	assert.Equal(t, appErrors.ErrWriteIntegrity.Code, entry.ErrorCode)
}

func TestContentUpdateStrictWriteMatch(t *testing.T) {
	repo := newFakePostRepo()
	svc := newTestContentService(repo, &fakeAuditor{})

	created, err := svc.Create(context.Background(), dto.CreatePostRequest{Title: "Original"}, Actor{})
	require.NoError(t, err)

	title := "Updated"
	result, err := svc.Update(context.Background(), created.Post.ID, dto.UpdatePostRequest{
		Title:       &title,
		StrictWrite: true,
	}, Actor{})
	require.NoError(t, err)
	assert.Empty(t, result.Mismatches)
}

func TestContentUpdateReportsMismatchesWithoutStrict(t *testing.T) {
	repo := newFakePostRepo()
	audit := &fakeAuditor{}
	svc := newTestContentService(repo, audit)

	created, err := svc.Create(context.Background(), dto.CreatePostRequest{Title: "Original"}, Actor{})
	require.NoError(t, err)

	repo.updateHook = func(post *models.Post) { post.Title = "Filtered Title" }

	title := "Updated"
	result, err := svc.Update(context.Background(), created.Post.ID, dto.UpdatePostRequest{Title: &title}, Actor{})
	require.NoError(t, err)
	assert.Contains(t, result.Mismatches, "title")

	entry := audit.entries[len(audit.entries)-1]
	assert.Equal(t, 200, entry.StatusCode)
	assert.Empty(t, entry.ErrorCode)
}

func TestContentCreateStrictWriteMismatch(t *testing.T) {
	repo := newFakePostRepo()
	svc := newTestContentService(repo, &fakeAuditor{})
	repo.createHook = func(post *models.Post) { post.Title = "Sanitized" }

	result, err := svc.Create(context.Background(), dto.CreatePostRequest{
		Title:       "Original",
		StrictWrite: true,
	}, Actor{})

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrWriteIntegrity))
	require.NotNil(t, result)
	assert.Contains(t, result.Mismatches, "title")
}

func TestContentUpdateNoChangeRecordsAudit(t *testing.T) {
	repo := newFakePostRepo()
	audit := &fakeAuditor{}
	svc := newTestContentService(repo, audit)

	created, err := svc.Create(context.Background(), dto.CreatePostRequest{Title: "Same"}, Actor{})
	require.NoError(t, err)

	title := "Same"
	result, err := svc.Update(context.Background(), created.Post.ID, dto.UpdatePostRequest{Title: &title}, Actor{})
	require.NoError(t, err)
	assert.Equal(t, "no fields changed", result.Warning)

	require.Len(t, audit.entries, 2)
	entry := audit.entries[1]
	assert.Equal(t, "content.update", entry.Action)
	assert.False(t, entry.DryRun)
	assert.Empty(t, entry.Diff)
}

func TestContentDeleteTrashByDefault(t *testing.T) {
	repo := newFakePostRepo()
	audit := &fakeAuditor{}
	svc := newTestContentService(repo, audit)

	created, err := svc.Create(context.Background(), dto.CreatePostRequest{Title: "Doomed"}, Actor{})
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), created.Post.ID, dto.DeletePostQuery{}, Actor{})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusTrash, repo.posts[created.Post.ID].Status)
	assert.Equal(t, "content.trash", audit.entries[len(audit.entries)-1].Action)
}

func TestContentDeleteForce(t *testing.T) {
	repo := newFakePostRepo()
	audit := &fakeAuditor{}
	svc := newTestContentService(repo, audit)

	created, err := svc.Create(context.Background(), dto.CreatePostRequest{Title: "Doomed"}, Actor{})
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), created.Post.ID, dto.DeletePostQuery{Force: true}, Actor{})
	require.NoError(t, err)
	assert.NotNil(t, repo.posts[created.Post.ID].DeletedAt)
	assert.Equal(t, "content.delete", audit.entries[len(audit.entries)-1].Action)
}

func TestContentGetNotFound(t *testing.T) {
	svc := newTestContentService(newFakePostRepo(), &fakeAuditor{})

	_, err := svc.Get(context.Background(), 404)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
