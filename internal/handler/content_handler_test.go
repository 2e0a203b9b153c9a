package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chroma-cms/agent-api/internal/dto"
	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/service"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
	"github.com/chroma-cms/agent-api/pkg/response"
)

type fakeContentService struct {
	getFn    func(id int64) (*models.Post, error)
	listFn   func(query dto.ListPostsQuery) ([]models.Post, int64, error)
	createFn func(req dto.CreatePostRequest) (*service.ContentResult, error)
	updateFn func(id int64, req dto.UpdatePostRequest) (*service.ContentResult, error)
	deleteFn func(id int64, query dto.DeletePostQuery) (*service.ContentResult, error)
}

func (f *fakeContentService) Get(_ context.Context, id int64) (*models.Post, error) {
	return f.getFn(id)
}

func (f *fakeContentService) List(_ context.Context, query dto.ListPostsQuery) ([]models.Post, int64, error) {
	return f.listFn(query)
}

func (f *fakeContentService) Create(_ context.Context, req dto.CreatePostRequest, _ service.Actor) (*service.ContentResult, error) {
	return f.createFn(req)
}

func (f *fakeContentService) Update(_ context.Context, id int64, req dto.UpdatePostRequest, _ service.Actor) (*service.ContentResult, error) {
	return f.updateFn(id, req)
}

func (f *fakeContentService) Delete(_ context.Context, id int64, query dto.DeletePostQuery, _ service.Actor) (*service.ContentResult, error) {
	return f.deleteFn(id, query)
}

func newContentRouter(svc *fakeContentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewContentHandler(svc)
	r := gin.New()
	r.GET("/content", h.List)
	r.GET("/content/:id", h.Get)
	r.POST("/content", h.Create)
	r.PATCH("/content/:id", h.Update)
	r.DELETE("/content/:id", h.Delete)
	return r
}

func TestContentHandlerListFiltersPostType(t *testing.T) {
	svc := &fakeContentService{
		listFn: func(query dto.ListPostsQuery) ([]models.Post, int64, error) {
			assert.Equal(t, models.PostTypePage, query.PostType)
			return []models.Post{{ID: 1, PostType: models.PostTypePage}}, 1, nil
		},
	}
	r := newContentRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/content?post_type=page", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestContentHandlerGetNotFound(t *testing.T) {
	svc := &fakeContentService{
		getFn: func(id int64) (*models.Post, error) {
			return nil, appErrors.ErrNotFound
		},
	}
	r := newContentRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/content/9", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrNotFound.Code)
}

func TestContentHandlerCreate(t *testing.T) {
	svc := &fakeContentService{
		createFn: func(req dto.CreatePostRequest) (*service.ContentResult, error) {
			assert.Equal(t, "Hello", req.Title)
			return &service.ContentResult{
				Post: &models.Post{ID: 12, Title: req.Title, PostType: models.PostTypePost},
			}, nil
		},
	}
	r := newContentRouter(svc)

	body, _ := json.Marshal(map[string]any{"title": "Hello"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/content", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestContentHandlerCreateAcceptsLegacyFieldNames(t *testing.T) {
	svc := &fakeContentService{
		createFn: func(req dto.CreatePostRequest) (*service.ContentResult, error) {
			assert.Equal(t, "Hello", req.Title)
			assert.Equal(t, "body", req.Content)
			assert.Equal(t, "hello-slug", req.Slug)
			return &service.ContentResult{Post: &models.Post{ID: 13, Title: req.Title}}, nil
		},
	}
	r := newContentRouter(svc)

	body, _ := json.Marshal(map[string]any{
		"post_title":   "Hello",
		"post_content": "body",
		"post_name":    "hello-slug",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/content", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestContentHandlerCreateDryRunStaysOK(t *testing.T) {
	svc := &fakeContentService{
		createFn: func(req dto.CreatePostRequest) (*service.ContentResult, error) {
			return &service.ContentResult{
				Post:   &models.Post{Title: req.Title},
				DryRun: true,
				PolicyBlocks: []models.PolicyBlock{
					{Key: "_chroma_seo_title", Reason: "seo_managed", PreferredRoute: "/agent/v1/seo/meta/{id}"},
				},
			}, nil
		},
	}
	r := newContentRouter(svc)

	body, _ := json.Marshal(map[string]any{"title": "Hello", "dry_run": true, "meta": map[string]any{"_chroma_seo_title": "x"}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/content", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.DryRun)
	assert.True(t, *env.DryRun)
	require.Len(t, env.WritePolicyBlocks, 1)
	assert.Equal(t, "_chroma_seo_title", env.WritePolicyBlocks[0].Key)
}

func TestContentHandlerUpdateStrictMismatch(t *testing.T) {
	svc := &fakeContentService{
		updateFn: func(id int64, req dto.UpdatePostRequest) (*service.ContentResult, error) {
			assert.True(t, req.StrictWrite)
			return &service.ContentResult{
					Mismatches: map[string]any{"title": map[string]any{"expected": "New", "actual": "Other"}},
				}, appErrors.WithDetails(appErrors.ErrWriteIntegrity,
					map[string]any{"write_mismatches": map[string]any{"title": "drifted"}})
		},
	}
	r := newContentRouter(svc)

	body, _ := json.Marshal(map[string]any{"title": "New", "strict_write": true})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/content/3", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Contains(t, env.WriteMismatches, "title")
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrWriteIntegrity.Code, env.Error.Code)
}

func TestContentHandlerUpdate(t *testing.T) {
	svc := &fakeContentService{
		updateFn: func(id int64, req dto.UpdatePostRequest) (*service.ContentResult, error) {
			require.NotNil(t, req.Title)
			return &service.ContentResult{
				Post: &models.Post{ID: id, Title: *req.Title},
				Diff: map[string]any{"title": map[string]any{"from": "Old", "to": *req.Title}},
			}, nil
		},
	}
	r := newContentRouter(svc)

	body, _ := json.Marshal(map[string]any{"title": "New"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/content/3", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Contains(t, env.Diff, "title")
}

func TestContentHandlerUpdateReportsMismatchesOnSuccess(t *testing.T) {
	svc := &fakeContentService{
		updateFn: func(id int64, req dto.UpdatePostRequest) (*service.ContentResult, error) {
			assert.False(t, req.StrictWrite)
			return &service.ContentResult{
				Post:       &models.Post{ID: id, Title: *req.Title},
				Diff:       map[string]any{"title": map[string]any{"from": "Old", "to": *req.Title}},
				Mismatches: map[string]any{"title": map[string]any{"expected": "New", "actual": "Filtered"}},
			}, nil
		},
	}
	r := newContentRouter(svc)

	body, _ := json.Marshal(map[string]any{"title": "New"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/content/3", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Contains(t, env.WriteMismatches, "title")
}

func TestContentHandlerDeleteForce(t *testing.T) {
	svc := &fakeContentService{
		deleteFn: func(id int64, query dto.DeletePostQuery) (*service.ContentResult, error) {
			assert.True(t, query.Force)
			return &service.ContentResult{Post: &models.Post{ID: id, Status: models.PostStatusTrash}}, nil
		},
	}
	r := newContentRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/content/3?force=true", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
