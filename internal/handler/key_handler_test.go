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
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
	"github.com/chroma-cms/agent-api/pkg/response"
)

type recordingAuditor struct {
	entries []*models.AuditEntry
}

func (a *recordingAuditor) Record(_ context.Context, entry *models.AuditEntry) {
	a.entries = append(a.entries, entry)
}

type fakeKeyService struct {
	createFn func(req dto.CreateKeyRequest) (*dto.MintedKeyResponse, error)
	getFn    func(id int64) (*dto.KeyResponse, error)
	listFn   func(query dto.ListKeysQuery) ([]dto.KeyResponse, int64, error)
	updateFn func(id int64, req dto.UpdateKeyRequest) (*dto.KeyResponse, error)
	rotateFn func(id int64) (*dto.MintedKeyResponse, error)
	revokeFn func(id int64) error
}

func (f *fakeKeyService) Create(_ context.Context, req dto.CreateKeyRequest) (*dto.MintedKeyResponse, error) {
	return f.createFn(req)
}

func (f *fakeKeyService) Get(_ context.Context, id int64) (*dto.KeyResponse, error) {
	return f.getFn(id)
}

func (f *fakeKeyService) List(_ context.Context, query dto.ListKeysQuery) ([]dto.KeyResponse, int64, error) {
	return f.listFn(query)
}

func (f *fakeKeyService) Update(_ context.Context, id int64, req dto.UpdateKeyRequest) (*dto.KeyResponse, error) {
	return f.updateFn(id, req)
}

func (f *fakeKeyService) Rotate(_ context.Context, id int64) (*dto.MintedKeyResponse, error) {
	return f.rotateFn(id)
}

func (f *fakeKeyService) Revoke(_ context.Context, id int64) error {
	return f.revokeFn(id)
}

func newKeyRouter(svc *fakeKeyService, audit *recordingAuditor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewKeyHandler(svc, audit)
	r := gin.New()
	r.POST("/keys", h.Create)
	r.GET("/keys", h.List)
	r.GET("/keys/:id", h.Get)
	r.PATCH("/keys/:id", h.Update)
	r.POST("/keys/:id/rotate", h.Rotate)
	r.POST("/keys/:id/revoke", h.Revoke)
	return r
}

func TestKeyHandlerCreate(t *testing.T) {
	audit := &recordingAuditor{}
	svc := &fakeKeyService{
		createFn: func(req dto.CreateKeyRequest) (*dto.MintedKeyResponse, error) {
			assert.Equal(t, "ci-agent", req.Label)
			return &dto.MintedKeyResponse{
				KeyResponse: dto.KeyResponse{ID: 7, Label: req.Label, KeyPrefix: "ck_live_7.abcdefghi", Status: models.KeyStatusActive},
				Token:       "ck_live_7.secret-value",
			}, nil
		},
	}
	r := newKeyRouter(svc, audit)

	body, _ := json.Marshal(map[string]any{"label": "ci-agent", "scopes": []string{"read:content"}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/keys", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	data, _ := json.Marshal(env.Data)
	assert.Contains(t, string(data), "ck_live_7.secret-value")

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "keys.create", audit.entries[0].Action)
	assert.Equal(t, "api_key", audit.entries[0].TargetType)
	assert.Equal(t, "7", audit.entries[0].TargetID)
}

func TestKeyHandlerCreateRejectsBadBody(t *testing.T) {
	r := newKeyRouter(&fakeKeyService{}, &recordingAuditor{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/keys", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrValidation.Code)
}

func TestKeyHandlerGetNotFound(t *testing.T) {
	svc := &fakeKeyService{
		getFn: func(id int64) (*dto.KeyResponse, error) {
			return nil, appErrors.ErrNotFound
		},
	}
	r := newKeyRouter(svc, &recordingAuditor{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/keys/42", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrNotFound.Code)
}

func TestKeyHandlerRejectsGarbageID(t *testing.T) {
	r := newKeyRouter(&fakeKeyService{}, &recordingAuditor{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/keys/abc", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestKeyHandlerList(t *testing.T) {
	svc := &fakeKeyService{
		listFn: func(query dto.ListKeysQuery) ([]dto.KeyResponse, int64, error) {
			assert.Equal(t, "active", query.Status)
			return []dto.KeyResponse{{ID: 1}, {ID: 2}}, 2, nil
		},
	}
	r := newKeyRouter(svc, &recordingAuditor{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/keys?status=active", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Pagination)
	assert.Equal(t, int64(2), env.Pagination.Total)
}

func TestKeyHandlerRevoke(t *testing.T) {
	audit := &recordingAuditor{}
	svc := &fakeKeyService{
		revokeFn: func(id int64) error {
			assert.Equal(t, int64(5), id)
			return nil
		},
	}
	r := newKeyRouter(svc, audit)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/keys/5/revoke", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "keys.revoke", audit.entries[0].Action)
}

func TestKeyHandlerRotate(t *testing.T) {
	audit := &recordingAuditor{}
	svc := &fakeKeyService{
		rotateFn: func(id int64) (*dto.MintedKeyResponse, error) {
			return &dto.MintedKeyResponse{
				KeyResponse: dto.KeyResponse{ID: id},
				Token:       "ck_live_5.rotated-secret",
			}, nil
		},
	}
	r := newKeyRouter(svc, audit)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/keys/5/rotate", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ck_live_5.rotated-secret")
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "keys.rotate", audit.entries[0].Action)
}
