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

type fakeSettingsWriter struct {
	readFn   func(surface service.Surface) (map[string]any, error)
	updateFn func(surface service.Surface, req dto.UpdateSettingsRequest) (*service.WriteResult, error)
}

func (f *fakeSettingsWriter) Read(_ context.Context, surface service.Surface) (map[string]any, error) {
	return f.readFn(surface)
}

func (f *fakeSettingsWriter) Update(_ context.Context, surface service.Surface, req dto.UpdateSettingsRequest, _ service.Actor) (*service.WriteResult, error) {
	return f.updateFn(surface, req)
}

var testThemeSurface = service.Surface{
	Name:      "theme_options",
	Kind:      models.SettingKindOption,
	Action:    "theme.update",
	Allowlist: []string{"blogname", "blogdescription"},
}

func newSettingsRouter(svc *fakeSettingsWriter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSettingsHandler(svc, testThemeSurface)
	r := gin.New()
	r.GET("/theme/options", h.Read)
	r.PATCH("/theme/options", h.Update)
	return r
}

func TestSettingsHandlerRead(t *testing.T) {
	svc := &fakeSettingsWriter{
		readFn: func(surface service.Surface) (map[string]any, error) {
			assert.Equal(t, "theme_options", surface.Name)
			return map[string]any{"blogname": "Chroma", "blogdescription": nil}, nil
		},
	}
	r := newSettingsRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/theme/options", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, []string{"blogname", "blogdescription"}, env.Allowlist)
}

func TestSettingsHandlerUpdate(t *testing.T) {
	svc := &fakeSettingsWriter{
		updateFn: func(_ service.Surface, req dto.UpdateSettingsRequest) (*service.WriteResult, error) {
			assert.Equal(t, "New Name", req.Values["blogname"])
			return &service.WriteResult{
				Values:      map[string]any{"blogname": "New Name"},
				Diff:        map[string]any{"blogname": map[string]any{"from": "Chroma", "to": "New Name"}},
				BlockedKeys: []string{"siteurl"},
				SnapshotIDs: []int64{31},
				Allowlist:   testThemeSurface.Allowlist,
				Warning:     "some keys were not applied",
			}, nil
		},
	}
	r := newSettingsRouter(svc)

	body, _ := json.Marshal(map[string]any{"values": map[string]any{"blogname": "New Name", "siteurl": "https://evil.test"}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/theme/options", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	require.NotNil(t, env.DryRun)
	assert.False(t, *env.DryRun)
	assert.Equal(t, []string{"siteurl"}, env.BlockedKeys)
	assert.Equal(t, []int64{31}, env.SnapshotIDs)
	assert.Contains(t, env.Diff, "blogname")
	assert.NotEmpty(t, env.Warning)
}

func TestSettingsHandlerUpdateFlatPayload(t *testing.T) {
	svc := &fakeSettingsWriter{
		updateFn: func(_ service.Surface, req dto.UpdateSettingsRequest) (*service.WriteResult, error) {
			assert.Equal(t, "x", req.Values["custom_logo"])
			assert.Equal(t, "y", req.Values["not_allowed_option"])
			return &service.WriteResult{
				Values:      map[string]any{"custom_logo": "x"},
				Diff:        map[string]any{"custom_logo": map[string]any{"from": nil, "to": "x"}},
				BlockedKeys: []string{"not_allowed_option"},
				Allowlist:   testThemeSurface.Allowlist,
			}, nil
		},
	}
	r := newSettingsRouter(svc)

	body, _ := json.Marshal(map[string]any{"custom_logo": "x", "not_allowed_option": "y"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/theme/options", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, []string{"not_allowed_option"}, env.BlockedKeys)
}

func TestSettingsHandlerUpdateDryRun(t *testing.T) {
	svc := &fakeSettingsWriter{
		updateFn: func(_ service.Surface, req dto.UpdateSettingsRequest) (*service.WriteResult, error) {
			assert.True(t, req.DryRun)
			return &service.WriteResult{
				Values: map[string]any{"blogname": "Chroma"},
				Diff:   map[string]any{"blogname": map[string]any{"from": "Chroma", "to": "Preview"}},
				DryRun: true,
			}, nil
		},
	}
	r := newSettingsRouter(svc)

	body, _ := json.Marshal(map[string]any{"values": map[string]any{"blogname": "Preview"}, "dry_run": true})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/theme/options", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.DryRun)
	assert.True(t, *env.DryRun)
	assert.Empty(t, env.SnapshotIDs)
}

func TestSettingsHandlerUpdateRejectsBadBody(t *testing.T) {
	r := newSettingsRouter(&fakeSettingsWriter{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/theme/options", bytes.NewReader([]byte("nope")))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrValidation.Code)
}
