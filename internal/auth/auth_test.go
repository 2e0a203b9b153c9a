package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/ratelimit"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
	"github.com/chroma-cms/agent-api/pkg/response"
)

type fakeVerifier struct {
	key      *models.APIKey
	err      error
	ipErr    error
	touched  []int64
	touchIPs []string
}

func (f *fakeVerifier) Verify(ctx context.Context, rawToken string) (*models.APIKey, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.key, nil
}

func (f *fakeVerifier) CheckIP(key *models.APIKey, remoteIP string) error {
	return f.ipErr
}

func (f *fakeVerifier) Touch(ctx context.Context, keyID int64, remoteIP string) {
	f.touched = append(f.touched, keyID)
	f.touchIPs = append(f.touchIPs, remoteIP)
}

type fakeLimiter struct {
	result ratelimit.Result
}

func (f *fakeLimiter) Allow(ctx context.Context, keyID int64, limit int) (ratelimit.Result, error) {
	return f.result, nil
}

type fakeMetrics struct {
	failures []string
	limited  []int64
}

func (f *fakeMetrics) AuthFailure(code string) { f.failures = append(f.failures, code) }
func (f *fakeMetrics) RateLimited(keyID int64) { f.limited = append(f.limited, keyID) }

func activeKey() *models.APIKey {
	return &models.APIKey{
		ID:        7,
		Label:     "bot",
		Status:    models.KeyStatusActive,
		RateLimit: 120,
		Scopes:    models.StringList{models.ScopeReadTheme, models.ScopeWriteTheme},
	}
}

func newAuthRouter(verifier *fakeVerifier, limiter *fakeLimiter, metrics *fakeMetrics, requireHTTPS bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	a := New(verifier, limiter, metrics, zap.NewNop(), requireHTTPS, 5*time.Minute)

	router := gin.New()
	group := router.Group("/agent/v1", a.Middleware())
	group.GET("/theme", RequireScopes(models.ScopeReadTheme), func(c *gin.Context) {
		response.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	group.GET("/admin", RequireScopes(models.ScopeAdminKeys), func(c *gin.Context) {
		response.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	group.GET("/rollback", RequireScopes(models.ScopeAdminAudit),
		RequireAnyScope(models.ScopeWriteTheme, models.ScopeWriteSEO), func(c *gin.Context) {
			response.JSON(c, http.StatusOK, gin.H{"ok": true})
		})
	return router
}

func doRequest(router *gin.Engine, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMissingKey(t *testing.T) {
	metrics := &fakeMetrics{}
	router := newAuthRouter(&fakeVerifier{key: activeKey()}, &fakeLimiter{result: ratelimit.Result{Allowed: true}}, metrics, true)

	w := doRequest(router, "/agent/v1/theme", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "caa_missing_key")
	assert.Equal(t, []string{"caa_missing_key"}, metrics.failures)
}

func TestAuthHTTPSRequired(t *testing.T) {
	router := newAuthRouter(&fakeVerifier{key: activeKey()}, &fakeLimiter{result: ratelimit.Result{Allowed: true}}, &fakeMetrics{}, true)

	w := doRequest(router, "/agent/v1/theme", func(req *http.Request) {
		req.Header.Del("X-Forwarded-Proto")
		req.Header.Set("Authorization", "Bearer "+testToken)
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "caa_https_required")
}

func TestAuthBearerTokenAccepted(t *testing.T) {
	verifier := &fakeVerifier{key: activeKey()}
	router := newAuthRouter(verifier, &fakeLimiter{result: ratelimit.Result{Allowed: true, Limit: 120, Remaining: 119}}, &fakeMetrics{}, true)

	w := doRequest(router, "/agent/v1/theme", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+testToken)
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{7}, verifier.touched)
	require.Len(t, verifier.touchIPs, 1)
	assert.NotEmpty(t, verifier.touchIPs[0])
	assert.Equal(t, "120", w.Header().Get("X-RateLimit-Limit"))
}

func TestAuthHeaderAndQueryFallbacks(t *testing.T) {
	router := newAuthRouter(&fakeVerifier{key: activeKey()}, &fakeLimiter{result: ratelimit.Result{Allowed: true}}, &fakeMetrics{}, true)

	w := doRequest(router, "/agent/v1/theme", func(req *http.Request) {
		req.Header.Set("X-API-Key", testToken)
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, "/agent/v1/theme?api_key="+testToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRateLimited(t *testing.T) {
	metrics := &fakeMetrics{}
	router := newAuthRouter(&fakeVerifier{key: activeKey()},
		&fakeLimiter{result: ratelimit.Result{Allowed: false, Limit: 120, Remaining: 0}}, metrics, true)

	w := doRequest(router, "/agent/v1/theme", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+testToken)
	})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "caa_rate_limited")
	assert.Equal(t, []int64{7}, metrics.limited)
}

func TestAuthIPDenied(t *testing.T) {
	router := newAuthRouter(&fakeVerifier{key: activeKey(), ipErr: appErrors.ErrIPDenied},
		&fakeLimiter{result: ratelimit.Result{Allowed: true}}, &fakeMetrics{}, true)

	w := doRequest(router, "/agent/v1/theme", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+testToken)
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "caa_ip_denied")
}

func TestAuthScopeDenied(t *testing.T) {
	router := newAuthRouter(&fakeVerifier{key: activeKey()}, &fakeLimiter{result: ratelimit.Result{Allowed: true}}, &fakeMetrics{}, true)

	w := doRequest(router, "/agent/v1/admin", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+testToken)
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "caa_scope_denied")
	assert.Contains(t, w.Body.String(), "admin:keys")
}

func TestAuthRequireAnyScope(t *testing.T) {
	key := activeKey()
	key.Scopes = models.StringList{models.ScopeAdminAudit, models.ScopeWriteTheme}
	router := newAuthRouter(&fakeVerifier{key: key}, &fakeLimiter{result: ratelimit.Result{Allowed: true}}, &fakeMetrics{}, true)

	w := doRequest(router, "/agent/v1/rollback", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+testToken)
	})
	assert.Equal(t, http.StatusOK, w.Code)

	key.Scopes = models.StringList{models.ScopeAdminAudit}
	w = doRequest(router, "/agent/v1/rollback", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+testToken)
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthSignedRequest(t *testing.T) {
	ts := "1770000000"
	sig := ComputeSignature(testToken, http.MethodGet, "/agent/v1/theme", ts, nil)

	// Pin the authenticator's clock so the signed timestamp stays in skew.
	a := New(&fakeVerifier{key: activeKey()}, &fakeLimiter{result: ratelimit.Result{Allowed: true}}, &fakeMetrics{}, zap.NewNop(), true, 5*time.Minute)
	a.now = func() time.Time { return time.Unix(1770000000, 0) }

	gin.SetMode(gin.TestMode)
	signed := gin.New()
	signed.GET("/agent/v1/theme", a.Middleware(), func(c *gin.Context) {
		response.JSON(c, http.StatusOK, gin.H{"ok": true})
	})

	w := doRequest(signed, "/agent/v1/theme", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+testToken)
		req.Header.Set(HeaderTimestamp, ts)
		req.Header.Set(HeaderSignature, sig)
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(signed, "/agent/v1/theme", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+testToken)
		req.Header.Set(HeaderTimestamp, ts)
		req.Header.Set(HeaderSignature, "0000")
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "caa_signature_mismatch")
}
