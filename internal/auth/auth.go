package auth

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/ratelimit"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
	"github.com/chroma-cms/agent-api/pkg/middleware/requestid"
	"github.com/chroma-cms/agent-api/pkg/response"
)

// Gin context keys set by the authenticator.
const (
	ContextKey       = "actor_key"
	ContextKeyID     = "actor_key_id"
	scopeCheckCache  = "scope_check_cache"
	maxSignedBodyLen = 10 << 20
)

// KeyVerifier authenticates raw tokens and enforces per-key IP policy.
type KeyVerifier interface {
	Verify(ctx context.Context, rawToken string) (*models.APIKey, error)
	CheckIP(key *models.APIKey, remoteIP string) error
	Touch(ctx context.Context, keyID int64, remoteIP string)
}

// Limiter admits or rejects a request against the key's budget.
type Limiter interface {
	Allow(ctx context.Context, keyID int64, limit int) (ratelimit.Result, error)
}

// FailureCounter tracks rejected requests for observability.
type FailureCounter interface {
	AuthFailure(code string)
	RateLimited(keyID int64)
}

// Authenticator is the request admission pipeline: transport check, token
// extraction, key verification, IP policy, rate limit and optional
// signature, in that order.
type Authenticator struct {
	keys          KeyVerifier
	limiter       Limiter
	metrics       FailureCounter
	logger        *zap.Logger
	requireHTTPS  bool
	signatureSkew time.Duration
	now           func() time.Time
}

// New builds an authenticator.
func New(keys KeyVerifier, limiter Limiter, metrics FailureCounter, logger *zap.Logger, requireHTTPS bool, signatureSkew time.Duration) *Authenticator {
	return &Authenticator{
		keys:          keys,
		limiter:       limiter,
		metrics:       metrics,
		logger:        logger,
		requireHTTPS:  requireHTTPS,
		signatureSkew: signatureSkew,
		now:           time.Now,
	}
}

// Middleware authenticates every request on the protected route group.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := a.admit(c)
		if err != nil {
			a.reject(c, err)
			return
		}

		c.Set(ContextKey, key)
		c.Set(ContextKeyID, key.ID)
		a.keys.Touch(c.Request.Context(), key.ID, c.ClientIP())
		c.Next()
	}
}

func (a *Authenticator) admit(c *gin.Context) (*models.APIKey, error) {
	if a.requireHTTPS && !isSecure(c.Request) {
		return nil, appErrors.ErrHTTPSRequired
	}

	rawToken := extractToken(c)
	if rawToken == "" {
		return nil, appErrors.ErrMissingKey
	}

	key, err := a.keys.Verify(c.Request.Context(), rawToken)
	if err != nil {
		return nil, err
	}

	if err := a.keys.CheckIP(key, c.ClientIP()); err != nil {
		return nil, err
	}

	result, err := a.limiter.Allow(c.Request.Context(), key.ID, key.RateLimit)
	if err != nil {
		a.logger.Warn("rate limiter unavailable", zap.Int64("key_id", key.ID), zap.Error(err))
	}
	setRateHeaders(c, result)
	if !result.Allowed {
		a.metrics.RateLimited(key.ID)
		return nil, appErrors.ErrRateLimited
	}

	if err := a.verifySignature(c, rawToken); err != nil {
		return nil, err
	}

	return key, nil
}

func (a *Authenticator) verifySignature(c *gin.Context, rawToken string) error {
	timestamp := c.GetHeader(HeaderTimestamp)
	signature := c.GetHeader(HeaderSignature)
	if timestamp == "" && signature == "" {
		return nil
	}

	body, err := readBody(c)
	if err != nil {
		return appErrors.WithCause(appErrors.ErrInternal, err)
	}

	return VerifySignature(rawToken, c.Request.Method, c.Request.URL.Path,
		timestamp, signature, body, a.now(), a.signatureSkew)
}

func (a *Authenticator) reject(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	a.metrics.AuthFailure(appErr.Code)
	a.logger.Info("request rejected",
		zap.String("code", appErr.Code),
		zap.String("path", c.Request.URL.Path),
		zap.String("ip", c.ClientIP()),
		zap.String("request_id", requestid.Value(c)),
	)
	response.Error(c, err)
	c.Abort()
}

// RequireScopes guards a route group with a scope subset check. The
// decision for each distinct scope set is cached on the request context, so
// stacked groups do not recheck.
func RequireScopes(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := KeyFrom(c)
		if key == nil {
			response.Error(c, appErrors.ErrMissingKey)
			c.Abort()
			return
		}

		cacheKey := normalizeScopeSet(scopes)
		cache := scopeCache(c)
		allowed, checked := cache[cacheKey]
		if !checked {
			allowed = len(key.MissingScopes(scopes)) == 0
			cache[cacheKey] = allowed
		}
		if !allowed {
			response.Error(c, appErrors.WithDetails(appErrors.ErrScopeDenied,
				map[string]any{"missing_scopes": key.MissingScopes(scopes)}))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAnyScope admits the request when the key grants at least one of
// the listed scopes.
func RequireAnyScope(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := KeyFrom(c)
		if key == nil {
			response.Error(c, appErrors.ErrMissingKey)
			c.Abort()
			return
		}
		for _, scope := range scopes {
			if key.HasScope(scope) {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.WithDetails(appErrors.ErrScopeDenied,
			map[string]any{"requires_one_of": scopes}))
		c.Abort()
	}
}

// KeyFrom returns the authenticated key from the request context.
func KeyFrom(c *gin.Context) *models.APIKey {
	v, ok := c.Get(ContextKey)
	if !ok {
		return nil
	}
	key, ok := v.(*models.APIKey)
	if !ok {
		return nil
	}
	return key
}

func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// extractToken checks the Authorization header, the X-API-Key header and
// finally the api_key query parameter.
func extractToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	if key := c.GetHeader("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	return strings.TrimSpace(c.Query("api_key"))
}

// readBody drains and restores the request body so the handler still sees
// it after signature verification.
func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSignedBodyLen))
	if err != nil {
		return nil, err
	}
	_ = c.Request.Body.Close()
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func setRateHeaders(c *gin.Context, result ratelimit.Result) {
	if result.Limit <= 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func scopeCache(c *gin.Context) map[string]bool {
	if v, ok := c.Get(scopeCheckCache); ok {
		if cache, ok := v.(map[string]bool); ok {
			return cache
		}
	}
	cache := map[string]bool{}
	c.Set(scopeCheckCache, cache)
	return cache
}

func normalizeScopeSet(scopes []string) string {
	sorted := append([]string(nil), scopes...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return strings.Join(sorted, ",")
}
