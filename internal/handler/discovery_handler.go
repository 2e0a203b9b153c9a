package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chroma-cms/agent-api/internal/auth"
	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/service"
	"github.com/chroma-cms/agent-api/pkg/response"
)

// DiscoveryCache caches the rendered discovery document between requests.
type DiscoveryCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// DiscoveryHandler serves the self-description routes agents use to learn
// the API surface before making writes.
type DiscoveryHandler struct {
	cache      DiscoveryCache
	cacheTTL   time.Duration
	apiPrefix  string
	surfaces   []service.Surface
	seoMeta    []string
	metaPolicy *service.MetaPolicy
	logger     *zap.Logger
}

// NewDiscoveryHandler builds a discovery handler over the configured write
// surfaces.
func NewDiscoveryHandler(cache DiscoveryCache, cacheTTL time.Duration, apiPrefix string, surfaces []service.Surface, seoMetaAllowlist []string, metaPolicy *service.MetaPolicy, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		cache:      cache,
		cacheTTL:   cacheTTL,
		apiPrefix:  apiPrefix,
		surfaces:   surfaces,
		seoMeta:    seoMetaAllowlist,
		metaPolicy: metaPolicy,
		logger:     logger,
	}
}

const discoveryCacheKey = "caa_discovery_v1"

// Discovery godoc
// @Summary Describe the API surface
// @Tags discovery
// @Router /discovery [get]
func (h *DiscoveryHandler) Discovery(c *gin.Context) {
	var doc map[string]any
	if err := h.cache.GetJSON(c.Request.Context(), discoveryCacheKey, &doc); err != nil {
		doc = h.buildDiscovery()
		if err := h.cache.SetJSON(c.Request.Context(), discoveryCacheKey, doc, h.cacheTTL); err != nil {
			h.logger.Warn("discovery cache write failed", zap.Error(err))
		}
	}

	// The cached document is shared; the caller block is per request.
	if key := auth.KeyFrom(c); key != nil {
		doc["caller"] = map[string]any{
			"key_id": key.ID,
			"label":  key.Label,
			"scopes": key.Scopes,
		}
	}
	response.JSON(c, http.StatusOK, doc)
}

// Resources godoc
// @Summary List writable resource types
// @Tags discovery
// @Router /resources [get]
func (h *DiscoveryHandler) Resources(c *gin.Context) {
	response.JSON(c, http.StatusOK, []map[string]any{
		{
			"type":   "content",
			"routes": []string{h.apiPrefix + "/content", h.apiPrefix + "/content/{id}"},
			"scopes": []string{models.ScopeReadContent, models.ScopeWriteContent},
		},
		{
			"type":   "theme",
			"routes": []string{h.apiPrefix + "/theme/options", h.apiPrefix + "/theme/mods"},
			"scopes": []string{models.ScopeReadTheme, models.ScopeWriteTheme},
		},
		{
			"type": "seo",
			"routes": []string{
				h.apiPrefix + "/seo/options",
				h.apiPrefix + "/seo/meta/{id}",
				h.apiPrefix + "/seo/schema/{id}",
				h.apiPrefix + "/seo/schema",
			},
			"scopes": []string{models.ScopeReadSEO, models.ScopeWriteSEO},
		},
		{
			"type":   "media",
			"routes": []string{h.apiPrefix + "/media", h.apiPrefix + "/media/attach"},
			"scopes": []string{models.ScopeReadMedia, models.ScopeWriteMedia},
		},
	})
}

// WritePolicy godoc
// @Summary Expose allowlists and the content meta policy
// @Tags discovery
// @Router /write-policy [get]
func (h *DiscoveryHandler) WritePolicy(c *gin.Context) {
	// ?meta_key= answers "would the content surface accept this key" without
	// the caller having to attempt the write.
	if key := c.Query("meta_key"); key != "" {
		verdict := map[string]any{"meta_key": key, "allowed": true}
		if blocks := h.metaPolicy.Check(map[string]any{key: nil}); len(blocks) > 0 {
			verdict["allowed"] = false
			verdict["reason"] = blocks[0].Reason
			if blocks[0].PreferredRoute != "" {
				verdict["preferred_route"] = blocks[0].PreferredRoute
			}
		}
		response.JSON(c, http.StatusOK, verdict)
		return
	}

	surfaces := make(map[string]any, len(h.surfaces))
	for _, surface := range h.surfaces {
		surfaces[surface.Name] = map[string]any{
			"kind":      surface.Kind,
			"allowlist": surface.Allowlist,
		}
	}

	response.JSON(c, http.StatusOK, map[string]any{
		"surfaces":           surfaces,
		"seo_meta_allowlist": h.seoMeta,
		"content_meta_policy": map[string]any{
			"seo_managed_keys": h.seoMeta,
			"seo_route":        h.apiPrefix + "/seo/meta/{id}",
			"protected_prefix": "_",
		},
	})
}

func (h *DiscoveryHandler) buildDiscovery() map[string]any {
	writeSurfaces := make([]map[string]any, 0, len(h.surfaces))
	for _, surface := range h.surfaces {
		writeSurfaces = append(writeSurfaces, map[string]any{
			"name":      surface.Name,
			"kind":      surface.Kind,
			"allowlist": surface.Allowlist,
		})
	}

	return map[string]any{
		"name":    "chroma-agent-api",
		"version": "v1",
		"prefix":  h.apiPrefix,
		"auth": map[string]any{
			"schemes":           []string{"bearer", "x-api-key", "api_key"},
			"token_format":      "ck_live_{id}.{secret}",
			"signature_headers": []string{"X-Chroma-Timestamp", "X-Chroma-Signature"},
		},
		"scopes":         models.KnownScopes,
		"write_surfaces": writeSurfaces,
		"features": map[string]any{
			"dry_run":      true,
			"snapshots":    true,
			"strict_write": true,
			"audit_export": []string{"csv", "pdf"},
		},
	}
}
