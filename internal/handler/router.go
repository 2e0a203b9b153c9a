package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/chroma-cms/agent-api/internal/auth"
	"github.com/chroma-cms/agent-api/internal/models"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Keys         *KeyHandler
	ThemeOptions *SettingsHandler
	ThemeMods    *SettingsHandler
	SEOOptions   *SettingsHandler
	SEO          *SEOHandler
	Content      *ContentHandler
	Media        *MediaHandler
	Audit        *AuditHandler
	Discovery    *DiscoveryHandler
	Health       *HealthHandler
	Metrics      http.Handler
}

// RegisterRoutes mounts the full API surface under the configured prefix.
// Everything under the prefix is authenticated; scope checks narrow each
// group further.
func RegisterRoutes(router *gin.Engine, apiPrefix string, authenticator *auth.Authenticator, h Handlers) {
	router.GET("/health", h.Health.Health)
	router.GET("/ready", h.Health.Ready)
	router.GET("/metrics", gin.WrapH(h.Metrics))
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group(apiPrefix, authenticator.Middleware())

	// Self-description routes only need a valid key, no specific scope.
	api.GET("/discovery", h.Discovery.Discovery)
	api.GET("/resources", h.Discovery.Resources)
	api.GET("/write-policy", h.Discovery.WritePolicy)

	keys := api.Group("/keys", auth.RequireScopes(models.ScopeAdminKeys))
	{
		keys.POST("", h.Keys.Create)
		keys.GET("", h.Keys.List)
		keys.GET("/:id", h.Keys.Get)
		keys.PATCH("/:id", h.Keys.Update)
		keys.POST("/:id/rotate", h.Keys.Rotate)
		keys.POST("/:id/revoke", h.Keys.Revoke)
	}

	content := api.Group("/content")
	{
		content.GET("", auth.RequireScopes(models.ScopeReadContent), h.Content.List)
		content.GET("/:id", auth.RequireScopes(models.ScopeReadContent), h.Content.Get)
		content.POST("", auth.RequireScopes(models.ScopeWriteContent), h.Content.Create)
		content.PATCH("/:id", auth.RequireScopes(models.ScopeWriteContent), h.Content.Update)
		content.PUT("/:id", auth.RequireScopes(models.ScopeWriteContent), h.Content.Update)
		content.DELETE("/:id", auth.RequireScopes(models.ScopeWriteContent), h.Content.Delete)
	}

	theme := api.Group("/theme")
	{
		theme.GET("/options", auth.RequireScopes(models.ScopeReadTheme), h.ThemeOptions.Read)
		theme.PATCH("/options", auth.RequireScopes(models.ScopeWriteTheme), h.ThemeOptions.Update)
		theme.GET("/mods", auth.RequireScopes(models.ScopeReadTheme), h.ThemeMods.Read)
		theme.PATCH("/mods", auth.RequireScopes(models.ScopeWriteTheme), h.ThemeMods.Update)
	}

	seo := api.Group("/seo")
	{
		seo.GET("/options", auth.RequireScopes(models.ScopeReadSEO), h.SEOOptions.Read)
		seo.PATCH("/options", auth.RequireScopes(models.ScopeWriteSEO), h.SEOOptions.Update)
		seo.GET("/meta/:id", auth.RequireScopes(models.ScopeReadSEO), h.SEO.ReadMeta)
		seo.PATCH("/meta/:id", auth.RequireScopes(models.ScopeWriteSEO), h.SEO.UpdateMeta)
		seo.GET("/schema", auth.RequireScopes(models.ScopeReadSEO), h.SEO.ListSchema)
		seo.GET("/schema/:id", auth.RequireScopes(models.ScopeReadSEO), h.SEO.ReadSchema)
		seo.PATCH("/schema/:id", auth.RequireScopes(models.ScopeWriteSEO), h.SEO.UpdateSchema)
	}

	media := api.Group("/media")
	{
		media.GET("", auth.RequireScopes(models.ScopeReadMedia), h.Media.List)
		media.GET("/:id", auth.RequireScopes(models.ScopeReadMedia), h.Media.Get)
		media.POST("", auth.RequireScopes(models.ScopeWriteMedia), h.Media.Upload)
		media.POST("/attach", auth.RequireScopes(models.ScopeWriteMedia), h.Media.Attach)
		media.PATCH("/:id", auth.RequireScopes(models.ScopeWriteMedia), h.Media.Update)
		media.DELETE("/:id", auth.RequireScopes(models.ScopeWriteMedia), h.Media.Delete)
	}

	audit := api.Group("/audit", auth.RequireScopes(models.ScopeAdminAudit))
	{
		audit.GET("", h.Audit.List)
		audit.GET("/export", h.Audit.Export)
		audit.GET("/:id", h.Audit.Get)
	}

	snapshots := api.Group("/snapshots", auth.RequireScopes(models.ScopeAdminAudit))
	{
		snapshots.GET("", h.Audit.ListSnapshots)
		snapshots.GET("/:id", h.Audit.GetSnapshot)
	}

	// Rollback needs the audit scope plus write access to at least one of
	// the surfaces it can touch.
	api.POST("/rollback/snapshot",
		auth.RequireScopes(models.ScopeAdminAudit),
		auth.RequireAnyScope(models.ScopeWriteTheme, models.ScopeWriteSEO),
		h.Audit.Rollback,
	)
}
