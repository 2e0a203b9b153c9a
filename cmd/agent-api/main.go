package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	_ "github.com/chroma-cms/agent-api/api/swagger"
	"github.com/chroma-cms/agent-api/internal/auth"
	"github.com/chroma-cms/agent-api/internal/handler"
	internalmiddleware "github.com/chroma-cms/agent-api/internal/middleware"
	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/ratelimit"
	"github.com/chroma-cms/agent-api/internal/redact"
	"github.com/chroma-cms/agent-api/internal/repository"
	"github.com/chroma-cms/agent-api/internal/service"
	"github.com/chroma-cms/agent-api/pkg/cache"
	"github.com/chroma-cms/agent-api/pkg/config"
	"github.com/chroma-cms/agent-api/pkg/database"
	"github.com/chroma-cms/agent-api/pkg/logger"
	corsmiddleware "github.com/chroma-cms/agent-api/pkg/middleware/cors"
	reqidmiddleware "github.com/chroma-cms/agent-api/pkg/middleware/requestid"
	"github.com/chroma-cms/agent-api/pkg/storage"
)

// @title Chroma Agent API
// @version 1.0.0
// @description Machine-to-machine authorization, audit and write-safety surface for the Chroma CMS
// @BasePath /agent/v1
// @schemes https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	blobStore, err := storage.NewLocalStorage(cfg.Media.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init media storage", "error", err)
	}

	// Repositories.
	keyRepo := repository.NewKeyRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	postRepo := repository.NewPostRepository(db)
	mediaRepo := repository.NewMediaRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// Services.
	redactor := redact.New(cfg.Auth.RedactionKeys)
	auditSvc := service.NewAuditService(auditRepo, redactor, logr)
	keySvc := service.NewKeyService(keyRepo, cacheRepo, logr, cfg.Auth.BcryptCost, cfg.Auth.DefaultRateLimit, cfg.Auth.LastUsedInterval)
	settingsSvc := service.NewSettingsService(settingsRepo, snapshotRepo, auditSvc, logr)
	snapshotSvc := service.NewSnapshotService(snapshotRepo, settingsRepo, auditSvc, logr)

	seoRoute := cfg.APIPrefix + "/seo/meta/{id}"
	policy := service.NewMetaPolicy(cfg.Policy.SEOMetaAllowlist, seoRoute)
	contentSvc := service.NewContentService(postRepo, policy, auditSvc, logr)
	seoSvc := service.NewSEOService(postRepo, auditSvc, cfg.Policy.SEOMetaAllowlist, logr)
	mediaSvc := service.NewMediaService(mediaRepo, postRepo, blobStore, auditSvc, cfg.Media.AllowedMIMEs, cfg.Media.MaxFileSizeBytes, logr)
	metricsSvc := service.NewMetricsService()

	limiter := ratelimit.New(redisClient)
	authenticator := auth.New(keySvc, limiter, metricsSvc, logr, cfg.Auth.RequireHTTPS, cfg.Auth.SignatureSkew)

	themeSurface := service.Surface{
		Name:      "theme_options",
		Kind:      models.SettingKindOption,
		Action:    "theme.update",
		Scope:     models.ScopeWriteTheme,
		Allowlist: cfg.Policy.ThemeOptionAllowlist,
	}
	themeModSurface := service.Surface{
		Name:      "theme_mods",
		Kind:      models.SettingKindThemeMod,
		Action:    "theme.update_mods",
		Scope:     models.ScopeWriteTheme,
		Allowlist: cfg.Policy.ThemeModAllowlist,
	}
	seoSurface := service.Surface{
		Name:      "seo_options",
		Kind:      models.SettingKindOption,
		Action:    "seo.update",
		Scope:     models.ScopeWriteSEO,
		Allowlist: cfg.Policy.SEOOptionAllowlist,
	}
	surfaces := []service.Surface{themeSurface, themeModSurface, seoSurface}

	handlers := handler.Handlers{
		Keys:         handler.NewKeyHandler(keySvc, auditSvc),
		ThemeOptions: handler.NewSettingsHandler(settingsSvc, themeSurface),
		ThemeMods:    handler.NewSettingsHandler(settingsSvc, themeModSurface),
		SEOOptions:   handler.NewSettingsHandler(settingsSvc, seoSurface),
		SEO:          handler.NewSEOHandler(seoSvc),
		Content:      handler.NewContentHandler(contentSvc),
		Media:        handler.NewMediaHandler(mediaSvc),
		Audit:        handler.NewAuditHandler(auditSvc, snapshotSvc),
		Discovery:    handler.NewDiscoveryHandler(cacheRepo, cfg.Auth.DiscoveryCacheTTL, cfg.APIPrefix, surfaces, cfg.Policy.SEOMetaAllowlist, policy, logr),
		Health:       handler.NewHealthHandler(db, redisClient),
		Metrics:      metricsSvc.Handler(),
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	handler.RegisterRoutes(r, cfg.APIPrefix, authenticator, handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "prefix", cfg.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
