package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/dbpool"
	"github.com/adcommander/adcmdr-tools/internal/domain"
	"github.com/adcommander/adcmdr-tools/internal/middleware"
	"github.com/adcommander/adcmdr-tools/internal/models"
	"github.com/adcommander/adcmdr-tools/internal/security"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log            *logrus.Logger
	Pool           *dbpool.Pool
	Exports        domain.ExportService
	Imports        domain.ImportService
	Bundles        domain.BundleService
	Stats          domain.StatsService
	Nonces         domain.NonceService
	ExportProbe    func() error
	AdminAPIKey    string
	CORSOrigins    []string
	Version        string
	SiteURL        string
	MaxUploadBytes int64
	HSTS           bool
}

// Router-level limits.
const (
	maxBodySize = 1 << 20 // 1 MB outside the upload route
	rateLimit   = 20      // requests per second per IP
	rateBurst   = 40      // token bucket burst size
	importRoute = "/api/v1/import"
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(middleware.RequestLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders(deps.HSTS))
	r.Use(middleware.MaxBodySize(maxBodySize, map[string]int64{importRoute: deps.MaxUploadBytes}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", middleware.NonceHeader},
		ExposeHeaders:    []string{"Content-Disposition", middleware.RequestIDHeader},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst).Handler())
	r.Use(middleware.PrometheusMiddleware())

	// Metrics endpoint (unauthenticated, like health).
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Pool, deps.ExportProbe, log, deps.Version)
	nonces := NewNonceHandler(deps.Nonces)
	bundles := NewBundleHandler(deps.Exports, deps.Bundles, log, deps.SiteURL)
	imports := NewImportHandler(deps.Imports, log, deps.SiteURL)
	stats := NewStatsHandler(deps.Stats, log, deps.SiteURL)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	// All other API routes require the admin key.
	guard := security.NewFailureGuard(ctx, log)
	api.Use(middleware.AdminAuth(deps.AdminAPIKey, guard, log))

	nonce := func(action string) gin.HandlerFunc {
		return middleware.RequireNonce(deps.Nonces, action, log)
	}

	api.GET("/nonce", nonces.Issue)

	// Bundles.
	api.POST("/export", nonce(models.ActionExportNow), bundles.Export)
	api.GET("/bundles", bundles.List)
	api.GET("/bundles/:name", bundles.Download)
	api.DELETE("/bundles/:name", nonce(models.ActionDeleteBundle), bundles.Delete)
	api.POST("/import", nonce(models.ActionImportBundle), imports.Import)

	// Stats maintenance.
	api.GET("/stats/rogue", stats.Rogue)
	api.POST("/stats/rogue/delete", nonce(models.ActionDeleteRogueStats), stats.DeleteRogue)
	api.POST("/stats/delete-all", nonce(models.ActionDeleteAllStats), stats.DeleteAll)
	api.POST("/stats/ads/:id/delete", nonce(models.ActionDeleteAdStats), stats.DeleteForAd)
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
