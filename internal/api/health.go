// Package api provides the HTTP handlers of the bundle service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/db"
	"github.com/adcommander/adcmdr-tools/internal/db/migrations"
	"github.com/adcommander/adcmdr-tools/internal/dbpool"
)

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	pool      *dbpool.Pool
	probe     func() error
	log       *logrus.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler. probe reports whether bundles
// can be written; nil skips that check.
func NewHealthHandler(pool *dbpool.Pool, probe func() error, log *logrus.Logger, version string) *HealthHandler {
	return &HealthHandler{
		pool:      pool,
		probe:     probe,
		log:       log,
		version:   version,
		startTime: time.Now(),
	}
}

// readinessResponse is the JSON payload returned by the readiness endpoint.
type readinessResponse struct {
	Status        string            `json:"status"`
	SchemaVersion int64             `json:"schema_version"`
	Checks        map[string]string `json:"checks"`
}

// healthResponse is the JSON payload returned by the health/liveness endpoint.
type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	Export        string  `json:"export"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Liveness handles GET /api/v1/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Database:      "connected",
		Export:        h.exportStatus(),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	// Best-effort database ping (non-fatal for liveness).
	if h.pool != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.pool.HealthCheck(ctx); err != nil {
			resp.Database = "disconnected"
		}
	} else {
		resp.Database = "not_configured"
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/v1/ready. The service is ready once the
// database answers and every embedded migration is applied.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := map[string]string{
		"database": "ok",
		"schema":   "unknown",
		"export":   h.exportStatus(),
	}
	resp := readinessResponse{Status: "ready", Checks: checks}
	statusCode := http.StatusOK

	notReady := func() {
		resp.Status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	if h.pool == nil {
		checks["database"] = "not_configured"
		notReady()
		c.JSON(statusCode, resp)

		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.pool.HealthCheck(ctx); err != nil {
		h.log.WithError(err).Error("readiness: database health check failed")
		checks["database"] = "error"
		notReady()
		c.JSON(statusCode, resp)

		return
	}

	current, pending, err := db.AppliedVersion(ctx, h.pool, migrations.FS)

	switch {
	case err != nil:
		h.log.WithError(err).Error("readiness: schema check failed")
		checks["schema"] = "error"
		notReady()
	case pending:
		checks["schema"] = "pending"
		notReady()
	default:
		checks["schema"] = "ok"
	}

	resp.SchemaVersion = current
	c.JSON(statusCode, resp)
}

// exportStatus is informational: an unwritable export dir only disables
// exports.
func (h *HealthHandler) exportStatus() string {
	if h.probe == nil {
		return "unknown"
	}

	if err := h.probe(); err != nil {
		return "unavailable"
	}

	return "ok"
}
