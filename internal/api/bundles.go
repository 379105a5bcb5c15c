package api

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/bundle"
	"github.com/adcommander/adcmdr-tools/internal/domain"
	"github.com/adcommander/adcmdr-tools/internal/models"
)

// BundleHandler serves export and bundle management endpoints.
type BundleHandler struct {
	*actions
	exports domain.ExportService
	bundles domain.BundleService
}

// NewBundleHandler creates a BundleHandler.
func NewBundleHandler(exports domain.ExportService, bundles domain.BundleService, log *logrus.Logger, siteURL string) *BundleHandler {
	return &BundleHandler{
		actions: newActions(log, siteURL),
		exports: exports,
		bundles: bundles,
	}
}

// exportForm is the export-now request body, as JSON or form values.
type exportForm struct {
	Types        []string `json:"types" form:"types[]"`
	IncludeStats bool     `json:"include_stats" form:"include_stats"`
}

// bundleLink is returned with a fresh export.
type bundleLink struct {
	*models.ExportResult
	Download string `json:"download"`
}

// Export handles POST /api/v1/export.
func (h *BundleHandler) Export(c *gin.Context) {
	var form exportForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid export request")
		return
	}

	types, err := models.ParseEntityTypes(form.Types)
	if err != nil {
		h.respondFailure(c, models.ActionExportNow, err)
		return
	}

	res, err := h.exports.Export(c.Request.Context(), models.ExportRequest{
		Types:        types,
		IncludeStats: form.IncludeStats,
	})
	if err != nil {
		h.respondFailure(c, models.ActionExportNow, err)
		return
	}

	h.audit(c, models.ActionExportNow, models.ResultSuccess, logrus.Fields{
		"bundle":   res.Bundle,
		"rows":     res.Rows,
		"mirrored": res.Mirrored,
	})

	h.succeed(c, models.ActionExportNow, "Bundle "+res.Bundle+" created.", bundleLink{
		ExportResult: res,
		Download:     strings.TrimSuffix(c.FullPath(), "/export") + "/bundles/" + res.Bundle,
	})
}

// List handles GET /api/v1/bundles.
func (h *BundleHandler) List(c *gin.Context) {
	list, err := h.bundles.ListBundles()
	if err != nil {
		h.log.WithError(err).Error("listing bundles")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to list bundles")

		return
	}

	c.JSON(http.StatusOK, gin.H{"bundles": list})
}

// Download handles GET /api/v1/bundles/:name.
func (h *BundleHandler) Download(c *gin.Context) {
	name := c.Param("name")

	f, modTime, err := h.bundles.OpenBundle(name)
	switch {
	case errors.Is(err, bundle.ErrInvalidName):
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid bundle name")
		return
	case errors.Is(err, bundle.ErrBundleNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "bundle not found")
		return
	case err != nil:
		h.log.WithError(err).WithField("bundle", name).Error("opening bundle")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to open bundle")

		return
	}
	defer f.Close() //nolint:errcheck // read-only file.

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Header("Content-Type", "application/zip")
	http.ServeContent(c.Writer, c.Request, name, modTime, f)
}

// Delete handles DELETE /api/v1/bundles/:name.
func (h *BundleHandler) Delete(c *gin.Context) {
	name := c.Param("name")

	if err := h.bundles.DeleteBundle(c.Request.Context(), name); err != nil {
		h.respondFailure(c, models.ActionDeleteBundle, err)
		return
	}

	h.audit(c, models.ActionDeleteBundle, models.ResultSuccess, logrus.Fields{"bundle": name})
	h.succeed(c, models.ActionDeleteBundle, fmt.Sprintf("Bundle %s deleted.", name), nil)
}
