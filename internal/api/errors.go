package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/bundle"
	"github.com/adcommander/adcmdr-tools/internal/httputil"
	"github.com/adcommander/adcmdr-tools/internal/metrics"
	"github.com/adcommander/adcmdr-tools/internal/models"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest   = httputil.CodeInvalidRequest
	ErrCodeNotFound         = httputil.CodeNotFound
	ErrCodeInternalError    = httputil.CodeInternalError
	ErrCodeImportInProgress = httputil.CodeImportInProgress
	ErrCodeUnavailable      = httputil.CodeUnavailable
)

// respondError writes a standardized JSON error response, pulling the request
// ID from the Gin context (set by the request ID middleware).
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

// rejected are the errors caused by what the admin sent.
var rejected = []error{
	models.ErrNoEntityTypes,
	models.ErrUnknownEntityType,
	models.ErrInvalidAdID,
	models.ErrNotConfirmed,
	bundle.ErrNothingToExport,
	bundle.ErrNotZip,
	bundle.ErrUnsafeEntry,
	bundle.ErrTooLarge,
	bundle.ErrNoEntities,
	bundle.ErrInvalidName,
}

// unavailable are the errors caused by the host environment.
var unavailable = []error{
	bundle.ErrExportUnavailable,
	bundle.ErrNoTempSpace,
}

// classify returns the status and the admin-facing notice for err. A zero
// status means err is unexpected.
func classify(err error) (int, string) {
	for _, r := range rejected {
		if errors.Is(err, r) {
			return http.StatusBadRequest, r.Error()
		}
	}

	for _, u := range unavailable {
		if errors.Is(err, u) {
			return http.StatusServiceUnavailable, u.Error()
		}
	}

	return 0, ""
}

// respondFailure answers a failed action. Rejections and environment
// failures become action responses; conflicts, missing bundles and anything
// unexpected become error bodies.
func (a *actions) respondFailure(c *gin.Context, action string, err error) {
	a.audit(c, action, models.ResultFail, logrus.Fields{"error": err.Error()})

	switch {
	case errors.Is(err, models.ErrImportInProgress):
		respondError(c, http.StatusConflict, ErrCodeImportInProgress, models.ErrImportInProgress.Error())
		return
	case errors.Is(err, bundle.ErrBundleNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "bundle not found")
		return
	}

	status, notice := classify(err)
	if status == 0 {
		a.log.WithError(err).WithField("action", action).Error("admin action failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal error")

		return
	}

	metrics.ErrorsTotal.WithLabelValues("action_" + models.ResultFail).Inc()
	a.respond(c, status, models.ActionResponse{
		Action: action,
		Result: models.ResultFail,
		Notice: notice,
	})
}
