// Package httputil provides shared HTTP response helpers.
package httputil

import "github.com/gin-gonic/gin"

// Error codes shared by middleware and handlers.
const (
	CodeInvalidRequest   = "invalid_request"
	CodeNotFound         = "not_found"
	CodeInternalError    = "internal_error"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeInvalidNonce     = "invalid_nonce"
	CodeRateLimited      = "rate_limited"
	CodeImportInProgress = "import_in_progress"
	CodeUnavailable      = "unavailable"
	CodePayloadTooLarge  = "payload_too_large"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// RequestID returns the request ID set by the request ID middleware.
func RequestID(c *gin.Context) string {
	return c.GetString("request_id")
}

// RespondError writes a standardized JSON error response and aborts the request.
func RespondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: RequestID(c),
	})
}
