package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// CodeActionFailed is reported for admin actions the server refused with a
// notice rather than an error code.
const CodeActionFailed = "action_failed"

// APIError represents a structured error response from the adcmdr API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("adcmdr: %d %s: %s (request_id=%s)", e.StatusCode, e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("adcmdr: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func statusOf(err error) int {
	var e *APIError
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsNotFound returns true if the error is a 404 not found.
func IsNotFound(err error) bool { return statusOf(err) == http.StatusNotFound }

// IsConflict returns true if the error is a 409 conflict, which the server
// uses when another import is running.
func IsConflict(err error) bool { return statusOf(err) == http.StatusConflict }

// IsRateLimited returns true if the error is a 429 rate limit.
func IsRateLimited(err error) bool { return statusOf(err) == http.StatusTooManyRequests }

// IsUnavailable returns true if the server cannot perform the action on its
// host, e.g. an unwritable export dir.
func IsUnavailable(err error) bool { return statusOf(err) == http.StatusServiceUnavailable }

// parseAPIError decodes an error body or a failed action answer; it falls
// back to raw text.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	if err := json.Unmarshal(body, apiErr); err == nil && apiErr.Code != "" {
		return apiErr
	}

	var action actionResponse
	if err := json.Unmarshal(body, &action); err == nil && action.Result != "" {
		apiErr.Code = CodeActionFailed
		apiErr.Message = action.Notice

		return apiErr
	}

	apiErr.Code = "unknown"
	apiErr.Message = string(body)

	return apiErr
}
