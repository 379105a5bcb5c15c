package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/httputil"
)

const (
	// NonceHeader carries the per-action token on mutating requests.
	NonceHeader = "X-Action-Nonce"

	// NonceField is the form field checked when the header is absent, for
	// plain HTML form posts.
	NonceField = "_adcmdr_nonce"
)

// NonceVerifier checks a token issued for action.
type NonceVerifier interface {
	Verify(action, token string) (int, error)
}

// RequireNonce rejects the request with 403 unless it carries a valid token
// for action.
func RequireNonce(v NonceVerifier, action string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(NonceHeader)
		if token == "" {
			token = c.PostForm(NonceField)
		}

		if token == "" {
			httputil.RespondError(c, http.StatusForbidden, httputil.CodeInvalidNonce, "missing action nonce")
			return
		}

		if _, err := v.Verify(action, token); err != nil {
			log.WithFields(logrus.Fields{
				"action":     action,
				"client_ip":  c.ClientIP(),
				"request_id": httputil.RequestID(c),
			}).Warn("rejected request with invalid action nonce")

			httputil.RespondError(c, http.StatusForbidden, httputil.CodeInvalidNonce, "invalid or expired action nonce")
			return
		}

		c.Next()
	}
}
