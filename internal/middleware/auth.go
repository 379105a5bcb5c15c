package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/httputil"
	"github.com/adcommander/adcmdr-tools/internal/security"
)

// authTimingFloor is the minimum response time for rejected credentials so
// a wrong key cannot be told apart from a malformed header by latency.
const authTimingFloor = 50 * time.Millisecond

// AdminKey is the gin context key set once the admin capability is proven.
const AdminKey = "admin"

// truncateKey returns at most the first 4 characters of key followed by "...".
func truncateKey(key string) string {
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return key
}

func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

// AdminAuth requires the configured admin API key as a Bearer token. Failed
// attempts are counted per client address; locked-out clients get 429
// before the key is even checked.
func AdminAuth(apiKey string, guard *security.FailureGuard, log *logrus.Logger) gin.HandlerFunc {
	want := sha256.Sum256([]byte(apiKey))

	return func(c *gin.Context) {
		client := c.ClientIP()

		if guard != nil && guard.IsBlocked(client) {
			httputil.RespondError(c, http.StatusTooManyRequests, httputil.CodeRateLimited, "too many failed authentication attempts")
			return
		}

		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		token := ExtractBearerToken(c)
		if token == "" {
			httputil.RespondError(c, http.StatusUnauthorized, httputil.CodeUnauthorized, "missing or invalid authorization header")
			return
		}

		got := sha256.Sum256([]byte(token))
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			logAuthFailure(log, c, token)

			if guard != nil {
				guard.RecordFailure(client)
			}

			httputil.RespondError(c, http.StatusUnauthorized, httputil.CodeUnauthorized, "invalid api key")
			return
		}

		if guard != nil {
			guard.Reset(client)
		}

		c.Set(AdminKey, true)
		c.Next()
	}
}

// ExtractBearerToken extracts the API key from the Authorization header.
func ExtractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func logAuthFailure(log *logrus.Logger, c *gin.Context, token string) {
	log.WithFields(logrus.Fields{
		"client_ip":  c.ClientIP(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"request_id": httputil.RequestID(c),
		"key_prefix": truncateKey(token),
	}).Warn("authentication failed: invalid api key")
}
