package api

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/adcommander/adcmdr-tools/internal/domain"
	"github.com/adcommander/adcmdr-tools/internal/models"
)

// NonceHandler issues per-action tokens to authenticated admins.
type NonceHandler struct {
	nonces domain.NonceService
}

// NewNonceHandler creates a NonceHandler.
func NewNonceHandler(nonces domain.NonceService) *NonceHandler {
	return &NonceHandler{nonces: nonces}
}

type nonceResponse struct {
	Action    string `json:"action"`
	Nonce     string `json:"nonce"`
	ExpiresIn int    `json:"expires_in"`
}

// Issue handles GET /api/v1/nonce?action=<action>.
func (h *NonceHandler) Issue(c *gin.Context) {
	action := c.Query("action")
	if !slices.Contains(models.Actions(), action) {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "unknown action")
		return
	}

	c.JSON(http.StatusOK, nonceResponse{
		Action:    action,
		Nonce:     h.nonces.Issue(action),
		ExpiresIn: int(h.nonces.Lifetime().Seconds()),
	})
}
