package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/domain"
	"github.com/adcommander/adcmdr-tools/internal/models"
)

// StatsHandler serves the statistics maintenance endpoints.
type StatsHandler struct {
	*actions
	stats domain.StatsService
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(stats domain.StatsService, log *logrus.Logger, siteURL string) *StatsHandler {
	return &StatsHandler{actions: newActions(log, siteURL), stats: stats}
}

// confirmForm carries the explicit confirmation of destructive actions.
type confirmForm struct {
	Confirm bool `json:"confirm" form:"confirm"`
}

// confirmed reports whether the request explicitly confirmed the action. An
// absent or unparsable value counts as not confirmed.
func confirmed(c *gin.Context) bool {
	var form confirmForm
	if err := c.ShouldBind(&form); err != nil {
		return false
	}

	return form.Confirm
}

// rogueResponse lists rogue rows with the ads they reference.
type rogueResponse struct {
	*models.RogueStats
	Total int                         `json:"total"`
	AdIDs map[models.StatKind][]int64 `json:"ad_ids"`
}

// Rogue handles GET /api/v1/stats/rogue.
func (h *StatsHandler) Rogue(c *gin.Context) {
	rogue, err := h.stats.FindRogue(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("finding rogue stats")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to find rogue stats")

		return
	}

	ids := make(map[models.StatKind][]int64, 2)
	for _, kind := range models.StatKinds() {
		ids[kind] = rogue.AdIDs(kind)
	}

	c.JSON(http.StatusOK, rogueResponse{RogueStats: rogue, Total: rogue.Total(), AdIDs: ids})
}

// DeleteRogue handles POST /api/v1/stats/rogue/delete.
func (h *StatsHandler) DeleteRogue(c *gin.Context) {
	res, err := h.stats.DeleteRogue(c.Request.Context(), confirmed(c))
	h.finish(c, models.ActionDeleteRogueStats, res, err, nil)
}

// DeleteAll handles POST /api/v1/stats/delete-all.
func (h *StatsHandler) DeleteAll(c *gin.Context) {
	res, err := h.stats.DeleteAll(c.Request.Context(), confirmed(c))
	h.finish(c, models.ActionDeleteAllStats, res, err, nil)
}

// DeleteForAd handles POST /api/v1/stats/ads/:id/delete.
func (h *StatsHandler) DeleteForAd(c *gin.Context) {
	adID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.respondFailure(c, models.ActionDeleteAdStats, models.ErrInvalidAdID)
		return
	}

	res, err := h.stats.DeleteForAd(c.Request.Context(), adID, confirmed(c))
	h.finish(c, models.ActionDeleteAdStats, res, err, logrus.Fields{"ad_id": adID})
}

func (h *StatsHandler) finish(c *gin.Context, action string, res *models.DeleteStatsResult, err error, fields logrus.Fields) {
	if err != nil {
		h.respondFailure(c, action, err)
		return
	}

	audit := logrus.Fields{"impressions": res.Impressions, "clicks": res.Clicks}
	for k, v := range fields {
		audit[k] = v
	}

	h.audit(c, action, models.ResultSuccess, audit)

	notice := fmt.Sprintf("Deleted %d impression and %d click rows.", res.Impressions, res.Clicks)
	h.succeed(c, action, notice, res)
}
