package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

// StatsService finds and deletes statistics rows.
type StatsService struct {
	c *Client
}

type confirmBody struct {
	Confirm bool `json:"confirm"`
}

// Rogue lists statistics rows whose ad no longer exists.
func (s *StatsService) Rogue(ctx context.Context) (*RogueReport, error) {
	var report RogueReport
	if err := s.c.get(ctx, "/api/v1/stats/rogue", nil, &report); err != nil {
		return nil, fmt.Errorf("rogue stats: %w", err)
	}

	return &report, nil
}

// DeleteRogue deletes rogue rows. Without confirm the server deletes nothing.
func (s *StatsService) DeleteRogue(ctx context.Context, confirm bool) (*models.DeleteStatsResult, error) {
	return s.delete(ctx, "/api/v1/stats/rogue/delete", models.ActionDeleteRogueStats, confirm)
}

// DeleteAll deletes every statistics row.
func (s *StatsService) DeleteAll(ctx context.Context, confirm bool) (*models.DeleteStatsResult, error) {
	return s.delete(ctx, "/api/v1/stats/delete-all", models.ActionDeleteAllStats, confirm)
}

// DeleteForAd deletes the rows of one ad.
func (s *StatsService) DeleteForAd(ctx context.Context, adID int64, confirm bool) (*models.DeleteStatsResult, error) {
	path := "/api/v1/stats/ads/" + strconv.FormatInt(adID, 10) + "/delete"
	return s.delete(ctx, path, models.ActionDeleteAdStats, confirm)
}

func (s *StatsService) delete(ctx context.Context, path, action string, confirm bool) (*models.DeleteStatsResult, error) {
	var res models.DeleteStatsResult
	if _, err := s.c.action(ctx, http.MethodPost, path, action, confirmBody{Confirm: confirm}, &res); err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	return &res, nil
}
