package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/domain"
	"github.com/adcommander/adcmdr-tools/internal/metrics"
	"github.com/adcommander/adcmdr-tools/internal/models"
)

// Deletion scopes for metrics.StatsDeletedTotal.
const (
	scopeRogue = "rogue"
	scopeAll   = "all"
	scopeAd    = "ad"
)

// Compile-time check: *StatsMaintenance must satisfy domain.StatsService.
var _ domain.StatsService = (*StatsMaintenance)(nil)

// StatsMaintenance finds and deletes statistics rows.
type StatsMaintenance struct {
	store statsStore
	log   *logrus.Logger
}

// NewStatsMaintenance creates a StatsMaintenance.
func NewStatsMaintenance(store statsStore, log *logrus.Logger) *StatsMaintenance {
	return &StatsMaintenance{store: store, log: log}
}

// FindRogue returns the rows whose ad no longer exists in any status.
func (s *StatsMaintenance) FindRogue(ctx context.Context) (*models.RogueStats, error) {
	rogue, err := s.store.FindRogue(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding rogue stats: %w", err)
	}

	return rogue, nil
}

// DeleteRogue deletes exactly the rows FindRogue reports, batched by the
// distinct ad ids of each kind.
func (s *StatsMaintenance) DeleteRogue(ctx context.Context, confirm bool) (*models.DeleteStatsResult, error) {
	if !confirm {
		return nil, models.ErrNotConfirmed
	}

	rogue, err := s.FindRogue(ctx)
	if err != nil {
		return nil, err
	}

	res := &models.DeleteStatsResult{}

	res.Impressions, err = s.store.DeleteStatsForAds(ctx, models.StatImpression, rogue.AdIDs(models.StatImpression))
	if err != nil {
		return nil, fmt.Errorf("deleting rogue impressions: %w", err)
	}

	res.Clicks, err = s.store.DeleteStatsForAds(ctx, models.StatClick, rogue.AdIDs(models.StatClick))
	if err != nil {
		return nil, fmt.Errorf("deleting rogue clicks: %w", err)
	}

	recordDeleted(scopeRogue, res)

	return res, nil
}

// DeleteAll empties both statistics tables.
func (s *StatsMaintenance) DeleteAll(ctx context.Context, confirm bool) (*models.DeleteStatsResult, error) {
	if !confirm {
		return nil, models.ErrNotConfirmed
	}

	res, err := s.store.DeleteAllStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("deleting all stats: %w", err)
	}

	recordDeleted(scopeAll, res)

	return res, nil
}

// DeleteForAd deletes every row of one ad, whether or not the ad exists.
func (s *StatsMaintenance) DeleteForAd(ctx context.Context, adID int64, confirm bool) (*models.DeleteStatsResult, error) {
	if adID <= 0 {
		return nil, models.ErrInvalidAdID
	}

	if !confirm {
		return nil, models.ErrNotConfirmed
	}

	ids := []int64{adID}
	res := &models.DeleteStatsResult{}

	var err error

	res.Impressions, err = s.store.DeleteStatsForAds(ctx, models.StatImpression, ids)
	if err != nil {
		return nil, fmt.Errorf("deleting impressions of ad %d: %w", adID, err)
	}

	res.Clicks, err = s.store.DeleteStatsForAds(ctx, models.StatClick, ids)
	if err != nil {
		return nil, fmt.Errorf("deleting clicks of ad %d: %w", adID, err)
	}

	recordDeleted(scopeAd, res)

	return res, nil
}

func recordDeleted(scope string, res *models.DeleteStatsResult) {
	metrics.StatsDeletedTotal.WithLabelValues(scope).Add(float64(res.Impressions + res.Clicks))
}
