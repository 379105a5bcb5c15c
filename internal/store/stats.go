package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

// statsTables maps each stat kind to its table. Table names never come
// from input.
var statsTables = map[models.StatKind]string{
	models.StatImpression: "adcmdr_impressions",
	models.StatClick:      "adcmdr_clicks",
}

func statsTable(kind models.StatKind) (string, error) {
	t, ok := statsTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown stat kind %q", kind)
	}

	return t, nil
}

// StatsStore handles the impression and click tables.
type StatsStore struct {
	Base
}

// NewStatsStore creates a new StatsStore.
func NewStatsStore(base Base) *StatsStore {
	return &StatsStore{Base: base}
}

func collectStats(rows pgx.Rows, kind models.StatKind) ([]models.Stat, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Stat, error) {
		s := models.Stat{Kind: kind}
		err := row.Scan(&s.ID, &s.AdID, &s.Timestamp, &s.Count)

		return s, err
	})
}

// InsertStat inserts one row unless a row for the same ad and timestamp
// already exists. It reports whether a row was written.
func (s *StatsStore) InsertStat(ctx context.Context, stat models.Stat) (bool, error) {
	table, err := statsTable(stat.Kind)
	if err != nil {
		return false, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx,
		`INSERT INTO `+table+` (ad_id, timestamp, count) VALUES ($1, $2, $3)
		ON CONFLICT (ad_id, timestamp) DO NOTHING`,
		stat.AdID, stat.Timestamp, stat.Count)
	if err != nil {
		return false, fmt.Errorf("inserting %s stat: %w", stat.Kind, err)
	}

	return tag.RowsAffected() > 0, nil
}

// StatsForAds returns the rows of kind for the given ads, ordered by ad and
// timestamp.
func (s *StatsStore) StatsForAds(ctx context.Context, kind models.StatKind, adIDs []int64) ([]models.Stat, error) {
	if len(adIDs) == 0 {
		return nil, nil
	}

	table, err := statsTable(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		`SELECT id, ad_id, timestamp, count FROM `+table+`
		WHERE ad_id = ANY($1) ORDER BY ad_id, timestamp`, adIDs)
	if err != nil {
		return nil, fmt.Errorf("querying %s stats: %w", kind, err)
	}

	stats, err := collectStats(rows, kind)
	if err != nil {
		return nil, fmt.Errorf("scanning %s stats: %w", kind, err)
	}

	return stats, nil
}

// FindRogue returns the rows whose ad id matches no ad post in any status.
// With no ads at all every row is rogue.
func (s *StatsStore) FindRogue(ctx context.Context) (*models.RogueStats, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	out := &models.RogueStats{}

	for _, kind := range models.StatKinds() {
		table := statsTables[kind]

		rows, err := s.Pool.Query(ctx,
			`SELECT st.id, st.ad_id, st.timestamp, st.count FROM `+table+` st
			WHERE NOT EXISTS (SELECT 1 FROM posts p WHERE p.id = st.ad_id AND p.post_type = $1)
			ORDER BY st.ad_id, st.timestamp`, models.PostTypeAd)
		if err != nil {
			return nil, fmt.Errorf("querying rogue %s stats: %w", kind, err)
		}

		stats, err := collectStats(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scanning rogue %s stats: %w", kind, err)
		}

		if kind == models.StatClick {
			out.Clicks = stats
		} else {
			out.Impressions = stats
		}
	}

	return out, nil
}

// DeleteStatsForAds deletes every row of kind belonging to the given ads.
func (s *StatsStore) DeleteStatsForAds(ctx context.Context, kind models.StatKind, adIDs []int64) (int64, error) {
	if len(adIDs) == 0 {
		return 0, nil
	}

	table, err := statsTable(kind)
	if err != nil {
		return 0, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, `DELETE FROM `+table+` WHERE ad_id = ANY($1)`, adIDs)
	if err != nil {
		return 0, fmt.Errorf("deleting %s stats: %w", kind, err)
	}

	return tag.RowsAffected(), nil
}

// DeleteAllStats empties both tables and reports how many rows they held.
func (s *StatsStore) DeleteAllStats(ctx context.Context) (*models.DeleteStatsResult, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("deleting all stats: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	res := &models.DeleteStatsResult{}
	counts := map[models.StatKind]*int64{
		models.StatImpression: &res.Impressions,
		models.StatClick:      &res.Clicks,
	}

	for kind, n := range counts {
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM `+statsTables[kind]).Scan(n); err != nil {
			return nil, fmt.Errorf("counting %s stats: %w", kind, err)
		}
	}

	if _, err := tx.Exec(ctx, `TRUNCATE adcmdr_impressions, adcmdr_clicks`); err != nil {
		return nil, fmt.Errorf("truncating stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing stats truncate: %w", err)
	}

	return res, nil
}
