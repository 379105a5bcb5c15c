package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/adcommander/adcmdr-tools/internal/models"
	"github.com/adcommander/adcmdr-tools/internal/store"
)

func seedAds(t *testing.T, ps *store.PostStore, n int) []int64 {
	t.Helper()

	ids := make([]int64, 0, n)

	for range n {
		p, err := ps.CreatePost(context.Background(), models.CreatePostRequest{Type: models.PostTypeAd}, nil)
		if err != nil {
			t.Fatalf("CreatePost: %v", err)
		}

		ids = append(ids, p.ID)
	}

	return ids
}

func TestInsertStat_Idempotent(t *testing.T) {
	ss := store.NewStatsStore(setupTestBase(t))
	ctx := context.Background()

	st := models.Stat{AdID: 7, Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Count: 5, Kind: models.StatClick}

	inserted, err := ss.InsertStat(ctx, st)
	if err != nil || !inserted {
		t.Fatalf("first InsertStat = %v, %v", inserted, err)
	}

	st.Count = 99

	inserted, err = ss.InsertStat(ctx, st)
	if err != nil || inserted {
		t.Fatalf("second InsertStat = %v, %v; want skipped", inserted, err)
	}

	rows, err := ss.StatsForAds(ctx, models.StatClick, []int64{7})
	if err != nil {
		t.Fatalf("StatsForAds: %v", err)
	}

	if len(rows) != 1 || rows[0].Count != 5 {
		t.Errorf("rows = %+v, want the original single row", rows)
	}

	imps, _ := ss.StatsForAds(ctx, models.StatImpression, []int64{7})
	if len(imps) != 0 {
		t.Error("click insert leaked into impressions")
	}
}

func TestFindRogue(t *testing.T) {
	base := setupTestBase(t)
	ss := store.NewStatsStore(base)
	ps := store.NewPostStore(base)
	ctx := context.Background()

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, id := range []int64{101, 102} {
		if _, err := ss.InsertStat(ctx, models.Stat{AdID: id, Timestamp: ts, Count: 1, Kind: models.StatImpression}); err != nil {
			t.Fatalf("InsertStat: %v", err)
		}
	}

	rogue, err := ss.FindRogue(ctx)
	if err != nil {
		t.Fatalf("FindRogue: %v", err)
	}

	if len(rogue.Impressions) != 2 {
		t.Errorf("with no ads every row is rogue; got %d", len(rogue.Impressions))
	}

	ids := seedAds(t, ps, 1)
	if _, err := ss.InsertStat(ctx, models.Stat{AdID: ids[0], Timestamp: ts, Count: 3, Kind: models.StatClick}); err != nil {
		t.Fatalf("InsertStat: %v", err)
	}

	rogue, _ = ss.FindRogue(ctx)
	if len(rogue.Impressions) != 2 || len(rogue.Clicks) != 0 {
		t.Errorf("rogue = %+v", rogue)
	}

	n, err := ss.DeleteStatsForAds(ctx, models.StatImpression, rogue.AdIDs(models.StatImpression))
	if err != nil || n != 2 {
		t.Errorf("DeleteStatsForAds = %d, %v; want 2", n, err)
	}

	res, err := ss.DeleteAllStats(ctx)
	if err != nil {
		t.Fatalf("DeleteAllStats: %v", err)
	}

	if res.Impressions != 0 || res.Clicks != 1 {
		t.Errorf("DeleteAllStats = %+v, want 0 impressions, 1 click", res)
	}
}
