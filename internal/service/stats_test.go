package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adcommander/adcmdr-tools/internal/models"
	"github.com/adcommander/adcmdr-tools/internal/service"
)

// newRogueFixture returns a host with ads {1,2,3} and impression rows for
// ads {1,2,4}, plus one click row for ad 4.
func newRogueFixture(t *testing.T) (*fakeHost, *service.StatsMaintenance) {
	t.Helper()

	h := newFakeHost(1, 1)
	for range 3 {
		h.addPost(models.Post{Type: models.PostTypeAd, Status: models.StatusDraft}, nil)
	}

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, ad := range []int64{1, 2, 4} {
		h.addStat(models.StatImpression, ad, ts, 1)
	}

	h.addStat(models.StatClick, 4, ts, 1)

	return h, service.NewStatsMaintenance(h, quietLogger())
}

func TestFindRogue(t *testing.T) {
	t.Parallel()

	_, svc := newRogueFixture(t)

	rogue, err := svc.FindRogue(context.Background())
	if err != nil {
		t.Fatalf("FindRogue: %v", err)
	}

	if len(rogue.Impressions) != 1 || rogue.Impressions[0].AdID != 4 {
		t.Errorf("rogue impressions = %+v, want only ad 4", rogue.Impressions)
	}

	if len(rogue.Clicks) != 1 || rogue.Clicks[0].AdID != 4 {
		t.Errorf("rogue clicks = %+v, want only ad 4", rogue.Clicks)
	}
}

func TestFindRogue_NoAds(t *testing.T) {
	t.Parallel()

	h := newFakeHost(1, 1)
	h.addStat(models.StatImpression, 1, time.Now().UTC(), 1)

	rogue, err := service.NewStatsMaintenance(h, quietLogger()).FindRogue(context.Background())
	if err != nil {
		t.Fatalf("FindRogue: %v", err)
	}

	if rogue.Total() != 1 {
		t.Errorf("Total() = %d, want 1", rogue.Total())
	}
}

func TestDeleteRogue(t *testing.T) {
	t.Parallel()

	h, svc := newRogueFixture(t)
	ctx := context.Background()

	res, err := svc.DeleteRogue(ctx, true)
	if err != nil {
		t.Fatalf("DeleteRogue: %v", err)
	}

	if res.Impressions != 1 || res.Clicks != 1 {
		t.Errorf("deleted = %+v, want 1 impression, 1 click", *res)
	}

	if got := h.statCount(models.StatImpression); got != 2 {
		t.Errorf("impressions left = %d, want 2", got)
	}

	again, err := svc.DeleteRogue(ctx, true)
	if err != nil {
		t.Fatalf("second DeleteRogue: %v", err)
	}

	if again.Impressions != 0 || again.Clicks != 0 {
		t.Errorf("second delete = %+v, want nothing", *again)
	}
}

func TestStatsMaintenance_RequiresConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		run  func(*service.StatsMaintenance) error
	}{
		{"rogue", func(s *service.StatsMaintenance) error {
			_, err := s.DeleteRogue(context.Background(), false)
			return err
		}},
		{"all", func(s *service.StatsMaintenance) error {
			_, err := s.DeleteAll(context.Background(), false)
			return err
		}},
		{"ad", func(s *service.StatsMaintenance) error {
			_, err := s.DeleteForAd(context.Background(), 4, false)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, svc := newRogueFixture(t)

			if err := tt.run(svc); !errors.Is(err, models.ErrNotConfirmed) {
				t.Errorf("err = %v, want ErrNotConfirmed", err)
			}

			if got := h.statCount(models.StatImpression); got != 3 {
				t.Errorf("impressions = %d, want 3 (untouched)", got)
			}
		})
	}
}

func TestDeleteForAd(t *testing.T) {
	t.Parallel()

	h, svc := newRogueFixture(t)
	ctx := context.Background()

	if _, err := svc.DeleteForAd(ctx, 0, true); !errors.Is(err, models.ErrInvalidAdID) {
		t.Errorf("ad 0: err = %v, want ErrInvalidAdID", err)
	}

	res, err := svc.DeleteForAd(ctx, 4, true)
	if err != nil {
		t.Fatalf("DeleteForAd: %v", err)
	}

	if res.Impressions != 1 || res.Clicks != 1 {
		t.Errorf("deleted = %+v, want 1 impression, 1 click", *res)
	}

	if got := len(h.statsOf(models.StatImpression, 2)); got != 1 {
		t.Errorf("rows of ad 2 = %d, want 1", got)
	}
}

func TestDeleteAll(t *testing.T) {
	t.Parallel()

	h, svc := newRogueFixture(t)

	res, err := svc.DeleteAll(context.Background(), true)
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}

	if res.Impressions != 3 || res.Clicks != 1 {
		t.Errorf("deleted = %+v, want 3 impressions, 1 click", *res)
	}

	if h.statCount(models.StatImpression)+h.statCount(models.StatClick) != 0 {
		t.Error("stats left after DeleteAll")
	}
}
