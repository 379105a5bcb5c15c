package models

import "time"

// StatKind discriminates the two statistics tables.
type StatKind string

const (
	StatImpression StatKind = "impression"
	StatClick      StatKind = "click"
)

// StatKinds lists both kinds in export order.
func StatKinds() []StatKind {
	return []StatKind{StatImpression, StatClick}
}

// Stat is one aggregated (ad, timestamp) statistics row.
type Stat struct {
	ID        int64     `json:"id"`
	AdID      int64     `json:"ad_id"`
	Timestamp time.Time `json:"timestamp"`
	Count     int64     `json:"count"`
	Kind      StatKind  `json:"stat_type"`
}

// RogueStats holds statistics rows whose ad no longer exists.
type RogueStats struct {
	Impressions []Stat `json:"impressions"`
	Clicks      []Stat `json:"clicks"`
}

// Total returns the number of rogue rows across both kinds.
func (r *RogueStats) Total() int {
	return len(r.Impressions) + len(r.Clicks)
}

// AdIDs returns the distinct ad ids referenced by the rows of one kind.
func (r *RogueStats) AdIDs(kind StatKind) []int64 {
	rows := r.Impressions
	if kind == StatClick {
		rows = r.Clicks
	}

	seen := make(map[int64]bool, len(rows))
	ids := make([]int64, 0, len(rows))

	for _, s := range rows {
		if !seen[s.AdID] {
			seen[s.AdID] = true
			ids = append(ids, s.AdID)
		}
	}

	return ids
}

// DeleteStatsResult reports how many rows a maintenance action removed.
type DeleteStatsResult struct {
	Impressions int64 `json:"impressions"`
	Clicks      int64 `json:"clicks"`
}
