package service

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

// Placement item type tags.
const (
	itemGroup = "g_"
	itemAd    = "a_"
)

// ImportContext is the state of one import run. It is created empty per run,
// handed to each phase and returned updated. The remap tables only ever hold
// entities that were created successfully.
type ImportContext struct {
	ImportID string
	Types    []models.EntityType
	Policy   models.StatusPolicy
	// AdIDs maps old ad ids to the ids created in this run.
	AdIDs map[int64]int64
	// GroupIDs maps old group ids to the ids created in this run.
	GroupIDs map[int64]int64
	// GroupMetaAfterAds holds group meta that references ad ids, keyed by
	// new group id, until ads have been imported.
	GroupMetaAfterAds map[int64]models.Row
}

// NewImportContext returns an empty context for one run.
func NewImportContext(importID string, types []models.EntityType, policy models.StatusPolicy) ImportContext {
	return ImportContext{
		ImportID:          importID,
		Types:             types,
		Policy:            policy,
		AdIDs:             make(map[int64]int64),
		GroupIDs:          make(map[int64]int64),
		GroupMetaAfterAds: make(map[int64]models.Row),
	}
}

// Imports reports whether t is part of this run.
func (ic ImportContext) Imports(t models.EntityType) bool {
	return models.ContainsEntity(ic.Types, t)
}

// MapAd resolves an old ad id.
func (ic ImportContext) MapAd(old int64) (int64, bool) {
	id, ok := ic.AdIDs[old]

	return id, ok
}

// MapGroup resolves an old group id.
func (ic ImportContext) MapGroup(old int64) (int64, bool) {
	id, ok := ic.GroupIDs[old]

	return id, ok
}

// RemapPlacementItems rewrites "g_<id>" and "a_<id>" references through the
// remap tables. Items that do not resolve are dropped; order is preserved.
func (ic ImportContext) RemapPlacementItems(items []any) []any {
	out := make([]any, 0, len(items))

	for _, item := range items {
		s := strings.TrimSpace(models.CellString(item))
		if len(s) <= len(itemGroup) {
			continue
		}

		tag, rest := s[:len(itemGroup)], s[len(itemGroup):]

		old, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			continue
		}

		var (
			id int64
			ok bool
		)

		switch tag {
		case itemGroup:
			id, ok = ic.MapGroup(old)
		case itemAd:
			id, ok = ic.MapAd(old)
		}

		if ok {
			out = append(out, tag+strconv.FormatInt(id, 10))
		}
	}

	return out
}

// RemapAdList rewrites a list of old ad ids, dropping unmapped ones.
func (ic ImportContext) RemapAdList(values []any) []any {
	out := make([]any, 0, len(values))

	for _, v := range values {
		if id, ok := ic.MapAd(cellInt(v)); ok {
			out = append(out, id)
		}
	}

	return out
}

// RemapAdKeys rewrites a map keyed by old ad ids, dropping unmapped keys.
func (ic ImportContext) RemapAdKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))

	for k, v := range m {
		old, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil {
			continue
		}

		if id, ok := ic.MapAd(old); ok {
			out[strconv.FormatInt(id, 10)] = v
		}
	}

	return out
}

// RemapGroupKeys resolves the keys of an ad's group map to new group ids.
// The result is sorted and free of duplicates.
func (ic ImportContext) RemapGroupKeys(m map[string]any) []int64 {
	seen := make(map[int64]bool, len(m))
	out := make([]int64, 0, len(m))

	for k := range m {
		old, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil {
			continue
		}

		if id, ok := ic.MapGroup(old); ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	slices.Sort(out)

	return out
}

func cellInt(v any) int64 {
	return models.Row{"v": v}.Int("v")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(models.PostDateLayout)
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(models.PostDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}
