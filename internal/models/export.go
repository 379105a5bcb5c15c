package models

import (
	"strings"
	"time"
)

// ExportRequest selects what goes into a bundle.
type ExportRequest struct {
	Types        []EntityType `json:"types"`
	IncludeStats bool         `json:"include_stats"`
}

// ExportResult describes a freshly written bundle.
type ExportResult struct {
	Bundle   string             `json:"bundle"`
	Path     string             `json:"-"`
	Rows     map[EntityType]int `json:"rows"`
	Mirrored bool               `json:"mirrored"`
}

// BundleInfo describes one bundle archive on disk.
type BundleInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"last_modified"`
}

// StatusPolicy controls how imported post status and dates are handled.
type StatusPolicy string

const (
	// StatusPolicyDraft forces every imported post to draft with fresh dates.
	StatusPolicyDraft StatusPolicy = "draft"
	// StatusPolicyMatch keeps the exported status and dates.
	StatusPolicyMatch StatusPolicy = "match"
)

// ParseStatusPolicy maps any value other than "match" to draft.
func ParseStatusPolicy(s string) StatusPolicy {
	if StatusPolicy(strings.ToLower(strings.TrimSpace(s))) == StatusPolicyMatch {
		return StatusPolicyMatch
	}

	return StatusPolicyDraft
}

// ImportOptions selects what an uploaded bundle contributes.
type ImportOptions struct {
	Types        []EntityType `json:"types"`
	StatusPolicy StatusPolicy `json:"status"`
}

// EntityCounts tallies row outcomes for one entity type.
type EntityCounts struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ImportResult summarises one import run.
type ImportResult struct {
	ImportID string                       `json:"import_id"`
	Types    []EntityType                 `json:"types"`
	Entities map[EntityType]*EntityCounts `json:"entities"`
	Warnings []string                     `json:"warnings,omitempty"`
}

// Counts returns the tally for t, creating it on first use.
func (r *ImportResult) Counts(t EntityType) *EntityCounts {
	if r.Entities == nil {
		r.Entities = make(map[EntityType]*EntityCounts)
	}

	c, ok := r.Entities[t]
	if !ok {
		c = &EntityCounts{}
		r.Entities[t] = c
	}

	return c
}

// Created returns the total number of entities created across all types.
func (r *ImportResult) Created() int {
	n := 0
	for _, c := range r.Entities {
		n += c.Created
	}

	return n
}
