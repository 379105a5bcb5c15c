// Package models defines data types for the ad bundle pipeline.
package models

import (
	"fmt"
	"strings"
)

// EntityType identifies one of the four kinds of data a bundle carries.
// Declaration order is the import order: ads reference groups, placements
// reference ads and groups, and stats reference ads.
type EntityType int

const (
	EntityGroups EntityType = iota
	EntityAds
	EntityPlacements
	EntityStats
)

var entityNames = [...]string{"groups", "ads", "placements", "stats"}

// AllEntityTypes returns every entity type in import order.
func AllEntityTypes() []EntityType {
	return []EntityType{EntityGroups, EntityAds, EntityPlacements, EntityStats}
}

// String returns the bundle name of the entity type (e.g. "groups").
func (t EntityType) String() string {
	if t < 0 || int(t) >= len(entityNames) {
		return fmt.Sprintf("EntityType(%d)", int(t))
	}

	return entityNames[t]
}

// Valid reports whether t is one of the declared entity types.
func (t EntityType) Valid() bool {
	return t >= 0 && int(t) < len(entityNames)
}

// MarshalText implements encoding.TextMarshaler so entity types can key JSON maps.
func (t EntityType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid entity type %d", int(t))
	}

	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EntityType) UnmarshalText(b []byte) error {
	parsed, err := ParseEntityType(string(b))
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}

// ParseEntityType parses a bundle entity name. Matching is case-insensitive.
func ParseEntityType(s string) (EntityType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range entityNames {
		if name == s {
			return EntityType(i), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
}

// ParseEntityTypes parses a selection of entity names and returns the
// distinct types in import order. Unknown names are an error.
func ParseEntityTypes(names []string) ([]EntityType, error) {
	seen := make(map[EntityType]bool, len(names))

	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}

			t, err := ParseEntityType(part)
			if err != nil {
				return nil, err
			}

			seen[t] = true
		}
	}

	out := make([]EntityType, 0, len(seen))
	for _, t := range AllEntityTypes() {
		if seen[t] {
			out = append(out, t)
		}
	}

	return out, nil
}

// ContainsEntity reports whether types includes t.
func ContainsEntity(types []EntityType, t EntityType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}

	return false
}
