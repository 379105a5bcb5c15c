package sanitize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

var timestampLayouts = []string{
	models.PostDateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// toInt parses an integer; unparseable input becomes 0.
func toInt(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}

		return int64(x)
	case bool:
		if x {
			return 1
		}

		return 0
	}

	s := strings.TrimSpace(models.CellString(v))

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int64(f)
	}

	return 0
}

// toBool normalises truthy spellings to 1 and everything else to 0.
func toBool(v any) int64 {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}

		return 0
	case int64, int, float64:
		if toInt(x) != 0 {
			return 1
		}

		return 0
	}

	switch strings.ToLower(strings.TrimSpace(models.CellString(v))) {
	case "1", "true", "yes", "on", "y":
		return 1
	default:
		return 0
	}
}

// toTimestamp validates a date-time and renders it in PostDateLayout.
func toTimestamp(v any) (string, bool) {
	s := strings.TrimSpace(models.CellString(v))

	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Format(models.PostDateLayout), true
		}
	}

	return "", false
}
