package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RawRow is one decoded CSV record keyed by header name. Values are untrusted.
type RawRow map[string]string

// Row is a flat interchange record. Values are scalars (int64, string, nil),
// lists ([]any) or maps (map[string]any) after sanitizing.
type Row map[string]any

// FromRaw converts a raw CSV record into an untyped Row.
func FromRaw(raw RawRow) Row {
	r := make(Row, len(raw))
	for k, v := range raw {
		r[k] = v
	}

	return r
}

// String returns the value at key as a string. Non-scalar values are
// rendered as JSON; nil renders as "".
func (r Row) String(key string) string {
	return CellString(r[key])
}

// Int returns the value at key as an int64, or 0 when absent or unparseable.
func (r Row) Int(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}

		return n
	default:
		return 0
	}
}

// Has reports whether key is present with a non-empty value.
func (r Row) Has(key string) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return false
	}

	if s, isStr := v.(string); isStr {
		return s != ""
	}

	return true
}

// CellString renders a row value for flat-text storage.
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		if x {
			return "1"
		}

		return "0"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}

		return string(b)
	}
}
