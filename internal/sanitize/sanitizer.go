// Package sanitize validates and coerces untrusted rows against declared
// field sets.
package sanitize

import (
	"encoding/json"
	"html"
	"regexp"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/adcommander/adcmdr-tools/internal/models"
	"github.com/adcommander/adcmdr-tools/internal/schema"
)

// serializedObject matches PHP-serialized object payloads, which are never
// accepted even in unfiltered fields.
var serializedObject = regexp.MustCompile(`(^|[;{])[OC]:\d+:"`)


// Sanitizer coerces rows to the registry's declared fields.
type Sanitizer struct {
	registry *schema.Registry
	strict   *bluemonday.Policy
	rich     *bluemonday.Policy
}

// New creates a Sanitizer bound to reg.
func New(reg *schema.Registry) *Sanitizer {
	return &Sanitizer{
		registry: reg,
		strict:   bluemonday.StrictPolicy(),
		rich:     postContentPolicy(),
	}
}

// postContentPolicy allows the markup editors produce and leaves links as
// written.
func postContentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(false)
	p.AllowAttrs("target", "rel", "class", "style", "id", "title").Globally()

	return p
}

// Entity sanitizes raw against every declared field of t using the schema's
// unfiltered list. Output keys are bare field names.
func (s *Sanitizer) Entity(t models.EntityType, raw models.Row) (models.Row, error) {
	es, err := s.registry.Schema(t)
	if err != nil {
		return nil, err
	}

	return s.Sanitize(raw, s.registry.Headings(t, schema.AllFields), es.Unfiltered), nil
}

// Sanitize returns a row holding exactly the given fields. Unknown input keys
// are discarded. For each field the namespaced key is tried before the bare
// one. Empty cells count as absent.
func (s *Sanitizer) Sanitize(raw models.Row, fields []schema.Field, unfiltered []string) models.Row {
	out := make(models.Row, len(fields))

	for _, f := range fields {
		name := s.registry.StripKey(f.Name)
		v, present := s.lookup(raw, name)

		switch {
		case present && f.IsRepeater():
			out[name] = s.repeater(f, v, slices.Contains(unfiltered, name))
		case present:
			out[name] = s.value(f, v, slices.Contains(unfiltered, name))
		case f.Type == schema.TypeBool:
			out[name] = int64(0)
		default:
			out[name] = f.Default
		}
	}

	return out
}

func (s *Sanitizer) lookup(raw models.Row, name string) (any, bool) {
	for _, key := range []string{s.registry.MakeKey(name), name} {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}

		if str, isStr := v.(string); isStr && strings.TrimSpace(str) == "" {
			continue
		}

		return v, true
	}

	return nil, false
}

// value coerces a non-repeater field by shape.
func (s *Sanitizer) value(f schema.Field, v any, unfiltered bool) any {
	switch f.Shape {
	case schema.List:
		items, ok := decodeList(v)
		if !ok {
			return f.Default
		}

		out := make([]any, 0, len(items))
		for _, item := range items {
			if c, keep := s.scalar(f, item, unfiltered); keep {
				out = append(out, c)
			}
		}

		return out
	case schema.Map:
		m, ok := decodeMap(v)
		if !ok {
			return f.Default
		}

		out := make(map[string]any, len(m))
		for k, item := range m {
			if c, keep := s.scalar(f, item, unfiltered); keep {
				out[s.text(k)] = c
			}
		}

		return out
	default:
		c, ok := s.scalar(f, v, unfiltered)
		if !ok {
			return f.Default
		}

		return c
	}
}

// repeater coerces a list of sub-records. A candidate missing a required
// child is dropped whole; no survivors means the field default.
func (s *Sanitizer) repeater(f schema.Field, v any, unfiltered bool) any {
	candidates := decodeRecords(v)
	out := make([]any, 0, len(candidates))

	for _, cand := range candidates {
		rec := make(map[string]any, len(f.Children))
		valid := true

		for _, child := range f.Children {
			cv, ok := cand[child.Name]
			if ok && !isBlank(cv) {
				if c, keep := s.scalar(child, cv, unfiltered); keep {
					rec[child.Name] = c

					continue
				}
			}

			if child.Required {
				valid = false

				break
			}

			if child.Type == schema.TypeBool {
				rec[child.Name] = int64(0)
			} else {
				rec[child.Name] = child.Default
			}
		}

		if valid {
			out = append(out, rec)
		}
	}

	if len(out) == 0 {
		return f.Default
	}

	return out
}

// scalar coerces one value per the field type and restricted list. The
// second return is false when the value must be replaced by the default.
func (s *Sanitizer) scalar(f schema.Field, v any, unfiltered bool) (any, bool) {
	var out any

	switch f.Type {
	case schema.TypeInt:
		out = toInt(v)
	case schema.TypeBool:
		out = toBool(v)
	case schema.TypeTimestamp:
		ts, ok := toTimestamp(v)
		if !ok {
			return nil, false
		}

		out = ts
	case schema.TypeEditor:
		if unfiltered {
			out = safeString(models.CellString(v))
		} else {
			out = s.rich.Sanitize(models.CellString(v))
		}
	default:
		if unfiltered {
			out = safeString(models.CellString(v))
		} else {
			out = s.text(models.CellString(v))
		}
	}

	if !f.Allows(models.CellString(out)) {
		return nil, false
	}

	return out, true
}

// text strips every tag and trims surrounding whitespace. A "<" that does
// not open a tag is kept as text.
func (s *Sanitizer) text(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(escapeStrayLess(v))))
}

// escapeStrayLess escapes each "<" that is not closed by a ">" before the
// next "<" or the end of input.
func escapeStrayLess(v string) string {
	if !strings.Contains(v, "<") {
		return v
	}

	var b strings.Builder
	b.Grow(len(v) + 8)

	for i := 0; i < len(v); i++ {
		if v[i] != '<' {
			b.WriteByte(v[i])

			continue
		}

		if end := strings.IndexAny(v[i+1:], "<>"); end >= 0 && v[i+1+end] == '>' {
			b.WriteByte('<')
		} else {
			b.WriteString("&lt;")
		}
	}

	return b.String()
}

// safeString applies the checks every value gets, including unfiltered ones.
func safeString(v string) string {
	v = strings.ToValidUTF8(v, "")
	v = strings.ReplaceAll(v, "\x00", "")

	if serializedObject.MatchString(v) {
		return ""
	}

	return v
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}

	s, ok := v.(string)

	return ok && strings.TrimSpace(s) == ""
}

func decodeList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case string:
		var out []any
		if err := json.Unmarshal([]byte(x), &out); err != nil {
			return nil, false
		}

		return out, true
	default:
		return nil, false
	}
}

func decodeMap(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case string:
		var out map[string]any
		if err := json.Unmarshal([]byte(x), &out); err != nil {
			return nil, false
		}

		return out, true
	default:
		return nil, false
	}
}

// decodeRecords normalises a repeater value into sub-record candidates. A
// single object becomes a one-element list.
func decodeRecords(v any) []map[string]any {
	if s, ok := v.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil
		}

		v = decoded
	}

	switch x := v.(type) {
	case map[string]any:
		return []map[string]any{x}
	case []any:
		out := make([]map[string]any, 0, len(x))
		for _, item := range x {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}

		return out
	case []map[string]any:
		return x
	default:
		return nil
	}
}
