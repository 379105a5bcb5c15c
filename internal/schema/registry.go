package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

// DefaultPrefix namespaces meta keys in the metadata store.
const DefaultPrefix = "adcmdr_"

// EntitySchema is the full declaration for one entity type.
type EntitySchema struct {
	Type       models.EntityType
	PrimaryKey string
	Primary    []Field
	Meta       []Field
	Extra      []Field
	// Unfiltered fields skip tag stripping when sanitized.
	Unfiltered []string
	// Deferred meta references ad ids and is resolved after ads are imported.
	Deferred []string
	// Special meta is written by a dedicated import step rather than copied.
	Special []string
}

// IsUnfiltered reports whether name bypasses tag stripping.
func (s *EntitySchema) IsUnfiltered(name string) bool { return slices.Contains(s.Unfiltered, name) }

// IsDeferred reports whether meta name is resolved after ads import.
func (s *EntitySchema) IsDeferred(name string) bool { return slices.Contains(s.Deferred, name) }

// IsSpecial reports whether meta name is handled by a dedicated import step.
func (s *EntitySchema) IsSpecial(name string) bool { return slices.Contains(s.Special, name) }

// Field looks up a declared field of any class by bare name.
func (s *EntitySchema) Field(name string) (Field, bool) {
	for _, group := range [][]Field{s.Primary, s.Meta, s.Extra} {
		for _, f := range group {
			if f.Name == name {
				return f, true
			}
		}
	}

	return Field{}, false
}

// HeadingOptions selects which field classes Headings returns.
type HeadingOptions struct {
	Primary bool
	Meta    bool
	Extra   bool
	// Prefix namespaces meta field names.
	Prefix bool
}

// AllFields selects every class with bare meta names.
var AllFields = HeadingOptions{Primary: true, Meta: true, Extra: true}

// ExportFields selects every class with namespaced meta names.
var ExportFields = HeadingOptions{Primary: true, Meta: true, Extra: true, Prefix: true}

// Registry holds the entity schemas and the meta key prefix.
type Registry struct {
	prefix  string
	schemas map[models.EntityType]*EntitySchema
}

// New builds a registry from explicit schemas.
func New(prefix string, schemas ...EntitySchema) *Registry {
	r := &Registry{
		prefix:  prefix,
		schemas: make(map[models.EntityType]*EntitySchema, len(schemas)),
	}

	for i := range schemas {
		s := schemas[i]
		r.schemas[s.Type] = &s
	}

	return r
}

// NewRegistry builds a registry with the built-in ad manager schemas.
func NewRegistry(prefix string) *Registry {
	return New(prefix, Builtin()...)
}

// Prefix returns the meta key namespace.
func (r *Registry) Prefix() string { return r.prefix }

// Schema returns the declaration for t.
func (r *Registry) Schema(t models.EntityType) (*EntitySchema, error) {
	s, ok := r.schemas[t]
	if !ok {
		return nil, fmt.Errorf("no schema registered for %s", t)
	}

	return s, nil
}

// Headings returns the ordered field list for t: primary, then meta, then
// extra. Unknown types return nil.
func (r *Registry) Headings(t models.EntityType, opts HeadingOptions) []Field {
	s, ok := r.schemas[t]
	if !ok {
		return nil
	}

	var out []Field

	if opts.Primary {
		out = append(out, s.Primary...)
	}

	if opts.Meta {
		for _, f := range s.Meta {
			if opts.Prefix {
				f.Name = r.MakeKey(f.Name)
			}

			out = append(out, f)
		}
	}

	if opts.Extra {
		out = append(out, s.Extra...)
	}

	return out
}

// HeadingNames returns the names of Headings(t, opts).
func (r *Registry) HeadingNames(t models.EntityType, opts HeadingOptions) []string {
	fields := r.Headings(t, opts)
	names := make([]string, len(fields))

	for i, f := range fields {
		names[i] = f.Name
	}

	return names
}

// MakeKey namespaces a meta key. Already namespaced keys are returned unchanged.
func (r *Registry) MakeKey(name string) string {
	if r.IsNamespaced(name) {
		return name
	}

	return r.prefix + name
}

// StripKey removes the namespace from a meta key, if present.
func (r *Registry) StripKey(name string) string {
	return strings.TrimPrefix(name, r.prefix)
}

// IsNamespaced reports whether name carries the meta prefix.
func (r *Registry) IsNamespaced(name string) bool {
	return r.prefix != "" && strings.HasPrefix(name, r.prefix)
}

// Split partitions a sanitized row by field class. Keys not declared by the
// schema are dropped.
func (s *EntitySchema) Split(row models.Row) (primary, meta, extra models.Row) {
	primary = pick(row, s.Primary)
	meta = pick(row, s.Meta)
	extra = pick(row, s.Extra)

	return primary, meta, extra
}

func pick(row models.Row, fields []Field) models.Row {
	out := make(models.Row, len(fields))
	for _, f := range fields {
		if v, ok := row[f.Name]; ok {
			out[f.Name] = v
		}
	}

	return out
}
