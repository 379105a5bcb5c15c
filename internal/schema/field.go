// Package schema declares the field sets of every bundle entity type.
//
// A Registry is the single source of truth shared by export, sanitizing and
// import. It is constructed explicitly and passed to the components that
// need it, so tests can inject variant schemas.
package schema

import "slices"

// FieldType is the value type of a declared field.
type FieldType int

const (
	TypeStr FieldType = iota
	TypeInt
	TypeEditor
	TypeBool
	TypeTimestamp
)

func (t FieldType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeEditor:
		return "editor"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "str"
	}
}

// Shape describes whether a field holds one value, a list, or a keyed map.
// Lists and maps are JSON-encoded in flat rows.
type Shape int

const (
	Scalar Shape = iota
	List
	Map
)

// Class is the row key class of a field.
type Class int

const (
	ClassPrimary Class = iota
	ClassMeta
	ClassExtra
)

// Field declares one row key.
type Field struct {
	Name       string
	Type       FieldType
	Shape      Shape
	Class      Class
	Default    any
	Restricted []string
	// Children marks a repeater field: the value is a list of sub-records
	// validated against these child specs.
	Children []Field
	// Required applies to child fields only. A sub-record missing a required
	// child is dropped as a whole.
	Required bool
}

// Allows reports whether v passes the field's restricted value list.
// Unrestricted fields allow everything.
func (f Field) Allows(v string) bool {
	if len(f.Restricted) == 0 {
		return true
	}

	return slices.Contains(f.Restricted, v)
}

// IsRepeater reports whether the field holds sub-records.
func (f Field) IsRepeater() bool {
	return len(f.Children) > 0
}
