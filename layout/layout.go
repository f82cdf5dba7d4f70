// Package layout is the single source of truth for the shared buffer field
// ordering. Both sides of the boundary (the native engine that writes the
// regions and the consumer that decodes them) resolve slot offsets through a
// Registry built from the same declarative field table, so neither side ever
// hardcodes an offset.
package layout

import (
	"github.com/rotisserie/eris"
)

var (
	ErrDuplicateField = eris.New("duplicate field name in layout schema")
	ErrEmptySchema    = eris.New("layout schema must contain at least one field")
)

// Kind is the logical type of a field. Every field occupies one float64 slot
// regardless of Kind; Kind selects the decode coercion applied on read.
type Kind int

const (
	// Float is passed through unchanged.
	Float Kind = iota
	// Int is truncated toward zero on read. Integer values round-tripped
	// through a foreign float64 buffer are not guaranteed to arrive as exact
	// integers on every host.
	Int
	// Flag is encoded as 0/1 and decoded as value >= 0.5.
	Flag
)

// Field describes one named slot in a layout.
type Field struct {
	Name string
	Kind Kind
}

// Registry maps field names to slot indices. The position of a name in the
// schema is its slot offset; that ordering is authoritative.
type Registry struct {
	names []string
	kinds []Kind
	index map[string]int
}

// NewRegistry builds a Registry from a declarative schema. Schemas with
// duplicate names are rejected.
func NewRegistry(fields []Field) (*Registry, error) {
	if len(fields) == 0 {
		return nil, ErrEmptySchema
	}
	r := &Registry{
		names: make([]string, 0, len(fields)),
		kinds: make([]Kind, 0, len(fields)),
		index: make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if _, ok := r.index[f.Name]; ok {
			return nil, eris.Wrapf(ErrDuplicateField, "field %q", f.Name)
		}
		r.index[f.Name] = i
		r.names = append(r.names, f.Name)
		r.kinds = append(r.kinds, f.Kind)
	}
	return r, nil
}

// Names returns the field names in slot order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Index returns the slot index for the given field name.
func (r *Registry) Index(name string) (int, bool) {
	i, ok := r.index[name]
	return i, ok
}

// MustIndex is Index for schema fields known to exist at compile time. It
// panics on unknown names, which is a programming error, not a runtime one.
func (r *Registry) MustIndex(name string) int {
	i, ok := r.index[name]
	if !ok {
		panic(eris.Errorf("layout: unknown field %q", name).Error())
	}
	return i
}

// KindOf returns the logical type of the given field.
func (r *Registry) KindOf(name string) (Kind, bool) {
	i, ok := r.index[name]
	if !ok {
		return Float, false
	}
	return r.kinds[i], true
}

// KindAt returns the logical type of the field at slot i.
func (r *Registry) KindAt(i int) Kind {
	return r.kinds[i]
}

// Stride is the number of float64 slots one record occupies.
func (r *Registry) Stride() int {
	return len(r.names)
}

// Coerce reconstructs the logical value of a raw slot according to kind.
// Flags decode as 0/1, ints truncate toward zero, floats pass through. The
// result is still carried as a float64 so records of mixed kinds keep a
// uniform stride.
func Coerce(kind Kind, raw float64) float64 {
	switch kind {
	case Flag:
		if raw >= 0.5 {
			return 1
		}
		return 0
	case Int:
		return float64(int64(raw))
	default:
		return raw
	}
}
