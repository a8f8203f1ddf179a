// Package frame provides the minimal columnar-table capability set §6
// requires of an output library: typed append-only column builders, a
// schema keyed by column name, and a row-order-preserving concat. It is
// not meant to compete with a real table library — decoders build
// against this package's interfaces, and a caller free to swap in a
// fuller implementation.
package frame

// Field describes one column's name and decoded output kind.
type Field struct {
	Name string
	Kind Kind
}

// Schema maps column name to Field in declaration order.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema builds a Schema with capacity for n columns.
func NewSchema(n int) *Schema {
	return &Schema{
		fields: make([]Field, 0, n),
		index:  make(map[string]int, n),
	}
}

// Add appends a field. The caller is responsible for name uniqueness;
// Add does not itself reject a duplicate (see errs.ErrIndicatorNameConflict
// for the one place the spec requires that check).
func (s *Schema) Add(name string, kind Kind) {
	s.index[name] = len(s.fields)
	s.fields = append(s.fields, Field{Name: name, Kind: kind})
}

// Len returns the column count.
func (s *Schema) Len() int { return len(s.fields) }

// Field returns the i'th field.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Fields returns the schema's fields in order. The returned slice must
// not be mutated by the caller.
func (s *Schema) Fields() []Field { return s.fields }

// IndexOf returns the column index for name, or -1 if absent.
func (s *Schema) IndexOf(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}

	return -1
}

// Equal reports whether two schemas have the same fields in the same
// order — the comparison §8's "schema parity" property relies on.
func (s *Schema) Equal(other *Schema) bool {
	if other == nil || len(s.fields) != len(other.fields) {
		return false
	}
	for i, f := range s.fields {
		if other.fields[i] != f {
			return false
		}
	}

	return true
}
