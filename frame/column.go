package frame

// Column is a finalized, append-only-built column: a typed value slice
// plus a parallel null bitmap. Exactly one of the typed slices is
// populated, selected by Kind.
type Column struct {
	Kind Kind
	Null []bool

	Int8  []int8
	Int16 []int16
	Int32 []int32
	Int64 []int64

	Float32 []float32
	Float64 []float64

	// Date, DateTime, and Time decode to a count of units since their
	// respective epoch (§6): days (int32), microseconds (int64), and
	// nanoseconds-of-day (int64). Kept in separate slices rather than reusing
	// Int64 so a caller can dispatch on Kind without also having to
	// remember which of Date/DateTime/Time aliases Int64.
	Date     []int32
	DateTime []int64
	Time     []int64

	String []string
}

// Len returns the column's row count.
func (c *Column) Len() int {
	switch c.Kind {
	case KindInt8:
		return len(c.Int8)
	case KindInt16:
		return len(c.Int16)
	case KindInt32:
		return len(c.Int32)
	case KindInt64:
		return len(c.Int64)
	case KindFloat32:
		return len(c.Float32)
	case KindFloat64:
		return len(c.Float64)
	case KindDate:
		return len(c.Date)
	case KindDateTime:
		return len(c.DateTime)
	case KindTime:
		return len(c.Time)
	case KindString:
		return len(c.String)
	default:
		return 0
	}
}

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool {
	return c.Null[i]
}
