package frame

// Kind is the tagged-variant discriminant over a column's output builder
// (§9: "a sum type with a per-variant inner builder object"). It is
// distinct from format.StorageKind: StorageKind describes how a
// variable's raw bytes are stored in the file, Kind describes what the
// decoded column looks like to the output table (e.g. a SAS 3-byte
// truncated double and a Stata float64 both decode to KindFloat64).
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindDate     // days since 1970-01-01
	KindDateTime // microseconds since 1970-01-01T00:00:00
	KindTime     // nanoseconds since midnight
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt8:
		return "Int8"
	case KindInt16:
		return "Int16"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindDate:
		return "Date"
	case KindDateTime:
		return "DateTime"
	case KindTime:
		return "Time"
	case KindString:
		return "String"
	default:
		return "Unknown"
	}
}
