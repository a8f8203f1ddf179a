package stata

import (
	"math"

	"github.com/colstat/statread/text"
)

// The missing*/max* constants give the per-width sentinel and
// largest-valid-value pair a decoder compares an integer cell against
// (§4.5.2). Values are for format version >= 113; this package targets
// 114+ exclusively so the <113 (0x7E/0x7FFE/0x7FFFFFFE) boundaries are
// never consulted.
const (
	missingInt8  int8  = 101 // 0x65
	maxInt8      int8  = 100 // 0x64, one below the sentinel
	missingInt16 int16 = 32741
	maxInt16     int16 = 32740
	missingInt32 int32 = 2147483621
	maxInt32     int32 = 2147483620

	missingFloat32Bits uint32 = 0x7F000000
	missingFloat64Bits uint64 = 0x7FE0000000000000
)

// DecodedValue is the outcome of decoding one Stata cell.
type DecodedValue struct {
	Int    int64
	Float  float64
	Str    string
	IsNull bool
}

// DecodeInt8 classifies a signed byte against the int8 missing sentinel
// and positive-max boundary (§4.5.2).
func DecodeInt8(v int8) (value int64, isNull bool) {
	if v > maxInt8 {
		return 0, true
	}

	return int64(v), false
}

func DecodeInt16(v int16) (value int64, isNull bool) {
	if v > maxInt16 {
		return 0, true
	}

	return int64(v), false
}

func DecodeInt32(v int32) (value int64, isNull bool) {
	if v > maxInt32 {
		return 0, true
	}

	return int64(v), false
}

// DecodeFloat32 classifies a float32 cell by its raw bit pattern: the
// exact missing sentinel yields null, a value above the format's "max"
// but not the sentinel yields NaN, otherwise the finite value (§4.5.2).
func DecodeFloat32(bits uint32) (value float64, isNull bool) {
	if bits == missingFloat32Bits {
		return 0, true
	}

	v := math.Float32frombits(bits)
	if v > 1.701e38 || v < -1.701e38 {
		return math.NaN(), false
	}

	return float64(v), false
}

func DecodeFloat64(bits uint64) (value float64, isNull bool) {
	if bits == missingFloat64Bits {
		return 0, true
	}

	v := math.Float64frombits(bits)
	if v > 8.988e307 || v < -8.988e307 {
		return math.NaN(), false
	}

	return v, false
}

// DecodeFixedString trims trailing NUL/space padding and decodes width
// bytes of a fixed-length string cell (§4.5.2).
func DecodeFixedString(raw []byte, dec text.Decoder) string {
	return dec.Decode(raw)
}

// ConvertDate converts a %td*-formatted int32 (days since 1960-01-01)
// to days since 1970-01-01.
func ConvertDate(days int32) int32 {
	return days - 3653
}

// ConvertDateTime converts a %tc*-formatted float64 (milliseconds since
// 1960-01-01) to microseconds since 1970-01-01.
func ConvertDateTime(millis float64) int64 {
	return int64((millis - 3653*86400*1000) * 1000)
}
