package spss

import (
	"math"
	"strconv"

	"github.com/colstat/statread/endian"
	"github.com/colstat/statread/text"
)

// SPSS's 1582-10-14 epoch expressed as an offset in seconds from the
// Unix epoch (1970-01-01), per §4.5.3 step 2.
const spssSecShift int64 = 12_219_379_200

const (
	secPerDay     = 86_400
	secMillisecond = 1_000
)

// Sentinel bit patterns a SPSS numeric cell uses in place of an
// ordinary finite value (§4.5.3 step 1).
const (
	sysMissingBits uint64 = 0xFFEFFFFFFFFFFFFF
	lowestBits     uint64 = 0xFFEFFFFFFFFFFFFE
	highestBits    uint64 = 0x7FEFFFFFFFFFFFFF
)

// DecodedNumeric is the result of decoding one SPSS numeric cell: a
// finite value, or a missing classification. SystemMissing is the
// format's hard null; UserMissing additionally carries an indicator
// label for informative-null columns (§4.6), distinct from
// SystemMissing which never does.
type DecodedNumeric struct {
	Value         float64
	SystemMissing bool
	UserMissing   bool
	MissingLabel  string
}

// DecodeNumeric reads one 8-byte numeric cell and classifies it against
// the sentinel bit patterns and the variable's declared missing values
// (§4.5.3 steps 1 and 3).
func DecodeNumeric(raw []byte, engine endian.EndianEngine, v *Variable, labelFor func(bits uint64) (string, bool)) (DecodedNumeric, error) {
	value, err := endian.F64(engine, raw, 0)
	if err != nil {
		return DecodedNumeric{}, err
	}

	bits := math.Float64bits(value)
	if isSystemMissingBits(bits) {
		return DecodedNumeric{SystemMissing: true}, nil
	}

	if missing, label := classifyUserMissing(value, bits, v, labelFor); missing {
		return DecodedNumeric{Value: value, UserMissing: true, MissingLabel: label}, nil
	}

	return DecodedNumeric{Value: value}, nil
}

func isSystemMissingBits(bits uint64) bool {
	if bits == sysMissingBits || bits == lowestBits || bits == highestBits {
		return true
	}

	return math.IsNaN(math.Float64frombits(bits))
}

// classifyUserMissing implements the Rust reference's is_missing_numeric
// / missing_numeric_indicator pair: a variable with no declared missing
// values is never user-missing; otherwise a range-mode declaration
// matches by interval (plus an optional third discrete value), and a
// discrete-mode declaration matches by exact bit pattern. The indicator
// label prefers the value's own value-label text, falling back to
// "MISSING" for a range match or the value's decimal form for a
// discrete match.
func classifyUserMissing(value float64, bits uint64, v *Variable, labelFor func(bits uint64) (string, bool)) (missing bool, label string) {
	if len(v.MissingDoubles) == 0 {
		return false, ""
	}

	if v.MissingRange {
		lo, hi := v.MissingDoubles[0], v.MissingDoubles[1]
		if lo > hi {
			lo, hi = hi, lo
		}

		inRange := value >= lo && value <= hi
		thirdMatch := len(v.MissingDoubleBits) > 2 && bits == v.MissingDoubleBits[2]

		if inRange || thirdMatch {
			if labelFor != nil {
				if l, ok := labelFor(bits); ok {
					return true, l
				}
			}

			return true, "MISSING"
		}

		return false, ""
	}

	for _, b := range v.MissingDoubleBits {
		if b == bits {
			if labelFor != nil {
				if l, ok := labelFor(bits); ok {
					return true, l
				}
			}

			return true, strconv.FormatFloat(value, 'g', -1, 64)
		}
	}

	return false, ""
}

// ConvertDate implements §4.5.3 step 2's Date conversion: days since
// 1970-01-01.
func ConvertDate(value float64) int32 {
	return int32((int64(value) - spssSecShift) / secPerDay)
}

// ConvertDateTime implements §4.5.3 step 2's DateTime conversion. The
// reference computes milliseconds since 1970-01-01; statread's
// frame.KindDateTime columns are microsecond-resolution, so the result
// is scaled up by an additional 1000 rather than truncated through a
// millisecond intermediate.
func ConvertDateTime(value float64) int64 {
	return (int64(value) - spssSecShift) * secMillisecond * 1000
}

// ConvertTime implements §4.5.3 step 2's Time conversion: nanoseconds
// since midnight.
func ConvertTime(value float64) int64 {
	return int64(value) * 1_000_000_000
}

// DecodeString slices, trims, and decodes one fixed-width string cell,
// then classifies it against the variable's declared missing strings
// (§4.5.3's string-variable analogue of classifyUserMissing).
func DecodeString(raw []byte, dec text.Decoder, v *Variable) (value string, isMissing bool) {
	decoded := dec.Decode(raw)

	for _, m := range v.MissingStrings {
		if decoded == m {
			return decoded, true
		}
	}

	return decoded, false
}
