package sas

import (
	"math"

	"github.com/colstat/statread/endian"
	"github.com/colstat/statread/text"
)

// DecodedNumeric is the result of decoding one SAS numeric cell: either
// a finite value, or a missing classification carrying the dot-letter
// indicator label used by informative-null columns (§4.6).
type DecodedNumeric struct {
	Value        float64
	Missing      bool
	MissingLabel string // ".", "._", or ".A".."Z" when Missing is true
}

// DecodeNumeric reconstructs a SAS numeric cell from its raw record
// bytes (§4.5.1 "Value decoding (per column)"): truncated-double
// reconstruction, bit-pattern missing classification, then (for the
// caller) temporal conversion per the column's Temporal class.
func DecodeNumeric(raw []byte, engine endian.EndianEngine) (DecodedNumeric, error) {
	value, err := endian.TruncatedDouble(raw, engine)
	if err != nil {
		return DecodedNumeric{}, err
	}

	bits := math.Float64bits(value)
	if missing, label := classifyMissing(bits); missing {
		return DecodedNumeric{Missing: true, MissingLabel: label}, nil
	}

	return DecodedNumeric{Value: value}, nil
}

// classifyMissing implements §4.5.1 step 2: abs_bits >= the canonical
// NaN/Inf exponent threshold means the value carries a missing tag in
// byte 5 (bit positions [47:40]).
func classifyMissing(bits uint64) (missing bool, label string) {
	absBits := bits & 0x7FFF_FFFF_FFFF_FFFF
	if absBits < 0x7FF0_0000_0000_0000 {
		return false, ""
	}

	typeByte := byte((bits >> 40) & 0xFF)

	switch {
	case typeByte >= 0xA5 && typeByte <= 0xBE:
		letter := 0xFF ^ typeByte // 0xBE -> 'A' ... 0xA5 -> 'Z'
		return true, "." + string(rune(letter))
	case typeByte == 0xD2:
		return true, "._"
	default:
		return true, "."
	}
}

// ConvertDate, ConvertDateTime, and ConvertTime apply §4.5.1 step 3's
// format-class conversion to a finite numeric value; the caller picks
// one by the column's already-classified temporal class.
//
//   - Date: days since 1970-01-01, via (value as i32) - 3653, falling
//     back to (value/86400) - 3653 for an out-of-range cast.
//   - DateTime: microseconds since 1970-01-01, via (value - 3653*86400) * 1e6.
//   - Time: nanoseconds-of-day, via value * 1e9.
func ConvertDate(value float64) int32 {
	if value < math.MinInt32 || value > math.MaxInt32 {
		return int32(value/86400) - 3653
	}

	return int32(value) - 3653
}

func ConvertDateTime(value float64) int64 {
	return int64((value - 3653*86400) * 1e6)
}

func ConvertTime(value float64) int64 {
	return int64(value * 1e9)
}

// DecodeCharacter slices, trims, and decodes one character cell (§4.5.1
// "Character decoding"). An empty decoded result becomes null only when
// missingStringAsNull is set.
func DecodeCharacter(raw []byte, dec text.Decoder, missingStringAsNull bool) (value string, isNull bool) {
	trimmed := endian.TrimCString(raw)
	decoded := dec.Decode(trimmed)

	if decoded == "" && missingStringAsNull {
		return "", true
	}

	return decoded, false
}
