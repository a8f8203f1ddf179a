package endian

import (
	"math"

	"github.com/colstat/statread/errs"
)

// U8 reads an unsigned 8-bit integer at offset.
func U8(b []byte, offset int) (uint8, error) {
	if offset < 0 || offset+1 > len(b) {
		return 0, &errs.BufferOutOfBounds{Offset: offset, Length: len(b)}
	}

	return b[offset], nil
}

// I8 reads a signed 8-bit integer at offset.
func I8(b []byte, offset int) (int8, error) {
	v, err := U8(b, offset)
	return int8(v), err
}

// U16 reads an unsigned 16-bit integer at offset under engine's byte order.
func U16(engine EndianEngine, b []byte, offset int) (uint16, error) {
	if offset < 0 || offset+2 > len(b) {
		return 0, &errs.BufferOutOfBounds{Offset: offset, Length: len(b)}
	}

	return engine.Uint16(b[offset : offset+2]), nil
}

// I16 reads a signed 16-bit integer at offset.
func I16(engine EndianEngine, b []byte, offset int) (int16, error) {
	v, err := U16(engine, b, offset)
	return int16(v), err
}

// U32 reads an unsigned 32-bit integer at offset.
func U32(engine EndianEngine, b []byte, offset int) (uint32, error) {
	if offset < 0 || offset+4 > len(b) {
		return 0, &errs.BufferOutOfBounds{Offset: offset, Length: len(b)}
	}

	return engine.Uint32(b[offset : offset+4]), nil
}

// I32 reads a signed 32-bit integer at offset.
func I32(engine EndianEngine, b []byte, offset int) (int32, error) {
	v, err := U32(engine, b, offset)
	return int32(v), err
}

// U64 reads an unsigned 64-bit integer at offset.
func U64(engine EndianEngine, b []byte, offset int) (uint64, error) {
	if offset < 0 || offset+8 > len(b) {
		return 0, &errs.BufferOutOfBounds{Offset: offset, Length: len(b)}
	}

	return engine.Uint64(b[offset : offset+8]), nil
}

// I64 reads a signed 64-bit integer at offset.
func I64(engine EndianEngine, b []byte, offset int) (int64, error) {
	v, err := U64(engine, b, offset)
	return int64(v), err
}

// F32 reads an IEEE-754 32-bit float at offset.
func F32(engine EndianEngine, b []byte, offset int) (float32, error) {
	v, err := U32(engine, b, offset)
	if err != nil {
		return 0, err
	}

	return math.Float32frombits(v), nil
}

// F64 reads an IEEE-754 64-bit float at offset.
func F64(engine EndianEngine, b []byte, offset int) (float64, error) {
	v, err := U64(engine, b, offset)
	if err != nil {
		return 0, err
	}

	return math.Float64frombits(v), nil
}

// Integer reads a width-byte (4 or 8) unsigned integer at offset and
// reconstructs it as a uint64, used to parameterize SAS's 32/64-bit page
// layout from a single code path.
//
// The width bytes are read under engine's byte order and zero-extended,
// so a 4-byte field yields the same value as U32 for either endianness.
func Integer(engine EndianEngine, b []byte, offset int, width int) (uint64, error) {
	if width != 4 && width != 8 {
		return 0, &errs.ParseError{Msg: "Integer: width must be 4 or 8"}
	}

	if offset < 0 || offset+width > len(b) {
		return 0, &errs.BufferOutOfBounds{Offset: offset, Length: len(b)}
	}

	if width == 8 {
		return U64(engine, b, offset)
	}

	v, err := U32(engine, b, offset)
	if err != nil {
		return 0, err
	}

	return uint64(v), nil
}

// TruncatedDouble reconstructs an IEEE-754 double from a SAS short
// numeric field storing 3..8 bytes of the most significant end of the
// value. Missing bytes are implicit trailing zeros.
func TruncatedDouble(b []byte, engine EndianEngine) (float64, error) {
	n := len(b)
	if n < 1 || n > 8 {
		return 0, &errs.ParseError{Msg: "TruncatedDouble: length must be 1..8"}
	}

	var out [8]byte
	if engine == GetBigEndianEngine() {
		copy(out[:n], b)
	} else {
		copy(out[8-n:], b)
	}

	bits := engine.Uint64(out[:])

	return math.Float64frombits(bits), nil
}

// TrimPadding drops trailing NUL and space bytes from b. The returned
// slice aliases b's backing array.
func TrimPadding(b []byte) []byte {
	end := len(b)
	for end > 0 && (b[end-1] == 0x00 || b[end-1] == 0x20) {
		end--
	}

	return b[:end]
}

// TrimCString behaves like TrimPadding but additionally truncates at the
// first embedded NUL byte, matching C-string semantics.
func TrimCString(b []byte) []byte {
	for i, c := range b {
		if c == 0x00 {
			b = b[:i]
			break
		}
	}

	return TrimPadding(b)
}
