package endian

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestU32LittleEndian(t *testing.T) {
	b := []byte{0x01, 0x00, 0x00, 0x00}
	v, err := U32(GetLittleEndianEngine(), b, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(1), v)
}

func TestU32OutOfBounds(t *testing.T) {
	b := []byte{0x01, 0x02}
	_, err := U32(GetLittleEndianEngine(), b, 0)
	require.Error(t, err)
}

func TestIntegerWidths(t *testing.T) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, 0x1122334455667788)

	v4, err := Integer(GetLittleEndianEngine(), b, 0, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(0x55667788), v4)

	v8, err := Integer(GetLittleEndianEngine(), b, 0, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1122334455667788), v8)
}

func TestTruncatedDoubleLittleEndianFullWidth(t *testing.T) {
	want := 3.14159
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(want))

	got, err := TruncatedDouble(b, GetLittleEndianEngine())
	require.NoError(t, err)
	require.InDelta(t, want, got, 1e-12)
}

func TestTruncatedDoubleLittleEndianShort(t *testing.T) {
	// 4-byte truncated value: take the top 4 bytes of the full double as
	// stored by a little-endian writer (tail of the buffer), reconstruct
	// by padding the missing low-order bytes with zero.
	full := make([]byte, 8)
	binary.LittleEndian.PutUint64(full, math.Float64bits(2.0))

	short := full[4:8]
	got, err := TruncatedDouble(short, GetLittleEndianEngine())
	require.NoError(t, err)
	require.Equal(t, 2.0, got)
}

func TestTruncatedDoubleBigEndianShort(t *testing.T) {
	full := make([]byte, 8)
	binary.BigEndian.PutUint64(full, math.Float64bits(2.0))

	short := full[0:4]
	got, err := TruncatedDouble(short, GetBigEndianEngine())
	require.NoError(t, err)
	require.Equal(t, 2.0, got)
}

func TestTrimPadding(t *testing.T) {
	require.Equal(t, []byte("abc"), TrimPadding([]byte("abc   \x00\x00")))
	require.Equal(t, []byte{}, TrimPadding([]byte("   ")))
}

func TestTrimCString(t *testing.T) {
	require.Equal(t, []byte("abc"), TrimCString([]byte("abc\x00def  ")))
}
