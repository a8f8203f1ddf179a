package stata

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstat/statread/text"
)

func TestDecodeInt8MissingAndFinite(t *testing.T) {
	v, isNull := DecodeInt8(50)
	require.False(t, isNull)
	require.Equal(t, int64(50), v)

	_, isNull = DecodeInt8(101)
	require.True(t, isNull)
}

func TestDecodeInt16Boundary(t *testing.T) {
	v, isNull := DecodeInt16(32740)
	require.False(t, isNull)
	require.Equal(t, int64(32740), v)

	_, isNull = DecodeInt16(32741)
	require.True(t, isNull)
}

func TestDecodeInt32Boundary(t *testing.T) {
	v, isNull := DecodeInt32(2147483620)
	require.False(t, isNull)
	require.Equal(t, int64(2147483620), v)

	_, isNull = DecodeInt32(2147483621)
	require.True(t, isNull)
}

func TestDecodeFloat32MissingAndOutOfRange(t *testing.T) {
	_, isNull := DecodeFloat32(0x7F000000)
	require.True(t, isNull)

	v, isNull := DecodeFloat32(math.Float32bits(1.0))
	require.False(t, isNull)
	require.Equal(t, 1.0, v)

	v, isNull = DecodeFloat32(math.Float32bits(2e38))
	require.False(t, isNull)
	require.True(t, math.IsNaN(v))
}

func TestDecodeFloat64MissingAndFinite(t *testing.T) {
	_, isNull := DecodeFloat64(0x7FE0000000000000)
	require.True(t, isNull)

	v, isNull := DecodeFloat64(math.Float64bits(3.25))
	require.False(t, isNull)
	require.Equal(t, 3.25, v)
}

func TestDecodeFixedStringTrimsPadding(t *testing.T) {
	raw := []byte("abc\x00\x00\x00\x00\x00")
	got := DecodeFixedString(raw, text.UTF8)
	require.Equal(t, "abc", got)
}

func TestConvertDateAndDateTime(t *testing.T) {
	require.Equal(t, int32(20089), ConvertDate(23742))
	require.Equal(t, int64(0), ConvertDateTime(3653*86400*1000))
}
