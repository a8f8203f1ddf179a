package spss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstat/statread/endian"
	"github.com/colstat/statread/text"
)

func TestDecodeNumericFinite(t *testing.T) {
	buf := make([]byte, 8)
	endian.GetLittleEndianEngine().PutUint64(buf, math.Float64bits(42.5))

	v := &Variable{}
	n, err := DecodeNumeric(buf, endian.GetLittleEndianEngine(), v, nil)
	require.NoError(t, err)
	require.False(t, n.SystemMissing)
	require.False(t, n.UserMissing)
	require.Equal(t, 42.5, n.Value)
}

func TestDecodeNumericSystemMissing(t *testing.T) {
	buf := make([]byte, 8)
	endian.GetLittleEndianEngine().PutUint64(buf, sysMissingBits)

	v := &Variable{}
	n, err := DecodeNumeric(buf, endian.GetLittleEndianEngine(), v, nil)
	require.NoError(t, err)
	require.True(t, n.SystemMissing)
}

func TestDecodeNumericNaNIsSystemMissing(t *testing.T) {
	buf := make([]byte, 8)
	endian.GetLittleEndianEngine().PutUint64(buf, math.Float64bits(math.NaN()))

	v := &Variable{}
	n, err := DecodeNumeric(buf, endian.GetLittleEndianEngine(), v, nil)
	require.NoError(t, err)
	require.True(t, n.SystemMissing)
}

func TestDecodeNumericUserMissingDiscrete(t *testing.T) {
	buf := make([]byte, 8)
	endian.GetLittleEndianEngine().PutUint64(buf, math.Float64bits(9.0))

	v := &Variable{
		MissingDoubles:    []float64{9.0},
		MissingDoubleBits: []uint64{math.Float64bits(9.0)},
	}
	n, err := DecodeNumeric(buf, endian.GetLittleEndianEngine(), v, nil)
	require.NoError(t, err)
	require.False(t, n.SystemMissing)
	require.True(t, n.UserMissing)
	require.Equal(t, "9", n.MissingLabel)
}

func TestDecodeNumericUserMissingRange(t *testing.T) {
	buf := make([]byte, 8)
	endian.GetLittleEndianEngine().PutUint64(buf, math.Float64bits(97.0))

	v := &Variable{
		MissingRange:      true,
		MissingDoubles:    []float64{90.0, 99.0},
		MissingDoubleBits: []uint64{math.Float64bits(90.0), math.Float64bits(99.0)},
	}
	n, err := DecodeNumeric(buf, endian.GetLittleEndianEngine(), v, nil)
	require.NoError(t, err)
	require.True(t, n.UserMissing)
	require.Equal(t, "MISSING", n.MissingLabel)
}

func TestDecodeNumericUserMissingPrefersValueLabel(t *testing.T) {
	buf := make([]byte, 8)
	endian.GetLittleEndianEngine().PutUint64(buf, math.Float64bits(9.0))

	v := &Variable{
		MissingDoubles:    []float64{9.0},
		MissingDoubleBits: []uint64{math.Float64bits(9.0)},
	}
	labelFor := func(bits uint64) (string, bool) {
		if bits == math.Float64bits(9.0) {
			return "Refused", true
		}
		return "", false
	}

	n, err := DecodeNumeric(buf, endian.GetLittleEndianEngine(), v, labelFor)
	require.NoError(t, err)
	require.True(t, n.UserMissing)
	require.Equal(t, "Refused", n.MissingLabel)
}

func TestConvertDateRoundTrips(t *testing.T) {
	// 1970-01-01 expressed in SPSS's 1582-10-14 epoch seconds is
	// exactly spssSecShift; converting back yields day 0.
	require.Equal(t, int32(0), ConvertDate(float64(spssSecShift)))
}

func TestConvertDateTimeProducesMicroseconds(t *testing.T) {
	// One second past the SPSS epoch-aligned 1970-01-01 instant should
	// be 1,000,000 microseconds.
	require.Equal(t, int64(1_000_000), ConvertDateTime(float64(spssSecShift+1)))
}

func TestConvertTimeProducesNanosecondsOfDay(t *testing.T) {
	require.Equal(t, int64(3_600_000_000_000), ConvertTime(3600))
}

func TestDecodeStringTrimsAndClassifiesMissing(t *testing.T) {
	v := &Variable{MissingStrings: []string{"NA"}}

	value, isMissing := DecodeString([]byte("NA      "), text.UTF8, v)
	require.True(t, isMissing)
	require.Equal(t, "NA", value)

	value, isMissing = DecodeString([]byte("hello   "), text.UTF8, v)
	require.False(t, isMissing)
	require.Equal(t, "hello", value)
}
