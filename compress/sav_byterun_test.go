package compress

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstat/statread/endian"
)

func TestSAVByteRunSkipCode(t *testing.T) {
	d := NewSAVByteRunDecoder(endian.GetLittleEndianEngine(), 100)
	// Control chunk: code 0 (skip) at every slot, no data bytes follow.
	// The skips emit nothing, so the whole chunk is consumed and the
	// 8-byte record is NUL padding only.
	src := []byte{0, 0, 0, 0, 0, 0, 0, 0}
	out, rest, err := d.DecodeRecord(src, 8)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 8), out)
	require.Empty(t, rest)
}

func TestSAVByteRunRawDataCode(t *testing.T) {
	d := NewSAVByteRunDecoder(endian.GetLittleEndianEngine(), 100)
	raw := make([]byte, 8)
	endian.GetLittleEndianEngine().PutUint64(raw, math.Float64bits(42.5))
	src := append([]byte{253, 0, 0, 0, 0, 0, 0, 0}, raw...)

	out, rest, err := d.DecodeRecord(src, 8)
	require.NoError(t, err)
	require.Equal(t, raw, out)
	require.Empty(t, rest)
}

func TestSAVByteRunCompressedNumericCode(t *testing.T) {
	d := NewSAVByteRunDecoder(endian.GetLittleEndianEngine(), 100)
	// Code 105 decodes to the value 105-100 = 5.
	src := []byte{105, 0, 0, 0, 0, 0, 0, 0}

	out, rest, err := d.DecodeRecord(src, 8)
	require.NoError(t, err)
	require.Empty(t, rest)

	bits := endian.GetLittleEndianEngine().Uint64(out)
	require.Equal(t, float64(5), math.Float64frombits(bits))
}

func TestSAVByteRunSystemMissingCode(t *testing.T) {
	d := NewSAVByteRunDecoder(endian.GetLittleEndianEngine(), 100)
	src := []byte{255, 0, 0, 0, 0, 0, 0, 0}

	out, _, err := d.DecodeRecord(src, 8)
	require.NoError(t, err)

	bits := endian.GetLittleEndianEngine().Uint64(out)
	require.Equal(t, SystemMissingBits, bits)
}

func TestSAVByteRunEndOfDataSentinel(t *testing.T) {
	d := NewSAVByteRunDecoder(endian.GetLittleEndianEngine(), 100)
	src := []byte{252, 0, 0, 0, 0, 0, 0, 0}

	out, _, err := d.DecodeRecord(src, 8)
	require.NoError(t, err)
	require.True(t, d.Ended())
	require.Equal(t, make([]byte, 8), out)
}

func TestSAVByteRunStatePersistsAcrossRecords(t *testing.T) {
	d := NewSAVByteRunDecoder(endian.GetLittleEndianEngine(), 100)
	// A single control chunk describes two 8-byte output slots; the first
	// DecodeRecord call should consume only the first slot and leave the
	// second control byte pending for the next call.
	src := []byte{105, 106, 0, 0, 0, 0, 0, 0}

	out1, rest, err := d.DecodeRecord(src, 8)
	require.NoError(t, err)
	bits1 := endian.GetLittleEndianEngine().Uint64(out1)
	require.Equal(t, float64(5), math.Float64frombits(bits1))

	out2, _, err := d.DecodeRecord(rest, 8)
	require.NoError(t, err)
	bits2 := endian.GetLittleEndianEngine().Uint64(out2)
	require.Equal(t, float64(6), math.Float64frombits(bits2))
}
