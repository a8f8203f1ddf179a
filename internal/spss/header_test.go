package spss

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildHeader(t *testing.T, magic string, le bool, compression, rowCount int32, bias float64, label string) []byte {
	t.Helper()

	buf := make([]byte, 176)
	copy(buf[0:4], magic)

	order := binary.ByteOrder(binary.LittleEndian)
	layout := int32(2)
	if !le {
		order = binary.BigEndian
	}

	order.PutUint32(buf[64:68], uint32(layout))
	order.PutUint32(buf[68:72], uint32(8)) // nominal_case_size
	order.PutUint32(buf[72:76], uint32(compression))
	order.PutUint32(buf[80:84], uint32(rowCount))
	order.PutUint64(buf[84:92], math.Float64bits(bias))
	copy(buf[104:168], label)

	return buf
}

func TestParseHeaderLittleEndian(t *testing.T) {
	buf := buildHeader(t, "$FL3", true, 2, 100, 100.0, "my dataset")

	h, err := ParseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, 3, h.Version)
	require.Equal(t, int32(2), h.Compression)
	require.Equal(t, int64(100), h.RowCount)
	require.Equal(t, 100.0, h.Bias)
	require.Equal(t, "my dataset", h.FileLabel)
}

func TestParseHeaderBigEndian(t *testing.T) {
	buf := buildHeader(t, "$FL2", false, 0, 50, 100.0, "")

	h, err := ParseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, 2, h.Version)
	require.Equal(t, int64(50), h.RowCount)
}

func TestParseHeaderBadMagicRejected(t *testing.T) {
	buf := buildHeader(t, "XXXX", true, 0, 1, 100.0, "")
	_, err := ParseHeader(buf)
	require.Error(t, err)
}

func TestParseHeaderShortBufferRejected(t *testing.T) {
	_, err := ParseHeader(make([]byte, 10))
	require.Error(t, err)
}
