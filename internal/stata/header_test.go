package stata

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func padTo(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

func TestParseOldHeaderVersion114(t *testing.T) {
	buf := make([]byte, 0, 256)
	buf = append(buf, 114)    // format version
	buf = append(buf, 0)      // byteorder: 0 = little-endian
	buf = append(buf, 0, 0)   // reserved filler
	buf = append(buf, 3, 0)   // nvar = 3 (u16 LE)

	var rowCount [4]byte
	binary.LittleEndian.PutUint32(rowCount[:], 10)
	buf = append(buf, rowCount[:]...)

	buf = append(buf, padTo("my dataset", 81)...)
	buf = append(buf, padTo("01 Jan 2024 00:00", 18)...)

	h, err := ParseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, 114, h.FormatVersion)
	require.Equal(t, binary.LittleEndian, h.ByteOrder)
	require.Equal(t, 3, h.Nvar)
	require.Equal(t, int64(10), h.RowCount)
	require.Equal(t, "my dataset", h.DatasetLabel)
	require.Equal(t, 4+2+4+81+18, h.HeaderEnd)
}

func TestParseOldHeaderRejectsUnsupportedVersion(t *testing.T) {
	buf := make([]byte, 256)
	buf[0] = 99
	_, err := ParseHeader(buf)
	require.Error(t, err)
}

// buildNewHeader assembles a minimal >=117-style header buffer following
// the exact byte layout parseNewHeader consumes, so the round-trip can
// be checked field by field.
func buildNewHeader(t *testing.T, version int, nvar int, rowCount int64, label string) []byte {
	t.Helper()

	var buf []byte
	buf = append(buf, []byte("<stata_dta>")...)
	buf = append(buf, make([]byte, 28-len("<stata_dta>"))...)

	buf = append(buf, []byte(versionDigits(version))...)
	buf = append(buf, make([]byte, 21)...) // </release><byteorder>
	buf = append(buf, []byte("LSF")...)
	buf = append(buf, make([]byte, 15)...) // </byteorder><K>

	var nvarBuf [2]byte
	binary.LittleEndian.PutUint16(nvarBuf[:], uint16(nvar))
	buf = append(buf, nvarBuf[:]...)

	buf = append(buf, make([]byte, 7)...) // </K><N>

	var rowBuf [8]byte
	binary.LittleEndian.PutUint64(rowBuf[:], uint64(rowCount))
	buf = append(buf, rowBuf[:]...)

	buf = append(buf, make([]byte, 11)...) // </N><label>

	labelWidth := 2
	var lw [2]byte
	binary.LittleEndian.PutUint16(lw[:], uint16(len(label)))
	buf = append(buf, lw[:labelWidth]...)
	buf = append(buf, []byte(label)...)

	buf = append(buf, make([]byte, 19)...) // </label><timestamp>
	ts := "29 Jul 2026 00:00"
	buf = append(buf, byte(len(ts)))
	buf = append(buf, []byte(ts)...)

	buf = append(buf, make([]byte, 42)...) // </timestamp></header><map>+16

	for i := 0; i < 10; i++ {
		var seek [8]byte
		binary.LittleEndian.PutUint64(seek[:], uint64(1000+i))
		buf = append(buf, seek[:]...)
	}

	return buf
}

func versionDigits(v int) string {
	switch v {
	case 118:
		return "118"
	case 117:
		return "117"
	default:
		return "119"
	}
}

func TestParseNewHeaderVersion118(t *testing.T) {
	buf := buildNewHeader(t, 118, 2, 5, "dataset label")

	h, err := ParseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, 118, h.FormatVersion)
	require.Equal(t, binary.LittleEndian, h.ByteOrder)
	require.Equal(t, 2, h.Nvar)
	require.Equal(t, int64(5), h.RowCount)
	require.Equal(t, "dataset label", h.DatasetLabel)
	require.Equal(t, int64(1000), h.Map.VarTypes)
	require.Equal(t, int64(1007), h.Map.Data)
	require.Equal(t, int64(1009), h.Map.ValueLabels)
}
