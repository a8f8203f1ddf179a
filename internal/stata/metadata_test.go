package stata

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstat/statread/format"
)

// placeFixedStrings writes n bufsize-byte C-string slots into buf
// starting at pos, returning the position just past the table — the
// mirror of readFixedStringTableSeq, used to build metadata_test.go's
// synthetic buffers.
func placeFixedStrings(buf []byte, pos, bufsize int, values []string) int {
	for _, v := range values {
		copy(buf[pos:pos+bufsize], v)
		pos += bufsize
	}

	return pos
}

func TestParseMetadataVersion118SeekBased(t *testing.T) {
	h := &Header{
		FormatVersion: 118,
		ByteOrder:     binary.LittleEndian,
		Nvar:          2,
		RowCount:      3,
	}
	h.Map = seekMap{
		VarTypes:        0,
		VarNames:        100,
		Formats:         400,
		ValueLabelNames: 700,
		VariableLabels:  1000,
	}

	buf := make([]byte, 2000)

	// VarTypes: seek+16, 2 bytes each. Column 0 is float64 (0xFFF6),
	// column 1 is a 5-byte fixed string.
	binary.LittleEndian.PutUint16(buf[16:18], rawTypeFloat64)
	binary.LittleEndian.PutUint16(buf[18:20], 5)

	placeFixedStrings(buf, int(h.Map.VarNames)+10, 129, []string{"amount", "code"})
	placeFixedStrings(buf, int(h.Map.Formats)+9, 57, []string{"%tc", "%9s"})
	placeFixedStrings(buf, int(h.Map.ValueLabelNames)+19, 129, []string{"", ""})
	placeFixedStrings(buf, int(h.Map.VariableLabels)+17, 321, []string{"Amount", "Code"})

	md, err := ParseMetadata(h, buf)
	require.NoError(t, err)
	require.Len(t, md.Variables, 2)

	v0 := md.Variables[0]
	require.Equal(t, "amount", v0.Name)
	require.Equal(t, format.KindFloat64, v0.Kind)
	require.Equal(t, format.TemporalDateTime, v0.Temporal)
	require.Equal(t, 0, v0.Offset)
	require.Equal(t, 8, v0.Width)
	require.Equal(t, "Amount", v0.Label)

	v1 := md.Variables[1]
	require.Equal(t, "code", v1.Name)
	require.Equal(t, format.KindString, v1.Kind)
	require.Equal(t, 5, v1.Width)
	require.Equal(t, 8, v1.Offset)

	require.Equal(t, 13, md.RowLength)
}

func TestClassifyVarTypeLegacyTranslation(t *testing.T) {
	kind, isStrL, width := classifyVarType(114, 0xFB)
	require.Equal(t, format.KindInt8, kind)
	require.False(t, isStrL)
	require.Equal(t, 1, width)

	kind, _, width = classifyVarType(114, 0xFF)
	require.Equal(t, format.KindFloat64, kind)
	require.Equal(t, 8, width)
}

func TestClassifyVarTypeStrLRef(t *testing.T) {
	kind, isStrL, width := classifyVarType(118, rawTypeLongStrRef)
	require.Equal(t, format.KindStrLRef, kind)
	require.True(t, isStrL)
	require.Equal(t, 8, width)
}

func TestClassifyDateFormatKeywords(t *testing.T) {
	require.Equal(t, format.TemporalDate, classifyDateFormat("%td"))
	require.Equal(t, format.TemporalDateTime, classifyDateFormat("%tc"))
	require.Equal(t, format.TemporalNone, classifyDateFormat("%9.0g"))
}

func TestParseValueLabelsRoundTrip(t *testing.T) {
	h := &Header{FormatVersion: 118, ByteOrder: binary.LittleEndian}
	h.Map.ValueLabels = 0

	var buf []byte
	buf = append(buf, make([]byte, 14)...) // seek+14 landing pad

	buf = append(buf, []byte("<lbl>")...)
	buf = append(buf, make([]byte, 4)...) // table_len + padding

	name := make([]byte, 129)
	copy(name, "sex")
	buf = append(buf, name...)
	buf = append(buf, make([]byte, 3)...) // padding

	var n, textLen [4]byte
	binary.LittleEndian.PutUint32(n[:], 2)
	binary.LittleEndian.PutUint32(textLen[:], 8)
	buf = append(buf, n[:]...)
	buf = append(buf, textLen[:]...)

	var off0, off1 [4]byte
	binary.LittleEndian.PutUint32(off0[:], 0)
	binary.LittleEndian.PutUint32(off1[:], 3)
	buf = append(buf, off0[:]...)
	buf = append(buf, off1[:]...)

	var val0, val1 [4]byte
	binary.LittleEndian.PutUint32(val0[:], 1)
	binary.LittleEndian.PutUint32(val1[:], 2)
	buf = append(buf, val0[:]...)
	buf = append(buf, val1[:]...)

	buf = append(buf, []byte("M\x00\x00F\x00\x00\x00\x00")...) // 8-byte text blob

	buf = append(buf, []byte("</lbl>")...)

	tables, err := ParseValueLabels(h, buf)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	require.Equal(t, "sex", tables[0].Name)
	require.Equal(t, "M", tables[0].Entries[1])
	require.Equal(t, "F", tables[0].Entries[2])
}

func TestParseStrLPoolRoundTrip(t *testing.T) {
	h := &Header{FormatVersion: 118, ByteOrder: binary.LittleEndian}
	h.Map.Strls = 0

	var buf []byte
	buf = append(buf, make([]byte, 7)...) // seek+7 landing pad

	buf = append(buf, []byte("GSO")...)
	var v [4]byte
	binary.LittleEndian.PutUint32(v[:], 1)
	buf = append(buf, v[:]...)

	var o [8]byte
	binary.LittleEndian.PutUint64(o[:], 2)
	buf = append(buf, o[:]...)

	buf = append(buf, 130) // type: text

	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], 5)
	buf = append(buf, length[:]...)
	buf = append(buf, []byte("hello")...)

	records, err := ParseStrLPool(h, buf)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, uint64(1), records[0].V)
	require.Equal(t, uint64(2), records[0].O)
	require.Equal(t, "hello", string(records[0].Data))
	require.Equal(t, StrLKey(1, 2), records[0].Key())
}

// TestParseStrLPoolLegacyFourByteOffset covers the format-117 GSO layout,
// whose o field is a 4-byte integer rather than format 118+'s 8 bytes
// (_examples/original_source/src/stata/data.rs read_strl_header).
func TestParseStrLPoolLegacyFourByteOffset(t *testing.T) {
	h := &Header{FormatVersion: 117, ByteOrder: binary.LittleEndian}
	h.Map.Strls = 0

	var buf []byte
	buf = append(buf, make([]byte, 7)...) // seek+7 landing pad

	buf = append(buf, []byte("GSO")...)
	var v [4]byte
	binary.LittleEndian.PutUint32(v[:], 1)
	buf = append(buf, v[:]...)

	var o [4]byte
	binary.LittleEndian.PutUint32(o[:], 2)
	buf = append(buf, o[:]...)

	buf = append(buf, 130) // type: text

	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], 5)
	buf = append(buf, length[:]...)
	buf = append(buf, []byte("hello")...)

	records, err := ParseStrLPool(h, buf)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, uint64(1), records[0].V)
	require.Equal(t, uint64(2), records[0].O)
	require.Equal(t, "hello", string(records[0].Data))
}
