package spss

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstat/statread/endian"
	"github.com/colstat/statread/format"
	"github.com/colstat/statread/labelmap"
	"github.com/colstat/statread/text"
)

func littleEndianHeader() *Header {
	return &Header{Engine: endian.GetLittleEndianEngine(), Bias: 100.0}
}

func putI32(buf []byte, off int, v int32) {
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(v))
}

func TestReadVariableRecordNumericWithLabel(t *testing.T) {
	buf := make([]byte, 44)
	putI32(buf, 0, 0)               // typ: numeric
	putI32(buf, 4, 1)               // has_label
	putI32(buf, 8, 0)               // n_missing
	putI32(buf, 12, int32(20)<<16) // print_format: format class 20 (Date)
	putI32(buf, 16, 0)              // write_format, unused
	copy(buf[20:28], "v1\x00\x00\x00\x00\x00\x00")
	putI32(buf, 28, 10) // label length
	copy(buf[32:42], "Visit Date")
	// buf[42:44] padding, zero

	md := &Metadata{Encoding: text.UTF8}
	currentOffset := 0

	v, next, isContinuation, err := readVariableRecord(littleEndianHeader(), buf, 0, md, -1, &currentOffset)
	require.NoError(t, err)
	require.False(t, isContinuation)
	require.Equal(t, 44, next)
	require.Equal(t, "V1", v.Name)
	require.Equal(t, format.KindFloat64, v.Kind)
	require.Equal(t, 0, v.Offset)
	require.Equal(t, 8, v.Width)
	require.Equal(t, byte(20), v.FormatType)
	require.Equal(t, format.TemporalDate, v.Temporal)
	require.Equal(t, "Visit Date", v.Label)
	require.Equal(t, 8, currentOffset)
}

func TestReadVariableRecordStringWithMissingValues(t *testing.T) {
	buf := make([]byte, 28+16)
	putI32(buf, 0, 8) // typ: 8-byte string
	putI32(buf, 4, 0) // has_label
	putI32(buf, 8, 2) // n_missing: 2 discrete values
	putI32(buf, 12, 0)
	putI32(buf, 16, 0)
	copy(buf[20:28], "code\x00\x00\x00\x00")
	copy(buf[28:36], "N \x00\x00\x00\x00\x00\x00")
	copy(buf[36:44], "NA\x00\x00\x00\x00\x00\x00")

	md := &Metadata{Encoding: text.UTF8}
	currentOffset := 0

	v, next, isContinuation, err := readVariableRecord(littleEndianHeader(), buf, 0, md, -1, &currentOffset)
	require.NoError(t, err)
	require.False(t, isContinuation)
	require.Equal(t, 44, next)
	require.Equal(t, "CODE", v.Name)
	require.Equal(t, format.KindString, v.Kind)
	require.Equal(t, 8, v.StringLen)
	require.False(t, v.MissingRange)
	require.Equal(t, []string{"N", "NA"}, v.MissingStrings)
}

func TestReadVariableRecordStringContinuationExtendsWidth(t *testing.T) {
	buf := make([]byte, 28)
	putI32(buf, 0, -1) // typ < 0: continuation

	md := &Metadata{
		Variables: []Variable{{Name: "LONGSTR", Kind: format.KindString, Width: 8}},
		Encoding:  text.UTF8,
	}
	currentOffset := 8

	_, next, isContinuation, err := readVariableRecord(littleEndianHeader(), buf, 0, md, 0, &currentOffset)
	require.NoError(t, err)
	require.True(t, isContinuation)
	require.Equal(t, 28, next)
	require.Equal(t, 16, md.Variables[0].Width)
	require.Equal(t, 16, currentOffset)
}

func TestReadValueLabelRecordNumericKeyed(t *testing.T) {
	h := littleEndianHeader()

	var buf []byte
	putEntryCount := func(n int32) []byte {
		b := make([]byte, 4)
		putI32(b, 0, n)
		return b
	}
	buf = append(buf, putEntryCount(2)...)

	appendEntry := func(key float64, label string) {
		raw := make([]byte, 8)
		binary.LittleEndian.PutUint64(raw, math.Float64bits(key))
		buf = append(buf, raw...)
		buf = append(buf, byte(len(label)))
		padded := ((len(label)+8)/8)*8 - 1
		textBytes := make([]byte, padded)
		copy(textBytes, label)
		buf = append(buf, textBytes...)
	}
	appendEntry(1, "Male")
	appendEntry(2, "Female")

	// record-4 tail: rec type, var_count, one offset.
	buf = append(buf, putEntryCount(recValueLabelVarList)...)
	buf = append(buf, putEntryCount(1)...)
	buf = append(buf, putEntryCount(1)...) // offset = 1 -> target currentOffset 0

	md := &Metadata{
		Variables:   []Variable{{Name: "SEX", Kind: format.KindFloat64, Offset: 0}},
		Encoding:    text.UTF8,
		ValueLabels: map[string]*labelmap.Set{},
	}
	labelSetIndex := 0

	next, err := readValueLabelRecord(h, buf, 0, md, &labelSetIndex)
	require.NoError(t, err)
	require.Equal(t, len(buf), next)
	require.Equal(t, 1, labelSetIndex)

	set := md.ValueLabels["labels0"]
	require.NotNil(t, set)
	require.Len(t, set.Entries, 2)
	require.Equal(t, labelmap.KeyFloatBits, set.Entries[0].Kind)
	require.Equal(t, "Male", set.Entries[0].Label)
	require.Equal(t, "labels0", md.Variables[0].ValueLabelRef)
}

func TestReadTypedInfoCharacterEncodingSetsDecoder(t *testing.T) {
	h := littleEndianHeader()

	var buf []byte
	appendI32 := func(v int32) {
		b := make([]byte, 4)
		putI32(b, 0, v)
		buf = append(buf, b...)
	}
	appendI32(subtypeCharEncoding)
	appendI32(1)  // size
	appendI32(5) // count -> data_len = 5
	buf = append(buf, []byte("UTF-8")...)

	md := &Metadata{Encoding: text.UTF8}

	next, err := readTypedInfoRecord(h, buf, 0, md)
	require.NoError(t, err)
	require.Equal(t, len(buf), next)
	require.Equal(t, "utf-8", md.Encoding.Name())
}

func TestReadTypedInfoVeryLongStringSetsLength(t *testing.T) {
	h := littleEndianHeader()

	var buf []byte
	appendI32 := func(v int32) {
		b := make([]byte, 4)
		putI32(b, 0, v)
		buf = append(buf, b...)
	}
	payload := []byte("BIGCOL=500\t")
	appendI32(subtypeVeryLongStr)
	appendI32(1)
	appendI32(int32(len(payload)))
	buf = append(buf, payload...)

	md := &Metadata{Variables: []Variable{{Name: "BIGCOL", Kind: format.KindString, StringLen: 8}}, Encoding: text.UTF8}

	_, err := readTypedInfoRecord(h, buf, 0, md)
	require.NoError(t, err)
	require.Equal(t, 500, md.Variables[0].StringLen)
}

func TestCoalesceVeryLongStringsMergesContinuations(t *testing.T) {
	md := &Metadata{
		Variables: []Variable{
			{Name: "BIGCOL", Kind: format.KindString, StringLen: 600, Width: 8},
			{Name: "BIGCOL_continuation_1", Kind: format.KindString, Width: 252},
			{Name: "BIGCOL_continuation_2", Kind: format.KindString, Width: 252},
			{Name: "NEXT", Kind: format.KindFloat64, Width: 8},
		},
	}

	coalesceVeryLongStrings(md)

	require.Len(t, md.Variables, 2)
	require.Equal(t, "BIGCOL", md.Variables[0].Name)
	require.Equal(t, 8+252+252, md.Variables[0].Width)
	require.Equal(t, "NEXT", md.Variables[1].Name)
}

func TestParseMetadataEndToEnd(t *testing.T) {
	h := &Header{Engine: endian.GetLittleEndianEngine(), Bias: 100.0, RowCount: 1}

	buf := make([]byte, 176) // header region, not otherwise inspected by ParseMetadata

	// Variable record: numeric "V1", no label, no missing.
	recHeader := make([]byte, 4)
	putI32(recHeader, 0, recVariable)
	buf = append(buf, recHeader...)

	varBuf := make([]byte, 28)
	putI32(varBuf, 0, 0)
	putI32(varBuf, 4, 0)
	putI32(varBuf, 8, 0)
	putI32(varBuf, 12, 0)
	putI32(varBuf, 16, 0)
	copy(varBuf[20:28], "v1\x00\x00\x00\x00\x00\x00")
	buf = append(buf, varBuf...)

	// Dictionary termination.
	term := make([]byte, 8)
	putI32(term, 0, recDictTermination)
	putI32(term, 4, 0) // filler
	buf = append(buf, term...)

	md, err := ParseMetadata(h, buf)
	require.NoError(t, err)
	require.Len(t, md.Variables, 1)
	require.Equal(t, "V1", md.Variables[0].Name)
	require.Equal(t, 8, md.RowLength)
	require.Equal(t, 176+4+28+8, md.DataOffset)
}
