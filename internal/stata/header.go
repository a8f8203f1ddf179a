// Package stata implements the Stata .dta header, dictionary, strL, and
// row decoders (§4.4.2, §4.5.2).
package stata

import (
	"encoding/binary"
	"strconv"

	"github.com/colstat/statread/errs"
)

// Header captures the fixed portion of a .dta file's framing: format
// version, byte order, variable/observation counts, and (for version 117+)
// the <map> seek table to every later section.
type Header struct {
	FormatVersion int
	ByteOrder     binary.ByteOrder

	Nvar     int
	RowCount int64

	DatasetLabel string
	TimeStamp    string

	// Map holds the byte offsets of each named section, populated only
	// for FormatVersion >= 117; legacy versions derive section starts by
	// sequential reads instead.
	Map seekMap

	// HeaderEnd is the byte offset immediately following the fixed
	// header, i.e. where the variable-types section begins for
	// FormatVersion < 117 (which has no <map> seek table to consult).
	HeaderEnd int
}

type seekMap struct {
	VarTypes        int64
	VarNames        int64
	Sortlist        int64
	Formats         int64
	ValueLabelNames int64
	VariableLabels  int64
	Characteristics int64
	Data            int64
	Strls           int64
	ValueLabels     int64
}

// nvarWidth and rowCountWidth mirror the per-version field widths used
// throughout this package: versions 114-117 use 16-bit Nvar and 32-bit
// RowCount; 118+ widens RowCount to 64-bit.
func nvarWidth(version int) int { return 2 }

func rowCountWidth(version int) int {
	if version >= 118 {
		return 8
	}

	return 4
}

func supportedVersion(v int) bool {
	switch v {
	case 114, 115, 117, 118, 119:
		return true
	default:
		return false
	}
}

// ParseHeader dispatches on the first byte of buf: '<' selects the
// XML-ish framing used by versions 117+, anything else the flat binary
// header of versions 102-116 (§4.4.2).
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) == 0 {
		return nil, &errs.BufferOutOfBounds{Offset: 0, Length: 0}
	}

	if buf[0] == '<' {
		return parseNewHeader(buf)
	}

	return parseOldHeader(buf)
}

func parseOldHeader(buf []byte) (*Header, error) {
	if len(buf) < 4 {
		return nil, &errs.BufferOutOfBounds{Offset: 0, Length: len(buf)}
	}

	h := &Header{}
	h.FormatVersion = int(buf[0])
	if !supportedVersion(h.FormatVersion) {
		return nil, &errs.UnsupportedFormat{Msg: "stata dta format version " + strconv.Itoa(h.FormatVersion)}
	}

	if buf[1] == 1 {
		h.ByteOrder = binary.BigEndian
	} else {
		h.ByteOrder = binary.LittleEndian
	}

	// buf[2:4] is a reserved filler byte pair.
	pos := 4

	nw := nvarWidth(h.FormatVersion)
	nvar, err := readUintAt(h.ByteOrder, buf, pos, nw)
	if err != nil {
		return nil, err
	}
	h.Nvar = nvar
	pos += nw

	rw := rowCountWidth(h.FormatVersion)
	rowCount, err := readUintAt(h.ByteOrder, buf, pos, rw)
	if err != nil {
		return nil, err
	}
	h.RowCount = int64(rowCount)
	pos += rw

	if pos+81 > len(buf) {
		return nil, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
	}
	h.DatasetLabel = string(cTrim(buf[pos : pos+81]))
	pos += 81

	if pos+18 > len(buf) {
		return nil, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
	}
	h.TimeStamp = string(cTrim(buf[pos : pos+18]))
	pos += 18
	h.HeaderEnd = pos

	return h, nil
}

// parseNewHeader reads the >=117 XML-ish framing:
// <stata_dta><header><release>NNN</release></release><byteorder>MSF/LSF
// </byteorder><K>nvar</K><N>rowcount</N><label>...</label>
// <timestamp>...</timestamp></header><map>...14 x u64...</map>, keeping
// the ten section offsets from variable_types through value_labels.
func parseNewHeader(buf []byte) (*Header, error) {
	h := &Header{}

	if len(buf) < 11 || string(buf[:11]) != "<stata_dta>" {
		return nil, &errs.ParseError{Msg: "invalid stata dta: missing <stata_dta> tag"}
	}

	// <stata_dta><header><release>
	pos := 28
	if pos+3 > len(buf) {
		return nil, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
	}
	version, err := strconv.ParseUint(string(buf[pos:pos+3]), 0, 64)
	if err != nil {
		return nil, &errs.ParseError{Msg: "invalid release field", Err: err}
	}
	h.FormatVersion = int(version)
	if !supportedVersion(h.FormatVersion) {
		return nil, &errs.UnsupportedFormat{Msg: "stata dta format version " + strconv.Itoa(h.FormatVersion)}
	}
	pos += 3

	// </release><byteorder>
	pos += 21
	if pos+3 > len(buf) {
		return nil, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
	}
	if string(buf[pos:pos+3]) == "MSF" {
		h.ByteOrder = binary.BigEndian
	} else {
		h.ByteOrder = binary.LittleEndian
	}
	pos += 3

	// </byteorder><K>
	pos += 15
	nw := nvarWidth(h.FormatVersion)
	nvar, err := readUintAt(h.ByteOrder, buf, pos, nw)
	if err != nil {
		return nil, err
	}
	h.Nvar = nvar
	pos += nw

	// </K><N>
	pos += 7
	rw := rowCountWidth(h.FormatVersion)
	rowCount, err := readUintAt(h.ByteOrder, buf, pos, rw)
	if err != nil {
		return nil, err
	}
	h.RowCount = int64(rowCount)
	pos += rw

	// </N><label>
	pos += 11
	labelWidth := 2
	if h.FormatVersion == 117 {
		labelWidth = 1
	}
	w, err := readUintAt(h.ByteOrder, buf, pos, labelWidth)
	if err != nil {
		return nil, err
	}
	pos += labelWidth
	if pos+w > len(buf) {
		return nil, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
	}
	h.DatasetLabel = string(cTrim(buf[pos : pos+w]))
	pos += w

	// </label><timestamp>
	pos += 19
	if pos+1 > len(buf) {
		return nil, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
	}
	tsLen := int(buf[pos])
	pos++
	if pos+tsLen > len(buf) {
		return nil, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
	}
	h.TimeStamp = string(cTrim(buf[pos : pos+tsLen]))
	pos += tsLen

	// </timestamp></header><map> + the first two map entries (the offsets
	// of <stata_dta> and <map> themselves)
	pos += 42
	seeks := make([]int64, 10)
	for i := range seeks {
		v, err := readUintAt(h.ByteOrder, buf, pos, 8)
		if err != nil {
			return nil, err
		}
		seeks[i] = int64(v)
		pos += 8
	}

	h.Map = seekMap{
		VarTypes:        seeks[0],
		VarNames:        seeks[1],
		Sortlist:        seeks[2],
		Formats:         seeks[3],
		ValueLabelNames: seeks[4],
		VariableLabels:  seeks[5],
		Characteristics: seeks[6],
		Data:            seeks[7],
		Strls:           seeks[8],
		ValueLabels:     seeks[9],
	}

	return h, nil
}

func readUintAt(order binary.ByteOrder, buf []byte, offset, width int) (int, error) {
	if offset < 0 || offset+width > len(buf) {
		return 0, &errs.BufferOutOfBounds{Offset: offset, Length: len(buf)}
	}

	switch width {
	case 1:
		return int(buf[offset]), nil
	case 2:
		return int(order.Uint16(buf[offset : offset+2])), nil
	case 4:
		return int(order.Uint32(buf[offset : offset+4])), nil
	case 8:
		return int(order.Uint64(buf[offset : offset+8])), nil
	default:
		return 0, &errs.ParseError{Msg: "readUintAt: unsupported width"}
	}
}

// cTrim returns everything before the first NUL byte, matching Stata's
// C-string field termination.
func cTrim(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}

	return b
}
