package stata

import (
	"github.com/colstat/statread/errs"
	"github.com/colstat/statread/format"
)

// rawTypes below are >=117 vartype codes (§4.4.2 table); a code <= 2045
// means a fixed-length string of that many bytes.
const (
	rawTypeLongStrRef uint16 = 0x8000
	rawTypeInt8       uint16 = 0xFFFA
	rawTypeInt16      uint16 = 0xFFF9
	rawTypeInt32      uint16 = 0xFFF8
	rawTypeFloat32    uint16 = 0xFFF7
	rawTypeFloat64    uint16 = 0xFFF6
)

// Variable is one column of a .dta dictionary: its storage kind/width,
// name, attached value-label-set name, and print format (used to
// classify date/datetime columns).
type Variable struct {
	Name          string
	Label         string
	Format        string
	ValueLabelRef string

	Kind     format.StorageKind
	IsStrL   bool
	Width    int
	Offset   int
	Temporal format.TemporalClass
}

// Metadata is a fully parsed .dta dictionary.
type Metadata struct {
	Variables []Variable
	RowCount  int64
	RowLength int
}

// ParseMetadata reads the variable-type, name, format, value-label-name,
// and variable-label sections following a Header, dispatching on format
// version for field widths per §4.4.2.
//
// FormatVersion >= 117 addresses every section independently through
// Header.Map's seek table. FormatVersion < 117 has no such table: its
// sections follow the header and each other back-to-back, so they are
// read through one sequential cursor starting at Header.HeaderEnd,
// mirroring the reference reader's init() call order (vartypes,
// varnames, sortlist skip, formats, value-label names, variable labels,
// expansion fields).
func ParseMetadata(h *Header, buf []byte) (*Metadata, error) {
	var (
		varTypes   []uint16
		names      []string
		formats    []string
		labelNames []string
		longLabels []string
		err        error
	)

	if h.FormatVersion >= 117 {
		varTypes, err = readVarTypesSeek(h, buf)
		if err != nil {
			return nil, err
		}
		names, err = readFixedStringTable(buf, int(h.Map.VarNames)+10, 129, h.Nvar)
		if err != nil {
			return nil, err
		}
		formats, err = readFixedStringTable(buf, int(h.Map.Formats)+9, 57, h.Nvar)
		if err != nil {
			return nil, err
		}
		labelNames, err = readFixedStringTable(buf, int(h.Map.ValueLabelNames)+19, 129, h.Nvar)
		if err != nil {
			return nil, err
		}
		longLabels, err = readFixedStringTable(buf, int(h.Map.VariableLabels)+17, 321, h.Nvar)
		if err != nil {
			return nil, err
		}
	} else {
		pos := h.HeaderEnd

		varTypes, pos, err = readVarTypesSequential(h, buf, pos)
		if err != nil {
			return nil, err
		}

		varNameWidth := 33
		names, pos, err = readFixedStringTableSeq(buf, pos, varNameWidth, h.Nvar)
		if err != nil {
			return nil, err
		}

		// sortlist: (Nvar+1) 2-byte slots.
		pos += 2 * (h.Nvar + 1)

		formats, pos, err = readFixedStringTableSeq(buf, pos, 49, h.Nvar)
		if err != nil {
			return nil, err
		}

		labelNames, pos, err = readFixedStringTableSeq(buf, pos, 33, h.Nvar)
		if err != nil {
			return nil, err
		}

		longLabels, _, err = readFixedStringTableSeq(buf, pos, 81, h.Nvar)
		if err != nil {
			return nil, err
		}
	}

	if len(names) != h.Nvar {
		return nil, &errs.ColumnCountMismatch{Expected: h.Nvar, Actual: len(names)}
	}

	vars := make([]Variable, h.Nvar)
	offset := 0
	for i := 0; i < h.Nvar; i++ {
		kind, isStrL, width := classifyVarType(h.FormatVersion, varTypes[i])

		v := Variable{
			Name:     names[i],
			Format:   formats[i],
			Kind:     kind,
			IsStrL:   isStrL,
			Width:    width,
			Offset:   offset,
			Temporal: classifyDateFormat(formats[i]),
		}
		if i < len(labelNames) {
			v.ValueLabelRef = labelNames[i]
		}
		if i < len(longLabels) {
			v.Label = longLabels[i]
		}

		vars[i] = v
		offset += width
	}

	return &Metadata{Variables: vars, RowCount: h.RowCount, RowLength: offset}, nil
}

// classifyVarType maps a raw vartype code to a storage kind, whether it
// is a long-string (strL) reference, and its in-record byte width.
func classifyVarType(version int, raw uint16) (kind format.StorageKind, isStrL bool, width int) {
	if version < 117 {
		raw = translateLegacyVarType(raw)
	}

	switch {
	case raw <= 2045:
		return format.KindString, false, int(raw)
	case raw == rawTypeLongStrRef:
		return format.KindStrLRef, true, 8
	case raw == rawTypeFloat64:
		return format.KindFloat64, false, 8
	case raw == rawTypeFloat32:
		return format.KindFloat32, false, 4
	case raw == rawTypeInt32:
		return format.KindInt32, false, 4
	case raw == rawTypeInt16:
		return format.KindInt16, false, 2
	case raw == rawTypeInt8:
		return format.KindInt8, false, 1
	default:
		return format.KindString, false, int(raw)
	}
}

// translateLegacyVarType converts a <117 one-byte type code (0xFB..0xFF,
// or 0x7F+len for fixed strings) into the same code space >=117 uses, so
// classifyVarType has one dispatch table regardless of version.
func translateLegacyVarType(b uint16) uint16 {
	switch b {
	case 0xFB:
		return rawTypeInt8
	case 0xFC:
		return rawTypeInt16
	case 0xFD:
		return rawTypeInt32
	case 0xFE:
		return rawTypeFloat32
	case 0xFF:
		return rawTypeFloat64
	default:
		if b >= 0x7F {
			return b - 0x7F
		}

		return b
	}
}

// readVarTypesSeek reads the >=117 vartypes section via its <map> seek
// offset (which points 16 bytes before the first 2-byte type code).
func readVarTypesSeek(h *Header, buf []byte) ([]uint16, error) {
	pos := int(h.Map.VarTypes) + 16

	out := make([]uint16, h.Nvar)
	for i := 0; i < h.Nvar; i++ {
		v, err := readUintAt(h.ByteOrder, buf, pos, 2)
		if err != nil {
			return nil, err
		}
		out[i] = uint16(v)
		pos += 2
	}

	return out, nil
}

// readVarTypesSequential reads the <117 one-byte-per-variable vartypes
// section starting at pos, returning the cursor just past it.
func readVarTypesSequential(h *Header, buf []byte, pos int) ([]uint16, int, error) {
	out := make([]uint16, h.Nvar)
	for i := 0; i < h.Nvar; i++ {
		v, err := readUintAt(h.ByteOrder, buf, pos, 1)
		if err != nil {
			return nil, pos, err
		}
		out[i] = uint16(v)
		pos++
	}

	return out, pos, nil
}

// readFixedStringTable reads n consecutive bufsize-byte C-string slots
// starting at the given absolute (seek-derived) offset — used by every
// >=117 dictionary section, which is independently addressable through
// Header.Map.
func readFixedStringTable(buf []byte, pos, bufsize, n int) ([]string, error) {
	out, _, err := readFixedStringTableSeq(buf, pos, bufsize, n)
	return out, err
}

// readFixedStringTableSeq is readFixedStringTable's cursor-threading
// form, used by the <117 sequential layout so each section's reader can
// hand the next one its ending position.
func readFixedStringTableSeq(buf []byte, pos, bufsize, n int) ([]string, int, error) {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		if pos+bufsize > len(buf) {
			return nil, pos, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
		}
		out[i] = string(cTrim(buf[pos : pos+bufsize]))
		pos += bufsize
	}

	return out, pos, nil
}

// classifyDateFormat maps a Stata print format's leading keyword to a
// temporal class: %td* is a date, %tc* is a datetime (§4.5.2).
func classifyDateFormat(f string) format.TemporalClass {
	switch {
	case hasPrefix(f, "%td"):
		return format.TemporalDate
	case hasPrefix(f, "%tc"):
		return format.TemporalDateTime
	default:
		return format.TemporalNone
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// ValueLabelTable is one named value-label set (§4.4.2): pairs of
// (int32 value, string label).
type ValueLabelTable struct {
	Name    string
	Entries map[int32]string
}

// ParseValueLabels reads every "<lbl>"-framed table following the
// seek_value_labels offset (>=117). Every FormatVersion below 117 is
// handed to parseLegacyValueLabels, which returns no tables.
func ParseValueLabels(h *Header, buf []byte) ([]ValueLabelTable, error) {
	if h.FormatVersion < 117 {
		return parseLegacyValueLabels(h, buf)
	}

	pos := int(h.Map.ValueLabels) + 14
	var out []ValueLabelTable

	for {
		if pos+5 > len(buf) || string(buf[pos:pos+5]) != "<lbl>" {
			break
		}
		pos += 5

		// table_len (u32) + padding
		pos += 4
		if pos+129 > len(buf) {
			return nil, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
		}
		name := string(cTrim(buf[pos : pos+129]))
		pos += 129

		// 3 bytes padding
		pos += 3

		n, err := readUintAt(h.ByteOrder, buf, pos, 4)
		if err != nil {
			return nil, err
		}
		pos += 4

		textLen, err := readUintAt(h.ByteOrder, buf, pos, 4)
		if err != nil {
			return nil, err
		}
		pos += 4

		offsets := make([]int, n)
		for j := 0; j < n; j++ {
			v, err := readUintAt(h.ByteOrder, buf, pos, 4)
			if err != nil {
				return nil, err
			}
			offsets[j] = v
			pos += 4
		}

		values := make([]int32, n)
		for j := 0; j < n; j++ {
			v, err := readUintAt(h.ByteOrder, buf, pos, 4)
			if err != nil {
				return nil, err
			}
			values[j] = int32(v)
			pos += 4
		}

		if pos+textLen > len(buf) {
			return nil, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
		}
		text := buf[pos : pos+textLen]
		pos += textLen

		entries := make(map[int32]string, n)
		for j := 0; j < n; j++ {
			if offsets[j] > len(text) {
				continue
			}
			entries[values[j]] = string(cTrim(text[offsets[j]:]))
		}

		out = append(out, ValueLabelTable{Name: name, Entries: entries})

		// </lbl>
		pos += 6
	}

	return out, nil
}

// parseLegacyValueLabels handles every FormatVersion below 117, the
// supported 114 and 115 included, and returns no tables: the value-label
// section of a pre-117 file is not read, so no label text is substituted
// for its columns' values.
func parseLegacyValueLabels(h *Header, buf []byte) ([]ValueLabelTable, error) {
	return nil, nil
}

// GSORecord is one long-string pool entry (§4.4.2 "StrL pool").
type GSORecord struct {
	V, O uint64
	Type byte
	Data []byte
}

// Key returns the combined lookup key matching a record's in-row strL
// reference, per StrLKey.
func (g GSORecord) Key() uint64 {
	return StrLKey(g.V, g.O)
}

// ParseStrLPool walks the GSO-tagged records following seek_strls,
// returning every record found (callers assemble the v/o -> string map,
// with type 130 meaning a text payload and 129 a raw binary payload).
func ParseStrLPool(h *Header, buf []byte) ([]GSORecord, error) {
	pos := int(h.Map.Strls) + 7

	var out []GSORecord
	for {
		if pos+3 > len(buf) || string(buf[pos:pos+3]) != "GSO" {
			break
		}
		pos += 3

		v, err := readUintAt(h.ByteOrder, buf, pos, 4)
		if err != nil {
			return nil, err
		}
		pos += 4

		oWidth := 8
		if h.FormatVersion < 118 {
			oWidth = 4
		}
		o, err := readUintAt(h.ByteOrder, buf, pos, oWidth)
		if err != nil {
			return nil, err
		}
		pos += oWidth

		if pos+1 > len(buf) {
			return nil, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
		}
		typ := buf[pos]
		pos++

		length, err := readUintAt(h.ByteOrder, buf, pos, 4)
		if err != nil {
			return nil, err
		}
		pos += 4

		if pos+length > len(buf) {
			return nil, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
		}
		data := make([]byte, length)
		copy(data, buf[pos:pos+length])
		pos += length

		out = append(out, GSORecord{V: uint64(v), O: uint64(o), Type: typ, Data: data})
	}

	return out, nil
}

// StrLKey derives the combined lookup key from an in-record strL
// reference's raw v/o pair (§4.4.2: "2 bytes v + 6 bytes o (v18+) or two
// u32s (v17)"). Both encodings collapse to the same v | (o<<16) key
// space GSORecord.Key() produces.
func StrLKey(v, o uint64) uint64 {
	return v | (o << 16)
}
