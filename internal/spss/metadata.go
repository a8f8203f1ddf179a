package spss

import (
	"math"
	"strconv"
	"strings"

	"github.com/colstat/statread/endian"
	"github.com/colstat/statread/errs"
	"github.com/colstat/statread/format"
	"github.com/colstat/statread/labelmap"
	"github.com/colstat/statread/text"
)

// Record type codes a dictionary entry's leading u32 dispatches on
// (§4.4.3 step 4).
const (
	recVariable          = 2
	recValueLabel        = 3
	recValueLabelVarList = 4
	recDocument          = 6
	recHasData           = 7
	recDictTermination   = 999
)

// Typed-info (record 7) subtypes.
const (
	subtypeIntegerInfo        = 3
	subtypeLongVarName        = 13
	subtypeVeryLongStr        = 14
	subtypeCharEncoding       = 20
	subtypeLongStrValueLabels = 21
	subtypeLongStrMissing     = 22
)

// Variable is one column of a .sav dictionary (§3 Variable, SPSS
// subset), after long-string segment coalescing.
type Variable struct {
	Name      string
	ShortName string
	Label     string

	Kind      format.StorageKind
	StringLen int // declared string length, 0 for numeric
	Width     int // byte width within the record (segments * 8)
	Offset    int // byte offset within the record

	FormatType byte
	Temporal   format.TemporalClass

	ValueLabelRef string

	MissingRange      bool
	MissingDoubles     []float64
	MissingDoubleBits []uint64
	MissingStrings    []string
}

// HasDeclaredMissing reports whether the variable carries any
// format-specific declared-missing info (§3 Variable: "HasDeclaredMissing
// ... true when the variable's MissingSpec is non-empty").
func (v *Variable) HasDeclaredMissing() bool {
	return len(v.MissingDoubles) > 0 || len(v.MissingStrings) > 0
}

// Metadata is a fully parsed .sav/.zsav dictionary.
type Metadata struct {
	Variables []Variable

	RowCount   int64
	RowLength  int
	DataOffset int

	Encoding text.Decoder

	// ValueLabels holds every value-label set discovered via record
	// type 3/4 and typed-info subtype 21, keyed by the synthesized name
	// a Variable.ValueLabelRef points at.
	ValueLabels map[string]*labelmap.Set
}

// ParseMetadata walks the dictionary records following a Header,
// starting at byte offset headerLen (176) in buf, per §4.4.3 step 4.
func ParseMetadata(h *Header, buf []byte) (*Metadata, error) {
	md := &Metadata{RowCount: h.RowCount, Encoding: text.ForSPSSCode(0), ValueLabels: map[string]*labelmap.Set{}}

	pos := 176
	currentOffset := 0
	lastVarIndex := -1
	labelSetIndex := 0

	for {
		recType, err := endian.I32(h.Engine, buf, pos)
		if err != nil {
			return nil, err
		}
		pos += 4

		switch recType {
		case recVariable:
			v, consumed, isContinuation, err := readVariableRecord(h, buf, pos, md, lastVarIndex, &currentOffset)
			if err != nil {
				return nil, err
			}
			pos = consumed
			if !isContinuation {
				md.Variables = append(md.Variables, v)
				lastVarIndex = len(md.Variables) - 1
			}

		case recValueLabel:
			next, err := readValueLabelRecord(h, buf, pos, md, &labelSetIndex)
			if err != nil {
				return nil, err
			}
			pos = next

		case recValueLabelVarList:
			// Encountered without a preceding value-label record body;
			// skip its count + index array defensively.
			count, err := endian.I32(h.Engine, buf, pos)
			if err != nil {
				return nil, err
			}
			pos += 4 + int(count)*4

		case recDocument:
			lineCount, err := endian.I32(h.Engine, buf, pos)
			if err != nil {
				return nil, err
			}
			pos += 4 + int(lineCount)*80

		case recHasData:
			next, err := readTypedInfoRecord(h, buf, pos, md)
			if err != nil {
				return nil, err
			}
			pos = next

		case recDictTermination:
			pos += 4 // filler
			md.DataOffset = pos

			coalesceVeryLongStrings(md)
			md.RowLength = currentOffset

			return md, nil

		default:
			return nil, &errs.ParseError{Offset: int64(pos), Msg: "spss: unknown dictionary record type"}
		}
	}
}

// readVariableRecord reads one 28-byte variable-record body plus its
// optional label and declared-missing tail (§4.4.3 step 4, case 2).
// isContinuation is true for a string-continuation entry (typ < 0),
// which extends the previous variable's width rather than creating a
// new Variable.
func readVariableRecord(h *Header, buf []byte, pos int, md *Metadata, lastVarIndex int, currentOffset *int) (v Variable, nextPos int, isContinuation bool, err error) {
	if pos+28 > len(buf) {
		return Variable{}, pos, false, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
	}

	typ, _ := endian.I32(h.Engine, buf, pos)
	hasLabel, _ := endian.I32(h.Engine, buf, pos+4)
	nMissing, _ := endian.I32(h.Engine, buf, pos+8)
	printFormat, _ := endian.I32(h.Engine, buf, pos+12)
	// write_format at pos+16, unused.
	name := strings.ToUpper(strings.TrimRight(string(endian.TrimPadding(buf[pos+20:pos+28])), "\x00"))
	pos += 28

	if typ < 0 {
		if lastVarIndex < 0 {
			return Variable{}, pos, false, &errs.ParseError{Offset: int64(pos), Msg: "spss: string continuation without base variable"}
		}
		md.Variables[lastVarIndex].Width += 8
		*currentOffset += 8

		return Variable{}, pos, true, nil
	}

	out := Variable{Name: name, ShortName: name, Offset: *currentOffset, Width: 8}
	*currentOffset += 8

	if typ == 0 {
		out.Kind = format.KindFloat64
	} else {
		out.Kind = format.KindString
		out.StringLen = int(typ)
	}

	formatType := byte((uint32(printFormat) >> 16) & 0xFF)
	out.FormatType = formatType
	out.Temporal = classifyFormatType(formatType)

	if hasLabel != 0 {
		labelLen, _ := endian.I32(h.Engine, buf, pos)
		pos += 4
		padded := ((int(labelLen) + 3) / 4) * 4
		if pos+padded > len(buf) {
			return Variable{}, pos, false, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
		}
		raw := buf[pos : pos+int(labelLen)]
		out.Label = strings.TrimSpace(text.ForSPSSCode(3).Decode(raw))
		pos += padded
	}

	if nMissing != 0 {
		n := nMissing
		if n < 0 {
			out.MissingRange = true
			n = -n
		}
		for i := int32(0); i < n; i++ {
			if pos+8 > len(buf) {
				return Variable{}, pos, false, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
			}
			raw := buf[pos : pos+8]
			pos += 8

			if out.Kind == format.KindFloat64 {
				v, _ := endian.F64(h.Engine, raw, 0)
				out.MissingDoubles = append(out.MissingDoubles, v)
				out.MissingDoubleBits = append(out.MissingDoubleBits, math.Float64bits(v))
			} else {
				out.MissingStrings = append(out.MissingStrings, strings.TrimSpace(md.Encoding.Decode(raw)))
			}
		}
	}

	return out, pos, false, nil
}

// classifyFormatType maps a SPSS print-format class byte to a
// TemporalClass (§4.4.3 step 6).
func classifyFormatType(code byte) format.TemporalClass {
	switch code {
	case 20, 23, 24, 38, 39:
		return format.TemporalDate
	case 21, 25:
		return format.TemporalTime
	case 22, 41:
		return format.TemporalDateTime
	default:
		return format.TemporalNone
	}
}

// readValueLabelRecord reads a record-3 value-label set followed by its
// record-4 variable-index list, attaching the built set to every
// variable it names (§4.4.3 step 4, case 3/4).
func readValueLabelRecord(h *Header, buf []byte, pos int, md *Metadata, labelSetIndex *int) (int, error) {
	entryCount, err := endian.I32(h.Engine, buf, pos)
	if err != nil {
		return pos, err
	}
	pos += 4

	type rawEntry struct {
		raw   [8]byte
		label string
	}
	entries := make([]rawEntry, 0, entryCount)

	for i := int32(0); i < entryCount; i++ {
		if pos+9 > len(buf) {
			return pos, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
		}
		var raw [8]byte
		copy(raw[:], buf[pos:pos+8])
		pos += 8

		unpaddedLen := int(buf[pos])
		pos++
		padded := ((unpaddedLen+8)/8)*8 - 1
		if pos+padded > len(buf) {
			return pos, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
		}
		label := strings.TrimSpace(md.Encoding.Decode(buf[pos : pos+padded]))
		pos += padded

		entries = append(entries, rawEntry{raw: raw, label: label})
	}

	recType, err := endian.I32(h.Engine, buf, pos)
	if err != nil {
		return pos, err
	}
	pos += 4
	if recType != recValueLabelVarList {
		return pos, &errs.ParseError{Offset: int64(pos), Msg: "spss: value-label record missing variable-index list"}
	}

	varCount, err := endian.I32(h.Engine, buf, pos)
	if err != nil {
		return pos, err
	}
	pos += 4

	offsets := make([]int, varCount)
	for i := range offsets {
		off, err := endian.I32(h.Engine, buf, pos)
		if err != nil {
			return pos, err
		}
		pos += 4
		offsets[i] = int(off)
	}

	name := "labels" + strconv.Itoa(*labelSetIndex)
	*labelSetIndex++

	isString := false
	for _, off := range offsets {
		target := off - 1
		for i := range md.Variables {
			if md.Variables[i].Offset == target && md.Variables[i].Kind == format.KindString {
				isString = true
			}
		}
	}

	set := &labelmap.Set{Name: name}
	for _, e := range entries {
		if e.label == "" {
			continue
		}
		if isString {
			key := strings.TrimRight(string(e.raw[:]), " \x00")
			set.Entries = append(set.Entries, labelmap.Entry{Kind: labelmap.KeyString, StrKey: key, Label: e.label})
		} else {
			v, _ := endian.F64(h.Engine, e.raw[:], 0)
			set.Entries = append(set.Entries, labelmap.Entry{Kind: labelmap.KeyFloatBits, BitsKey: math.Float64bits(v), Label: e.label})
		}
	}
	md.ValueLabels[name] = set

	for _, off := range offsets {
		target := off - 1
		for i := range md.Variables {
			if md.Variables[i].Offset == target {
				md.Variables[i].ValueLabelRef = name
			}
		}
	}

	return pos, nil
}

// readTypedInfoRecord dispatches a record-7 typed-info body on its
// subtype (§4.4.3 step 4, case 7).
func readTypedInfoRecord(h *Header, buf []byte, pos int, md *Metadata) (int, error) {
	subtype, err := endian.I32(h.Engine, buf, pos)
	if err != nil {
		return pos, err
	}
	size, err := endian.I32(h.Engine, buf, pos+4)
	if err != nil {
		return pos, err
	}
	count, err := endian.I32(h.Engine, buf, pos+8)
	if err != nil {
		return pos, err
	}
	pos += 12

	dataLen := int(size) * int(count)
	if pos+dataLen > len(buf) {
		return pos, &errs.BufferOutOfBounds{Offset: pos, Length: len(buf)}
	}
	data := buf[pos : pos+dataLen]
	pos += dataLen

	switch subtype {
	case subtypeIntegerInfo:
		if len(data) >= 32 {
			code, err := endian.I32(h.Engine, data, 28)
			if err == nil && code > 0 {
				md.Encoding = text.ForSPSSCode(int(code))
			}
		}
	case subtypeCharEncoding:
		if len(data) > 0 {
			md.Encoding = text.ForName(strings.TrimSpace(string(data)))
		}
	case subtypeVeryLongStr:
		applyTabSeparatedAssignments(data, func(key, val string) {
			length, err := strconv.Atoi(val)
			if err != nil {
				return
			}
			for i := range md.Variables {
				if strings.EqualFold(md.Variables[i].ShortName, key) || strings.EqualFold(md.Variables[i].Name, key) {
					md.Variables[i].StringLen = length
				}
			}
		})
	case subtypeLongVarName:
		applyTabSeparatedAssignments(data, func(key, val string) {
			for i := range md.Variables {
				if strings.EqualFold(md.Variables[i].Name, key) {
					md.Variables[i].Name = val
				}
			}
		})
	case subtypeLongStrValueLabels:
		parseLongStringValueLabels(h, data, md)
	case subtypeLongStrMissing:
		parseLongStringMissingValues(h, data, md)
	}

	return pos, nil
}

// applyTabSeparatedAssignments walks a tab-separated sequence of
// "key=value" entries (§4.4.3: the long-variable-name map and very-long-
// string-length records share this shape), calling fn for each.
func applyTabSeparatedAssignments(data []byte, fn func(key, val string)) {
	for _, entry := range strings.Split(string(data), "\t") {
		entry = strings.ReplaceAll(entry, "\x00", "")
		if entry == "" {
			continue
		}
		eq := strings.IndexByte(entry, '=')
		if eq < 0 {
			continue
		}
		fn(strings.TrimSpace(entry[:eq]), strings.TrimSpace(entry[eq+1:]))
	}
}

func parseLongStringValueLabels(h *Header, data []byte, md *Metadata) {
	pos := 0
	labelSetIndex := len(md.ValueLabels)

	for pos < len(data) {
		varName, next, ok := readPascalString(h, data, pos)
		if !ok {
			return
		}
		pos = next
		if pos+4 > len(data) {
			return
		}

		labelCount, err := endian.I32(h.Engine, data, pos)
		if err != nil {
			return
		}
		pos += 4

		set := &labelmap.Set{}
		for i := int32(0); i < labelCount; i++ {
			value, next, ok := readLengthPrefixed(h, data, pos)
			if !ok {
				return
			}
			pos = next

			label, next, ok := readLengthPrefixed(h, data, pos)
			if !ok {
				return
			}
			pos = next

			if label == "" {
				continue
			}
			set.Entries = append(set.Entries, labelmap.Entry{Kind: labelmap.KeyString, StrKey: value, Label: label})
		}

		name := "labels" + strconv.Itoa(labelSetIndex)
		labelSetIndex++
		set.Name = name
		md.ValueLabels[name] = set

		for i := range md.Variables {
			if md.Variables[i].Name == varName {
				md.Variables[i].ValueLabelRef = name
			}
		}
	}
}

func parseLongStringMissingValues(h *Header, data []byte, md *Metadata) {
	pos := 0
	for pos < len(data) {
		name, next, ok := readPascalString(h, data, pos)
		if !ok {
			return
		}
		pos = next
		if pos+1 > len(data) {
			return
		}

		nMissing := int(data[pos])
		pos++
		if nMissing == 0 || nMissing > 3 {
			return
		}

		length, err := endian.I32(h.Engine, data, pos)
		if err != nil {
			return
		}
		pos += 4

		values := make([]string, 0, nMissing)
		for i := 0; i < nMissing; i++ {
			if pos+int(length) > len(data) {
				return
			}
			values = append(values, strings.TrimSpace(md.Encoding.Decode(data[pos:pos+int(length)])))
			pos += int(length)
		}

		for i := range md.Variables {
			if md.Variables[i].Name == name {
				md.Variables[i].MissingStrings = values
			}
		}
	}
}

func readPascalString(h *Header, data []byte, pos int) (string, int, bool) {
	if pos+4 > len(data) {
		return "", pos, false
	}
	length, err := endian.I32(h.Engine, data, pos)
	if err != nil {
		return "", pos, false
	}
	start := pos + 4
	end := start + int(length)
	if end > len(data) {
		return "", pos, false
	}

	return string(data[start:end]), end, true
}

func readLengthPrefixed(h *Header, data []byte, pos int) (string, int, bool) {
	if pos+4 > len(data) {
		return "", pos, false
	}
	length, err := endian.I32(h.Engine, data, pos)
	if err != nil {
		return "", pos, false
	}
	start := pos + 4
	end := start + int(length)
	if end > len(data) {
		return "", pos, false
	}

	return string(data[start:end]), end, true
}

// coalesceVeryLongStrings merges a very-long-string variable's
// continuation segments into its owning variable and drops the
// continuation entries (§4.4.3 step 5).
func coalesceVeryLongStrings(md *Metadata) {
	i := 0
	for i < len(md.Variables) {
		v := &md.Variables[i]
		if v.Kind != format.KindString || v.StringLen <= 255 {
			i++
			continue
		}

		nSegments := (v.StringLen + 251) / 252
		if nSegments <= 1 {
			i++
			continue
		}

		end := i + nSegments
		if end > len(md.Variables) {
			end = len(md.Variables)
		}

		total := 0
		for j := i; j < end; j++ {
			total += md.Variables[j].Width
		}
		v.Width = total

		md.Variables = append(md.Variables[:i+1], md.Variables[end:]...)
		i++
	}
}
