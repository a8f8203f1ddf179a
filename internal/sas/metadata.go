package sas

import (
	"bytes"
	"fmt"

	"github.com/colstat/statread/endian"
	"github.com/colstat/statread/errs"
	"github.com/colstat/statread/format"
)

// Variable is one column's decoded metadata (§3 Variable, SAS subset).
type Variable struct {
	Name   string
	Label  string
	Format string

	Kind   format.StorageKind
	Offset int
	Width  int

	Temporal format.TemporalClass
}

// Metadata is the decoded SAS7BDAT metadata directory (§3 Metadata):
// everything §4.4.1 extracts by walking metadata pages before the first
// Data page.
type Metadata struct {
	Variables []Variable

	RowCount         int64
	RowLength        int
	MixPageRowCount  int
	ColumnTextLength int // "lcs" — length of the longest compressed column-text signature region

	DataOffset int // absolute byte offset of the first data byte

	Compression format.SASCompression

	// FirstDataPageIndex is the page index at which metadata walking
	// stopped (§4.4.1 step 7): the first page whose type is Data.
	FirstDataPageIndex int
	// FirstMixPageIndex is the index of the first Mix page encountered,
	// or -1 if none; its trailing rows are returned before any Data-page
	// rows (§4.4.1 step 6).
	FirstMixPageIndex int

	// dataSubheaders holds the (offset,length) pairs a Meta page's
	// row-bearing subheaders contributed, in file order, for callers that
	// must decode rows living on metadata pages.
	dataSubheaders []dataSubheaderRef
}

type dataSubheaderRef struct {
	PageIndex int
	Offset    int
	Length    int
}

// Subheader signatures (§4.4.1 table), given as their 64-bit
// little-endian byte forms; 32-bit files use the leading 4 bytes only,
// and big-endian files see these reversed — sigMatches below accounts
// for both.
var (
	sigRowSize    = []byte{0xF7, 0xF7, 0xF7, 0xF7, 0x00, 0x00, 0x00, 0x00}
	sigColumnSize = []byte{0xF6, 0xF6, 0xF6, 0xF6, 0x00, 0x00, 0x00, 0x00}
	sigColumnText = []byte{0xFD, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	sigColumnName = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	sigColumnAttr = []byte{0xFC, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	sigFormatLbl  = []byte{0xFE, 0xFB, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
)

// ambiguousPrefixes are known-ambiguous data-subheader prefixes that must
// be filtered out when disambiguating compressed-file data rows from
// metadata subheaders (§4.4.1 step 5).
var ambiguousPrefixes = [][]byte{
	{0x00, 0xFC, 0xFF, 0xFF},
	{0xFF, 0xFF, 0xFC, 0x00},
}

type subheaderKind int

const (
	subUnknown subheaderKind = iota
	subRowSize
	subColumnSize
	subColumnText
	subColumnName
	subColumnAttr
	subFormatLabel
	subData
)

func classifySubheader(sig []byte, sigLen, length, rowLength int) subheaderKind {
	switch {
	case sigMatches(sig, sigRowSize, sigLen):
		return subRowSize
	case sigMatches(sig, sigColumnSize, sigLen):
		return subColumnSize
	case sigMatches(sig, sigColumnText, sigLen):
		return subColumnText
	case sigMatches(sig, sigColumnName, sigLen):
		return subColumnName
	case sigMatches(sig, sigColumnAttr, sigLen):
		return subColumnAttr
	case sigMatches(sig, sigFormatLbl, sigLen):
		return subFormatLabel
	}

	// Compressed-file data rows masquerade as type-1 subheaders: a
	// length <= row_length that isn't a known metadata signature and
	// doesn't start with a known-ambiguous prefix (§4.4.1 step 5).
	if length <= rowLength && !hasAmbiguousPrefix(sig) {
		return subData
	}

	return subUnknown
}

func sigMatches(sig, want []byte, sigLen int) bool {
	if sigLen > len(sig) || sigLen > len(want) {
		return false
	}

	if bytes.Equal(sig[:sigLen], want[:sigLen]) {
		return true
	}

	// Mirror: big-endian files, or 32-bit files carrying only the
	// leading half of a 64-bit signature, can present the reversed byte
	// order of the canonical LE form.
	mirrored := make([]byte, sigLen)
	for i := 0; i < sigLen; i++ {
		mirrored[i] = want[sigLen-1-i]
	}

	return bytes.Equal(sig[:sigLen], mirrored)
}

func hasAmbiguousPrefix(sig []byte) bool {
	for _, p := range ambiguousPrefixes {
		if len(sig) >= len(p) && bytes.Equal(sig[:len(p)], p) {
			return true
		}
	}

	return false
}

// pageType values, read from the u16 at the page's PageBitOffset.
const (
	pageTypeMeta    = 0x0000
	pageTypeData    = 0x0100
	pageTypeMix1    = 0x0200
	pageTypeMix2    = 0x0300
	pageTypeAmd     = 0x0400
	pageTypeMetc    = 0x4000
	pageTypeMask    = 0x0FFF
	pageTypeInvalid = -1
)

func pageKind(raw uint16) int {
	switch raw & pageTypeMask {
	case pageTypeMeta:
		return pageTypeMeta
	case pageTypeData:
		return pageTypeData
	case pageTypeMix1:
		return pageTypeMix1
	case pageTypeMix2:
		return pageTypeMix2
	case pageTypeAmd:
		return pageTypeAmd
	case pageTypeMetc:
		return pageTypeMetc
	default:
		return pageTypeInvalid
	}
}

// textHeap accumulates the column-text blocks so column-name/format
// triples can resolve (text_idx, offset, length) references.
type textHeap struct {
	blocks [][]byte
}

func (t *textHeap) add(b []byte) { t.blocks = append(t.blocks, append([]byte(nil), b...)) }

func (t *textHeap) resolve(idx, offset, length int) string {
	if idx < 0 || idx >= len(t.blocks) {
		return ""
	}
	block := t.blocks[idx]
	if offset < 0 || offset+length > len(block) {
		return ""
	}

	return string(endian.TrimPadding(block[offset : offset+length]))
}

func (t *textHeap) detectCompression() format.SASCompression {
	if len(t.blocks) == 0 {
		return format.SASCompressionNone
	}

	block := t.blocks[0]
	if bytes.Contains(block, []byte("SASYZCRL")) {
		return format.SASCompressionRLE
	}
	if bytes.Contains(block, []byte("SASYZCR2")) {
		return format.SASCompressionRDC
	}

	return format.SASCompressionNone
}

// attrEntry is one column-attributes triple: (offset, length, type_byte).
type attrEntry struct {
	Offset int
	Length int
	IsNum  bool
}

// nameRef is one column-names triple: (text_idx, offset, length).
type nameRef struct {
	TextIdx int
	Offset  int
	Length  int
}

// fmtRef holds the two (text_idx,offset,length) triples a format-and-
// label subheader carries.
type fmtRef struct {
	FormatRef nameRef
	LabelRef  nameRef
}

// ParseMetadata walks pages starting at h.HeaderLength using pageReader
// to fetch each page's bytes, accumulating the variable dictionary until
// a Data page is reached (§4.4.1 steps 5-7).
func ParseMetadata(h *Header, pageReader func(index int) ([]byte, error)) (*Metadata, error) {
	md := &Metadata{FirstMixPageIndex: -1, FirstDataPageIndex: -1}

	heap := &textHeap{}
	var names []nameRef
	var attrs []attrEntry
	var fmts []fmtRef
	columnCount := -1

	pageBitOffset := h.PageBitOffset()
	intSize := h.IntegerSize()

	pageIndex := 0

	for {
		page, err := pageReader(pageIndex)
		if err != nil {
			return nil, fmt.Errorf("sas: metadata: read page %d: %w", pageIndex, err)
		}
		if len(page) < pageBitOffset+8 {
			return nil, &errs.ParseError{File: "", Offset: int64(pageIndex), Msg: "page too short for header"}
		}

		rawType, err := endian.U16(h.Engine, page, pageBitOffset)
		if err != nil {
			return nil, err
		}
		kind := pageKind(rawType)

		if kind == pageTypeData {
			md.FirstDataPageIndex = pageIndex

			break
		}
		if kind == pageTypeMix1 || kind == pageTypeMix2 {
			if md.FirstMixPageIndex < 0 {
				md.FirstMixPageIndex = pageIndex
			}
		}

		subheaderCount, err := endian.U16(h.Engine, page, pageBitOffset+4)
		if err != nil {
			return nil, err
		}

		if kind == pageTypeMeta || kind == pageTypeMix1 || kind == pageTypeMix2 || kind == pageTypeAmd {
			ptrBase := pageBitOffset + 8
			ptrSize := 2*intSize + 2
			for i := 0; i < int(subheaderCount); i++ {
				ptrOff := ptrBase + i*ptrSize
				if ptrOff+ptrSize > len(page) {
					break
				}

				subOffset, err := endian.Integer(h.Engine, page, ptrOff, intSize)
				if err != nil {
					return nil, err
				}
				subLength, err := endian.Integer(h.Engine, page, ptrOff+intSize, intSize)
				if err != nil {
					return nil, err
				}
				compressionFlag := page[ptrOff+2*intSize]

				if compressionFlag == 1 || subLength == 0 {
					continue // truncated record, skip (§4.4.1 step 5)
				}

				start := int(subOffset)
				end := start + int(subLength)
				if start < 0 || end > len(page) {
					continue
				}
				body := page[start:end]

				sigLen := 4
				if h.Is64Bit {
					sigLen = 8
				}
				if len(body) < sigLen {
					continue
				}

				rowLength := md.RowLength
				subKind := classifySubheader(body[:sigLen], sigLen, len(body), rowLength)

				switch subKind {
				case subRowSize:
					parseRowSize(h, body, md)
				case subColumnSize:
					if cc, err := endian.Integer(h.Engine, body, sigLen, intSize); err == nil {
						columnCount = int(cc)
					}
				case subColumnText:
					heap.add(body[sigLen:])
				case subColumnName:
					names = append(names, parseColumnNames(h, body, sigLen, intSize)...)
				case subColumnAttr:
					attrs = append(attrs, parseColumnAttrs(h, body, sigLen, intSize)...)
				case subFormatLabel:
					if f, ok := parseFormatLabel(h, body, sigLen); ok {
						fmts = append(fmts, f)
					}
				case subData:
					md.dataSubheaders = append(md.dataSubheaders, dataSubheaderRef{
						PageIndex: pageIndex, Offset: start, Length: int(subLength),
					})
				}
			}
		}

		pageIndex++
		if h.PageCount > 0 && pageIndex >= int(h.PageCount) {
			break
		}
	}

	md.Compression = heap.detectCompression()
	md.DataOffset = int(h.HeaderLength)

	if columnCount < 0 {
		columnCount = len(attrs)
	}

	md.Variables = make([]Variable, 0, columnCount)
	for i := 0; i < columnCount; i++ {
		v := Variable{}
		if i < len(names) {
			v.Name = heap.resolve(names[i].TextIdx, names[i].Offset, names[i].Length)
		}
		if v.Name == "" {
			return nil, &errs.ParseError{Msg: fmt.Sprintf("sas: column %d has empty name after metadata parse", i)}
		}
		if i < len(attrs) {
			v.Offset = attrs[i].Offset
			v.Width = attrs[i].Length
			if attrs[i].IsNum {
				v.Kind = format.KindFloat64
			} else {
				v.Kind = format.KindString
			}
		}
		if i < len(fmts) {
			v.Format = heap.resolve(fmts[i].FormatRef.TextIdx, fmts[i].FormatRef.Offset, fmts[i].FormatRef.Length)
			v.Label = heap.resolve(fmts[i].LabelRef.TextIdx, fmts[i].LabelRef.Offset, fmts[i].LabelRef.Length)
			v.Temporal = classifyFormat(v.Format)
		}

		md.Variables = append(md.Variables, v)
	}

	return md, nil
}

// parseRowSize extracts row_count/row_length/mix_page_row_count from a
// row-size subheader body. Offsets follow the widely-documented
// SAS7BDAT row-size layout: row_length at intSize*5, row_count at
// intSize*6, mix_page_row_count at intSize*15. The lcs/lcp fields are
// not read, so Metadata.ColumnTextLength stays zero.
func parseRowSize(h *Header, body []byte, md *Metadata) {
	intSize := h.IntegerSize()

	if v, err := endian.Integer(h.Engine, body, intSize*5, intSize); err == nil {
		md.RowLength = int(v)
	}
	if v, err := endian.Integer(h.Engine, body, intSize*6, intSize); err == nil {
		md.RowCount = int64(v)
	}
	if v, err := endian.Integer(h.Engine, body, intSize*15, intSize); err == nil {
		md.MixPageRowCount = int(v)
	}
}

func parseColumnNames(h *Header, body []byte, sigLen, intSize int) []nameRef {
	var out []nameRef
	// Skip a fixed small prefix (remaining-count field) that precedes the
	// name-pointer array in the subheader body.
	start := sigLen + intSize
	stride := 8
	for off := start; off+stride <= len(body); off += stride {
		textIdx, err1 := endian.U16(h.Engine, body, off)
		offset, err2 := endian.U16(h.Engine, body, off+2)
		length, err3 := endian.U16(h.Engine, body, off+4)
		if err1 != nil || err2 != nil || err3 != nil {
			break
		}
		if length == 0 {
			continue
		}
		out = append(out, nameRef{TextIdx: int(textIdx), Offset: int(offset), Length: int(length)})
	}

	return out
}

func parseColumnAttrs(h *Header, body []byte, sigLen, intSize int) []attrEntry {
	var out []attrEntry
	start := sigLen + intSize
	stride := intSize + 2 + 2 + 2
	for off := start; off+stride <= len(body); off += stride {
		offset, err1 := endian.Integer(h.Engine, body, off, intSize)
		length, err2 := endian.U32(h.Engine, body, off+intSize)
		if err1 != nil || err2 != nil {
			break
		}
		typeByte := body[off+intSize+4]
		out = append(out, attrEntry{Offset: int(offset), Length: int(length), IsNum: typeByte == 1})
	}

	return out
}

func parseFormatLabel(h *Header, body []byte, sigLen int) (fmtRef, bool) {
	// Two (text_idx, offset, length) triples follow a small fixed prefix.
	base := sigLen + 2*h.IntegerSize()
	stride := 8
	if base+2*stride > len(body) {
		return fmtRef{}, false
	}

	readTriple := func(off int) nameRef {
		textIdx, _ := endian.U16(h.Engine, body, off)
		offset, _ := endian.U16(h.Engine, body, off+2)
		length, _ := endian.U16(h.Engine, body, off+4)

		return nameRef{TextIdx: int(textIdx), Offset: int(offset), Length: int(length)}
	}

	return fmtRef{
		FormatRef: readTriple(base),
		LabelRef:  readTriple(base + stride),
	}, true
}

// classifyFormat maps a SAS format keyword to a TemporalClass (§4.5.1
// step 3).
func classifyFormat(f string) format.TemporalClass {
	switch {
	case hasAnyPrefix(f, "DATETIME", "B8601DT"):
		return format.TemporalDateTime
	case hasAnyPrefix(f, "DATE", "JULDAY", "WEEKDATE", "YYMMDD", "MMDDYY", "DDMMYY"):
		return format.TemporalDate
	case hasAnyPrefix(f, "TIME", "HHMM"):
		return format.TemporalTime
	default:
		return format.TemporalNone
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}

	return false
}
