package stata

import (
	"io"

	"github.com/colstat/statread/errs"
)

// RowReader walks the packed, fixed-stride row region of a .dta file.
// Unlike SAS, Stata rows are never paged or compressed: they are
// row_length-byte records packed back-to-back starting at the data
// offset, so a RowReader is just a cursor over one contiguous slice.
type RowReader struct {
	data      []byte
	rowLength int
	rowCount  int64

	pos     int
	emitted int64
}

// NewRowReader builds a walker over the rowCount*rowLength-byte region
// starting at data[0].
func NewRowReader(data []byte, rowLength int, rowCount int64) (*RowReader, error) {
	need := rowLength * int(rowCount)
	if need > len(data) {
		return nil, &errs.BufferOutOfBounds{Offset: 0, Length: len(data)}
	}

	return &RowReader{data: data, rowLength: rowLength, rowCount: rowCount}, nil
}

// Next returns the next row_length-byte record, or io.EOF once row_count
// rows have been produced.
func (r *RowReader) Next() ([]byte, error) {
	if r.emitted >= r.rowCount {
		return nil, io.EOF
	}

	row := r.data[r.pos : r.pos+r.rowLength]
	r.pos += r.rowLength
	r.emitted++

	return row, nil
}

// DataOffset returns the byte offset, within the full file, at which the
// packed row region begins: seek_data+6 for FormatVersion>=117 (the six
// bytes are the "<data>" tag not yet skipped by the seek entry itself
// pointing at the tag's start), or immediately after the dictionary
// sections for <117 files.
func DataOffset(h *Header, afterDictionary int) int {
	if h.FormatVersion >= 117 {
		return int(h.Map.Data) + 6
	}

	return afterDictionary
}

// LegacyDataOffset computes the <117 data offset without re-reading the
// file: every dictionary section before the row region is a fixed-width
// table sized purely from h.Nvar (the same widths ParseMetadata's
// sequential branch reads), so the ending cursor is pure arithmetic on
// h.HeaderEnd and h.Nvar.
func LegacyDataOffset(h *Header) int {
	pos := h.HeaderEnd
	pos += h.Nvar          // vartypes: 1 byte each
	pos += 33 * h.Nvar     // varnames
	pos += 2 * (h.Nvar + 1) // sortlist
	pos += 49 * h.Nvar     // formats
	pos += 33 * h.Nvar     // value-label names
	pos += 81 * h.Nvar     // variable labels

	return pos
}
