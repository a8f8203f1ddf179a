package sas

import (
	"fmt"
	"io"

	"github.com/colstat/statread/compress"
	"github.com/colstat/statread/endian"
	"github.com/colstat/statread/format"
	"github.com/colstat/statread/rangereader"
)

// PageReaderFunc fetches the raw bytes of the page at the given index,
// sized exactly to Header.PageLength. Workers each supply their own
// implementation backed by an independent file handle (§5: "each opens
// its own OS file handle").
type PageReaderFunc func(index int) ([]byte, error)

// RowSource walks SAS pages (§4.5.1) and yields decompressed, exactly
// row_length-sized row buffers in file order: metadata-page data
// subheaders first, then the first Mix page's trailing rows, then every
// subsequent Data page's packed rows.
type RowSource struct {
	h    *Header
	md   *Metadata
	read PageReaderFunc
	codec compress.Codec

	subPos int // index into md.dataSubheaders

	mixDone   bool
	pageIndex int

	curPage   []byte
	curOffset int // byte offset of the next row within curPage
	curEnd    int // byte offset past the last full row in curPage

	emitted int64
}

// NewRowSource builds a row walker for one open file / worker.
func NewRowSource(h *Header, md *Metadata, read PageReaderFunc) (*RowSource, error) {
	codec, err := compress.NewSASCodec(md.Compression)
	if err != nil {
		return nil, err
	}

	rs := &RowSource{h: h, md: md, read: read, codec: codec}
	// Start at the first Mix page when there is one: it precedes the
	// first Data page and its trailing rows come first (§4.4.1 step 6).
	if md.FirstMixPageIndex >= 0 {
		rs.pageIndex = md.FirstMixPageIndex
	} else if md.FirstDataPageIndex >= 0 {
		rs.pageIndex = md.FirstDataPageIndex
	} else {
		rs.pageIndex = int(h.PageCount)
	}

	return rs, nil
}

// Next returns the next decompressed row, or io.EOF once row_count rows
// have been produced.
func (rs *RowSource) Next() ([]byte, error) {
	if rs.emitted >= rs.md.RowCount {
		return nil, io.EOF
	}

	// Phase 1: metadata-page data subheaders.
	if rs.subPos < len(rs.md.dataSubheaders) {
		ref := rs.md.dataSubheaders[rs.subPos]
		rs.subPos++

		page, err := rs.read(ref.PageIndex)
		if err != nil {
			return nil, fmt.Errorf("sas: row source: read page %d: %w", ref.PageIndex, err)
		}
		if ref.Offset+ref.Length > len(page) {
			return nil, fmt.Errorf("sas: row source: subheader row out of bounds on page %d", ref.PageIndex)
		}

		row, err := rs.decompressRow(page[ref.Offset : ref.Offset+ref.Length])
		if err != nil {
			return nil, err
		}
		rs.emitted++

		return row, nil
	}

	// Phase 2 and 3: page-packed rows (Mix page trailing rows, then Data
	// pages), sharing the same "walk curPage, refill on exhaustion" loop.
	for {
		if rs.curPage != nil && rs.curOffset < rs.curEnd {
			row := rs.curPage[rs.curOffset : rs.curOffset+rs.md.RowLength]
			rs.curOffset += rs.md.RowLength

			decoded, err := rs.decompressRow(row)
			if err != nil {
				return nil, err
			}
			rs.emitted++

			return decoded, nil
		}

		if err := rs.advancePage(); err != nil {
			return nil, err
		}
	}
}

// NewRowSourceAt builds a row walker positioned to start emitting at the
// absolute row index startRow (0-based, counting metadata-subheader rows
// and Mix-page rows before any Data-page row). For an uncompressed file
// it tries the analytical page index (§4.6 "Analytical SAS page index")
// to seek directly into the Data-page region once startRow falls past
// the fixed subheader/Mix rows, validating rows-per-page against the
// first Data page's block_count before trusting the seek; every other
// case — compressed file, validation failure, or a startRow still
// within the fixed rows — degrades to sequential skip-by-decoding, the
// documented fallback.
func NewRowSourceAt(h *Header, md *Metadata, read PageReaderFunc, startRow int64) (*RowSource, error) {
	rs, err := NewRowSource(h, md, read)
	if err != nil {
		return nil, err
	}
	if startRow <= 0 {
		return rs, nil
	}

	fixedRows := int64(len(md.dataSubheaders) + md.MixPageRowCount)
	if md.Compression == format.SASCompressionNone && startRow > fixedRows && md.FirstDataPageIndex >= 0 {
		if ok, pageIndex, offset := analyticalSeek(h, md, read, startRow-fixedRows); ok {
			page, err := read(pageIndex)
			if err != nil {
				return nil, fmt.Errorf("sas: row source: read page %d: %w", pageIndex, err)
			}

			pageBitOffset := h.PageBitOffset()
			rowsOnPage := (int(h.PageLength) - (pageBitOffset + 8)) / md.RowLength

			rs.subPos = len(md.dataSubheaders)
			rs.mixDone = true
			rs.pageIndex = pageIndex + 1
			rs.curPage = page
			rs.curOffset = offset
			rs.curEnd = pageBitOffset + 8 + rowsOnPage*md.RowLength
			rs.emitted = startRow

			return rs, nil
		}
	}

	for i := int64(0); i < startRow; i++ {
		if _, err := rs.Next(); err != nil {
			return nil, fmt.Errorf("sas: row source: skip to row %d: %w", startRow, err)
		}
	}

	return rs, nil
}

// analyticalSeek validates the analytical rows-per-page figure against
// the first Data page's declared block_count before trusting it to
// locate targetRow (relative to the start of the Data-page region).
func analyticalSeek(h *Header, md *Metadata, read PageReaderFunc, targetRow int64) (ok bool, pageIndex, offset int) {
	pageBitOffset := h.PageBitOffset()
	rowsPerPage := rangereader.RowsPerPage(int(h.PageLength), pageBitOffset, md.RowLength)
	if rowsPerPage <= 0 {
		return false, 0, 0
	}

	firstPage, err := read(md.FirstDataPageIndex)
	if err != nil {
		return false, 0, 0
	}

	blockCount, err := endian.U16(h.Engine, firstPage, pageBitOffset+2)
	if err != nil {
		return false, 0, 0
	}

	if !rangereader.ValidateRowsPerPage(rowsPerPage, int(blockCount)) {
		return false, 0, 0
	}

	pageIndex, offset = rangereader.AnalyticalPageIndex(pageBitOffset, md.RowLength, rowsPerPage, md.FirstDataPageIndex, targetRow)

	return true, pageIndex, offset
}

// advancePage loads the next page into curPage/curOffset/curEnd,
// choosing the Mix-page or Data-page row layout per §4.5.1.
func (rs *RowSource) advancePage() error {
	if rs.h.PageCount > 0 && rs.pageIndex >= int(rs.h.PageCount) {
		return io.EOF
	}

	page, err := rs.read(rs.pageIndex)
	if err != nil {
		return fmt.Errorf("sas: row source: read page %d: %w", rs.pageIndex, err)
	}

	pageBitOffset := rs.h.PageBitOffset()
	intSize := rs.h.IntegerSize()

	rawType, err := endian.U16(rs.h.Engine, page, pageBitOffset)
	if err != nil {
		return err
	}
	kind := pageKind(rawType)

	switch kind {
	case pageTypeMix1, pageTypeMix2:
		if rs.mixDone || rs.pageIndex != rs.md.FirstMixPageIndex {
			// Only the first Mix page's trailing rows are data (§4.4.1
			// step 6); later Mix pages (rare) are skipped as metadata-only.
			rs.pageIndex++

			return nil
		}

		subheaderCount, err := endian.U16(rs.h.Engine, page, pageBitOffset+4)
		if err != nil {
			return err
		}
		start := pageBitOffset + 8 + int(subheaderCount)*3*intSize
		start = roundUpTo8(start)

		rs.curPage = page
		rs.curOffset = start
		rs.curEnd = start + rs.md.MixPageRowCount*rs.md.RowLength
		rs.mixDone = true
		rs.pageIndex++

		return nil
	case pageTypeData:
		rs.curPage = page
		rs.curOffset = pageBitOffset + 8
		rowsOnPage := (rs.h.PageLength - uint32(pageBitOffset+8)) / uint32(rs.md.RowLength)
		rs.curEnd = rs.curOffset + int(rowsOnPage)*rs.md.RowLength
		rs.pageIndex++

		return nil
	default:
		rs.pageIndex++

		return nil
	}
}

func roundUpTo8(n int) int {
	if n%8 == 0 {
		return n
	}

	return n + (8 - n%8)
}

// decompressRow applies the file's declared decompressor when the stored
// length is shorter than row_length; otherwise the slice is used as-is
// (§4.5.1: "the rule for decompression is length-based, not flag-based").
func (rs *RowSource) decompressRow(raw []byte) ([]byte, error) {
	if len(raw) >= rs.md.RowLength {
		return raw[:rs.md.RowLength], nil
	}

	return rs.codec.Decompress(raw, rs.md.RowLength)
}
