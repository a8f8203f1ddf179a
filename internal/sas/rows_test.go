package sas

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstat/statread/endian"
	"github.com/colstat/statread/format"
)

// buildDataPages lays out n pages of pageLength bytes each, rowsPerPage
// rows of rowLength bytes per page, little-endian 32-bit layout
// (PageBitOffset == 16). Each row's first byte carries its absolute row
// index, so tests can confirm which row a seek landed on.
func buildDataPages(t *testing.T, n, pageLength, rowsPerPage, rowLength int) [][]byte {
	t.Helper()

	pages := make([][]byte, n)
	row := 0
	for p := 0; p < n; p++ {
		page := make([]byte, pageLength)
		binary.LittleEndian.PutUint16(page[16:18], 0x0100) // page_type: Data
		binary.LittleEndian.PutUint16(page[18:20], uint16(rowsPerPage))

		pos := 16 + 8
		for r := 0; r < rowsPerPage; r++ {
			page[pos] = byte(row)
			pos += rowLength
			row++
		}

		pages[p] = page
	}

	return pages
}

func testHeaderAndMetadata(pageLength, rowsPerPage, rowLength, pageCount int) (*Header, *Metadata) {
	h := &Header{
		Is64Bit:      false,
		LittleEndian: true,
		PageLength:   uint32(pageLength),
		PageCount:    uint32(pageCount),
		Engine:       endian.GetLittleEndianEngine(),
	}
	md := &Metadata{
		RowCount:           int64(rowsPerPage * pageCount),
		RowLength:          rowLength,
		Compression:        format.SASCompressionNone,
		FirstDataPageIndex: 0,
		FirstMixPageIndex:  -1,
	}

	return h, md
}

func TestRowSourceWalksDataPagesInOrder(t *testing.T) {
	pages := buildDataPages(t, 3, 64, 5, 8)
	h, md := testHeaderAndMetadata(64, 5, 8, 3)

	read := func(i int) ([]byte, error) { return pages[i], nil }

	rs, err := NewRowSource(h, md, read)
	require.NoError(t, err)

	for i := 0; i < 15; i++ {
		row, err := rs.Next()
		require.NoError(t, err)
		require.Equal(t, byte(i), row[0])
	}

	_, err = rs.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestNewRowSourceAtZeroBehavesLikeNewRowSource(t *testing.T) {
	pages := buildDataPages(t, 3, 64, 5, 8)
	h, md := testHeaderAndMetadata(64, 5, 8, 3)
	read := func(i int) ([]byte, error) { return pages[i], nil }

	rs, err := NewRowSourceAt(h, md, read, 0)
	require.NoError(t, err)

	row, err := rs.Next()
	require.NoError(t, err)
	require.Equal(t, byte(0), row[0])
}

func TestNewRowSourceAtUsesAnalyticalSeekForUncompressed(t *testing.T) {
	pages := buildDataPages(t, 3, 64, 5, 8)
	h, md := testHeaderAndMetadata(64, 5, 8, 3)

	var reads []int
	read := func(i int) ([]byte, error) {
		reads = append(reads, i)
		return pages[i], nil
	}

	rs, err := NewRowSourceAt(h, md, read, 7)
	require.NoError(t, err)

	row, err := rs.Next()
	require.NoError(t, err)
	require.Equal(t, byte(7), row[0])

	// Only the validation read (page 0) and the landing page (page 1)
	// should have been touched — no sequential walk through page 0's
	// rows.
	require.ElementsMatch(t, []int{0, 1}, reads)

	row, err = rs.Next()
	require.NoError(t, err)
	require.Equal(t, byte(8), row[0])
}

func TestNewRowSourceAtFallsBackSequentiallyWhenCompressed(t *testing.T) {
	pages := buildDataPages(t, 3, 64, 5, 8)
	h, md := testHeaderAndMetadata(64, 5, 8, 3)
	md.Compression = format.SASCompressionRLE

	var reads []int
	read := func(i int) ([]byte, error) {
		reads = append(reads, i)
		return pages[i], nil
	}

	// A compressed file never takes the analytical seek, regardless of
	// how far into the file startRow lands: rows are stored length-equal
	// to row_length here (decompressRow's pass-through rule), so the
	// sequential skip still produces the right row, but it must have
	// walked every page up to and including the landing page to get
	// there.
	rs, err := NewRowSourceAt(h, md, read, 7)
	require.NoError(t, err)
	row, err := rs.Next()
	require.NoError(t, err)
	require.Equal(t, byte(7), row[0])
	require.ElementsMatch(t, []int{0, 1}, reads)
}
