package spss

import (
	"fmt"
	"io"
	"math"

	"github.com/colstat/statread/compress"
	"github.com/colstat/statread/endian"
	"github.com/colstat/statread/format"
)

// ZHeader is the 3 x u64 preamble a ZSAV file carries immediately at its
// data offset: the block itself is self-describing via a trailer found
// by seeking to TrailerOffset (§4.3.4).
type ZHeader struct {
	SelfOffset    int64
	TrailerOffset int64
	TrailerLength int64
}

// ZTrailer is the ZSAV block table: bias/zero/block-size/block-count
// followed by one descriptor per compressed block (§4.3.4).
type ZTrailer struct {
	Bias      float64
	BlockSize int32
	Blocks    []compress.ZSAVBlockHeader
}

// ParseZHeader reads the 24-byte Z-header at buf[0:24].
func ParseZHeader(engine endian.EndianEngine, buf []byte) (*ZHeader, error) {
	if len(buf) < 24 {
		return nil, fmt.Errorf("spss: zsav zheader: short buffer")
	}

	self, err := endian.U64(engine, buf, 0)
	if err != nil {
		return nil, err
	}
	trailerOff, err := endian.U64(engine, buf, 8)
	if err != nil {
		return nil, err
	}
	trailerLen, err := endian.U64(engine, buf, 16)
	if err != nil {
		return nil, err
	}

	return &ZHeader{SelfOffset: int64(self), TrailerOffset: int64(trailerOff), TrailerLength: int64(trailerLen)}, nil
}

// ParseZTrailer reads the block table at buf (already sliced to the
// trailer's own byte range, per ZHeader.TrailerOffset/TrailerLength).
func ParseZTrailer(engine endian.EndianEngine, buf []byte) (*ZTrailer, error) {
	if len(buf) < 24 {
		return nil, fmt.Errorf("spss: zsav ztrailer: short buffer")
	}

	biasBits, err := endian.U64(engine, buf, 0)
	if err != nil {
		return nil, err
	}
	// zero field at buf[8:16], unused.
	blockSize, err := endian.I32(engine, buf, 16)
	if err != nil {
		return nil, err
	}
	blockCount, err := endian.I32(engine, buf, 20)
	if err != nil {
		return nil, err
	}

	t := &ZTrailer{Bias: math.Float64frombits(biasBits), BlockSize: blockSize}

	pos := 24
	for i := int32(0); i < blockCount; i++ {
		if pos+32 > len(buf) {
			return nil, fmt.Errorf("spss: zsav ztrailer: block descriptor out of bounds")
		}

		uOff, _ := endian.U64(engine, buf, pos)
		cOff, _ := endian.U64(engine, buf, pos+8)
		uLen, _ := endian.I32(engine, buf, pos+16)
		cLen, _ := endian.I32(engine, buf, pos+24)
		pos += 32

		t.Blocks = append(t.Blocks, compress.ZSAVBlockHeader{
			UncompressedOffset: int64(uOff),
			CompressedOffset:   int64(cOff),
			UncompressedLength: int64(uLen),
			CompressedLength:   int64(cLen),
		})
	}

	return t, nil
}

// RowSource walks a .sav/.zsav file's row stream from its data offset,
// yielding exactly RowLength-sized decoded row buffers (§4.5.3).
//
// Unlike SAS's page-walked RowSource, SPSS rows are a flat byte stream
// with no page structure: compression 0 slices the stream directly;
// compression 1 feeds the stream through a stateful byte-run decoder;
// compression 2 (ZSAV) additionally zlib-inflates the trailer's
// compressed blocks before byte-run decoding the concatenation. In both
// compressed cases the decoder needs lookahead past one row's worth of
// bytes (a control chunk's literal-copy command pulls 8 more bytes than
// the chunk itself), so pending buffers the not-yet-decoded remainder
// rather than being refilled one row at a time.
type RowSource struct {
	h  *Header
	md *Metadata

	r io.Reader

	byteRun *compress.SAVByteRunDecoder
	zsav    *compress.ZSAVDecoder

	pending []byte // raw (compression 0/1) or inflated (ZSAV) bytes not yet consumed
	drained bool   // true once r has returned EOF

	trailer  *ZTrailer
	blockIdx int
	raw      io.ReaderAt

	emitted int64
}

// NewRowSource builds a row walker. For compression 0/1, r must yield
// the file's row bytes starting at Metadata.DataOffset. For compression
// 2 (ZSAV), raw must provide random access to the whole file so
// compressed blocks can be read by the offsets in trailer, which must
// be the already-parsed block table.
func NewRowSource(h *Header, md *Metadata, r io.Reader, raw io.ReaderAt, trailer *ZTrailer) *RowSource {
	rs := &RowSource{h: h, md: md, r: r, raw: raw, trailer: trailer}

	switch format.SPSSCompression(h.Compression) {
	case format.SPSSCompressionByteRun:
		rs.byteRun = compress.NewSAVByteRunDecoder(h.Engine, h.Bias)
	case format.SPSSCompressionZSAV:
		rs.zsav = compress.NewZSAVDecoder(h.Engine, h.Bias)
	}

	return rs
}

// Next returns the next decoded row, or io.EOF once RowCount rows have
// been produced.
func (rs *RowSource) Next() ([]byte, error) {
	if rs.emitted >= rs.md.RowCount {
		return nil, io.EOF
	}

	row := make([]byte, rs.md.RowLength)

	var err error
	switch format.SPSSCompression(rs.h.Compression) {
	case format.SPSSCompressionNone:
		err = rs.fillDirect(row)
	case format.SPSSCompressionByteRun:
		err = rs.fillDecoded(row, rs.byteRun.DecodeRecord)
	case format.SPSSCompressionZSAV:
		err = rs.fillDecoded(row, rs.zsav.DecodeRecord)
	default:
		err = fmt.Errorf("spss: unknown compression code %d", rs.h.Compression)
	}
	if err != nil {
		return nil, err
	}

	rs.emitted++

	return row, nil
}

func (rs *RowSource) fillDirect(row []byte) error {
	if _, err := io.ReadFull(rs.r, row); err != nil {
		return fmt.Errorf("spss: row source: read row: %w", err)
	}

	return nil
}

// decodeFunc matches both SAVByteRunDecoder.DecodeRecord and
// ZSAVDecoder.DecodeRecord.
type decodeFunc func(src []byte, targetLen int) (out []byte, rest []byte, err error)

// fillDecoded tops up rs.pending from the appropriate source (raw file
// bytes for byte-run, inflated ZSAV blocks for ZSAV) until decode can
// produce a full row, or the source is exhausted.
func (rs *RowSource) fillDecoded(row []byte, decode decodeFunc) error {
	target := len(row)

	for {
		decoded, rest, err := decode(rs.pending, target)
		if err != nil {
			return err
		}
		rs.pending = rest

		if len(decoded) == target {
			copy(row, decoded)

			return nil
		}

		// decode padded a short result because rs.pending ran out; top it
		// up and retry unless the source is exhausted.
		if rs.drained {
			copy(row, decoded)

			return nil
		}
		if err := rs.topUpPending(); err != nil {
			return err
		}
	}
}

func (rs *RowSource) topUpPending() error {
	if format.SPSSCompression(rs.h.Compression) == format.SPSSCompressionZSAV {
		return rs.topUpFromZSAVBlock()
	}

	buf := make([]byte, 64*1024)
	n, err := rs.r.Read(buf)
	if n > 0 {
		rs.pending = append(rs.pending, buf[:n]...)
	}
	if err != nil {
		if err == io.EOF {
			rs.drained = true

			return nil
		}

		return fmt.Errorf("spss: row source: read: %w", err)
	}

	return nil
}

func (rs *RowSource) topUpFromZSAVBlock() error {
	if rs.trailer == nil || rs.blockIdx >= len(rs.trailer.Blocks) {
		rs.drained = true

		return nil
	}

	b := rs.trailer.Blocks[rs.blockIdx]
	rs.blockIdx++

	compressed := make([]byte, b.CompressedLength)
	if _, err := rs.raw.ReadAt(compressed, b.CompressedOffset); err != nil {
		return fmt.Errorf("spss: zsav: read compressed block: %w", err)
	}

	inflated, err := compress.InflateBlock(compressed, b.UncompressedLength)
	if err != nil {
		return err
	}
	rs.pending = append(rs.pending, inflated...)

	return nil
}
