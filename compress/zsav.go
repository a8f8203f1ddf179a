package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/colstat/statread/endian"
)

// ZSAVBlockHeader describes one entry of a ZSAV file's zheader block
// table (§4.3.4): the compressed-block's location and length in the
// trailing zlib stream, and the uncompressed byte count it expands to.
type ZSAVBlockHeader struct {
	CompressedOffset   int64
	UncompressedOffset int64
	CompressedLength   int64
	UncompressedLength int64
}

// ZSAVDecoder decompresses a ZSAV file's zlib-framed blocks and, within
// each inflated block, applies SAV byte-run decoding (§4.3.3, §4.3.4).
// Byte-run state is a single object shared across block boundaries: a
// control chunk or its data may straddle two zlib blocks, so inflating
// block N+1 must resume the byte-run decoder left over from block N
// rather than starting fresh.
type ZSAVDecoder struct {
	byteRun *SAVByteRunDecoder
}

// NewZSAVDecoder creates a decoder sharing byte-run state across the
// DecodeRecord calls made against it.
func NewZSAVDecoder(engine endian.EndianEngine, bias float64) *ZSAVDecoder {
	return &ZSAVDecoder{byteRun: NewSAVByteRunDecoder(engine, bias)}
}

// InflateBlock zlib-inflates one compressed block and returns its
// exact UncompressedLength bytes of raw zlib output (still byte-run
// encoded; callers decode rows from the concatenation of these blocks
// via DecodeRecord).
func InflateBlock(compressed []byte, uncompressedLength int64) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("compress: zsav block: zlib open: %w", err)
	}
	defer r.Close()

	out := make([]byte, uncompressedLength)
	if _, err := io.ReadFull(r, out); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("compress: zsav block: zlib inflate: %w", err)
	}

	return out, nil
}

// DecodeRecord decodes exactly targetLen bytes of byte-run-compressed
// data from the already-inflated stream src, delegating to the shared
// SAVByteRunDecoder so state survives across calls spanning multiple
// inflated blocks.
func (d *ZSAVDecoder) DecodeRecord(src []byte, targetLen int) ([]byte, []byte, error) {
	return d.byteRun.DecodeRecord(src, targetLen)
}

// Ended reports whether the underlying byte-run stream has reached its
// end-of-data sentinel.
func (d *ZSAVDecoder) Ended() bool { return d.byteRun.Ended() }
