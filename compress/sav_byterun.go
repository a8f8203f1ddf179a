package compress

import (
	"math"

	"github.com/colstat/statread/endian"
)

// SystemMissingBits is the IEEE-754 bit pattern SPSS uses as its
// system-missing double, reused by both the byte-run decompressor
// (control code 255) and the row decoder's missing-value comparison.
const SystemMissingBits uint64 = 0xFFEFFFFFFFFFFFFF

// SAVByteRunDecoder implements SPSS's SAV compression scheme (§4.3.3): 8
// byte control chunks, one control byte per 8-byte output slot.
//
// Control chunks do not align with record boundaries, so the decoder is
// a resumable state object: a caller decoding consecutive rows from a
// single stream must reuse one decoder instance across calls to
// DecodeRecord rather than constructing a fresh one per row.
type SAVByteRunDecoder struct {
	engine endian.EndianEngine
	bias   float64

	// controls holds the current 8-byte control chunk; the bytes at
	// controls[controlPos:controlLen] are still to be applied. Data bytes
	// for code 253 are read from the src passed to DecodeRecord, not
	// buffered here.
	controls   [8]byte
	controlPos int
	controlLen int

	ended bool
}

// NewSAVByteRunDecoder creates a decoder for the given endianness and
// header-declared bias (nominally 100.0).
func NewSAVByteRunDecoder(engine endian.EndianEngine, bias float64) *SAVByteRunDecoder {
	return &SAVByteRunDecoder{engine: engine, bias: bias}
}

// Ended reports whether the stream has hit the end-of-data sentinel
// (control code 252); once true, further DecodeRecord calls are no-ops
// that pad with NUL.
func (d *SAVByteRunDecoder) Ended() bool { return d.ended }

// DecodeRecord decodes exactly targetLen bytes (always a multiple of 8)
// from src, advancing src and returning the unconsumed remainder. State
// (the partially-consumed control chunk) persists in the receiver across
// calls.
func (d *SAVByteRunDecoder) DecodeRecord(src []byte, targetLen int) (out []byte, rest []byte, err error) {
	out = make([]byte, 0, targetLen)

	for len(out) < targetLen && !d.ended {
		if d.controlPos >= d.controlLen {
			if len(src) < 8 {
				// Not enough input for a fresh control chunk; pad and stop.
				break
			}
			copy(d.controls[:], src[:8])
			src = src[8:]
			d.controlPos = 0
			d.controlLen = 8
		}

		ctrl := d.controls[d.controlPos]
		d.controlPos++

		switch {
		case ctrl == 0:
			// Skip: emits nothing.
			continue
		case ctrl == 252:
			d.ended = true
		case ctrl == 253:
			if len(src) < 8 {
				d.ended = true

				break
			}
			out = append(out, src[:8]...)
			src = src[8:]
		case ctrl == 254:
			out = append(out, []byte("        ")...)
		case ctrl == 255:
			var buf [8]byte
			d.engine.PutUint64(buf[:], SystemMissingBits)
			out = append(out, buf[:]...)
		default:
			v := float64(ctrl) - d.bias
			var buf [8]byte
			d.engine.PutUint64(buf[:], math.Float64bits(v))
			out = append(out, buf[:]...)
		}
	}

	if len(out) < targetLen {
		pad := make([]byte, targetLen-len(out))
		out = append(out, pad...)
	}

	return out, src, nil
}
