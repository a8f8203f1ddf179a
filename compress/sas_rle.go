package compress

import "github.com/colstat/statread/errs"

// RLEDecompressor implements SAS's "SASYZCRL" row-level byte-run
// compression (§4.3.1). A control byte's high nibble selects the
// command; the low nibble and (for some commands) the next input byte
// parameterize a literal-copy or byte-repeat run.
type RLEDecompressor struct{}

var _ Decompressor = RLEDecompressor{}

// Decompress expands an RLE-compressed row to exactly targetLen bytes.
// If the input is exhausted before targetLen bytes have been produced,
// the remainder is NUL-padded; a stream that would overrun targetLen is
// truncated rather than returning an error.
func (RLEDecompressor) Decompress(data []byte, targetLen int) ([]byte, error) {
	out := make([]byte, 0, targetLen)
	i := 0
	n := len(data)

	next := func() (byte, bool) {
		if i >= n {
			return 0, false
		}
		b := data[i]
		i++

		return b, true
	}

	appendN := func(b byte, count int) {
		if len(out)+count > targetLen {
			count = targetLen - len(out)
		}
		for k := 0; k < count; k++ {
			out = append(out, b)
		}
	}

	copyN := func(count int) {
		if len(out)+count > targetLen {
			count = targetLen - len(out)
		}
		for k := 0; k < count; k++ {
			b, ok := next()
			if !ok {
				break
			}
			out = append(out, b)
		}
	}

loop:
	for len(out) < targetLen {
		ctrl, ok := next()
		if !ok {
			break loop
		}

		cmd := ctrl >> 4
		lo := int(ctrl & 0x0F)

		switch cmd {
		case 0x0:
			b, ok := next()
			if !ok {
				break loop
			}
			copyN((lo << 8) + int(b) + 64)
		case 0x1:
			b, ok := next()
			if !ok {
				break loop
			}
			copyN(64 + lo*256 + int(b) + 4096)
		case 0x2:
			copyN(lo + 96)
		case 0x4:
			b, ok := next()
			if !ok {
				break loop
			}
			fill, ok := next()
			if !ok {
				break loop
			}
			appendN(fill, (lo<<4)+int(b)+18)
		case 0x5:
			b, ok := next()
			if !ok {
				break loop
			}
			appendN('@', (lo<<8)+int(b)+17)
		case 0x6:
			b, ok := next()
			if !ok {
				break loop
			}
			appendN(' ', (lo<<8)+int(b)+17)
		case 0x7:
			b, ok := next()
			if !ok {
				break loop
			}
			appendN(0x00, (lo<<8)+int(b)+17)
		case 0x8:
			copyN(lo + 1)
		case 0x9:
			copyN(lo + 17)
		case 0xA:
			copyN(lo + 33)
		case 0xB:
			copyN(lo + 49)
		case 0xC:
			fill, ok := next()
			if !ok {
				break loop
			}
			appendN(fill, lo+3)
		case 0xD:
			appendN('@', lo+2)
		case 0xE:
			appendN(' ', lo+2)
		case 0xF:
			appendN(0x00, lo+2)
		default:
			return nil, &errs.InvalidRleCommand{Command: cmd}
		}
	}

	if len(out) < targetLen {
		pad := make([]byte, targetLen-len(out))
		out = append(out, pad...)
	}

	return out, nil
}
