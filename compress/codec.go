package compress

import (
	"fmt"

	"github.com/colstat/statread/format"
)

// Decompressor expands a compressed byte stream into a target-length
// output.
//
// Every implementation in this package guarantees the returned slice is
// exactly targetLen bytes: a stream that would overrun is truncated, one
// that underruns is NUL-padded (§4.3 of the specification). Decompressors
// never mutate the input slice.
type Decompressor interface {
	Decompress(data []byte, targetLen int) ([]byte, error)
}

// Codec is an alias kept for symmetry with the teacher's Compressor/
// Decompressor/Codec split; statread only ever decodes, so Codec and
// Decompressor are the same shape here.
type Codec = Decompressor

// NewSASCodec returns the Decompressor implementing a SAS compression
// signature (§4.3.1, §4.3.2).
func NewSASCodec(c format.SASCompression) (Codec, error) {
	switch c {
	case format.SASCompressionNone:
		return NoOpDecompressor{}, nil
	case format.SASCompressionRLE:
		return RLEDecompressor{}, nil
	case format.SASCompressionRDC:
		return RDCDecompressor{}, nil
	default:
		return nil, fmt.Errorf("compress: unknown SAS compression %v", c)
	}
}

var builtinSASCodecs = map[format.SASCompression]Codec{
	format.SASCompressionNone: NoOpDecompressor{},
	format.SASCompressionRLE:  RLEDecompressor{},
	format.SASCompressionRDC:  RDCDecompressor{},
}

// GetSASCodec retrieves a built-in SAS Codec without allocating.
func GetSASCodec(c format.SASCompression) (Codec, error) {
	if codec, ok := builtinSASCodecs[c]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("compress: unsupported SAS compression: %s", c)
}
