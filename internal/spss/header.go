// Package spss implements the SPSS .sav/.zsav header, dictionary, and
// row decoders (§4.4.3, §4.5.3).
package spss

import (
	"github.com/colstat/statread/endian"
	"github.com/colstat/statread/errs"
)

// Header captures the fixed 176-byte SPSS system-file header (§4.4.3
// steps 1-3).
type Header struct {
	Version     int // 2 ($FL2) or 3 ($FL3)
	Engine      endian.EndianEngine
	Compression int32 // 0 none, 1 SAV byte-run, 2 ZSAV

	NominalCaseSize int32
	RowCount        int64
	Bias            float64
	FileLabel       string
}

// ParseHeader reads the first 176 bytes of a .sav/.zsav file (§4.4.3
// steps 1-3): magic check, endianness probe via the layout-code field
// (tried little-endian first, then big), then the compression/row-
// count/bias/label fields at their fixed offsets.
func ParseHeader(buf []byte) (*Header, error) {
	const headerLen = 176
	if len(buf) < headerLen {
		return nil, &errs.BufferOutOfBounds{Offset: 0, Length: len(buf)}
	}

	magic := string(buf[0:4])
	var version int
	switch magic {
	case "$FL2":
		version = 2
	case "$FL3":
		version = 3
	default:
		return nil, errs.ErrInvalidMagicNumber
	}

	layoutLE, errLE := endian.I32(endian.GetLittleEndianEngine(), buf, 64)
	layoutBE, errBE := endian.I32(endian.GetBigEndianEngine(), buf, 64)

	var engine endian.EndianEngine
	switch {
	case errLE == nil && (layoutLE == 2 || layoutLE == 3):
		engine = endian.GetLittleEndianEngine()
	case errBE == nil && (layoutBE == 2 || layoutBE == 3):
		engine = endian.GetBigEndianEngine()
	default:
		return nil, &errs.UnsupportedFormat{Msg: "spss: unrecognized layout code"}
	}

	h := &Header{Version: version, Engine: engine}

	nominalCaseSize, err := endian.I32(engine, buf, 68)
	if err != nil {
		return nil, err
	}
	h.NominalCaseSize = nominalCaseSize

	compression, err := endian.I32(engine, buf, 72)
	if err != nil {
		return nil, err
	}
	h.Compression = compression

	rowCount, err := endian.I32(engine, buf, 80)
	if err != nil {
		return nil, err
	}
	h.RowCount = int64(rowCount)

	bias, err := endian.F64(engine, buf, 84)
	if err != nil {
		return nil, err
	}
	h.Bias = bias

	h.FileLabel = string(endian.TrimPadding(buf[104:168]))

	return h, nil
}
