// Package sas implements the SAS7BDAT header, page, and row decoders
// (§4.4.1, §4.5.1).
package sas

import (
	"time"

	"github.com/colstat/statread/endian"
	"github.com/colstat/statread/errs"
)

// magic is the 32-byte SAS7BDAT file signature (§4.4.1 step 1).
var magic = [32]byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xC2, 0xEA, 0x81, 0x60,
	0xB3, 0x14, 0x11, 0xCF, 0xBD, 0x92, 0x08, 0x00,
	0x09, 0xC7, 0x31, 0x8C, 0x18, 0x1F, 0x10, 0x11,
}

// sasEpoch is the SAS epoch, 1960-01-01, used for date_created/date_modified
// which are stored as seconds-as-f64 since that epoch.
var sasEpoch = time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)

// Header captures the fixed-layout portion of a SAS7BDAT header (§3
// FileHeader, SAS-specific fields) plus the layout parameters every
// later offset computation in this package depends on.
type Header struct {
	Is64Bit      bool
	LittleEndian bool
	// Align1 is 4 when byte 35 is '3', else 0; it shifts the header
	// fields read from offset 164 onward (timestamps, header length,
	// page length, page count) by that amount.
	Align1 int
	// Align2 is 4 for 64-bit files, else 0; it is added to Align1 only
	// to locate the release string.
	Align2 int

	HeaderLength uint32
	PageLength   uint32
	PageCount    uint32

	Encoding byte

	DatasetName string
	FileType    string

	DateCreated  time.Time
	DateModified time.Time

	Release string

	Engine endian.EndianEngine
}

// PageBitOffset is the size of a page's fixed leading block (page_type,
// block_count, subheader_count): 32 bytes for 64-bit files, 16 for 32-bit.
func (h *Header) PageBitOffset() int {
	if h.Is64Bit {
		return 32
	}

	return 16
}

// IntegerSize is the width (in bytes) of offset/length fields embedded in
// subheader pointers: 8 for 64-bit files, 4 for 32-bit.
func (h *Header) IntegerSize() int {
	if h.Is64Bit {
		return 8
	}

	return 4
}

// ParseHeader reads the first 288+ bytes of a SAS7BDAT file and
// populates a Header. buf must be at least 288 bytes.
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < 288 {
		return nil, &errs.BufferOutOfBounds{Offset: 0, Length: len(buf)}
	}
	for i := range magic {
		if buf[i] != magic[i] {
			return nil, errs.ErrInvalidMagicNumber
		}
	}

	h := &Header{}
	h.Is64Bit = buf[32] == '3'
	h.LittleEndian = buf[37] == 0x01

	if h.LittleEndian {
		h.Engine = endian.GetLittleEndianEngine()
	} else {
		h.Engine = endian.GetBigEndianEngine()
	}

	if buf[35] == '3' {
		h.Align1 = 4
	}
	if h.Is64Bit {
		h.Align2 = 4
	}
	totalAlign := h.Align1 + h.Align2

	headerLength, err := endian.U32(h.Engine, buf, 196+h.Align1)
	if err != nil {
		return nil, err
	}
	h.HeaderLength = headerLength

	h.DatasetName = decodeHeaderText(buf, 92, 64)
	h.FileType = decodeHeaderText(buf, 156, 8)

	dateCreatedSecs, err := endian.F64(h.Engine, buf, 164+h.Align1)
	if err == nil {
		h.DateCreated = sasEpoch.Add(time.Duration(dateCreatedSecs * float64(time.Second)))
	}
	dateModifiedSecs, err := endian.F64(h.Engine, buf, 172+h.Align1)
	if err == nil {
		h.DateModified = sasEpoch.Add(time.Duration(dateModifiedSecs * float64(time.Second)))
	}

	pageLength, err := endian.U32(h.Engine, buf, 200+h.Align1)
	if err != nil {
		return nil, err
	}
	h.PageLength = pageLength

	pageCount, err := endian.U32(h.Engine, buf, 204+h.Align1)
	if err != nil {
		return nil, err
	}
	h.PageCount = pageCount

	h.Encoding = buf[70]

	if 216+totalAlign+8 <= len(buf) {
		h.Release = decodeHeaderText(buf, 216+totalAlign, 8)
	}

	return h, nil
}

func decodeHeaderText(buf []byte, offset, length int) string {
	if offset+length > len(buf) {
		return ""
	}

	return string(endian.TrimPadding(buf[offset : offset+length]))
}
