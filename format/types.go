// Package format holds the small byte-sized enums shared across
// statread's per-format decoders: which of the three file families a
// file belongs to, how a variable's raw bytes should be interpreted, and
// which temporal class (if any) a numeric column's format string
// implies.
package format

type (
	// FileFormat identifies one of the three supported file families.
	FileFormat uint8

	// StorageKind identifies how a Variable's bytes are interpreted.
	StorageKind uint8

	// TemporalClass identifies the semantic meaning of a numeric column
	// whose print/write format marks it as a date, time, or datetime.
	TemporalClass uint8

	// SASCompression identifies the byte-stream decompressor a SAS file
	// declares via its column-text signature.
	SASCompression uint8

	// SPSSCompression identifies the record-level compression scheme a
	// SPSS file declares in its header.
	SPSSCompression uint8
)

const (
	FormatUnknown FileFormat = iota
	FormatSAS
	FormatStata
	FormatSPSS
)

const (
	KindUnknown StorageKind = iota
	KindInt8
	KindInt16
	KindInt32
	KindFloat32
	KindFloat64
	KindString    // fixed-width bytes of length W
	KindStrLRef   // long-string reference (Stata strL / SPSS very-long-string)
)

const (
	TemporalNone TemporalClass = iota
	TemporalDate
	TemporalDateTime
	TemporalTime
)

const (
	SASCompressionNone SASCompression = iota
	SASCompressionRLE                 // SASYZCRL
	SASCompressionRDC                 // SASYZCR2
)

const (
	SPSSCompressionNone SPSSCompression = 0
	SPSSCompressionByteRun SPSSCompression = 1
	SPSSCompressionZSAV SPSSCompression = 2
)

func (f FileFormat) String() string {
	switch f {
	case FormatSAS:
		return "SAS"
	case FormatStata:
		return "Stata"
	case FormatSPSS:
		return "SPSS"
	default:
		return "Unknown"
	}
}

func (k StorageKind) String() string {
	switch k {
	case KindInt8:
		return "Int8"
	case KindInt16:
		return "Int16"
	case KindInt32:
		return "Int32"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindString:
		return "String"
	case KindStrLRef:
		return "StrLRef"
	default:
		return "Unknown"
	}
}

func (t TemporalClass) String() string {
	switch t {
	case TemporalDate:
		return "Date"
	case TemporalDateTime:
		return "DateTime"
	case TemporalTime:
		return "Time"
	default:
		return "None"
	}
}

func (c SASCompression) String() string {
	switch c {
	case SASCompressionRLE:
		return "RLE"
	case SASCompressionRDC:
		return "RDC"
	default:
		return "None"
	}
}

func (c SPSSCompression) String() string {
	switch c {
	case SPSSCompressionByteRun:
		return "ByteRun"
	case SPSSCompressionZSAV:
		return "ZSAV"
	default:
		return "None"
	}
}
