// Package text maps the per-format codepage identifiers used by SAS,
// Stata, and SPSS files to Unicode decoders (§4.2 of the specification).
//
// Every returned Decoder is wrapped so that malformed or unmappable
// input degrades to the Unicode replacement character instead of
// failing; callers never need to handle a decode error from ordinary
// column bytes. The registry itself is a static table, not a runtime-
// loaded resource.
package text

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// Decoder converts legacy/fixed-width encoded bytes to a Go string,
// trimming trailing padding first.
type Decoder struct {
	enc  encoding.Encoding
	name string
}

// Decode trims trailing space/NUL padding from b, then decodes the
// remainder into a Go string. Embedded NULs (C-string terminator
// semantics) truncate the input first. Malformed byte sequences become
// the Unicode replacement character; Decode never returns an error.
func (d Decoder) Decode(b []byte) string {
	b = trimPadding(b)
	if len(b) == 0 {
		return ""
	}

	if d.enc == nil {
		// UTF-8 passthrough: still must not choke on invalid sequences.
		if utf8.Valid(b) {
			return string(b)
		}

		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}

	out, _ := d.enc.NewDecoder().Bytes(b)

	return string(out)
}

// Name returns the registry name this decoder was resolved from, for
// diagnostics.
func (d Decoder) Name() string { return d.name }

func trimPadding(b []byte) []byte {
	end := len(b)
	for end > 0 && (b[end-1] == 0x00 || b[end-1] == 0x20) {
		end--
	}
	for i, c := range b[:end] {
		if c == 0x00 {
			return b[:i]
		}
	}

	return b[:end]
}

func wrap(name string, enc encoding.Encoding) Decoder {
	return Decoder{name: name, enc: encoding.ReplaceUnsupported(enc)}
}

// UTF8 is the identity decoder (direct pass-through, lossily sanitized).
var UTF8 = Decoder{name: "utf-8"}

// fallback is used whenever a codepage identifier is unrecognized;
// degrading silently to Windows-1252 rather than failing, per §4.2.
var fallback = wrap("windows-1252", charmap.Windows1252)

// sasCodepages maps a SAS header encoding byte (offset 70 of the file
// header) to a decoder. The table covers the codepage IDs SAS actually
// emits in practice; unlisted bytes fall back to Windows-1252.
var sasCodepages = map[byte]Decoder{
	0:   UTF8, // unspecified; treat as UTF-8/ASCII
	20:  wrap("us-ascii", charmap.Windows1252), // 7-bit ASCII is a Windows-1252 subset
	28:  wrap("iso-8859-1", charmap.ISO8859_1),
	29:  wrap("iso-8859-2", charmap.ISO8859_2),
	30:  wrap("iso-8859-3", charmap.ISO8859_3),
	31:  wrap("iso-8859-4", charmap.ISO8859_4),
	32:  wrap("iso-8859-5", charmap.ISO8859_5),
	33:  wrap("iso-8859-6", charmap.ISO8859_6),
	34:  wrap("iso-8859-7", charmap.ISO8859_7),
	35:  wrap("iso-8859-8", charmap.ISO8859_8),
	36:  wrap("iso-8859-9", charmap.ISO8859_9),
	37:  wrap("iso-8859-10", charmap.ISO8859_10),
	39:  wrap("iso-8859-13", charmap.ISO8859_13),
	40:  wrap("iso-8859-14", charmap.ISO8859_14),
	41:  wrap("iso-8859-15", charmap.ISO8859_15),
	42:  wrap("iso-8859-16", charmap.ISO8859_16),
	60:  wrap("cp437", charmap.CodePage437),
	61:  wrap("cp850", charmap.CodePage850),
	62:  wrap("cp852", charmap.CodePage852),
	63:  wrap("cp858", charmap.CodePage858),
	64:  wrap("cp862", charmap.CodePage862),
	65:  wrap("cp864", charmap.CodePage864),
	66:  wrap("cp866", charmap.CodePage866),
	118: wrap("windows-874", charmap.Windows874),
	119: wrap("windows-1250", charmap.Windows1250),
	120: wrap("windows-1251", charmap.Windows1251),
	121: wrap("windows-1252", charmap.Windows1252),
	122: wrap("windows-1253", charmap.Windows1253),
	123: wrap("windows-1254", charmap.Windows1254),
	124: wrap("windows-1255", charmap.Windows1255),
	125: wrap("windows-1256", charmap.Windows1256),
	126: wrap("windows-1257", charmap.Windows1257),
	127: wrap("windows-1258", charmap.Windows1258),
	134: wrap("mac-roman", charmap.Macintosh),
	140: wrap("gb18030", simplifiedchinese.GB18030),
	141: wrap("gbk", simplifiedchinese.GBK),
	142: wrap("big5", traditionalchinese.Big5),
	143: wrap("euc-tw", traditionalchinese.Big5), // no native EUC-TW in x/text; Big5 is the closest practical mapping
	144: wrap("euc-jp", japanese.EUCJP),
	145: wrap("shift-jis", japanese.ShiftJIS),
	146: wrap("euc-kr", korean.EUCKR),
	163: UTF8,
	204: wrap("cp1381", simplifiedchinese.GBK), // legacy EBCDIC/GBK hybrid codepage; GBK is the nearest practical mapping
}

// ForSASCodepage resolves a SAS header encoding byte to a Decoder.
func ForSASCodepage(b byte) Decoder {
	if d, ok := sasCodepages[b]; ok {
		return d
	}

	return fallback
}

// spssCodes maps the numeric codepage identifiers SPSS's integer-info
// (subtype 3) and character-encoding (subtype 20) typed-info records
// carry.
var spssCodes = map[int]Decoder{
	1:     wrap("ebcdic", charmap.Windows1252), // legacy EBCDIC decks are effectively unreadable without a code page map; degrade rather than fail
	2:     wrap("us-ascii", charmap.Windows1252),
	3:     wrap("windows-1252", charmap.Windows1252),
	4:     wrap("windows-1250", charmap.Windows1250),
	1250:  wrap("windows-1250", charmap.Windows1250),
	1251:  wrap("windows-1251", charmap.Windows1251),
	1252:  wrap("windows-1252", charmap.Windows1252),
	1253:  wrap("windows-1253", charmap.Windows1253),
	1254:  wrap("windows-1254", charmap.Windows1254),
	1255:  wrap("windows-1255", charmap.Windows1255),
	1256:  wrap("windows-1256", charmap.Windows1256),
	1257:  wrap("windows-1257", charmap.Windows1257),
	1258:  wrap("windows-1258", charmap.Windows1258),
	28591: wrap("iso-8859-1", charmap.ISO8859_1),
	28592: wrap("iso-8859-2", charmap.ISO8859_2),
	65001: UTF8,
}

// ForSPSSCode resolves a SPSS numeric codepage identifier to a Decoder.
func ForSPSSCode(code int) Decoder {
	if d, ok := spssCodes[code]; ok {
		return d
	}

	return fallback
}

// ForName resolves an encoding record name (as Stata's ≥118 format
// embeds, e.g. "UTF-8", "windows-1252", "macroman") to a Decoder.
func ForName(name string) Decoder {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "ascii", "us-ascii":
		return UTF8
	case "windows-1252", "cp1252", "latin1-windows":
		return wrap("windows-1252", charmap.Windows1252)
	case "iso-8859-1", "latin1":
		return wrap("iso-8859-1", charmap.ISO8859_1)
	case "macroman", "mac-roman", "macintosh":
		return wrap("mac-roman", charmap.Macintosh)
	case "gb18030":
		return wrap("gb18030", simplifiedchinese.GB18030)
	case "big5":
		return wrap("big5", traditionalchinese.Big5)
	case "shift-jis", "sjis":
		return wrap("shift-jis", japanese.ShiftJIS)
	case "euc-jp":
		return wrap("euc-jp", japanese.EUCJP)
	case "euc-kr":
		return wrap("euc-kr", korean.EUCKR)
	case "utf-16le":
		return wrap("utf-16le", unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM))
	case "utf-16be":
		return wrap("utf-16be", unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM))
	default:
		return fallback
	}
}
