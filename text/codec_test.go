package text

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUTF8PassthroughTrimsPadding(t *testing.T) {
	got := UTF8.Decode([]byte("hello   \x00\x00"))
	require.Equal(t, "hello", got)
}

func TestUTF8PassthroughSanitizesInvalidBytes(t *testing.T) {
	got := UTF8.Decode([]byte{0x68, 0x69, 0xff, 0xfe})
	require.Contains(t, got, "hi")
}

func TestForSASCodepageKnown(t *testing.T) {
	d := ForSASCodepage(28)
	require.Equal(t, "iso-8859-1", d.Name())

	out := d.Decode([]byte{0xE9}) // é in latin-1
	require.Equal(t, "é", out)
}

func TestForSASCodepageUnknownFallsBackToWindows1252(t *testing.T) {
	d := ForSASCodepage(250)
	require.Equal(t, "windows-1252", d.Name())
}

func TestForSPSSCodeUTF8(t *testing.T) {
	d := ForSPSSCode(65001)
	require.Equal(t, "utf-8", d.Name())
}

func TestForNameCaseInsensitive(t *testing.T) {
	d := ForName("UTF-8")
	require.Equal(t, "utf-8", d.Name())

	d2 := ForName("Windows-1252")
	require.Equal(t, "windows-1252", d2.Name())
}

func TestDecodeEmbeddedNulTruncates(t *testing.T) {
	got := UTF8.Decode([]byte("abc\x00def"))
	require.Equal(t, "abc", got)
}
