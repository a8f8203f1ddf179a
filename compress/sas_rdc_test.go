package compress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRDCDecompressAllLiterals(t *testing.T) {
	// Control word 0x0000: every bit is a literal dispatch.
	data := []byte{0x00, 0x00, 'a', 'b', 'c', 'd'}
	out, err := RDCDecompressor{}.Decompress(data, 4)
	require.NoError(t, err)
	require.Equal(t, []byte("abcd"), out)
}

func TestRDCDecompressShortRLE(t *testing.T) {
	// Control word with bit 15 set selects a command at the first slot;
	// cmd=0, lo=2 -> count = lo+3 = 5, fill byte 'x'.
	data := []byte{0x80, 0x00, 0x02, 'x'}
	out, err := RDCDecompressor{}.Decompress(data, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("xxxxx"), out)
}

func TestRDCDecompressPatternCopyOverlapping(t *testing.T) {
	// Control word 0x1000: bits 15,14,13 clear (three literals "abc"),
	// bit 12 set (a command at the fourth slot).
	//
	// Command byte 0x40: cmd=4 (upper nibble), lo=0 -> the cmd-in-3..15
	// short pattern copy branch, offset = lo + 3 + (next<<4), count = cmd.
	// With next=0x00: offset=3, count=4 -> copies out[0:4] to out[3:7];
	// the fourth copied byte is out[3], written by this same copy, so the
	// copy overlaps its own output and yields "abcabca".
	data := []byte{
		0x10, 0x00, // control word
		'a', 'b', 'c', // three literals
		0x40, // command byte: cmd=4, lo=0
		0x00, // next byte: offset hi-bits = 0
	}
	out, err := RDCDecompressor{}.Decompress(data, 7)
	require.NoError(t, err)
	require.Equal(t, []byte("abcabca"), out)
}

func TestRDCDecompressUnderrunPadsWithNUL(t *testing.T) {
	data := []byte{0x00, 0x00, 'a'} // declares literal slots but input runs out
	out, err := RDCDecompressor{}.Decompress(data, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{'a', 0, 0, 0}, out)
}
