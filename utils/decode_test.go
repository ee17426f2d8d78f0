package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeLossy_ValidUTF8PassesThrough(t *testing.T) {
	raw := []byte("nozzle temp 42° ok")
	assert.Equal(t, "nozzle temp 42° ok", DecodeLossy(raw))
}

func TestDecodeLossy_SparseInvalidBytesReplaced(t *testing.T) {
	raw := append([]byte("valve state for host "), 0xff)
	raw = append(raw, []byte(" reported idle after retry window elapsed")...)

	decoded := DecodeLossy(raw)

	assert.Contains(t, decoded, "valve state for host ")
	assert.Contains(t, decoded, "�")
	assert.Contains(t, decoded, "reported idle")
}

func TestDecodeLossy_MostlyInvalidFallsBackToLatin1(t *testing.T) {
	raw := []byte{0xe9, ' ', 0xe8, ' ', 0xfc, ' ', 0xdf}

	decoded := DecodeLossy(raw)

	// Latin-1 maps each byte to the same code point, so nothing is lost.
	assert.Equal(t, "é è ü ß", decoded)
	assert.NotContains(t, decoded, "�")
}

func TestSplitLinesLossy_StripsTerminators(t *testing.T) {
	raw := []byte("first\r\nsecond\nthird\n")

	lines := SplitLinesLossy(raw)

	assert.Equal(t, []string{"first", "second", "third"}, lines)
}

func TestSplitLinesLossy_NoTrailingNewline(t *testing.T) {
	lines := SplitLinesLossy([]byte("only line"))

	assert.Equal(t, []string{"only line"}, lines)
}

func TestSplitLinesLossy_Empty(t *testing.T) {
	assert.Nil(t, SplitLinesLossy(nil))
	assert.Nil(t, SplitLinesLossy([]byte{}))
}

func TestSplitLinesLossy_PreservesLineCountWithBadBytes(t *testing.T) {
	raw := []byte("clean line\n")
	raw = append(raw, 0xfe, 0xff)
	raw = append(raw, []byte("\nlast\n")...)

	lines := SplitLinesLossy(raw)

	assert.Len(t, lines, 3)
	assert.Equal(t, "clean line", lines[0])
	assert.Equal(t, "last", lines[2])
}
