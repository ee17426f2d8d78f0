package utils

import (
	"strings"
	"unicode/utf8"
)

// DecodeLossy turns raw file bytes into a usable string. Valid UTF-8 passes
// through untouched; otherwise invalid sequences are replaced, and if the
// data barely decodes as UTF-8 at all it is treated as latin-1 so every byte
// survives one-to-one.
func DecodeLossy(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	replaced := strings.ToValidUTF8(string(raw), "�")

	// Heavily replaced content is more likely a single-byte encoding.
	if strings.Count(replaced, "�")*4 > len(raw) {
		return decodeLatin1(raw)
	}
	return replaced
}

func decodeLatin1(raw []byte) string {
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

// SplitLinesLossy decodes raw bytes line by line and strips the line
// terminators, preserving original line numbering.
func SplitLinesLossy(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	parts := strings.Split(string(raw), "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	lines := make([]string, len(parts))
	for i, p := range parts {
		lines[i] = DecodeLossy([]byte(strings.TrimRight(p, "\r")))
	}
	return lines
}
