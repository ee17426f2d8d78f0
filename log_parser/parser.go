package log_parser

import (
	"regexp"
	"strings"
)

var (
	reTimestamp  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\S+`)
	reLevel      = regexp.MustCompile(`<([^>])>`)
	reThread     = regexp.MustCompile(`\[([^\]]+)\]`)
	reWhitespace = regexp.MustCompile(`\s+`)
	reHostPrefix = regexp.MustCompile(`^[A-Za-z0-9_.-]{4,}\s+[A-Za-z0-9_.-]+:\s+`)
	reFloat      = regexp.MustCompile(`\b\d+\.\d+\b`)
	reLongInt    = regexp.MustCompile(`\b\d{4,}\b`)
	reNonAlnum   = regexp.MustCompile(`[^a-z0-9]+`)
)

// ParsedLogRecord holds the structured fields of a single printer-style log
// line. Empty string means the field was absent. Records are value types and
// never mutated after ParseLine returns.
type ParsedLogRecord struct {
	Timestamp    string
	HostOrSerial string
	Process      string
	Level        string
	Thread       string
	Component    string
	Message      string
}

// Keys are the derived search keys for a parsed record.
type Keys struct {
	KeyExact      string
	KeyNormalized string
	Tokens        []string
}

// SelectRelevantLine picks the line to analyze from a pasted block:
// the first line containing the "<E>" error marker, otherwise the first
// non-empty line, otherwise "".
func SelectRelevantLine(text string) string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	for _, line := range lines {
		if strings.Contains(line, "<E>") {
			return line
		}
	}
	return lines[0]
}

// ParseLine best-effort parses a single printer-style log line, e.g.
//
//	2025-12-19T05:22:06.751222+11:00 RS20300529 Kareela0: <I> [#4] EngineConductor: Changing state ...
//
// Malformed input never fails; missing fields stay empty and the whole line
// falls back to being the message.
func ParseLine(line string) ParsedLogRecord {
	line = strings.TrimSpace(line)

	var rec ParsedLogRecord
	if line == "" {
		return rec
	}

	tokens := strings.Fields(line)
	pos := 0

	// Timestamp: leading ISO-like token.
	if pos < len(tokens) && reTimestamp.MatchString(tokens[pos]) && strings.Contains(tokens[pos], "T") {
		rec.Timestamp = tokens[pos]
		pos++
	}

	if rec.Timestamp != "" && pos < len(tokens) {
		rec.HostOrSerial = tokens[pos]
		pos++
		if pos < len(tokens) && strings.HasSuffix(tokens[pos], ":") {
			rec.Process = strings.TrimSuffix(tokens[pos], ":")
			pos++
		}
	} else if pos+1 < len(tokens) && strings.HasSuffix(tokens[pos+1], ":") {
		// "HOST PROCESS:" prefix without a timestamp.
		rec.HostOrSerial = tokens[pos]
		rec.Process = strings.TrimSuffix(tokens[pos+1], ":")
		pos += 2
	}

	remainder := strings.TrimSpace(strings.Join(tokens[pos:], " "))

	// Level marker: <X>
	if m := reLevel.FindStringSubmatchIndex(remainder); m != nil {
		rec.Level = remainder[m[2]:m[3]]
		remainder = strings.TrimSpace(remainder[:m[0]] + " " + remainder[m[1]:])
	}

	// Thread marker: [#4] or [worker-1]
	if m := reThread.FindStringSubmatchIndex(remainder); m != nil {
		rec.Thread = strings.TrimPrefix(strings.TrimSpace(remainder[m[2]:m[3]]), "#")
		remainder = strings.TrimSpace(remainder[:m[0]] + " " + remainder[m[1]:])
	}

	remainder = strings.TrimSpace(reWhitespace.ReplaceAllString(remainder, " "))

	// "Component: message"
	if idx := strings.Index(remainder, ":"); idx >= 0 {
		component := strings.TrimSpace(remainder[:idx])
		msg := strings.TrimSpace(remainder[idx+1:])
		rec.Component = component
		if msg != "" {
			rec.Message = msg
		} else {
			rec.Message = remainder
		}
	} else if remainder != "" {
		rec.Message = remainder
	} else {
		rec.Message = line
	}

	return rec
}

// BuildKeys derives the exact key, the normalized key and the significant
// tokens for a parsed record. When normalizeNumbers is set, floats and long
// integer runs are replaced with a <NUM> placeholder so counters and IDs do
// not break matching.
func BuildKeys(rec ParsedLogRecord, normalizeNumbers bool) Keys {
	var keyExact string
	if rec.Component != "" && rec.Message != "" {
		keyExact = rec.Component + ": " + rec.Message
	} else {
		keyExact = rec.Message
	}

	keyNorm := keyExact

	// Strip markers that may have leaked into the message.
	keyNorm = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\S+\s+`).ReplaceAllString(keyNorm, "")
	keyNorm = regexp.MustCompile(`<[^>]{1}>`).ReplaceAllString(keyNorm, " ")
	keyNorm = regexp.MustCompile(`\[[^\]]+\]`).ReplaceAllString(keyNorm, " ")
	keyNorm = reHostPrefix.ReplaceAllString(keyNorm, "")

	if normalizeNumbers {
		keyNorm = reFloat.ReplaceAllString(keyNorm, "<NUM>")
		keyNorm = reLongInt.ReplaceAllString(keyNorm, "<NUM>")
	}

	keyNorm = strings.ToLower(strings.TrimSpace(reWhitespace.ReplaceAllString(keyNorm, " ")))
	if keyNorm == "" {
		keyNorm = strings.ToLower(strings.TrimSpace(keyExact))
	}

	var tokens []string
	for _, t := range reNonAlnum.Split(keyNorm, -1) {
		if len(t) >= 3 {
			tokens = append(tokens, t)
		}
	}

	return Keys{KeyExact: keyExact, KeyNormalized: keyNorm, Tokens: tokens}
}

// NormalizeMessage lowercases, trims and collapses whitespace. The indexer
// and the search engine both key the error index with this form.
func NormalizeMessage(message string) string {
	if message == "" {
		return ""
	}
	return reWhitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(message)), " ")
}

// AnalyzePastedText is the end-to-end helper: pick the relevant line, parse
// it and derive the search keys.
func AnalyzePastedText(text string, normalizeNumbers bool) (string, ParsedLogRecord, Keys) {
	selected := SelectRelevantLine(text)
	rec := ParseLine(selected)
	keys := BuildKeys(rec, normalizeNumbers)
	return selected, rec, keys
}
