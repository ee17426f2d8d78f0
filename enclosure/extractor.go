package enclosure

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/printware/loghound/utils"
)

const (
	tabWidth        = 4
	maxDocstring    = 16 * 1024
	maxCommentScan  = 30
	maxSignatureLen = 15
)

// Enclosure types. "def", "async_def" and "class" guarantee that the block
// span contains the match line; "module" and "window" are degraded context
// fallbacks with no containment guarantee.
const (
	TypeDef      = "def"
	TypeAsyncDef = "async_def"
	TypeClass    = "class"
	TypeModule   = "module"
	TypeWindow   = "window"
)

var reHeader = regexp.MustCompile(`^(\s*)(async\s+def|def|class)\s+([A-Za-z_][A-Za-z0-9_]*)`)

// Result describes the enclosing block recovered for a matched line.
type Result struct {
	Path           string   `json:"path"`
	EnclosureType  string   `json:"enclosure_type"`
	Name           string   `json:"name,omitempty"`
	StartLine      int      `json:"start_line"`
	EndLine        int      `json:"end_line"`
	Block          string   `json:"block"`
	Signature      string   `json:"signature,omitempty"`
	DecoratorLines []string `json:"decorator_lines,omitempty"`
	Docstring      string   `json:"docstring,omitempty"`
	LeadingComment string   `json:"leading_comment,omitempty"`
	ContainsMatch  bool     `json:"enclosure_contains_match"`
	Notes          string   `json:"notes,omitempty"`
}

// LineReader serves decoded file lines. *code_search.FileCache satisfies it.
type LineReader interface {
	Lines(path string) ([]string, error)
}

// Extractor recovers the enclosing def/async def/class block for a source
// location. All access is read-only.
type Extractor struct {
	reader LineReader
}

// NewExtractor creates an extractor. reader may be nil to read files
// directly without caching.
func NewExtractor(reader LineReader) *Extractor {
	return &Extractor{reader: reader}
}

// Extract locates the enclosing block for matchLine (1-based) in path.
// Candidates are tried nearest-first; the first one whose computed span
// contains the match line wins, and the containment invariant
// start <= match <= end is validated per candidate rather than assumed.
// When no candidate contains the line, a degraded module/window result with
// a symmetric contextFallback window is returned instead.
//
// Unreadable or empty files are the only error cases; a missing enclosure
// is not an error.
func (e *Extractor) Extract(path string, matchLine, contextFallback int) (Result, error) {
	lines, err := e.readLines(path)
	if err != nil {
		return Result{}, fmt.Errorf("read source for enclosure: %w", err)
	}
	n := len(lines)
	if n == 0 {
		return Result{}, fmt.Errorf("empty or unreadable file: %s", path)
	}

	i := matchLine - 1
	if i < 0 {
		i = 0
	}
	if i >= n {
		i = n - 1
	}

	sawCandidate := false
	for j := i; j >= 0; j-- {
		m := reHeader.FindStringSubmatch(lines[j])
		if m == nil {
			continue
		}
		sawCandidate = true

		span := computeSpan(lines, j)
		if span.start > i || i > span.end {
			continue
		}

		res := Result{
			Path:          path,
			EnclosureType: headerType(m[2]),
			Name:          m[3],
			StartLine:     span.start + 1,
			EndLine:       span.end + 1,
			Block:         strings.Join(lines[span.start:span.end+1], "\n"),
			Signature:     buildSignature(lines, j, span.sigEnd),
			ContainsMatch: true,
		}
		if span.start < j {
			res.DecoratorLines = append([]string(nil), lines[span.start:j]...)
		}
		res.Docstring = extractDocstring(lines, span.sigEnd+1, span.end)
		res.LeadingComment = LeadingCommentAbove(lines, span.start)
		return res, nil
	}

	// Degraded fallback: a symmetric window around the match with no
	// containment guarantee and no name.
	lo := i - contextFallback
	if lo < 0 {
		lo = 0
	}
	hi := i + contextFallback
	if hi >= n {
		hi = n - 1
	}
	encType := TypeModule
	notes := "no def/class header above match; returning context window"
	if sawCandidate {
		encType = TypeWindow
		notes = "no enclosing def/class contains the match; returning context window"
	}
	return Result{
		Path:          path,
		EnclosureType: encType,
		StartLine:     lo + 1,
		EndLine:       hi + 1,
		Block:         strings.Join(lines[lo:hi+1], "\n"),
		ContainsMatch: false,
		Notes:         notes,
	}, nil
}

func (e *Extractor) readLines(path string) ([]string, error) {
	if e.reader != nil {
		return e.reader.Lines(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return utils.SplitLinesLossy(raw), nil
}

type blockSpan struct {
	start  int // first decorator line, or the header itself
	sigEnd int // last line of the (possibly multi-line) header
	end    int // last line of the block body
}

// computeSpan resolves the full block extent for the header at headerIdx:
// contiguous decorator lines at the header's indent or deeper are absorbed
// above, and the body extends downward while lines are blank, comment-only
// or indented deeper than the header, stopping at a sibling header or a
// dedented statement. Trailing blanks are trimmed back off the span.
func computeSpan(lines []string, headerIdx int) blockSpan {
	headerIndent := indentWidth(lines[headerIdx])

	start := headerIdx
	for k := headerIdx - 1; k >= 0; k-- {
		if !isDecorator(lines[k]) || indentWidth(lines[k]) < headerIndent {
			break
		}
		start = k
	}

	sigEnd := signatureEnd(lines, headerIdx)

	end := sigEnd
	for k := sigEnd + 1; k < len(lines); k++ {
		s := strings.TrimSpace(lines[k])
		if s == "" || strings.HasPrefix(s, "#") {
			end = k
			continue
		}
		if indentWidth(lines[k]) <= headerIndent {
			break
		}
		end = k
	}
	for end > sigEnd && strings.TrimSpace(lines[end]) == "" {
		end--
	}

	return blockSpan{start: start, sigEnd: sigEnd, end: end}
}

// signatureEnd finds the last line of a header, following unbalanced
// parentheses across continuation lines.
func signatureEnd(lines []string, headerIdx int) int {
	balance := strings.Count(lines[headerIdx], "(") - strings.Count(lines[headerIdx], ")")
	if balance <= 0 {
		return headerIdx
	}
	limit := headerIdx + maxSignatureLen
	if limit >= len(lines) {
		limit = len(lines) - 1
	}
	for k := headerIdx + 1; k <= limit; k++ {
		balance += strings.Count(lines[k], "(") - strings.Count(lines[k], ")")
		if balance <= 0 {
			return k
		}
	}
	return headerIdx
}

func buildSignature(lines []string, headerIdx, sigEnd int) string {
	sig := strings.Join(lines[headerIdx:sigEnd+1], " ")
	return strings.TrimSpace(regexp.MustCompile(`\s+`).ReplaceAllString(sig, " "))
}

// extractDocstring returns the docstring text when the first statement of
// the block is a triple-quoted string. Both the one-line and the multi-line
// form are handled; output is capped at 16KB.
func extractDocstring(lines []string, bodyStart, bodyEnd int) string {
	idx := -1
	for k := bodyStart; k <= bodyEnd && k < len(lines); k++ {
		s := strings.TrimSpace(lines[k])
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		idx = k
		break
	}
	if idx < 0 {
		return ""
	}

	s := strings.TrimSpace(lines[idx])
	quote := ""
	switch {
	case strings.HasPrefix(s, `"""`):
		quote = `"""`
	case strings.HasPrefix(s, "'''"):
		quote = "'''"
	default:
		return ""
	}

	// One-line form: """text""", including the empty """""".
	if len(s) >= 2*len(quote) && strings.HasSuffix(s, quote) {
		return capDocstring(strings.TrimSuffix(strings.TrimPrefix(s, quote), quote))
	}

	var parts []string
	parts = append(parts, strings.TrimPrefix(s, quote))
	for k := idx + 1; k <= bodyEnd && k < len(lines); k++ {
		line := lines[k]
		if pos := strings.Index(line, quote); pos >= 0 {
			parts = append(parts, line[:pos])
			return capDocstring(strings.TrimSpace(strings.Join(parts, "\n")))
		}
		parts = append(parts, line)
	}
	// Unterminated docstring: give back what was collected.
	return capDocstring(strings.TrimSpace(strings.Join(parts, "\n")))
}

func capDocstring(doc string) string {
	if len(doc) > maxDocstring {
		return doc[:maxDocstring]
	}
	return doc
}

// LeadingCommentAbove collects the comment block directly above the given
// line index (above any decorators), tolerating at most one blank-line gap.
// Both # comments and loose triple-quoted blocks count. The indexer reuses
// this when attaching leading documentation to function chunks.
func LeadingCommentAbove(lines []string, spanStart int) string {
	if spanStart <= 0 {
		return ""
	}

	var collected []string
	blankGap := 0
	lowest := spanStart - maxCommentScan
	if lowest < 0 {
		lowest = 0
	}

	for k := spanStart - 1; k >= lowest; k-- {
		s := strings.TrimSpace(lines[k])
		if s == "" {
			blankGap++
			if blankGap > 1 {
				break
			}
			continue
		}
		blankGap = 0

		if strings.HasPrefix(s, "#") {
			collected = append([]string{lines[k]}, collected...)
			continue
		}

		if strings.HasSuffix(s, `"""`) || strings.HasSuffix(s, "'''") {
			quote := s[len(s)-3:]
			block := []string{lines[k]}
			if !(strings.HasPrefix(s, quote) && len(s) > 2*len(quote)) {
				for j := k - 1; j >= lowest; j-- {
					block = append([]string{lines[j]}, block...)
					if strings.Contains(lines[j], quote) {
						k = j
						break
					}
				}
			}
			collected = append(block, collected...)
			continue
		}

		break
	}

	return strings.Join(collected, "\n")
}

func headerType(keyword string) string {
	switch {
	case strings.HasPrefix(keyword, "async"):
		return TypeAsyncDef
	case keyword == "class":
		return TypeClass
	default:
		return TypeDef
	}
}

func isDecorator(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "@")
}

func indentWidth(line string) int {
	w := 0
	for _, ch := range line {
		switch ch {
		case ' ':
			w++
		case '\t':
			w += tabWidth
		default:
			return w
		}
	}
	return w
}
