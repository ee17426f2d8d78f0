package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/printware/loghound/enclosure"
	"github.com/printware/loghound/log_parser"
)

const maxSignatureLines = 15

// NormalizeErrorKey produces the error-index key for a message: lowercased,
// trimmed, inner whitespace collapsed. Queries must use the same rule.
func NormalizeErrorKey(message string) string {
	return log_parser.NormalizeMessage(message)
}

// buildChunk assembles the IndexChunk for one function_definition node.
// commentAnchor is the 0-based line above which the leading comment block is
// searched (the decorated start for decorated functions).
func buildChunk(path string, fn *sitter.Node, source []byte, lines []string, className string, commentAnchor int) IndexChunk {
	startLine := int(fn.StartPoint().Row) + 1
	endLine := int(fn.EndPoint().Row) + 1
	if endLine > len(lines) {
		endLine = len(lines)
	}

	name := ""
	if n := fn.ChildByFieldName("name"); n != nil {
		name = n.Content(source)
	}

	chunk := IndexChunk{
		FilePath:       path,
		FunctionName:   name,
		ClassName:      className,
		LineStart:      startLine,
		LineEnd:        endLine,
		Signature:      extractSignature(lines, startLine-1),
		Code:           strings.Join(lines[startLine-1:endLine], "\n"),
		Docstring:      extractDocstring(fn, source),
		LeadingComment: enclosure.LeadingCommentAbove(lines, commentAnchor),
		ErrorMessages:  extractErrorMessages(fn, source),
	}
	chunk.ChunkID = chunkID(chunk)
	return chunk
}

// chunkID hashes the canonical JSON of the chunk's content fields. Maps
// marshal with sorted keys, so the id only depends on the content, never on
// traversal order. 16 hex chars keep ids short while staying collision-safe
// at repository scale.
func chunkID(chunk IndexChunk) string {
	msgs := make([]map[string]string, 0, len(chunk.ErrorMessages))
	for _, em := range chunk.ErrorMessages {
		msgs = append(msgs, map[string]string{
			"message":     em.Message,
			"log_level":   em.LogLevel,
			"source_type": em.SourceType,
		})
	}
	payload := map[string]interface{}{
		"file_path":       chunk.FilePath,
		"function_name":   chunk.FunctionName,
		"class_name":      chunk.ClassName,
		"line_start":      chunk.LineStart,
		"line_end":        chunk.LineEnd,
		"signature":       chunk.Signature,
		"code":            chunk.Code,
		"docstring":       chunk.Docstring,
		"leading_comment": chunk.LeadingComment,
		"error_messages":  msgs,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(chunk.FilePath + chunk.FunctionName)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// extractSignature reconstructs the def line, following unbalanced
// parentheses across continuation lines and collapsing whitespace.
func extractSignature(lines []string, defIdx int) string {
	if defIdx < 0 || defIdx >= len(lines) {
		return ""
	}
	balance := strings.Count(lines[defIdx], "(") - strings.Count(lines[defIdx], ")")
	end := defIdx
	if balance > 0 {
		limit := defIdx + maxSignatureLines
		if limit >= len(lines) {
			limit = len(lines) - 1
		}
		for k := defIdx + 1; k <= limit; k++ {
			balance += strings.Count(lines[k], "(") - strings.Count(lines[k], ")")
			if balance <= 0 {
				end = k
				break
			}
		}
	}
	sig := strings.Join(lines[defIdx:end+1], " ")
	return strings.Join(strings.Fields(sig), " ")
}

// extractDocstring reads the function body's first statement when it is a
// plain string literal.
func extractDocstring(fn *sitter.Node, source []byte) string {
	body := fn.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	val, ok := stringLiteralValue(first.NamedChild(0), source)
	if !ok {
		return ""
	}
	return val
}

// extractErrorMessages walks the function subtree and collects every
// statically recognizable error literal:
//
//   - logging-style attribute calls, classified by method name
//     (error/critical/exception -> E, warning -> W, info/debug -> I)
//   - string arguments to raise ...(...) calls
//   - print calls whose literal mentions error, fail or exception
func extractErrorMessages(fn *sitter.Node, source []byte) []ErrorMessage {
	var errors []ErrorMessage

	stack := []*sitter.Node{fn}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Type() {
		case "call":
			errors = append(errors, errorsFromCall(n, source)...)
		case "raise_statement":
			errors = append(errors, errorsFromRaise(n, source)...)
		}

		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, n.NamedChild(i))
		}
	}
	return errors
}

func errorsFromCall(call *sitter.Node, source []byte) []ErrorMessage {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return nil
	}

	switch fn.Type() {
	case "attribute":
		attr := fn.ChildByFieldName("attribute")
		if attr == nil {
			return nil
		}
		level := logLevelForMethod(attr.Content(source))
		if level == "" {
			return nil
		}
		return stringArgsOf(call, source, level)

	case "identifier":
		if fn.Content(source) != "print" {
			return nil
		}
		var errors []ErrorMessage
		for _, msg := range literalArgs(call, source) {
			lower := strings.ToLower(msg)
			if strings.Contains(lower, "error") || strings.Contains(lower, "fail") ||
				strings.Contains(lower, "exception") {
				errors = append(errors, ErrorMessage{Message: msg, LogLevel: "E", SourceType: "print"})
			}
		}
		return errors
	}
	return nil
}

// stringArgsOf collects logging-call message literals, including the left
// side of a "fmt" % args expression.
func stringArgsOf(call *sitter.Node, source []byte, level string) []ErrorMessage {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var errors []ErrorMessage
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if val, ok := stringLiteralValue(arg, source); ok {
			errors = append(errors, ErrorMessage{Message: val, LogLevel: level, SourceType: "logging"})
			continue
		}
		if arg.Type() == "binary_operator" {
			op := arg.ChildByFieldName("operator")
			left := arg.ChildByFieldName("left")
			if op != nil && left != nil && op.Content(source) == "%" {
				if val, ok := stringLiteralValue(left, source); ok {
					errors = append(errors, ErrorMessage{Message: val, LogLevel: level, SourceType: "logging_format"})
				}
			}
		}
	}
	return errors
}

func errorsFromRaise(raise *sitter.Node, source []byte) []ErrorMessage {
	var errors []ErrorMessage
	for i := 0; i < int(raise.NamedChildCount()); i++ {
		child := raise.NamedChild(i)
		if child.Type() != "call" {
			continue
		}
		for _, msg := range literalArgs(child, source) {
			errors = append(errors, ErrorMessage{Message: msg, LogLevel: "E", SourceType: "exception"})
		}
	}
	return errors
}

func literalArgs(call *sitter.Node, source []byte) []string {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var vals []string
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if val, ok := stringLiteralValue(args.NamedChild(i), source); ok {
			vals = append(vals, val)
		}
	}
	return vals
}

func logLevelForMethod(method string) string {
	switch method {
	case "error", "critical", "exception":
		return "E"
	case "warning":
		return "W"
	case "info", "debug":
		return "I"
	}
	return ""
}

// stringLiteralValue unwraps a plain string node to its text. Strings with
// interpolation (f-strings) are not static literals and are skipped.
func stringLiteralValue(n *sitter.Node, source []byte) (string, bool) {
	if n == nil || n.Type() != "string" {
		return "", false
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if n.NamedChild(i).Type() == "interpolation" {
			return "", false
		}
	}

	text := n.Content(source)
	text = strings.TrimLeft(text, "rbuRBUfF")
	for _, quote := range []string{`"""`, "'''", `"`, "'"} {
		if strings.HasPrefix(text, quote) && strings.HasSuffix(text, quote) && len(text) >= 2*len(quote) {
			return text[len(quote) : len(text)-len(quote)], true
		}
	}
	return "", false
}
