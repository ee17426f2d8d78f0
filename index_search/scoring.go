package index_search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "that": {}, "the": {}, "to": {},
	"was": {}, "will": {}, "with": {}, "get": {}, "got": {}, "go": {},
	"goes": {}, "went": {}, "this": {}, "these": {}, "they": {}, "them": {},
	"their": {}, "there": {}, "then": {}, "than": {}, "have": {}, "had": {},
	"having": {}, "do": {}, "does": {}, "did": {}, "doing": {}, "can": {},
	"could": {}, "should": {}, "would": {}, "may": {}, "might": {}, "must": {},
}

// significantTokens drops stop words and tokens shorter than three chars.
func significantTokens(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if len(t) <= 2 {
			continue
		}
		if _, stop := stopWords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// tokenOverlap is the Jaccard similarity of the two token sets.
func tokenOverlap(queryTokens, keyTokens []string) float64 {
	if len(queryTokens) == 0 || len(keyTokens) == 0 {
		return 0
	}
	querySet := make(map[string]struct{}, len(queryTokens))
	for _, t := range queryTokens {
		querySet[t] = struct{}{}
	}
	keySet := make(map[string]struct{}, len(keyTokens))
	for _, t := range keyTokens {
		keySet[t] = struct{}{}
	}

	intersection := 0
	for t := range querySet {
		if _, ok := keySet[t]; ok {
			intersection++
		}
	}
	union := len(querySet) + len(keySet) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// lengthProximity rewards keys whose length is close to the query's.
func lengthProximity(queryLen, keyLen int) float64 {
	if queryLen == 0 || keyLen == 0 {
		return 0
	}
	diff := queryLen - keyLen
	if diff < 0 {
		diff = -diff
	}
	maxLen := queryLen
	if keyLen > maxLen {
		maxLen = keyLen
	}
	return 1.0 - float64(diff)/float64(maxLen)
}

// phraseMatchScore rates how well query matches text. A verbatim substring
// scores 1.0. Otherwise the score combines the ratio of significant tokens
// present (at least half are required) with an order-preservation bonus
// over adjacent token pairs, weighted 0.6/0.4.
func phraseMatchScore(query, text string) float64 {
	if query == "" || text == "" {
		return 0
	}
	if strings.Contains(text, query) {
		return 1.0
	}

	tokens := significantTokens(strings.Fields(query))
	if len(tokens) == 0 {
		return 0
	}

	matched := 0
	for _, t := range tokens {
		if strings.Contains(text, t) {
			matched++
		}
	}
	tokenRatio := float64(matched) / float64(len(tokens))
	if tokenRatio < 0.5 {
		return 0
	}

	orderScore := 0.0
	if len(tokens) >= 2 {
		orderedPairs := 0
		for i := 0; i < len(tokens)-1; i++ {
			pos1 := strings.Index(text, tokens[i])
			if pos1 < 0 {
				continue
			}
			pos2 := strings.Index(text[pos1:], tokens[i+1])
			if pos2 > 0 {
				orderedPairs++
			}
		}
		orderScore = float64(orderedPairs) / float64(len(tokens)-1)
	}

	return tokenRatio*0.6 + orderScore*0.4
}

// indexFold returns the byte offset in text of the first case-insensitive
// occurrence of needle, or -1. needle must already be lowercase. Offsets are
// taken against the original text: lowercasing can change a rune's UTF-8
// width, so positions in a lowered copy do not line up with text.
func indexFold(text, needle string) int {
	if pos := strings.Index(text, needle); pos >= 0 {
		return pos
	}

	var lowered strings.Builder
	lowered.Grow(len(text))
	offsets := make([]int, 0, len(text))
	for i, r := range text {
		lr := unicode.ToLower(r)
		for n := utf8.RuneLen(lr); n > 0; n-- {
			offsets = append(offsets, i)
		}
		lowered.WriteRune(lr)
	}

	pos := strings.Index(lowered.String(), needle)
	if pos < 0 {
		return -1
	}
	return offsets[pos]
}

// extractExcerpt returns a snippet of text around the first occurrence of
// query (or its first significant token), padded by contextChars on each
// side and elided with ellipses.
func extractExcerpt(query, text string, contextChars int) string {
	if query == "" || text == "" {
		return ""
	}
	queryLower := strings.ToLower(query)

	needle := queryLower
	pos := indexFold(text, needle)
	if pos < 0 {
		tokens := significantTokens(strings.Fields(queryLower))
		if len(tokens) == 0 {
			return ""
		}
		needle = tokens[0]
		pos = indexFold(text, needle)
		if pos < 0 {
			return ""
		}
	}

	start := pos - contextChars
	if start < 0 {
		start = 0
	}
	end := pos + len(needle) + contextChars
	if end > len(text) {
		end = len(text)
	}

	excerpt := text[start:end]
	if start > 0 {
		excerpt = "..." + excerpt
	}
	if end < len(text) {
		excerpt = excerpt + "..."
	}
	return strings.TrimSpace(excerpt)
}
