package index_search

import (
	"sort"
	"strings"

	"github.com/printware/loghound/indexer"
	"github.com/printware/loghound/log_parser"
)

// Result match types.
const (
	MatchExact      = "exact"
	MatchPartial    = "partial"
	MatchCodeSearch = "code_search"
)

const (
	partialResultCap  = 25
	codeSearchFileCap = 10
	codeSearchMin     = 0.3
	excerptContext    = 100
)

// SearchResult is one grouped answer: an error key with every chunk that can
// emit it, plus a best-effort excerpt showing why it matched.
type SearchResult struct {
	ErrorKey    string               `json:"error_key"`
	Chunks      []indexer.IndexChunk `json:"chunks"`
	MatchType   string               `json:"match_type"`
	Score       float64              `json:"score"`
	MatchedText string               `json:"matched_text"`
}

// Engine answers queries against a loaded IndexArtifact. It is read-only
// and safe for concurrent use once built.
type Engine struct {
	artifact   *indexer.IndexArtifact
	chunksByID map[string]indexer.IndexChunk
}

// NewEngine wraps an already loaded artifact.
func NewEngine(artifact *indexer.IndexArtifact) *Engine {
	byID := make(map[string]indexer.IndexChunk, len(artifact.Chunks))
	for _, c := range artifact.Chunks {
		byID[c.ChunkID] = c
	}
	return &Engine{artifact: artifact, chunksByID: byID}
}

// LoadEngine reads the artifact at path and builds an engine over it. Load
// failures carry the indexer's sentinel errors through.
func LoadEngine(path string) (*Engine, error) {
	artifact, err := indexer.Load(path)
	if err != nil {
		return nil, err
	}
	return NewEngine(artifact), nil
}

// Artifact exposes the underlying index for display purposes.
func (e *Engine) Artifact() *indexer.IndexArtifact { return e.artifact }

// Search runs the tiered lookup for a raw error message:
//
//	tier 1: exact error-index key match, score 1.0
//	tier 2: keys containing the query as a substring, scored by token
//	        overlap and length proximity, top 25
//	tier 3: content fallback over chunk error messages, code and docs,
//	        only when the index keys yielded nothing
//
// Exact matches always sort ahead of everything else.
func (e *Engine) Search(rawQuery string) []SearchResult {
	query := log_parser.NormalizeMessage(rawQuery)
	if query == "" {
		return nil
	}

	var results []SearchResult
	seenKeys := make(map[string]struct{})

	results = e.searchExact(query, results, seenKeys)
	if len(results) < partialResultCap {
		results = e.searchPartial(query, results, seenKeys)
	}
	if len(results) == 0 {
		results = e.searchContent(query, rawQuery)
	}

	sort.SliceStable(results, func(i, j int) bool {
		iExact := results[i].MatchType == MatchExact
		jExact := results[j].MatchType == MatchExact
		if iExact != jExact {
			return iExact
		}
		return results[i].Score > results[j].Score
	})
	return results
}

func (e *Engine) searchExact(query string, results []SearchResult, seenKeys map[string]struct{}) []SearchResult {
	refs, ok := e.artifact.ErrorIndex[query]
	if !ok {
		return results
	}
	for _, ref := range refs {
		chunk, ok := e.chunksByID[ref.ChunkID]
		if !ok {
			continue
		}
		key := ref.OriginalMessage
		if key == "" {
			key = query
		}
		if _, dup := seenKeys[key]; dup {
			continue
		}
		seenKeys[key] = struct{}{}

		matched := key
		if matched == "" {
			matched = extractExcerpt(query, chunk.Code, excerptContext)
		}
		results = append(results, SearchResult{
			ErrorKey:    key,
			Chunks:      []indexer.IndexChunk{chunk},
			MatchType:   MatchExact,
			Score:       1.0,
			MatchedText: matched,
		})
	}
	return results
}

func (e *Engine) searchPartial(query string, results []SearchResult, seenKeys map[string]struct{}) []SearchResult {
	queryTokens := strings.Fields(query)

	type scoredKey struct {
		key   string
		score float64
		refs  []indexer.ErrorRef
	}
	var scored []scoredKey
	for key, refs := range e.artifact.ErrorIndex {
		if _, dup := seenKeys[key]; dup {
			continue
		}
		if !strings.Contains(key, query) {
			continue
		}
		score := tokenOverlap(queryTokens, strings.Fields(key))*0.6 +
			lengthProximity(len(query), len(key))*0.4
		scored = append(scored, scoredKey{key: key, score: score, refs: refs})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].key < scored[j].key
	})
	if len(scored) > partialResultCap {
		scored = scored[:partialResultCap]
	}

	for _, sk := range scored {
		seenKeys[sk.key] = struct{}{}

		var chunks []indexer.IndexChunk
		for _, ref := range sk.refs {
			if chunk, ok := e.chunksByID[ref.ChunkID]; ok {
				chunks = append(chunks, chunk)
			}
		}
		if len(chunks) == 0 {
			continue
		}

		matched := sk.key
		if excerpt := extractExcerpt(query, chunks[0].Code, excerptContext); len(excerpt) > len(matched) {
			matched = excerpt
		}
		results = append(results, SearchResult{
			ErrorKey:    sk.key,
			Chunks:      chunks,
			MatchType:   MatchPartial,
			Score:       sk.score,
			MatchedText: matched,
		})
	}
	return results
}

// searchContent is the last-resort scan over chunk bodies. Each chunk is
// scored by the best of its error messages, its code, or its docs, with
// source weights of 1.0, 0.8 and 0.5 respectively. Matching chunks are
// grouped by file and the top files are returned.
func (e *Engine) searchContent(query, rawQuery string) []SearchResult {
	tokens := significantTokens(strings.Fields(query))
	if len(tokens) < 2 {
		return nil
	}

	type scoredChunk struct {
		chunk indexer.IndexChunk
		score float64
	}
	var scored []scoredChunk
	for _, chunk := range e.artifact.Chunks {
		var errScore float64
		for _, em := range chunk.ErrorMessages {
			if em.Message == "" {
				continue
			}
			if s := phraseMatchScore(query, strings.ToLower(em.Message)); s > errScore {
				errScore = s
			}
		}
		codeScore := phraseMatchScore(query, strings.ToLower(chunk.Code))
		docScore := phraseMatchScore(query,
			strings.ToLower(chunk.Docstring+" "+chunk.LeadingComment))

		var score float64
		switch {
		case errScore > 0:
			score = errScore
		case codeScore > 0:
			score = codeScore * 0.8
		case docScore > 0:
			score = docScore * 0.5
		}
		if score >= codeSearchMin {
			scored = append(scored, scoredChunk{chunk: chunk, score: score})
		}
	}
	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > partialResultCap {
		scored = scored[:partialResultCap]
	}

	type fileGroup struct {
		path   string
		chunks []indexer.IndexChunk
		best   indexer.IndexChunk
		score  float64
	}
	groupsByPath := make(map[string]*fileGroup)
	var order []string
	for _, sc := range scored {
		g, ok := groupsByPath[sc.chunk.FilePath]
		if !ok {
			g = &fileGroup{path: sc.chunk.FilePath, best: sc.chunk, score: sc.score}
			groupsByPath[sc.chunk.FilePath] = g
			order = append(order, sc.chunk.FilePath)
		}
		g.chunks = append(g.chunks, sc.chunk)
		if sc.score > g.score {
			g.score = sc.score
			g.best = sc.chunk
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return groupsByPath[order[i]].score > groupsByPath[order[j]].score
	})
	if len(order) > codeSearchFileCap {
		order = order[:codeSearchFileCap]
	}

	var results []SearchResult
	for _, path := range order {
		g := groupsByPath[path]
		matched := ""
		for _, em := range g.best.ErrorMessages {
			if strings.Contains(strings.ToLower(em.Message), query) {
				matched = em.Message
				break
			}
		}
		if matched == "" {
			matched = extractExcerpt(rawQuery, g.best.Code, excerptContext)
		}
		if matched == "" && g.best.Code != "" {
			matched = g.best.Code
			if len(matched) > 150 {
				matched = matched[:150] + "..."
			}
		}
		results = append(results, SearchResult{
			ErrorKey:    "Code match in " + path,
			Chunks:      g.chunks,
			MatchType:   MatchCodeSearch,
			Score:       g.score,
			MatchedText: matched,
		})
	}
	return results
}
