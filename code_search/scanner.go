package code_search

import (
	"sort"
	"strings"
	"time"
)

// Match types, in pass order.
const (
	MatchExact      = "exact"
	MatchNormalized = "normalized"
	MatchTokens     = "tokens"
)

// Match is one literal hit in the scanned tree.
type Match struct {
	Path      string  `json:"path"`
	LineNo    int     `json:"line_no"`
	LineText  string  `json:"line_text"`
	MatchType string  `json:"match_type"`
	Score     float64 `json:"score"`
}

// Query carries the search keys produced by the log parser.
type Query struct {
	KeyExact      string
	KeyNormalized string
	Tokens        []string
	Component     string
}

// Options configure one scan. The budget applies across all passes.
type Options struct {
	Roots           []string
	IncludeExt      []string
	ExcludeDirs     []string
	CaseInsensitive bool
	FollowSymlinks  bool
	Budget          ScanBudget
}

// Scanner runs budgeted, read-only literal searches over source trees.
// Matching runs in ordered passes: exact substring, normalized-key
// substring, then all-tokens-present. A later pass only runs while the
// result budget has room left.
type Scanner struct {
	opts  Options
	cache *FileCache
}

// NewScanner creates a scanner. The cache may be shared with other
// components; pass nil to read files uncached.
func NewScanner(opts Options, cache *FileCache) *Scanner {
	opts.Budget = opts.Budget.withDefaults()
	return &Scanner{opts: opts, cache: cache}
}

type hitKey struct {
	path string
	line int
}

type scanState struct {
	budget   ScanBudget
	start    time.Time
	stats    ScanStats
	results  []Match
	seen     map[hitKey]struct{}
	counted  map[string]struct{}
	progress ProgressFunc
}

// Search runs the multi-pass scan for q and returns the ranked matches plus
// the stats of this invocation. Budget exhaustion is not an error: the scan
// stops, records StoppedReason and returns what it found.
func (s *Scanner) Search(q Query, progress ProgressFunc) ([]Match, ScanStats) {
	st := &scanState{
		budget:   s.opts.Budget,
		start:    time.Now(),
		seen:     make(map[hitKey]struct{}),
		counted:  make(map[string]struct{}),
		progress: progress,
	}

	files := walkFiles(s.opts.Roots, s.opts.IncludeExt, s.opts.ExcludeDirs,
		s.opts.FollowSymlinks, st.budget.MaxFileBytes, &st.stats)

	s.notify(st)

	type pass struct {
		matchType string
		match     func(line string) bool
	}

	key := q.KeyExact
	norm := q.KeyNormalized
	passes := []pass{
		{MatchExact, func(line string) bool {
			return substringMatch(line, key, s.opts.CaseInsensitive)
		}},
		{MatchNormalized, func(line string) bool {
			// The normalized key is lowercase by construction.
			return substringMatch(line, norm, true)
		}},
		{MatchTokens, func(line string) bool {
			return tokensMatch(line, q.Tokens)
		}},
	}

	for _, p := range passes {
		if p.matchType == MatchTokens && len(q.Tokens) < 2 {
			continue
		}
		if st.stats.StoppedReason != "" {
			break
		}
		s.runPass(st, files, p.matchType, p.match, q.Component)
	}

	st.stats.ElapsedSeconds = time.Since(st.start).Seconds()
	s.notify(st)

	sort.Slice(st.results, func(i, j int) bool {
		a, b := st.results[i], st.results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.LineNo < b.LineNo
	})

	return st.results, st.stats
}

func (s *Scanner) runPass(st *scanState, files []string, matchType string, match func(string) bool, component string) {
	for _, path := range files {
		// Budget re-check before every file open.
		if reason := s.checkBudget(st); reason != "" {
			st.stats.StoppedReason = reason
			return
		}

		lines, err := s.readLines(path)
		if err != nil {
			if _, done := st.counted[path]; !done {
				st.counted[path] = struct{}{}
				st.stats.FilesSkippedUnreadable++
			}
			continue
		}

		// Every pass opens the same file list; each file counts once.
		if _, done := st.counted[path]; !done {
			st.counted[path] = struct{}{}
			st.stats.FilesScanned++
			if st.stats.FilesScanned%st.budget.ProgressEveryNFiles == 0 {
				st.stats.ElapsedSeconds = time.Since(st.start).Seconds()
				s.notify(st)
			}
		}

		for i, line := range lines {
			if !match(line) {
				continue
			}
			s.addMatch(st, Match{
				Path:      path,
				LineNo:    i + 1,
				LineText:  line,
				MatchType: matchType,
				Score:     computeScore(matchType, line, component, s.opts.CaseInsensitive),
			})
			if st.budget.MaxResults > 0 && len(st.results) >= st.budget.MaxResults {
				st.stats.StoppedReason = StopMaxResults
				return
			}
		}
	}
}

func (s *Scanner) readLines(path string) ([]string, error) {
	if s.cache != nil {
		return s.cache.Lines(path)
	}
	return readLinesDirect(path)
}

func (s *Scanner) checkBudget(st *scanState) string {
	if st.budget.MaxSeconds > 0 && time.Since(st.start).Seconds() >= st.budget.MaxSeconds {
		return StopMaxSeconds
	}
	if st.budget.MaxFilesScanned > 0 && st.stats.FilesScanned >= st.budget.MaxFilesScanned {
		return StopMaxFiles
	}
	return ""
}

func (s *Scanner) addMatch(st *scanState, m Match) {
	key := hitKey{m.Path, m.LineNo}
	if _, dup := st.seen[key]; dup {
		return
	}
	st.seen[key] = struct{}{}
	st.results = append(st.results, m)
	st.stats.HitsFound++
}

// notify invokes the progress callback with a snapshot copy of the stats.
// A panicking callback must never take the scan down with it.
func (s *Scanner) notify(st *scanState) {
	if st.progress == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	st.progress(st.stats)
}

func substringMatch(line, key string, caseInsensitive bool) bool {
	if key == "" {
		return false
	}
	if caseInsensitive {
		return strings.Contains(strings.ToLower(line), strings.ToLower(key))
	}
	return strings.Contains(line, key)
}

// tokensMatch requires every token to appear in the line. Tokens are
// lowercase by construction, so matching is case-insensitive.
func tokensMatch(line string, tokens []string) bool {
	if len(tokens) < 2 {
		return false
	}
	hay := strings.ToLower(line)
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if !strings.Contains(hay, t) {
			return false
		}
	}
	return true
}

// computeScore assigns the pass base score plus a component boost when the
// record's component also appears on the line, capped at 1.0.
func computeScore(matchType, line, component string, caseInsensitive bool) float64 {
	var base float64
	switch matchType {
	case MatchExact:
		base = 1.0
	case MatchNormalized:
		base = 0.8
	case MatchTokens:
		base = 0.6
	}

	if component != "" && substringMatch(line, component, caseInsensitive) {
		base += 0.1
	}
	if base > 1.0 {
		base = 1.0
	}
	return base
}
