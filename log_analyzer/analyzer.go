package log_analyzer

import (
	"strings"

	"github.com/printware/loghound/code_search"
	"github.com/printware/loghound/enclosure"
	"github.com/printware/loghound/log_analyzer/contracts"
	"github.com/printware/loghound/log_analyzer/models"
	"github.com/printware/loghound/log_parser"
)

const defaultContextFallback = 50

// Analyzer runs the live, read-only pipeline over pasted log text:
// parse the log line, scan the configured source roots for the message,
// and attach the enclosing block to every hit.
type Analyzer struct {
	settings models.Settings
	cache    *code_search.FileCache
}

var _ contracts.ILogAnalyzer = (*Analyzer)(nil)

// NewAnalyzer wires the pipeline. The cache is shared between the scanner
// and the enclosure extractor so enrichment never re-reads scanned files.
func NewAnalyzer(settings models.Settings, cache *code_search.FileCache) *Analyzer {
	if len(settings.IncludeExt) == 0 {
		// Source only; compiled artifacts carry no enclosures.
		settings.IncludeExt = []string{".py"}
	}
	if settings.ContextFallback <= 0 {
		settings.ContextFallback = defaultContextFallback
	}
	return &Analyzer{settings: settings, cache: cache}
}

// Analyze parses text, scans for its message and enriches every match. An
// empty or unparseable message short-circuits with a note instead of
// scanning the whole tree for nothing.
func (a *Analyzer) Analyze(text string, progress code_search.ProgressFunc) models.Report {
	selected, parsed, keys := log_parser.AnalyzePastedText(text, a.settings.NormalizeNumbers)

	report := models.Report{
		SelectedLine:  selected,
		Parsed:        parsed,
		SearchMessage: strings.TrimSpace(keys.KeyExact),
	}
	if report.SearchMessage == "" {
		report.Notes = "empty search message; no scan performed"
		return report
	}

	scanner := code_search.NewScanner(code_search.Options{
		Roots:           a.settings.Roots,
		IncludeExt:      a.settings.IncludeExt,
		ExcludeDirs:     a.settings.ExcludeDirs,
		CaseInsensitive: a.settings.CaseInsensitive,
		FollowSymlinks:  a.settings.FollowSymlinks,
		Budget: code_search.ScanBudget{
			MaxResults:          a.settings.MaxResults,
			MaxFileBytes:        a.settings.MaxFileBytes,
			MaxSeconds:          a.settings.MaxSeconds,
			MaxFilesScanned:     a.settings.MaxFilesScanned,
			ProgressEveryNFiles: a.settings.ProgressEveryNFiles,
		},
	}, a.cache)

	matches, stats := scanner.Search(code_search.Query{
		KeyExact:      keys.KeyExact,
		KeyNormalized: keys.KeyNormalized,
		Tokens:        keys.Tokens,
		Component:     parsed.Component,
	}, progress)
	report.ScanStats = stats

	// A nil *FileCache must not be wrapped in the interface, or the
	// extractor's nil check sees a typed-nil and dereferences it.
	var reader enclosure.LineReader
	if a.cache != nil {
		reader = a.cache
	}
	extractor := enclosure.NewExtractor(reader)
	for _, m := range matches {
		report.Matches = append(report.Matches, a.enrich(extractor, m))
	}
	return report
}

// enrich attaches the enclosing block to one match. Extraction failures
// degrade the match instead of dropping it.
func (a *Analyzer) enrich(extractor *enclosure.Extractor, m code_search.Match) models.EnrichedMatch {
	enriched := models.EnrichedMatch{Match: m}

	res, err := extractor.Extract(m.Path, m.LineNo, a.settings.ContextFallback)
	if err != nil {
		enriched.EnclosureType = "none"
		enriched.StartLine = m.LineNo
		enriched.EndLine = m.LineNo
		enriched.Notes = "enclosure extraction failed: " + err.Error()
		return enriched
	}

	enriched.EnclosureType = res.EnclosureType
	enriched.Name = res.Name
	enriched.StartLine = res.StartLine
	enriched.EndLine = res.EndLine
	enriched.Notes = res.Notes

	if res.ContainsMatch {
		enriched.Signature = res.Signature
	} else {
		enriched.ContextPreview = res.Block
	}
	return enriched
}
