package models

import (
	"github.com/printware/loghound/code_search"
	"github.com/printware/loghound/log_parser"
)

// Settings bound one live analysis run. Zero values fall back to package
// defaults where a default exists; MaxResults, MaxSeconds and
// MaxFilesScanned stay unlimited at zero.
type Settings struct {
	Roots               []string
	IncludeExt          []string
	ExcludeDirs         []string
	MaxResults          int
	MaxFileBytes        int64
	MaxSeconds          float64
	MaxFilesScanned     int
	ProgressEveryNFiles int
	ContextFallback     int
	CaseInsensitive     bool
	FollowSymlinks      bool
	NormalizeNumbers    bool
}

// EnrichedMatch is a scan hit merged with its enclosing block context. When
// no def or class contains the hit, Signature is empty and ContextPreview
// carries the fallback window instead.
type EnrichedMatch struct {
	code_search.Match
	EnclosureType  string `json:"enclosure_type"`
	Name           string `json:"name,omitempty"`
	StartLine      int    `json:"start_line"`
	EndLine        int    `json:"end_line"`
	Signature      string `json:"signature,omitempty"`
	ContextPreview string `json:"context_preview,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// Report is the full outcome of one pasted-log analysis.
type Report struct {
	SelectedLine  string                     `json:"selected_line"`
	Parsed        log_parser.ParsedLogRecord `json:"parsed"`
	SearchMessage string                     `json:"search_message"`
	Matches       []EnrichedMatch            `json:"matches"`
	ScanStats     code_search.ScanStats      `json:"scan_stats"`
	Notes         string                     `json:"notes,omitempty"`
}
