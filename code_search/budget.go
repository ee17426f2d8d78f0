package code_search

const (
	// DefaultMaxFileBytes skips files over 10MB.
	DefaultMaxFileBytes = 10 * 1024 * 1024
	// DefaultMaxResults bounds a scan when the caller gives no budget.
	DefaultMaxResults = 10
	// DefaultProgressEveryNFiles spaces out progress callbacks.
	DefaultProgressEveryNFiles = 100
)

// Stop reasons reported in ScanStats.StoppedReason.
const (
	StopMaxResults = "max_results"
	StopMaxSeconds = "max_seconds"
	StopMaxFiles   = "max_files"
)

// ScanBudget bounds the worst-case cost of a live scan. Zero values for
// MaxResults, MaxSeconds and MaxFilesScanned mean unlimited. MaxFilesScanned
// counts unique files, matching ScanStats.FilesScanned. The budget is
// caller-owned and read-only for the duration of a scan.
type ScanBudget struct {
	MaxResults          int
	MaxFileBytes        int64
	MaxSeconds          float64
	MaxFilesScanned     int
	ProgressEveryNFiles int
}

func (b ScanBudget) withDefaults() ScanBudget {
	if b.MaxFileBytes <= 0 {
		b.MaxFileBytes = DefaultMaxFileBytes
	}
	if b.ProgressEveryNFiles <= 0 {
		b.ProgressEveryNFiles = DefaultProgressEveryNFiles
	}
	return b
}

// ScanStats is owned by exactly one scan invocation. Progress callbacks
// receive value copies, never the live struct. FilesScanned and the skip
// counters record unique files: a file opened by several match passes counts
// once, so the counters add up to the entries the walk visited.
type ScanStats struct {
	FilesScanned           int     `json:"files_scanned"`
	FilesSkippedTooLarge   int     `json:"files_skipped_too_large"`
	FilesSkippedSymlink    int     `json:"files_skipped_symlink"`
	FilesSkippedUnreadable int     `json:"files_skipped_unreadable"`
	FilesSkippedExt        int     `json:"files_skipped_ext"`
	DirsExcluded           int     `json:"dirs_excluded"`
	HitsFound              int     `json:"hits_found"`
	ElapsedSeconds         float64 `json:"elapsed_seconds"`
	StoppedReason          string  `json:"stopped_reason,omitempty"`
}

// SkippedTotal sums every per-file skip counter.
func (s ScanStats) SkippedTotal() int {
	return s.FilesSkippedTooLarge + s.FilesSkippedSymlink + s.FilesSkippedUnreadable + s.FilesSkippedExt
}

// ProgressFunc observes scan progress. It receives a snapshot copy of the
// stats at scan start, at scan end, and every ProgressEveryNFiles files.
// Panics inside the callback are swallowed and never interrupt the scan.
type ProgressFunc func(ScanStats)
