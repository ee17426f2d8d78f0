package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SchemaVersion is the artifact format version this build reads and writes.
const SchemaVersion = "1.0"

// Artifact load failures, distinguishable with errors.Is.
var (
	ErrArtifactNotFound  = errors.New("index artifact not found")
	ErrArtifactMalformed = errors.New("index artifact is not valid JSON")
	ErrSchemaMismatch    = errors.New("index artifact schema version mismatch")
)

// ErrorMessage is one statically extracted error-like literal.
type ErrorMessage struct {
	Message    string `json:"message"`
	LogLevel   string `json:"log_level"`
	SourceType string `json:"source_type"`
}

// IndexChunk is one indexed function definition with its documentation and
// the error literals it can emit. ChunkID is a content hash, so unchanged
// source yields the same id across runs.
type IndexChunk struct {
	ChunkID        string         `json:"chunk_id"`
	FilePath       string         `json:"file_path"`
	FunctionName   string         `json:"function_name"`
	ClassName      string         `json:"class_name"`
	LineStart      int            `json:"line_start"`
	LineEnd        int            `json:"line_end"`
	Signature      string         `json:"signature"`
	Code           string         `json:"code"`
	Docstring      string         `json:"docstring"`
	LeadingComment string         `json:"leading_comment"`
	ErrorMessages  []ErrorMessage `json:"error_messages"`
}

// ErrorRef links one error literal back to the chunk that raises or logs it.
type ErrorRef struct {
	ChunkID         string `json:"chunk_id"`
	OriginalMessage string `json:"original_message"`
	LogLevel        string `json:"log_level"`
	SourceType      string `json:"source_type"`
}

// RunStats summarizes one indexing run.
type RunStats struct {
	FilesProcessed int     `json:"files_processed"`
	FilesFailed    int     `json:"files_failed"`
	FunctionsFound int     `json:"functions_found"`
	ErrorsFound    int     `json:"errors_found"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// IndexArtifact is the complete output of one indexing run. It is written
// whole and never patched: a run either replaces the previous artifact or
// leaves it untouched.
type IndexArtifact struct {
	SchemaVersion string                `json:"schema_version"`
	CreatedAt     string                `json:"created_at"`
	Chunks        []IndexChunk          `json:"chunks"`
	ErrorIndex    map[string][]ErrorRef `json:"error_index"`
	Stats         RunStats              `json:"stats"`
	TotalChunks   int                   `json:"total_chunks"`
	TotalErrors   int                   `json:"total_errors"`
}

// Save writes the artifact atomically: the JSON is written to a temp file in
// the destination directory and renamed over the target, so readers never
// observe a half-written index.
func (a *IndexArtifact) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index artifact: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".index-*.json")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write index artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp index file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace index artifact: %w", err)
	}
	return nil
}

// Load reads an artifact from disk. Failures keep their cause apart:
// errors.Is(err, ErrArtifactNotFound), ErrArtifactMalformed and
// ErrSchemaMismatch let callers report missing, corrupt and stale indexes
// differently.
func Load(path string) (*IndexArtifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("read index artifact: %w", err)
	}

	var artifact IndexArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactMalformed, err)
	}
	if artifact.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: got %q, want %q",
			ErrSchemaMismatch, artifact.SchemaVersion, SchemaVersion)
	}
	if artifact.ErrorIndex == nil {
		artifact.ErrorIndex = make(map[string][]ErrorRef)
	}
	return &artifact, nil
}
