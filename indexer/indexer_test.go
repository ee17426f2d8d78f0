package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureSource = `import logging

logger = logging.getLogger(__name__)


# Primes the feed motor before a print job.
def prime_feed(job_id):
    """Prime the feed motor."""
    if job_id is None:
        raise ValueError("job id is required")
    logger.error("feed motor stalled during prime")
    logger.info("prime complete")


@retry(times=2)
def flush_heads(
    head_count,
    force=False,
):
    logger.warning("head flush degraded: %s" % head_count)
    print("ERROR: flush incomplete")
    print("flush done")


class NozzleBank:
    def purge(self):
        logger.error("nozzle purge failed")

    def helper(self):
        def inner():
            logger.debug("inner diagnostics tick")
        return inner
`

func buildFixtureArtifact(t *testing.T) (*IndexArtifact, string) {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "motor.py")
	require.NoError(t, os.WriteFile(path, []byte(fixtureSource), 0644))

	ix := New(Options{Roots: []string{root}, IncludeExt: []string{".py"}})
	artifact, err := ix.Run(nil)
	require.NoError(t, err)
	return artifact, root
}

func chunkByName(t *testing.T, artifact *IndexArtifact, name string) IndexChunk {
	t.Helper()
	for _, c := range artifact.Chunks {
		if c.FunctionName == name {
			return c
		}
	}
	t.Fatalf("no chunk named %q", name)
	return IndexChunk{}
}

func TestRunIndexesAllFunctions(t *testing.T) {
	artifact, _ := buildFixtureArtifact(t)

	var names []string
	for _, c := range artifact.Chunks {
		names = append(names, c.FunctionName)
	}
	assert.ElementsMatch(t,
		[]string{"prime_feed", "flush_heads", "purge", "helper", "inner"}, names)

	assert.Equal(t, SchemaVersion, artifact.SchemaVersion)
	assert.Equal(t, len(artifact.Chunks), artifact.TotalChunks)
	assert.Equal(t, 1, artifact.Stats.FilesProcessed)
	assert.Equal(t, 0, artifact.Stats.FilesFailed)
	assert.Equal(t, 5, artifact.Stats.FunctionsFound)
	assert.NotEmpty(t, artifact.CreatedAt)
}

func TestChunkClassContext(t *testing.T) {
	artifact, _ := buildFixtureArtifact(t)

	assert.Equal(t, "", chunkByName(t, artifact, "prime_feed").ClassName)
	assert.Equal(t, "NozzleBank", chunkByName(t, artifact, "purge").ClassName)
	// Nested defs keep the class context, not the outer function's name.
	assert.Equal(t, "NozzleBank", chunkByName(t, artifact, "inner").ClassName)
}

func TestChunkDocumentation(t *testing.T) {
	artifact, _ := buildFixtureArtifact(t)

	prime := chunkByName(t, artifact, "prime_feed")
	assert.Equal(t, "Prime the feed motor.", prime.Docstring)
	assert.Contains(t, prime.LeadingComment, "Primes the feed motor")
	assert.Equal(t, "def prime_feed(job_id):", prime.Signature)
	assert.Contains(t, prime.Code, "raise ValueError")
	assert.LessOrEqual(t, prime.LineStart, prime.LineEnd)
}

func TestChunkMultiLineSignature(t *testing.T) {
	artifact, _ := buildFixtureArtifact(t)

	flush := chunkByName(t, artifact, "flush_heads")
	assert.Equal(t, "def flush_heads( head_count, force=False, ):", flush.Signature)
}

func TestErrorExtraction(t *testing.T) {
	artifact, _ := buildFixtureArtifact(t)

	prime := chunkByName(t, artifact, "prime_feed")
	require.Len(t, prime.ErrorMessages, 3)
	assert.Equal(t, ErrorMessage{Message: "job id is required", LogLevel: "E", SourceType: "exception"},
		prime.ErrorMessages[0])
	assert.Equal(t, ErrorMessage{Message: "feed motor stalled during prime", LogLevel: "E", SourceType: "logging"},
		prime.ErrorMessages[1])
	assert.Equal(t, ErrorMessage{Message: "prime complete", LogLevel: "I", SourceType: "logging"},
		prime.ErrorMessages[2])

	flush := chunkByName(t, artifact, "flush_heads")
	require.Len(t, flush.ErrorMessages, 2)
	assert.Equal(t, ErrorMessage{Message: "head flush degraded: %s", LogLevel: "W", SourceType: "logging_format"},
		flush.ErrorMessages[0])
	// The plain "flush done" print carries no error-like word and is dropped.
	assert.Equal(t, ErrorMessage{Message: "ERROR: flush incomplete", LogLevel: "E", SourceType: "print"},
		flush.ErrorMessages[1])
}

func TestErrorIndexKeysAreNormalized(t *testing.T) {
	artifact, _ := buildFixtureArtifact(t)

	refs, ok := artifact.ErrorIndex["error: flush incomplete"]
	require.True(t, ok)
	require.Len(t, refs, 1)
	assert.Equal(t, "ERROR: flush incomplete", refs[0].OriginalMessage)
	assert.Equal(t, chunkByName(t, artifact, "flush_heads").ChunkID, refs[0].ChunkID)

	assert.Equal(t, artifact.Stats.ErrorsFound, artifact.TotalErrors)
	assert.Equal(t, 7, artifact.TotalErrors)
}

func TestChunkIDIdempotentAcrossRuns(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "motor.py")
	require.NoError(t, os.WriteFile(path, []byte(fixtureSource), 0644))

	ix := New(Options{Roots: []string{root}, IncludeExt: []string{".py"}})
	first, err := ix.Run(nil)
	require.NoError(t, err)
	second, err := ix.Run(nil)
	require.NoError(t, err)

	require.Equal(t, len(first.Chunks), len(second.Chunks))
	for i := range first.Chunks {
		assert.Equal(t, first.Chunks[i].ChunkID, second.Chunks[i].ChunkID)
	}
}

func TestChunkIDChangesWithContent(t *testing.T) {
	a := IndexChunk{FilePath: "a.py", FunctionName: "f", Code: "def f():\n    pass"}
	b := a
	b.Code = "def f():\n    return 1"
	assert.NotEqual(t, chunkID(a), chunkID(b))
	assert.Len(t, chunkID(a), 16)
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	artifact, _ := buildFixtureArtifact(t)
	path := filepath.Join(t.TempDir(), "index", "artifact.json")

	require.NoError(t, artifact.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, artifact.SchemaVersion, loaded.SchemaVersion)
	assert.Equal(t, artifact.TotalChunks, loaded.TotalChunks)
	assert.Equal(t, artifact.TotalErrors, loaded.TotalErrors)
	assert.Equal(t, len(artifact.ErrorIndex), len(loaded.ErrorIndex))

	// No temp files are left behind by the atomic write.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadFailureTaxonomy(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrArtifactNotFound)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	_, err = Load(bad)
	assert.ErrorIs(t, err, ErrArtifactMalformed)

	stale := filepath.Join(dir, "stale.json")
	require.NoError(t, os.WriteFile(stale, []byte(`{"schema_version":"0.9"}`), 0644))
	_, err = Load(stale)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestRunSkipsUnparseableBinary(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ok.py"), []byte("def f():\n    pass\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "junk.py"), []byte{0x00, 0xff, 0xfe, 0x01}, 0644))

	ix := New(Options{Roots: []string{root}, IncludeExt: []string{".py"}})
	artifact, err := ix.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, artifact.Stats.FunctionsFound)
}

func TestRunProgressPanicSwallowed(t *testing.T) {
	artifact, root := buildFixtureArtifact(t)
	_ = artifact

	ix := New(Options{
		Roots:               []string{root},
		IncludeExt:          []string{".py"},
		ProgressEveryNFiles: 1,
	})
	assert.NotPanics(t, func() {
		_, err := ix.Run(func(RunStats) { panic("observer blew up") })
		assert.NoError(t, err)
	})
}
