package code_search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printware/loghound/enclosure"
)

const logMessage = "PeriodicIdle: waitComplete for localhost:9210:Dyn-ultron:VALVE"

const fixtureModuleA = `import logging

logger = logging.getLogger(__name__)


def do_periodic_idle():
    logger.error("PeriodicIdle: waitComplete for localhost:9210:Dyn-ultron:VALVE")
    return True


def do_periodic_idle_second():
    prefix = "retrying"
    logger.error("PeriodicIdle: waitComplete for localhost:9210:Dyn-ultron:VALVE")
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return root
}

func pyOptions(root string) Options {
	return Options{
		Roots:      []string{root},
		IncludeExt: []string{".py"},
	}
}

func periodicIdleQuery() Query {
	return Query{
		KeyExact:      logMessage,
		KeyNormalized: "periodicidle: waitcomplete for localhost:9210:dyn-ultron:valve",
		Tokens:        []string{"periodicidle", "waitcomplete", "localhost", "9210", "dyn", "ultron", "valve"},
		Component:     "PeriodicIdle",
	}
}

func TestSearchFindsBothFunctionsAndEnclosures(t *testing.T) {
	root := writeTree(t, map[string]string{"module_a.py": fixtureModuleA})
	cache := NewFileCache(16)
	scanner := NewScanner(pyOptions(root), cache)

	matches, stats := scanner.Search(periodicIdleQuery(), nil)
	require.GreaterOrEqual(t, len(matches), 2)
	assert.Equal(t, MatchExact, matches[0].MatchType)
	assert.Greater(t, stats.HitsFound, 1)

	// Enrich each hit with its enclosing function through the shared cache.
	ex := enclosure.NewExtractor(cache)
	var names []string
	for _, m := range matches[:2] {
		res, err := ex.Extract(m.Path, m.LineNo, 6)
		require.NoError(t, err)
		assert.True(t, res.ContainsMatch)
		names = append(names, res.Name)
	}
	assert.Contains(t, names, "do_periodic_idle")
	assert.Contains(t, names, "do_periodic_idle_second")
}

func TestSearchScoresExactAboveNormalized(t *testing.T) {
	// b.py only matches after lowercasing, a.py matches verbatim.
	root := writeTree(t, map[string]string{
		"a.py": "x = \"" + logMessage + "\"\n",
		"b.py": "y = \"periodicidle: waitcomplete for localhost:9210:dyn-ultron:valve done\"\n",
	})
	scanner := NewScanner(pyOptions(root), nil)

	matches, _ := scanner.Search(periodicIdleQuery(), nil)
	require.Len(t, matches, 2)
	assert.Equal(t, MatchExact, matches[0].MatchType)
	assert.Equal(t, MatchNormalized, matches[1].MatchType)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestSearchComponentBoost(t *testing.T) {
	line := "raise RuntimeError(\"" + logMessage + "\")\n"
	root := writeTree(t, map[string]string{"a.py": line})
	scanner := NewScanner(pyOptions(root), nil)

	matches, _ := scanner.Search(periodicIdleQuery(), nil)
	require.Len(t, matches, 1)
	// Exact base 1.0, boost is still capped at 1.0.
	assert.Equal(t, 1.0, matches[0].Score)

	q := periodicIdleQuery()
	q.KeyExact = ""
	matches, _ = scanner.Search(q, nil)
	require.Len(t, matches, 1)
	assert.Equal(t, MatchNormalized, matches[0].MatchType)
	assert.InDelta(t, 0.9, matches[0].Score, 1e-9)
}

func TestSearchDedupsAcrossPasses(t *testing.T) {
	// The exact-match line also satisfies the normalized and token passes;
	// it must be reported once with the exact type.
	root := writeTree(t, map[string]string{"a.py": "x = \"" + logMessage + "\"\n"})
	scanner := NewScanner(pyOptions(root), nil)

	matches, stats := scanner.Search(periodicIdleQuery(), nil)
	require.Len(t, matches, 1)
	assert.Equal(t, MatchExact, matches[0].MatchType)
	assert.Equal(t, 1, stats.HitsFound)
}

func TestSearchCountsFilesOncePerScan(t *testing.T) {
	// All three passes open both files; the counters record unique files so
	// scanned plus skipped adds up to what the walk visited.
	root := writeTree(t, map[string]string{
		"a.py": "x = \"" + logMessage + "\"\n",
		"b.py": "y = 1\n",
	})
	scanner := NewScanner(pyOptions(root), nil)

	_, stats := scanner.Search(periodicIdleQuery(), nil)
	assert.Equal(t, 2, stats.FilesScanned)
	assert.Zero(t, stats.SkippedTotal())
}

func TestSearchMaxResultsStopsExactly(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py": "s = \"" + logMessage + "\"\ns = \"" + logMessage + "\"\ns = \"" + logMessage + "\"\n",
	})
	opts := pyOptions(root)
	opts.Budget.MaxResults = 2
	scanner := NewScanner(opts, nil)

	matches, stats := scanner.Search(periodicIdleQuery(), nil)
	assert.Len(t, matches, 2)
	assert.Equal(t, StopMaxResults, stats.StoppedReason)
}

func TestSearchMaxFilesScanned(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py": "pass\n",
		"b.py": "pass\n",
		"c.py": "pass\n",
	})
	opts := pyOptions(root)
	opts.Budget.MaxFilesScanned = 1
	scanner := NewScanner(opts, nil)

	matches, stats := scanner.Search(periodicIdleQuery(), nil)
	assert.Empty(t, matches)
	assert.Equal(t, StopMaxFiles, stats.StoppedReason)
	assert.Equal(t, 1, stats.FilesScanned)
}

func TestSearchMaxSecondsAlreadyExpired(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "pass\n"})
	opts := pyOptions(root)
	opts.Budget.MaxSeconds = 0.0000001
	scanner := NewScanner(opts, nil)

	matches, stats := scanner.Search(periodicIdleQuery(), nil)
	assert.Empty(t, matches)
	assert.Equal(t, StopMaxSeconds, stats.StoppedReason)
}

func TestSearchExcludesDirsByName(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/a.py":              "x = \"" + logMessage + "\"\n",
		"node_modules/skip.py":  "x = \"" + logMessage + "\"\n",
		".git/objects/pack.py":  "x = \"" + logMessage + "\"\n",
		"src/__pycache__/c.py":  "x = \"" + logMessage + "\"\n",
		"src/nested/keeper.py":  "x = \"" + logMessage + "\"\n",
		"unrelated/readme.html": logMessage + "\n",
	})
	opts := pyOptions(root)
	opts.ExcludeDirs = []string{"node_modules", ".git", "__pycache__"}
	scanner := NewScanner(opts, nil)

	matches, stats := scanner.Search(periodicIdleQuery(), nil)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Contains(t, m.Path, filepath.Join(root, "src"))
	}
	assert.Equal(t, 3, stats.DirsExcluded)
	assert.Equal(t, 1, stats.FilesSkippedExt)
}

func TestSearchSkipsSymlinkFiles(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "x = \"" + logMessage + "\"\n"})
	link := filepath.Join(root, "link.py")
	require.NoError(t, os.Symlink(filepath.Join(root, "a.py"), link))

	scanner := NewScanner(pyOptions(root), nil)
	matches, stats := scanner.Search(periodicIdleQuery(), nil)
	require.Len(t, matches, 1)
	assert.Equal(t, filepath.Join(root, "a.py"), matches[0].Path)
	assert.Equal(t, 1, stats.FilesSkippedSymlink)
}

func TestSearchSkipsOversizedFiles(t *testing.T) {
	big := make([]byte, 2048)
	for i := range big {
		big[i] = 'x'
	}
	root := writeTree(t, map[string]string{
		"small.py": "x = \"" + logMessage + "\"\n",
		"big.py":   string(big),
	})
	opts := pyOptions(root)
	opts.Budget.MaxFileBytes = 1024
	scanner := NewScanner(opts, nil)

	matches, stats := scanner.Search(periodicIdleQuery(), nil)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, stats.FilesSkippedTooLarge)
	assert.Equal(t, 1, stats.SkippedTotal())
}

func TestSearchTokenPassSkippedBelowTwoTokens(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "only valve here\n"})
	q := Query{
		KeyExact:      "no such literal",
		KeyNormalized: "no such literal",
		Tokens:        []string{"valve"},
	}
	scanner := NewScanner(pyOptions(root), nil)
	matches, _ := scanner.Search(q, nil)
	assert.Empty(t, matches)
}

func TestSearchTokenPassRequiresAllTokens(t *testing.T) {
	root := writeTree(t, map[string]string{
		"both.py": "handle VALVE on ultron node\n",
		"one.py":  "handle valve only\n",
	})
	q := Query{
		KeyExact:      "no such literal",
		KeyNormalized: "no such literal",
		Tokens:        []string{"valve", "ultron"},
	}
	scanner := NewScanner(pyOptions(root), nil)
	matches, _ := scanner.Search(q, nil)
	require.Len(t, matches, 1)
	assert.Equal(t, filepath.Join(root, "both.py"), matches[0].Path)
	assert.Equal(t, MatchTokens, matches[0].MatchType)
}

func TestSearchOrderingDeterministic(t *testing.T) {
	content := "x = \"" + logMessage + "\"\n"
	root := writeTree(t, map[string]string{
		"b.py": content + content,
		"a.py": content,
	})
	scanner := NewScanner(pyOptions(root), nil)

	matches, _ := scanner.Search(periodicIdleQuery(), nil)
	require.Len(t, matches, 3)
	assert.Equal(t, filepath.Join(root, "a.py"), matches[0].Path)
	assert.Equal(t, filepath.Join(root, "b.py"), matches[1].Path)
	assert.Equal(t, 1, matches[1].LineNo)
	assert.Equal(t, 2, matches[2].LineNo)
}

func TestSearchProgressCallback(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py": "pass\n",
		"b.py": "pass\n",
		"c.py": "pass\n",
	})
	opts := pyOptions(root)
	opts.Budget.ProgressEveryNFiles = 1
	scanner := NewScanner(opts, nil)

	var snapshots []ScanStats
	_, _ = scanner.Search(periodicIdleQuery(), func(s ScanStats) {
		snapshots = append(snapshots, s)
	})

	// At least the start and end notifications plus per-file ticks.
	require.GreaterOrEqual(t, len(snapshots), 2)
	assert.Zero(t, snapshots[0].FilesScanned)
	last := snapshots[len(snapshots)-1]
	assert.Greater(t, last.FilesScanned, 0)
	assert.GreaterOrEqual(t, last.ElapsedSeconds, 0.0)
}

func TestSearchProgressPanicSwallowed(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "x = \"" + logMessage + "\"\n"})
	scanner := NewScanner(pyOptions(root), nil)

	assert.NotPanics(t, func() {
		matches, _ := scanner.Search(periodicIdleQuery(), func(ScanStats) {
			panic("observer blew up")
		})
		assert.Len(t, matches, 1)
	})
}
