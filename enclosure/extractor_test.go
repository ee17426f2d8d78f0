package enclosure

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const moduleSource = `import logging

logger = logging.getLogger(__name__)

TOP_LEVEL = "module scope line"


# Runs the idle sweep against every registered valve.
# Called from the period scheduler only.
def do_periodic_idle(host, port):
    """Wait for the idle sweep to settle."""
    target = f"{host}:{port}"
    logger.error("PeriodicIdle: waitComplete for %s:Dyn-ultron:VALVE", target)
    return target


@retry(times=3)
@instrumented
async def do_periodic_idle_second(
    host,
    port,
    timeout=30,
):
    """Second sweep.

    Runs after the first sweep completes.
    """
    logger.error("PeriodicIdle: waitComplete for localhost:9210:Dyn-ultron:VALVE")
    await sleep(timeout)


class ValveController:
    """Drives valve state transitions."""

    def open_valve(self, valve_id):
        # flush before actuating
        self.flush()
        return self.actuate(valve_id)
`

func TestExtractSimpleFunction(t *testing.T) {
	path := writeSource(t, "module_a.py", moduleSource)
	ex := NewExtractor(nil)

	// Match on the logger.error line inside do_periodic_idle.
	res, err := ex.Extract(path, 13, 6)
	require.NoError(t, err)

	assert.Equal(t, TypeDef, res.EnclosureType)
	assert.Equal(t, "do_periodic_idle", res.Name)
	assert.True(t, res.ContainsMatch)
	assert.LessOrEqual(t, res.StartLine, 13)
	assert.GreaterOrEqual(t, res.EndLine, 13)
	assert.Contains(t, res.Block, "waitComplete")
	assert.Equal(t, "Wait for the idle sweep to settle.", res.Docstring)
	assert.Contains(t, res.LeadingComment, "idle sweep against every registered valve")
	assert.Empty(t, res.DecoratorLines)
}

func TestExtractAsyncDefWithDecorators(t *testing.T) {
	path := writeSource(t, "module_a.py", moduleSource)
	ex := NewExtractor(nil)

	// Match on the logger.error line inside do_periodic_idle_second.
	lines := strings.Split(moduleSource, "\n")
	matchLine := 0
	for i, l := range lines {
		if strings.Contains(l, "localhost:9210") {
			matchLine = i + 1
			break
		}
	}
	require.NotZero(t, matchLine)

	res, err := ex.Extract(path, matchLine, 6)
	require.NoError(t, err)

	assert.Equal(t, TypeAsyncDef, res.EnclosureType)
	assert.Equal(t, "do_periodic_idle_second", res.Name)
	assert.True(t, res.ContainsMatch)

	// Decorators are absorbed into the span, so the start line points at
	// the first decorator and the block text carries them.
	require.Len(t, res.DecoratorLines, 2)
	assert.Equal(t, "@retry(times=3)", strings.TrimSpace(res.DecoratorLines[0]))
	assert.Equal(t, "@instrumented", strings.TrimSpace(res.DecoratorLines[1]))
	assert.True(t, strings.HasPrefix(res.Block, "@retry"))

	// Multi-line signature is collapsed to one line.
	assert.Contains(t, res.Signature, "async def do_periodic_idle_second(")
	assert.Contains(t, res.Signature, "timeout=30,")

	// Multi-line docstring.
	assert.Contains(t, res.Docstring, "Second sweep.")
	assert.Contains(t, res.Docstring, "after the first sweep completes")
}

func TestExtractMethodPrefersNearestHeader(t *testing.T) {
	path := writeSource(t, "module_a.py", moduleSource)
	ex := NewExtractor(nil)

	lines := strings.Split(moduleSource, "\n")
	matchLine := 0
	for i, l := range lines {
		if strings.Contains(l, "self.flush()") {
			matchLine = i + 1
			break
		}
	}
	require.NotZero(t, matchLine)

	res, err := ex.Extract(path, matchLine, 6)
	require.NoError(t, err)
	assert.Equal(t, TypeDef, res.EnclosureType)
	assert.Equal(t, "open_valve", res.Name)
	assert.True(t, res.ContainsMatch)
}

func TestExtractSkipsNonContainingSibling(t *testing.T) {
	// The match sits at module level below a complete function. The
	// function above must be rejected because its span ends before the
	// match, yielding a degraded window result.
	src := `def helper():
    return 1


offender = "boom at module scope"
`
	path := writeSource(t, "sib.py", src)
	ex := NewExtractor(nil)

	res, err := ex.Extract(path, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, TypeWindow, res.EnclosureType)
	assert.False(t, res.ContainsMatch)
	assert.Empty(t, res.Name)
	assert.Contains(t, res.Block, "offender")
	assert.NotEmpty(t, res.Notes)
}

func TestExtractModuleFallbackWhenNoHeaderAbove(t *testing.T) {
	src := `import os

VALUE = os.environ["X"]
`
	path := writeSource(t, "flat.py", src)
	ex := NewExtractor(nil)

	res, err := ex.Extract(path, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, TypeModule, res.EnclosureType)
	assert.False(t, res.ContainsMatch)
	assert.Equal(t, 2, res.StartLine)
	assert.Equal(t, 3, res.EndLine)
}

func TestExtractClampsOutOfRangeLine(t *testing.T) {
	src := `def only():
    return "here"
`
	path := writeSource(t, "clamp.py", src)
	ex := NewExtractor(nil)

	res, err := ex.Extract(path, 999, 4)
	require.NoError(t, err)
	assert.Equal(t, "only", res.Name)
	assert.True(t, res.ContainsMatch)
}

func TestExtractEmptyFileErrors(t *testing.T) {
	path := writeSource(t, "empty.py", "")
	ex := NewExtractor(nil)

	_, err := ex.Extract(path, 1, 4)
	assert.Error(t, err)
}

func TestExtractUnreadableFileErrors(t *testing.T) {
	ex := NewExtractor(nil)
	_, err := ex.Extract(filepath.Join(t.TempDir(), "missing.py"), 1, 4)
	assert.Error(t, err)
}

func TestExtractEmptyDocstringStaysEmpty(t *testing.T) {
	// An empty one-line docstring must not swallow the body that follows it.
	src := `def stub_handler(event):
    """"""
    state = resolve(event)
    return state
`
	path := writeSource(t, "stub.py", src)
	ex := NewExtractor(nil)

	res, err := ex.Extract(path, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, "stub_handler", res.Name)
	assert.Empty(t, res.Docstring)
}

func TestExtractBlankAndCommentLinesStayInBody(t *testing.T) {
	src := `def spaced():
    a = 1

    # inner comment

    b = 2
    return a + b

outside = True
`
	path := writeSource(t, "spaced.py", src)
	ex := NewExtractor(nil)

	res, err := ex.Extract(path, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, "spaced", res.Name)
	assert.Equal(t, 1, res.StartLine)
	assert.Equal(t, 7, res.EndLine)
	assert.NotContains(t, res.Block, "outside")
}
