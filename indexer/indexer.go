package indexer

import (
	"os"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/printware/loghound/code_search"
	"github.com/printware/loghound/utils"
)

const defaultProgressEveryNFiles = 100

// Options configure one indexing run.
type Options struct {
	Roots               []string
	IncludeExt          []string
	ExcludeDirs         []string
	MaxFileBytes        int64
	ProgressEveryNFiles int
}

// ProgressFunc observes indexing progress with a stats snapshot. Panics in
// the callback are swallowed.
type ProgressFunc func(RunStats)

// Indexer builds an IndexArtifact from a source tree: every function
// definition becomes a chunk, every statically extractable error literal is
// indexed by its normalized message.
type Indexer struct {
	opts   Options
	parser *sitter.Parser
}

// New creates an indexer for the given options.
func New(opts Options) *Indexer {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = code_search.DefaultMaxFileBytes
	}
	if opts.ProgressEveryNFiles <= 0 {
		opts.ProgressEveryNFiles = defaultProgressEveryNFiles
	}
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	return &Indexer{opts: opts, parser: parser}
}

// Run walks the configured roots, parses every candidate file and returns
// the completed artifact. Per-file failures are counted, never fatal.
func (ix *Indexer) Run(progress ProgressFunc) (*IndexArtifact, error) {
	start := time.Now()
	artifact := &IndexArtifact{
		SchemaVersion: SchemaVersion,
		CreatedAt:     time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		ErrorIndex:    make(map[string][]ErrorRef),
	}

	files := code_search.ListFiles(ix.opts.Roots, ix.opts.IncludeExt,
		ix.opts.ExcludeDirs, false, ix.opts.MaxFileBytes, nil)

	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			artifact.Stats.FilesFailed++
			continue
		}
		if !ix.indexFile(artifact, path, raw) {
			artifact.Stats.FilesFailed++
			continue
		}
		artifact.Stats.FilesProcessed++

		if progress != nil && artifact.Stats.FilesProcessed%ix.opts.ProgressEveryNFiles == 0 {
			notifyProgress(progress, artifact.Stats)
		}
	}

	artifact.Stats.ElapsedSeconds = time.Since(start).Seconds()
	artifact.TotalChunks = len(artifact.Chunks)
	artifact.TotalErrors = artifact.Stats.ErrorsFound

	if progress != nil {
		notifyProgress(progress, artifact.Stats)
	}
	return artifact, nil
}

// walkItem carries the enclosing class name and the comment anchor through
// the explicit syntax-tree walk.
type walkItem struct {
	node          *sitter.Node
	className     string
	commentAnchor int // line row of a wrapping decorated_definition, or -1
}

// indexFile parses one source file and appends its function chunks. The
// syntax tree is walked with an explicit stack, pushing children in reverse
// so chunks come out in document order.
func (ix *Indexer) indexFile(artifact *IndexArtifact, path string, raw []byte) bool {
	source := []byte(utils.DecodeLossy(raw))
	lines := utils.SplitLinesLossy(source)

	tree := ix.parser.Parse(nil, source)
	if tree == nil {
		return false
	}
	defer tree.Close()

	stack := []walkItem{{node: tree.RootNode(), className: "", commentAnchor: -1}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := it.node

		switch n.Type() {
		case "decorated_definition":
			// The wrapped definition keeps the decorated start as its
			// comment anchor so decorators do not cut the comment off.
			if def := n.ChildByFieldName("definition"); def != nil {
				stack = append(stack, walkItem{
					node:          def,
					className:     it.className,
					commentAnchor: int(n.StartPoint().Row),
				})
			}

		case "function_definition":
			anchor := int(n.StartPoint().Row)
			if it.commentAnchor >= 0 {
				anchor = it.commentAnchor
			}
			chunk := buildChunk(path, n, source, lines, it.className, anchor)
			artifact.Chunks = append(artifact.Chunks, chunk)
			artifact.Stats.FunctionsFound++
			indexChunkErrors(artifact, chunk)

			// Nested definitions become chunks of their own; they keep
			// the class context, not the function name.
			stack = pushChildren(stack, n, it.className)

		case "class_definition":
			className := it.className
			if name := n.ChildByFieldName("name"); name != nil {
				className = name.Content(source)
			}
			stack = pushChildren(stack, n, className)

		default:
			stack = pushChildren(stack, n, it.className)
		}
	}
	return true
}

// pushChildren appends n's named children in reverse so the LIFO stack
// visits them in document order.
func pushChildren(stack []walkItem, n *sitter.Node, className string) []walkItem {
	count := int(n.NamedChildCount())
	for i := count - 1; i >= 0; i-- {
		stack = append(stack, walkItem{
			node:          n.NamedChild(i),
			className:     className,
			commentAnchor: -1,
		})
	}
	return stack
}

// indexChunkErrors folds the chunk's error literals into the artifact's
// error index, keyed by the normalized message. The original message is
// kept alongside for exact display.
func indexChunkErrors(artifact *IndexArtifact, chunk IndexChunk) {
	for _, em := range chunk.ErrorMessages {
		if em.Message == "" {
			continue
		}
		key := NormalizeErrorKey(em.Message)
		artifact.ErrorIndex[key] = append(artifact.ErrorIndex[key], ErrorRef{
			ChunkID:         chunk.ChunkID,
			OriginalMessage: em.Message,
			LogLevel:        em.LogLevel,
			SourceType:      em.SourceType,
		})
		artifact.Stats.ErrorsFound++
	}
}

func notifyProgress(progress ProgressFunc, stats RunStats) {
	defer func() {
		_ = recover()
	}()
	progress(stats)
}
