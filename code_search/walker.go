package code_search

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// walkFiles enumerates candidate files under roots, depth-first per root,
// recording every skipped entry in stats:
//
//   - directories are excluded by name at any depth, not by path
//   - symlinked files and directories are skipped unless follow is set
//   - files over maxFileBytes or without an included extension are skipped
//
// The returned slice is deterministic for a fixed tree so repeated passes
// visit files in the same order.
// ListFiles is the exported walk used by offline indexing; it shares the
// exact skip rules with the live scanner. stats may be nil.
func ListFiles(roots []string, includeExt []string, excludeDirs []string, follow bool, maxFileBytes int64, stats *ScanStats) []string {
	if stats == nil {
		stats = &ScanStats{}
	}
	return walkFiles(roots, includeExt, excludeDirs, follow, maxFileBytes, stats)
}

func walkFiles(roots []string, includeExt []string, excludeDirs []string, follow bool, maxFileBytes int64, stats *ScanStats) []string {
	exts := make([]string, 0, len(includeExt))
	for _, e := range includeExt {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, strings.ToLower(e))
	}

	excluded := make(map[string]struct{}, len(excludeDirs))
	for _, d := range excludeDirs {
		excluded[d] = struct{}{}
	}

	var files []string
	visited := make(map[string]struct{})

	// Symlinked directories (when followed) are appended as extra roots;
	// the visited set breaks cycles.
	pending := make([]string, 0, len(roots))
	for _, r := range roots {
		if r == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			abs = r
		}
		pending = append(pending, abs)
	}

	for len(pending) > 0 {
		root := pending[0]
		pending = pending[1:]

		// Resolve so symlinked roots are walked as their targets and
		// revisits are detected by real path.
		resolved, err := filepath.EvalSymlinks(root)
		if err != nil {
			resolved = root
		}
		if _, seen := visited[resolved]; seen {
			continue
		}
		visited[resolved] = struct{}{}
		root = resolved

		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}

		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				stats.FilesSkippedUnreadable++
				return nil
			}

			if d.IsDir() {
				if path != root {
					if _, ok := excluded[d.Name()]; ok {
						stats.DirsExcluded++
						return filepath.SkipDir
					}
				}
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 {
				if !follow {
					stats.FilesSkippedSymlink++
					return nil
				}
				target, err := os.Stat(path)
				if err != nil {
					stats.FilesSkippedUnreadable++
					return nil
				}
				if target.IsDir() {
					if _, ok := excluded[d.Name()]; !ok {
						pending = append(pending, path)
					}
					return nil
				}
			}

			if !hasIncludedExt(path, exts) {
				stats.FilesSkippedExt++
				return nil
			}

			fi, err := os.Stat(path)
			if err != nil {
				stats.FilesSkippedUnreadable++
				return nil
			}
			if fi.Size() > maxFileBytes {
				stats.FilesSkippedTooLarge++
				return nil
			}

			files = append(files, path)
			return nil
		})
	}

	return files
}

func hasIncludedExt(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	lower := strings.ToLower(path)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
