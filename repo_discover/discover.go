package repo_discover

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Project marker files that make a directory look like a code root. .git is
// special-cased: it counts as a marker when it is a directory.
var markerFiles = []string{
	"setup.py",
	"pyproject.toml",
	"requirements.txt",
	"package.json",
	"pom.xml",
	"build.gradle",
	"CMakeLists.txt",
	"Makefile",
	".git",
}

var codeExts = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".java": {}, ".c": {}, ".cpp": {},
	".h": {}, ".hpp": {}, ".sh": {},
}

// DefaultExcludeDirs are directory names never descended into during
// discovery.
var DefaultExcludeDirs = []string{
	"node_modules", "dist", "build", "out", ".next", "venv", ".venv",
	"__pycache__", ".pytest_cache", ".mypy_cache", ".git", ".hg", ".svn",
	".idea", ".vscode",
}

const (
	defaultMaxDepth = 6
	candidateCap    = 200
	gitScore        = 100
	markerScore     = 20
	codeFileCap     = 50
)

// Candidate is one scored likely code root.
type Candidate struct {
	Path           string   `json:"path"`
	Score          int      `json:"score"`
	Git            bool     `json:"git"`
	Markers        []string `json:"markers"`
	CodeFilesHere  int      `json:"code_files_here"`
	TotalFilesHere int      `json:"total_files_here"`
}

// Progress reports discovery progress every 50 visited directories.
type Progress struct {
	DirsVisited int
	CurrentDir  string
}

// Options configure one discovery run.
type Options struct {
	MaxDepth       int
	ExcludeDirs    []string
	FollowSymlinks bool
	Progress       func(Progress)
}

// IsMassiveRoot refuses filesystem roots as scan bases; scanning them would
// walk the whole machine.
func IsMassiveRoot(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if abs == string(filepath.Separator) {
		return true
	}
	// Windows drive roots like C:\ or C:/.
	if len(abs) == 3 && abs[1] == ':' && (abs[2] == '\\' || abs[2] == '/') {
		return true
	}
	return false
}

// Discover walks the base paths breadth-first up to MaxDepth, scoring each
// directory by git presence, project markers and code-file density. It is
// strictly read-only and returns at most 200 candidates, best first.
func Discover(basePaths []string, opts Options) []Candidate {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	excludeNames := opts.ExcludeDirs
	if excludeNames == nil {
		excludeNames = DefaultExcludeDirs
	}
	exclude := make(map[string]struct{}, len(excludeNames))
	for _, d := range excludeNames {
		exclude[d] = struct{}{}
	}

	type queueItem struct {
		path  string
		depth int
	}
	var queue []queueItem
	for _, b := range basePaths {
		if b == "" {
			continue
		}
		abs, err := filepath.Abs(b)
		if err != nil {
			abs = b
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			continue
		}
		queue = append(queue, queueItem{path: abs})
	}

	visited := make(map[string]struct{})
	var candidates []Candidate
	visitedCount := 0

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if _, seen := visited[item.path]; seen {
			continue
		}
		visited[item.path] = struct{}{}

		visitedCount++
		if opts.Progress != nil && (visitedCount == 1 || visitedCount%50 == 0) {
			notify(opts.Progress, Progress{DirsVisited: visitedCount, CurrentDir: item.path})
		}

		entries, err := os.ReadDir(item.path)
		if err != nil {
			continue
		}

		if c := scoreDir(item.path, entries); c.Score > 0 {
			candidates = append(candidates, c)
		}

		if item.depth >= maxDepth {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := entry.Name()
			if _, skip := exclude[name]; skip {
				continue
			}
			child := filepath.Join(item.path, name)
			if !opts.FollowSymlinks {
				if info, err := os.Lstat(child); err != nil || info.Mode()&os.ModeSymlink != 0 {
					continue
				}
			}
			queue = append(queue, queueItem{path: child, depth: item.depth + 1})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Path < candidates[j].Path
	})
	if len(candidates) > candidateCap {
		candidates = candidates[:candidateCap]
	}
	return candidates
}

func scoreDir(dirpath string, entries []os.DirEntry) Candidate {
	byName := make(map[string]os.DirEntry, len(entries))
	for _, e := range entries {
		byName[e.Name()] = e
	}

	git := false
	if e, ok := byName[".git"]; ok && e.IsDir() {
		git = true
	}

	var markers []string
	for _, m := range markerFiles {
		e, ok := byName[m]
		if !ok {
			continue
		}
		if m == ".git" {
			if e.IsDir() {
				markers = append(markers, m)
			}
			continue
		}
		if !e.IsDir() {
			markers = append(markers, m)
		}
	}

	codeHere, totalHere := 0, 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		totalHere++
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if _, ok := codeExts[ext]; ok {
			codeHere++
		}
	}

	score := 0
	if git {
		score += gitScore
	}
	score += markerScore * len(markers)
	if codeHere > codeFileCap {
		score += codeFileCap
	} else {
		score += codeHere
	}

	return Candidate{
		Path:           dirpath,
		Score:          score,
		Git:            git,
		Markers:        markers,
		CodeFilesHere:  codeHere,
		TotalFilesHere: totalHere,
	}
}

func notify(cb func(Progress), p Progress) {
	defer func() {
		_ = recover()
	}()
	cb(p)
}
