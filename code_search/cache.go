package code_search

import (
	"container/list"
	"os"
	"sync"
	"time"

	"github.com/printware/loghound/utils"
	"github.com/zeebo/xxh3"
)

// FileCache is a bounded, LRU-evicting cache of decoded file lines. It is
// passed by reference into the scanner and the enclosure extractor so the
// multi-pass search does not re-read the same files from disk. Entries are
// invalidated when the file's size or modification time changes.
type FileCache struct {
	maxEntries int

	mu      sync.Mutex
	order   *list.List
	entries map[uint64]*list.Element
}

type cacheEntry struct {
	key     uint64
	size    int64
	modTime time.Time
	lines   []string
}

// NewFileCache creates a cache holding at most maxEntries files.
func NewFileCache(maxEntries int) *FileCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &FileCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[uint64]*list.Element),
	}
}

// Lines returns the decoded, terminator-stripped lines of path, served from
// cache when the file is unchanged since it was last read.
func (c *FileCache) Lines(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	key := xxh3.HashString(path)

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		if entry.size == info.Size() && entry.modTime.Equal(info.ModTime()) {
			c.order.MoveToFront(el)
			lines := entry.lines
			c.mu.Unlock()
			return lines, nil
		}
		c.order.Remove(el)
		delete(c.entries, key)
	}
	c.mu.Unlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := utils.SplitLinesLossy(raw)

	c.mu.Lock()
	c.entries[key] = c.order.PushFront(&cacheEntry{
		key:     key,
		size:    info.Size(),
		modTime: info.ModTime(),
		lines:   lines,
	})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	c.mu.Unlock()

	return lines, nil
}

func readLinesDirect(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return utils.SplitLinesLossy(raw), nil
}

// Len reports the number of cached files.
func (c *FileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
