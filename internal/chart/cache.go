package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"streamystats/internal/watchtime"
)

const cacheExt = ".png"

type cachedFile struct {
	path    string
	modTime time.Time
	size    int64
}

// Cache keeps rendered charts as PNG files in a directory. Keys are derived
// from the chart contents, so an entry never goes stale; the least recently
// used files are pruned once the directory outgrows its limit.
type Cache struct {
	dir      string
	maxBytes int64
	mu       sync.Mutex
}

// NewCache creates dir if needed. maxBytes <= 0 disables pruning.
func NewCache(dir string, maxBytes int64) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chart cache directory: %w", err)
	}
	return &Cache{dir: dir, maxBytes: maxBytes}, nil
}

// CacheKey identifies the image Render would produce for points and cfg.
func CacheKey(points []watchtime.Point, cfg Config) string {
	h := xxhash.New()
	enc := json.NewEncoder(h)
	// Encoding into a hash cannot fail for these types
	_ = enc.Encode(cfg)
	_ = enc.Encode(points)
	return fmt.Sprintf("%016x", h.Sum64())
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+cacheExt)
}

// Get returns the cached chart for key and marks it as recently used.
func (c *Cache) Get(key string) ([]byte, bool) {
	p := c.path(key)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return data, true
}

// Put stores data under key, pruning first if the new file would push the
// cache past its limit. It returns the number of files pruned. A failed
// prune is reported in err but the chart is still stored.
func (c *Cache) Put(key string, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed, pruneErr := c.pruneIfNeeded(int64(len(data)))
	if pruneErr != nil {
		pruneErr = fmt.Errorf("failed to prune chart cache: %w", pruneErr)
	}

	if err := c.write(key, data); err != nil {
		return removed, errors.Join(pruneErr, err)
	}
	return removed, pruneErr
}

func (c *Cache) write(key string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store cache file: %w", err)
	}
	return nil
}

// collect lists the cached charts. Other files in the directory are ignored.
func (c *Cache) collect() ([]cachedFile, int64, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, 0, err
	}

	files := make([]cachedFile, 0, len(entries))
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), cacheExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, cachedFile{
			path:    filepath.Join(c.dir, e.Name()),
			modTime: info.ModTime(),
			size:    info.Size(),
		})
		total += info.Size()
	}
	return files, total, nil
}

// Size returns the total size of the cached charts in bytes.
func (c *Cache) Size() (int64, error) {
	_, total, err := c.collect()
	return total, err
}

// Prune removes the least recently used charts until the cache holds at
// most targetBytes. It returns the number of files removed and bytes freed.
func (c *Cache) Prune(targetBytes int64) (int, int64, error) {
	files, total, err := c.collect()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read cache directory: %w", err)
	}
	if total <= targetBytes {
		return 0, 0, nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	needToFree := total - targetBytes
	var removed int
	var freed int64
	for _, f := range files {
		if freed >= needToFree {
			break
		}
		if err := os.Remove(f.path); err != nil {
			continue
		}
		removed++
		freed += f.size
	}
	return removed, freed, nil
}

func (c *Cache) pruneIfNeeded(incoming int64) (int, error) {
	if c.maxBytes <= 0 {
		return 0, nil
	}

	size, err := c.Size()
	if err != nil {
		return 0, err
	}
	if size+incoming <= c.maxBytes {
		return 0, nil
	}

	// Prune to half the limit so the next few writes don't prune again
	removed, _, err := c.Prune(c.maxBytes / 2)
	return removed, err
}
