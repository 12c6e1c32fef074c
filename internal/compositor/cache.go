package compositor

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize bounds the number of decoded layers kept in memory.
const DefaultCacheSize = 200

// Cache is a bounded LRU of decoded layer images shared by all workers.
// Concurrent misses on the same path decode once.
type Cache struct {
	fsys   fs.FS
	lru    *lru.Cache[string, image.Image]
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats is a snapshot of cache effectiveness.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Len    int   `json:"len"`
}

// NewCache creates a cache reading from fsys.
func NewCache(fsys fs.FS, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	l, err := lru.New[string, image.Image](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}
	return &Cache{fsys: fsys, lru: l}, nil
}

// Load returns the decoded image at path.
func (c *Cache) Load(path string) (image.Image, error) {
	if img, ok := c.lru.Get(path); ok {
		c.hits.Add(1)
		return img, nil
	}
	v, err, _ := c.group.Do(path, func() (any, error) {
		if img, ok := c.lru.Get(path); ok {
			return img, nil
		}
		c.misses.Add(1)
		f, err := c.fsys.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		c.lru.Add(path, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

// Stats reports hit and miss counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Len: c.lru.Len()}
}

// Purge drops every cached image.
func (c *Cache) Purge() { c.lru.Purge() }
