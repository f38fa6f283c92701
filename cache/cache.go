package cache

import (
	"fmt"
	"sync"

	"github.com/gogpu/atlasmap/gpucore"
	"github.com/gogpu/atlasmap/tile"
)

// Default configuration constants.
const (
	// DefaultBudgetMB is the default memory budget of a cache (128 MB).
	DefaultBudgetMB = 128

	// DefaultMinRetained is the default number of entries eviction never
	// goes below.
	DefaultMinRetained = 16
)

// Tile is a GPU-resident tile texture owned by the cache.
type Tile struct {
	// Texture is the texture holding the tile. For atlas-packed tiles it is
	// the shared atlas texture. InvalidID marks a tile the provider reported
	// as unavailable.
	Texture gpucore.TextureID

	// UsedBytes is the approximate GPU memory charged to this tile.
	UsedBytes uint64

	// AtlasPool identifies the atlas pool the slot belongs to.
	AtlasPool int

	// AtlasSlot is the slot index inside the atlas texture, or a negative
	// value for a standalone full-size texture.
	AtlasSlot int
}

// IsAtlasPacked reports whether the tile lives in an atlas slot.
func (t Tile) IsAtlasPacked() bool {
	return t.AtlasSlot >= 0
}

// IsEmpty reports whether the tile carries no texture.
func (t Tile) IsEmpty() bool {
	return t.Texture == gpucore.InvalidID
}

// Key identifies a cached tile.
type Key struct {
	Zoom tile.Zoom
	ID   tile.ID
}

// EvictFunc is called for every entry leaving the cache, outside the
// cache lock.
type EvictFunc func(key Key, t Tile)

// Config configures a TileZoomCache.
type Config struct {
	// BudgetBytes is the memory budget. Zero means unlimited.
	BudgetBytes uint64

	// MinRetained is the entry count below which eviction stops even when
	// the cache is over budget. Oversized entries ignore it.
	MinRetained int

	// OnEvict is called for entries removed by eviction, Remove, RemoveIf,
	// Purge and replacement by Insert.
	OnEvict EvictFunc
}

// DefaultConfig returns a configuration with DefaultBudgetMB and
// DefaultMinRetained.
func DefaultConfig() Config {
	return Config{
		BudgetBytes: DefaultBudgetMB * 1024 * 1024,
		MinRetained: DefaultMinRetained,
	}
}

// Stats contains cache statistics.
type Stats struct {
	Entries     int
	UsedBytes   uint64
	BudgetBytes uint64
	Hits        uint64
	Misses      uint64
	Inserts     uint64
	Evictions   uint64
}

// Utilization returns the used share of the budget (0 when unlimited).
func (s Stats) Utilization() float64 {
	if s.BudgetBytes == 0 {
		return 0
	}
	return float64(s.UsedBytes) / float64(s.BudgetBytes)
}

// String returns a human-readable string of cache stats.
func (s Stats) String() string {
	return fmt.Sprintf("TileCache[%d tiles, %.1f%% used, %d/%d KB, %d hits, %d misses, %d evictions]",
		s.Entries,
		s.Utilization()*100,
		s.UsedBytes/1024,
		s.BudgetBytes/1024,
		s.Hits,
		s.Misses,
		s.Evictions)
}

type entry struct {
	tile      Tile
	node      *lruNode[Key]
	oversized bool
}

// TileZoomCache is a memory-bounded LRU cache of tile textures keyed by
// zoom and tile ID.
//
// Entries are kept in one bucket per zoom level and ordered on a single
// recency list shared by all zooms. When the sum of UsedBytes exceeds the
// budget, least recently used entries are evicted until the cache is under
// budget or holds MinRetained entries. An entry larger than the whole budget
// is accepted and evicted by the next Get or Insert.
//
// TileZoomCache is safe for concurrent use.
type TileZoomCache struct {
	mu        sync.Mutex
	buckets   [tile.ZoomLevels]map[tile.ID]*entry
	lru       lruList[Key]
	used      uint64
	count     int
	oversized []Key

	budget      uint64
	minRetained int
	onEvict     EvictFunc

	hits      uint64
	misses    uint64
	inserts   uint64
	evictions uint64
}

// New creates a cache. A negative MinRetained is treated as zero.
func New(cfg Config) *TileZoomCache {
	c := &TileZoomCache{
		budget:      cfg.BudgetBytes,
		minRetained: max(cfg.MinRetained, 0),
		onEvict:     cfg.OnEvict,
	}
	for i := range c.buckets {
		c.buckets[i] = make(map[tile.ID]*entry)
	}
	return c
}

// Get returns the tile cached for (zoom, id) and marks it recently used.
// Oversized entries other than the one returned are evicted.
func (c *TileZoomCache) Get(zoom tile.Zoom, id tile.ID) (Tile, bool) {
	c.mu.Lock()
	var t Tile
	e, ok := c.bucket(zoom)[id]
	if ok {
		c.lru.MoveToFront(e.node)
		t = e.tile
		c.hits++
	} else {
		c.misses++
	}
	evicted := c.evictOversizedLocked(e)
	c.mu.Unlock()

	c.notify(evicted)
	return t, ok
}

// Contains reports whether (zoom, id) is cached without touching recency or
// statistics.
func (c *TileZoomCache) Contains(zoom tile.Zoom, id tile.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.bucket(zoom)[id]
	return ok
}

// Insert adds or replaces the tile for (zoom, id) and evicts entries if the
// cache went over budget. A replaced tile is passed to OnEvict unless it
// refers to the same texture slot.
func (c *TileZoomCache) Insert(zoom tile.Zoom, id tile.ID, t Tile) {
	key := Key{Zoom: zoom, ID: id}

	c.mu.Lock()
	var evicted []evictedEntry
	b := c.bucket(zoom)
	if old, ok := b[id]; ok {
		c.unlinkLocked(key, old)
		if old.tile != t {
			evicted = append(evicted, evictedEntry{key, old.tile})
		}
	}

	e := &entry{tile: t, node: c.lru.PushFront(key)}
	b[id] = e
	c.used += t.UsedBytes
	c.count++
	c.inserts++

	evicted = append(evicted, c.evictOversizedLocked(e)...)
	if c.budget > 0 && t.UsedBytes > c.budget {
		e.oversized = true
		c.oversized = append(c.oversized, key)
	}
	evicted = append(evicted, c.evictLocked(e)...)
	c.mu.Unlock()

	c.notify(evicted)
}

// Remove deletes the entry for (zoom, id). It reports whether it existed.
func (c *TileZoomCache) Remove(zoom tile.Zoom, id tile.ID) bool {
	key := Key{Zoom: zoom, ID: id}

	c.mu.Lock()
	e, ok := c.bucket(zoom)[id]
	if ok {
		c.unlinkLocked(key, e)
	}
	c.mu.Unlock()

	if ok && c.onEvict != nil {
		c.onEvict(key, e.tile)
	}
	return ok
}

// RemoveIf deletes every entry for which fn returns true and returns the
// number of removed entries. fn is called with the cache locked and must not
// call back into the cache.
func (c *TileZoomCache) RemoveIf(fn func(key Key, t Tile) bool) int {
	c.mu.Lock()
	var removed []evictedEntry
	for z := range c.buckets {
		for id, e := range c.buckets[z] {
			key := Key{Zoom: tile.Zoom(z), ID: id}
			if fn(key, e.tile) {
				c.unlinkLocked(key, e)
				removed = append(removed, evictedEntry{key, e.tile})
			}
		}
	}
	c.mu.Unlock()

	c.notify(removed)
	return len(removed)
}

// Purge removes all entries.
func (c *TileZoomCache) Purge() {
	c.mu.Lock()
	var removed []evictedEntry
	if c.onEvict != nil {
		removed = make([]evictedEntry, 0, c.count)
		for z := range c.buckets {
			for id, e := range c.buckets[z] {
				removed = append(removed, evictedEntry{Key{Zoom: tile.Zoom(z), ID: id}, e.tile})
			}
		}
	}
	for z := range c.buckets {
		clear(c.buckets[z])
	}
	c.lru.Clear()
	c.oversized = c.oversized[:0]
	c.used = 0
	c.count = 0
	c.mu.Unlock()

	c.notify(removed)
}

// Len returns the number of cached tiles.
func (c *TileZoomCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// ZoomLen returns the number of cached tiles at one zoom level.
func (c *TileZoomCache) ZoomLen(zoom tile.Zoom) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bucket(zoom))
}

// UsedBytes returns the memory charged to cached tiles.
func (c *TileZoomCache) UsedBytes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Budget returns the configured memory budget.
func (c *TileZoomCache) Budget() uint64 {
	return c.budget
}

// Stats returns a snapshot of the cache statistics.
func (c *TileZoomCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:     c.count,
		UsedBytes:   c.used,
		BudgetBytes: c.budget,
		Hits:        c.hits,
		Misses:      c.misses,
		Inserts:     c.inserts,
		Evictions:   c.evictions,
	}
}

type evictedEntry struct {
	key  Key
	tile Tile
}

func (c *TileZoomCache) bucket(zoom tile.Zoom) map[tile.ID]*entry {
	if int(zoom) >= len(c.buckets) {
		zoom = tile.MaxZoom
	}
	return c.buckets[zoom]
}

// unlinkLocked removes e from its bucket, the recency list and the
// accounting.
func (c *TileZoomCache) unlinkLocked(key Key, e *entry) {
	delete(c.bucket(key.Zoom), key.ID)
	c.lru.Remove(e.node)
	c.used -= e.tile.UsedBytes
	c.count--
}

// evictOversizedLocked evicts entries marked oversized by an earlier
// Insert, except keep.
func (c *TileZoomCache) evictOversizedLocked(keep *entry) []evictedEntry {
	if len(c.oversized) == 0 {
		return nil
	}
	var evicted []evictedEntry
	remaining := c.oversized[:0]
	for _, key := range c.oversized {
		e, ok := c.bucket(key.Zoom)[key.ID]
		if !ok || !e.oversized {
			continue
		}
		if e == keep {
			remaining = append(remaining, key)
			continue
		}
		c.unlinkLocked(key, e)
		c.evictions++
		evicted = append(evicted, evictedEntry{key, e.tile})
	}
	c.oversized = remaining
	return evicted
}

// evictLocked walks the recency list from the oldest entry and evicts until
// the cache is under budget or at MinRetained. keep is never evicted.
func (c *TileZoomCache) evictLocked(keep *entry) []evictedEntry {
	if c.budget == 0 {
		return nil
	}
	var evicted []evictedEntry
	node := c.lru.Back()
	for node != nil && c.used > c.budget && c.count > c.minRetained {
		prev := node.prev
		e := c.bucket(node.key.Zoom)[node.key.ID]
		if e != keep {
			key := node.key
			c.unlinkLocked(key, e)
			c.evictions++
			evicted = append(evicted, evictedEntry{key, e.tile})
		}
		node = prev
	}
	return evicted
}

func (c *TileZoomCache) notify(entries []evictedEntry) {
	if c.onEvict == nil {
		return
	}
	for _, ev := range entries {
		c.onEvict(ev.key, ev.tile)
	}
}
