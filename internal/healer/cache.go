package healer

import "selector-healer/internal/entity"

// Cache is the Healing Cache: one entry per broken selector, evicted
// eagerly the moment its healed selector fails a revalidation probe.
// It belongs to exactly one Healer; there is no cross-instance sharing
// and no internal locking, matching the single-threaded cooperative
// model the Healer itself follows.
type Cache struct {
	entries map[string]entity.CacheEntry
	hits    int
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]entity.CacheEntry)}
}

func (c *Cache) Get(selector string) (entity.CacheEntry, bool) {
	entry, ok := c.entries[selector]

	return entry, ok
}

func (c *Cache) Set(selector string, entry entity.CacheEntry) {
	c.entries[selector] = entry
}

// Hit records a revalidated cache hit: bumps the entry's use-count
// and the cache's cumulative hit counter.
func (c *Cache) Hit(selector string) {
	entry, ok := c.entries[selector]
	if !ok {
		return
	}

	entry.UseCount++
	c.entries[selector] = entry
	c.hits++
}

func (c *Cache) Evict(selector string) {
	delete(c.entries, selector)
}

func (c *Cache) Clear() {
	c.entries = make(map[string]entity.CacheEntry)
	c.hits = 0
}

func (c *Cache) Stats() entity.CacheStats {
	return entity.CacheStats{
		Size:     len(c.entries),
		HitCount: c.hits,
	}
}
