package oracle

import (
	"context"
	"crypto/sha256"
	"sync"
	"sync/atomic"
)

// DefaultCacheEntries is the default bound on memoized oracle verdicts.
const DefaultCacheEntries = 1 << 16

// Cached memoizes the verdicts of an inner oracle, keyed by the SHA-256 of
// the candidate text. Reduction workers frequently synthesize identical
// candidates (a lost race re-derives the same variant, delta partitions
// overlap), so memoization avoids re-running the slow predicate.
//
// Only sound for deterministic oracles; errors are never cached.
type Cached struct {
	inner      Oracle
	maxEntries int

	mu      sync.Mutex
	entries map[[sha256.Size]byte]*cacheEntry
	head    *cacheEntry // most recently used
	tail    *cacheEntry // least recently used

	hits   atomic.Int64
	misses atomic.Int64
}

// cacheEntry is a doubly-linked list node for LRU tracking.
type cacheEntry struct {
	key         [sha256.Size]byte
	interesting bool
	prev        *cacheEntry
	next        *cacheEntry
}

// NewCached wraps inner with a verdict cache bounded to maxEntries.
func NewCached(inner Oracle, maxEntries int) *Cached {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}

	return &Cached{
		inner:      inner,
		maxEntries: maxEntries,
		entries:    make(map[[sha256.Size]byte]*cacheEntry),
	}
}

// Test implements Oracle. The inner predicate runs outside the cache lock;
// two workers racing on the same unseen candidate may both evaluate it, and
// the second store is a harmless overwrite with the same verdict.
func (c *Cached) Test(ctx context.Context, source []byte) (bool, error) {
	key := sha256.Sum256(source)

	c.mu.Lock()

	if entry, ok := c.entries[key]; ok {
		c.moveToFront(entry)
		c.mu.Unlock()
		c.hits.Add(1)

		return entry.interesting, nil
	}

	c.mu.Unlock()
	c.misses.Add(1)

	interesting, err := c.inner.Test(ctx, source)
	if err != nil {
		return false, err
	}

	c.store(key, interesting)

	return interesting, nil
}

// CacheStats holds verdict cache performance counters.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}

	return float64(s.Hits) / float64(total)
}

// Stats returns a snapshot of the cache counters.
func (c *Cached) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: len(c.entries),
	}
}

func (c *Cached) store(key [sha256.Size]byte, interesting bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.interesting = interesting
		c.moveToFront(entry)

		return
	}

	for len(c.entries) >= c.maxEntries && c.tail != nil {
		evicted := c.tail
		c.removeFromList(evicted)
		delete(c.entries, evicted.key)
	}

	entry := &cacheEntry{key: key, interesting: interesting}
	c.entries[key] = entry
	c.addToFront(entry)
}

// moveToFront moves an entry to the front of the LRU list.
func (c *Cached) moveToFront(entry *cacheEntry) {
	if entry == c.head {
		return
	}

	c.removeFromList(entry)
	c.addToFront(entry)
}

// addToFront adds an entry to the front of the LRU list.
func (c *Cached) addToFront(entry *cacheEntry) {
	entry.prev = nil
	entry.next = c.head

	if c.head != nil {
		c.head.prev = entry
	}

	c.head = entry

	if c.tail == nil {
		c.tail = entry
	}
}

// removeFromList removes an entry from the LRU list.
func (c *Cached) removeFromList(entry *cacheEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		c.head = entry.next
	}

	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		c.tail = entry.prev
	}
}
