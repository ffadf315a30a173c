// Package lrukcache implements an LRU-K page cache keyed by file
// offset, with a write-back callback invoked synchronously on eviction
// and flush. Grounded on the mutex+map+access-scan eviction pattern the
// rest of this module's ambient stack uses for resource pools, adapted
// here to the K-history variant the storage layer requires.
package lrukcache

import (
	"sync"

	"github.com/jontk/ticketd/pkg/logging"
)

// WriteBack persists a dirty value back to the owning file store. It
// must touch only the backing store, never the cache that invoked it.
type WriteBack[K comparable, V any] func(key K, value V)

type entry[V any] struct {
	val   V
	dirty bool
	hist  []uint64 // ring buffer, length <= K
	head  int      // index of the oldest recorded timestamp
}

// Cache is an LRU-K cache; K and capacity are set by the caller of New
// (values below 1 are raised to 1).
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	k        int
	capacity int
	clock    uint64
	entries  map[K]*entry[V]
	writer   WriteBack[K, V]
	log      logging.Logger

	hits, misses, evictions int64
}

// New creates a Cache with the given K and capacity. writer may be nil
// only if no entry is ever marked dirty.
func New[K comparable, V any](k, capacity int, writer WriteBack[K, V], log logging.Logger) *Cache[K, V] {
	if k < 1 {
		k = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Cache[K, V]{
		k:        k,
		capacity: capacity,
		entries:  make(map[K]*entry[V]),
		writer:   writer,
		log:      log,
	}
}

func (c *Cache[K, V]) touch(e *entry[V]) {
	c.clock++
	if len(e.hist) < c.k {
		e.hist = append(e.hist, c.clock)
		return
	}
	e.hist[e.head] = c.clock
	e.head = (e.head + 1) % c.k
}

// kthAccess returns the K-th most recent access time: the oldest
// timestamp still held in the ring, or 0 if fewer than K accesses have
// been recorded (making such entries strictly evictable first).
func (c *Cache[K, V]) kthAccess(e *entry[V]) uint64 {
	if len(e.hist) < c.k {
		return 0
	}
	return e.hist[e.head]
}

// Contains reports whether key is currently resident, without affecting
// its access history.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Get returns the cached value for key, recording an access. The
// second return is false on a cache miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.touch(e)
	return e.val, true
}

// Put inserts or updates key's value, recording an access. If the
// cache is at capacity and key is new, an entry is evicted first.
func (c *Cache[K, V]) Put(key K, value V, dirty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		if len(c.entries) >= c.capacity {
			c.evictLocked()
		}
		e = &entry[V]{}
		c.entries[key] = e
	}
	e.val = value
	e.dirty = dirty
	c.touch(e)
}

// MarkDirty flags key's entry as dirty without changing its value or
// access history. A no-op if key is not resident.
func (c *Cache[K, V]) MarkDirty(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.dirty = true
	}
}

// evictLocked must be called with mu held and at least one entry present.
func (c *Cache[K, V]) evictLocked() {
	var victimKey K
	var victim *entry[V]
	minTime := ^uint64(0)
	for k, e := range c.entries {
		t := c.kthAccess(e)
		if victim == nil || t < minTime {
			minTime = t
			victimKey = k
			victim = e
		}
	}
	if victim == nil {
		return
	}
	if victim.dirty && c.writer != nil {
		c.writer(victimKey, victim.val)
	}
	delete(c.entries, victimKey)
	c.evictions++
	c.log.Debug("lrukcache evict", "dirty", victim.dirty)
}

// Flush writes every dirty entry back through writer and clears the
// dirty flag. Synchronous, as the cache has no background goroutine.
func (c *Cache[K, V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.dirty && c.writer != nil {
			c.writer(k, e.val)
		}
		e.dirty = false
	}
}

// Reset discards every entry without invoking the write-back callback.
// Used when the backing store itself is being wiped (e.g. a full
// "clean" reset of a component's files) so stale entries can't
// resurrect discarded state.
func (c *Cache[K, V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*entry[V])
}

// Stats reports basic residency/traffic counters.
type Stats struct {
	Size      int
	Capacity  int
	Hits      int64
	Misses    int64
	Evictions int64
}

func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:      len(c.entries),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
