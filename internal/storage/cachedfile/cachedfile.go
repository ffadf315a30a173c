// Package cachedfile composes a pagefile.Store with an LRU-K cache so
// that reads and writes of fixed-size records go through RAM first.
package cachedfile

import (
	"github.com/jontk/ticketd/internal/storage/lrukcache"
	"github.com/jontk/ticketd/internal/storage/pagefile"
	"github.com/jontk/ticketd/pkg/logging"
)

// RecordPtr constrains T so that *T implements pagefile.Record, letting
// Store operate on plain value types while the interface methods live
// on pointer receivers (the idiomatic Go shape for mutable records).
type RecordPtr[T any] interface {
	*T
	pagefile.Record
}

// Store is F wrapped by C: reads populate the cache on miss; Update
// marks the cache entry dirty and defers the physical write until
// eviction or Flush, while Append writes through to disk at once.
type Store[T any, PT RecordPtr[T]] struct {
	disk  *pagefile.Store
	cache *lrukcache.Cache[int64, T]
	log   logging.Logger
}

// Open opens (or creates) the backing pagefile and wraps it with an
// LRU-K cache of the given parameters.
func Open[T any, PT RecordPtr[T]](path string, infoLen, recordSize, cacheK, cacheCapacity int, log logging.Logger) (*Store[T, PT], error) {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	disk, err := pagefile.Open(path, infoLen, recordSize, log)
	if err != nil {
		return nil, err
	}
	s := &Store[T, PT]{disk: disk, log: log}
	s.cache = lrukcache.New[int64, T](cacheK, cacheCapacity, s.writeBack, log)
	return s, nil
}

func (s *Store[T, PT]) writeBack(offset int64, value T) {
	v := value
	if err := s.disk.Overwrite(offset, PT(&v)); err != nil {
		s.log.Error("cachedfile write-back failed", "offset", offset, "error", err)
	}
}

// GetInfo reads the n-th (1-indexed) header slot, bypassing the cache
// (header slots are not page-cached).
func (s *Store[T, PT]) GetInfo(n int) (int32, error) { return s.disk.GetInfo(n) }

// WriteInfo writes the n-th (1-indexed) header slot.
func (s *Store[T, PT]) WriteInfo(n int, v int32) error { return s.disk.WriteInfo(n, v) }

// IsEmpty reports whether the backing file holds only its header.
func (s *Store[T, PT]) IsEmpty() (bool, error) { return s.disk.IsEmpty() }

// Append writes t to disk immediately (so its offset is stable) and
// seeds the cache with a clean entry.
func (s *Store[T, PT]) Append(t T) (int64, error) {
	offset, err := s.disk.Append(PT(&t))
	if err != nil {
		return 0, err
	}
	s.cache.Put(offset, t, false)
	return offset, nil
}

// Read returns the record at offset, served from cache on hit.
func (s *Store[T, PT]) Read(offset int64) (T, error) {
	if v, ok := s.cache.Get(offset); ok {
		return v, nil
	}
	var v T
	if err := s.disk.Read(offset, PT(&v)); err != nil {
		var zero T
		return zero, err
	}
	s.cache.Put(offset, v, false)
	return v, nil
}

// Update installs t into the cache as dirty; the physical write is
// deferred to eviction or Flush.
func (s *Store[T, PT]) Update(offset int64, t T) {
	s.cache.Put(offset, t, true)
}

// Remove flushes the cache (to avoid resurrecting stale state after a
// later miss) then marks offset removed on disk.
func (s *Store[T, PT]) Remove(offset int64) error {
	s.cache.Flush()
	return s.disk.MarkRemoved(offset)
}

// Flush writes every dirty cache entry back to disk.
func (s *Store[T, PT]) Flush() { s.cache.Flush() }

// Close flushes and closes the backing file.
func (s *Store[T, PT]) Close() error {
	s.Flush()
	return s.disk.Close()
}

// Stats exposes cache residency/traffic counters.
func (s *Store[T, PT]) Stats() lrukcache.Stats { return s.cache.Stats() }
