// Package bptree implements a persistent, disk-backed B+-tree index
// over fixed-size records with bag (multi-value) semantics: a key may
// map to many values, duplicate (key,value) pairs are rejected, and
// find returns matches sorted ascending by value. Values live only in
// singly-linked leaf data pages; index nodes (internal and leaf) hold
// separator keys and page/child pointers. Both node and data files are
// paged through an LRU-K write-back cache (the CF composition from the
// storage layer), matching the cache's re-entrancy rule: the cache's
// own write-back callback touches only the backing pagefile.Store.
package bptree

import (
	"fmt"
	"sync"

	"github.com/jontk/ticketd/internal/storage/lrukcache"
	"github.com/jontk/ticketd/internal/storage/pagefile"
	"github.com/jontk/ticketd/pkg/logging"
)

// Tree is a generic (Key,Value) bag index persisted across a node file
// and a data file. N is the index-node fan-out; M is the data-page
// capacity. Merge thresholds are M/3 (data pages) and N/3 (index
// nodes), per §4.5.
type Tree[K any, V any] struct {
	mu sync.Mutex

	nodeFile *pagefile.Store
	dataFile *pagefile.Store

	nodeCache *lrukcache.Cache[int64, *node[K, V]]
	dataCache *lrukcache.Cache[int64, *dataPage[K, V]]

	keyCodec Codec[K]
	valCodec Codec[V]
	keyLess  func(a, b K) bool
	valLess  func(a, b V) bool
	maxKey   K

	n, m                         int
	nodeRecordSize, dataRecordSize int

	rootID int64
	log    logging.Logger
}

// Options configures a Tree instantiation.
type Options[K any, V any] struct {
	NodeFanout    int // N
	BlockCapacity int // M
	KeyCodec      Codec[K]
	ValueCodec    Codec[V]
	KeyLess       func(a, b K) bool
	ValueLess     func(a, b V) bool
	MaxKey        K
	CacheK        int
	CacheCapacity int
	Logger        logging.Logger
}

// Open opens or creates the node/data files at the given paths and
// returns a ready-to-use Tree.
func Open[K any, V any](nodePath, dataPath string, opts Options[K, V]) (*Tree[K, V], error) {
	log := opts.Logger
	if log == nil {
		log = logging.NoOpLogger{}
	}
	t := &Tree[K, V]{
		keyCodec: opts.KeyCodec,
		valCodec: opts.ValueCodec,
		keyLess:  opts.KeyLess,
		valLess:  opts.ValueLess,
		maxKey:   opts.MaxKey,
		n:        opts.NodeFanout,
		m:        opts.BlockCapacity,
		log:      log,
	}
	t.nodeRecordSize = nodeRecordSize(t.n, t.keyCodec.Size())
	t.dataRecordSize = dataRecordSize(t.m, t.keyCodec.Size(), t.valCodec.Size())

	nodeFile, err := pagefile.Open(nodePath, 2, t.nodeRecordSize, log)
	if err != nil {
		return nil, fmt.Errorf("bptree: open node file: %w", err)
	}
	dataFile, err := pagefile.Open(dataPath, 2, t.dataRecordSize, log)
	if err != nil {
		return nil, fmt.Errorf("bptree: open data file: %w", err)
	}
	t.nodeFile = nodeFile
	t.dataFile = dataFile

	t.nodeCache = lrukcache.New[int64, *node[K, V]](opts.CacheK, opts.CacheCapacity, t.writeBackNode, log)
	t.dataCache = lrukcache.New[int64, *dataPage[K, V]](opts.CacheK, opts.CacheCapacity, t.writeBackPage, log)

	if err := t.fileInit(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree[K, V]) writeBackNode(id int64, n *node[K, V]) {
	if err := t.nodeFile.Overwrite(id, &rawRecord{data: t.encodeNode(n)}); err != nil {
		t.log.Error("bptree node write-back failed", "id", id, "error", err)
	}
}

func (t *Tree[K, V]) writeBackPage(id int64, p *dataPage[K, V]) {
	if err := t.dataFile.Overwrite(id, &rawRecord{data: t.encodeDataPage(p)}); err != nil {
		t.log.Error("bptree data page write-back failed", "id", id, "error", err)
	}
}

func (t *Tree[K, V]) fileInit() error {
	empty, err := t.nodeFile.IsEmpty()
	if err != nil {
		return err
	}
	if empty {
		root := &node[K, V]{
			ParentID: nullID,
			IsLeaf:   true,
			IsRoot:   true,
			KeyCount: 0,
			Keys:     nil,
			Children: []int64{nullID},
		}
		id, err := t.appendNode(root)
		if err != nil {
			return err
		}
		t.rootID = id
		return t.nodeFile.WriteInfo(1, int32(id))
	}
	rootSlot, err := t.nodeFile.GetInfo(1)
	if err != nil {
		return err
	}
	t.rootID = int64(rootSlot)
	return nil
}

// --- node/page IO through the cache ---

func (t *Tree[K, V]) readNode(id int64) (*node[K, V], error) {
	if n, ok := t.nodeCache.Get(id); ok {
		return n, nil
	}
	var raw rawRecord
	if err := t.nodeFile.Read(id, &raw); err != nil {
		return nil, fmt.Errorf("bptree: read node %d: %w", id, err)
	}
	n := t.decodeNode(id, raw.data)
	t.nodeCache.Put(id, n, false)
	return n, nil
}

func (t *Tree[K, V]) appendNode(n *node[K, V]) (int64, error) {
	id, err := t.nodeFile.Append(&rawRecord{data: t.encodeNode(n)})
	if err != nil {
		return 0, err
	}
	n.ID = id
	t.nodeCache.Put(id, n, false)
	return id, nil
}

func (t *Tree[K, V]) writeNode(n *node[K, V]) {
	t.nodeCache.Put(n.ID, n, true)
}

func (t *Tree[K, V]) readPage(id int64) (*dataPage[K, V], error) {
	if p, ok := t.dataCache.Get(id); ok {
		return p, nil
	}
	var raw rawRecord
	if err := t.dataFile.Read(id, &raw); err != nil {
		return nil, fmt.Errorf("bptree: read data page %d: %w", id, err)
	}
	p := t.decodeDataPage(id, raw.data)
	t.dataCache.Put(id, p, false)
	return p, nil
}

func (t *Tree[K, V]) appendPage(p *dataPage[K, V]) (int64, error) {
	id, err := t.dataFile.Append(&rawRecord{data: t.encodeDataPage(p)})
	if err != nil {
		return 0, err
	}
	p.ID = id
	t.dataCache.Put(id, p, false)
	return id, nil
}

func (t *Tree[K, V]) writePage(p *dataPage[K, V]) {
	t.dataCache.Put(p.ID, p, true)
}

// Flush writes every dirty node/page back to disk. Call on drop, per §5.
func (t *Tree[K, V]) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodeCache.Flush()
	t.dataCache.Flush()
}

// Close flushes and closes both backing files.
func (t *Tree[K, V]) Close() error {
	t.Flush()
	if err := t.nodeFile.Close(); err != nil {
		return err
	}
	return t.dataFile.Close()
}

// IsEmpty reports whether the tree currently holds zero (key,value)
// entries. Used by U.addUser's first-user bootstrap check (§4.6).
func (t *Tree[K, V]) IsEmpty() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	root, err := t.readNode(t.rootID)
	if err != nil {
		return false, err
	}
	if !root.IsLeaf {
		return false, nil
	}
	for _, childID := range root.Children[:root.KeyCount+1] {
		if childID == nullID {
			continue
		}
		page, err := t.readPage(childID)
		if err != nil {
			return false, err
		}
		if page.KeyCount > 0 {
			return false, nil
		}
	}
	return true, nil
}

// Clear wipes both backing files and reinitializes an empty root,
// discarding cached state without writing it back. Used by a
// component's "clean" reset (§4.6 U.clean).
func (t *Tree[K, V]) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodeCache.Reset()
	t.dataCache.Reset()
	if err := t.nodeFile.Clear(); err != nil {
		return fmt.Errorf("bptree: clear node file: %w", err)
	}
	if err := t.dataFile.Clear(); err != nil {
		return fmt.Errorf("bptree: clear data file: %w", err)
	}
	return t.fileInit()
}

func (t *Tree[K, V]) entryLess(k1 K, v1 V, k2 K, v2 V) bool {
	if t.keyLess(k1, k2) {
		return true
	}
	if t.keyLess(k2, k1) {
		return false
	}
	return t.valLess(v1, v2)
}

func (t *Tree[K, V]) keyEqual(a, b K) bool {
	return !t.keyLess(a, b) && !t.keyLess(b, a)
}

func (t *Tree[K, V]) valEqual(a, b V) bool {
	return !t.valLess(a, b) && !t.valLess(b, a)
}
