package bptree

import "encoding/binary"

const nullID int64 = -1

// node is an index node: internal or leaf-index. For a leaf index node,
// children[i] is a data-page id; for an internal node, children[i] is a
// child node id and keys[i] is the largest key under children[i].
type node[K any, V any] struct {
	ID       int64
	ParentID int64
	IsLeaf   bool
	IsRoot   bool
	KeyCount int
	Keys     []K
	Children []int64
}

// dataPage is a leaf data page: a sorted run of (key,value) bag entries,
// singly linked to the next page in key order.
type dataPage[K any, V any] struct {
	ID          int64
	ParentID    int64
	KeyCount    int
	NextBlockID int64
	EntryKeys   []K
	EntryVals   []V
}

// nodeRecordSize returns the fixed on-disk size of a node record for
// fan-out n (allowing one transient overflow slot plus the root's
// sentinel slot) and the given key codec.
func nodeRecordSize(n int, keySize int) int {
	slots := n + 2
	return 8 /*ParentID*/ + 1 /*IsLeaf*/ + 1 /*IsRoot*/ + 4 /*KeyCount*/ +
		slots*keySize + slots*8 /*Children int64*/
}

// dataRecordSize returns the fixed on-disk size of a data page record
// for capacity m and the given key/value codecs.
func dataRecordSize(m int, keySize, valSize int) int {
	slots := m + 2
	return 8 /*ParentID*/ + 4 /*KeyCount*/ + 8 /*NextBlockID*/ + slots*(keySize+valSize)
}

func (t *Tree[K, V]) encodeNode(n *node[K, V]) []byte {
	slots := t.n + 2
	buf := make([]byte, t.nodeRecordSize)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], uint64(n.ParentID))
	off += 8
	if n.IsLeaf {
		buf[off] = 1
	}
	off++
	if n.IsRoot {
		buf[off] = 1
	}
	off++
	binary.LittleEndian.PutUint32(buf[off:], uint32(n.KeyCount))
	off += 4
	keySize := t.keyCodec.Size()
	for i := 0; i < slots; i++ {
		switch {
		case i < len(n.Keys):
			t.keyCodec.Encode(n.Keys[i], buf[off:off+keySize])
		case n.IsRoot && i == n.KeyCount:
			// Sentinel max-key, always the root's last key (GLOSSARY).
			t.keyCodec.Encode(t.maxKey, buf[off:off+keySize])
		}
		off += keySize
	}
	for i := 0; i < slots; i++ {
		child := nullID
		if i < len(n.Children) {
			child = n.Children[i]
		}
		binary.LittleEndian.PutUint64(buf[off:], uint64(child))
		off += 8
	}
	return buf
}

func (t *Tree[K, V]) decodeNode(id int64, buf []byte) *node[K, V] {
	slots := t.n + 2
	n := &node[K, V]{ID: id}
	off := 0
	n.ParentID = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	n.IsLeaf = buf[off] == 1
	off++
	n.IsRoot = buf[off] == 1
	off++
	n.KeyCount = int(int32(binary.LittleEndian.Uint32(buf[off:])))
	off += 4
	keySize := t.keyCodec.Size()
	keys := make([]K, slots)
	for i := 0; i < slots; i++ {
		keys[i] = t.keyCodec.Decode(buf[off : off+keySize])
		off += keySize
	}
	children := make([]int64, slots)
	for i := 0; i < slots; i++ {
		children[i] = int64(binary.LittleEndian.Uint64(buf[off:]))
		off += 8
	}
	// Trim to logical length; root carries one extra sentinel key slot.
	keyLen := n.KeyCount
	childLen := n.KeyCount + 1
	if n.IsRoot && keyLen < slots {
		keyLen++
	}
	if keyLen > len(keys) {
		keyLen = len(keys)
	}
	if childLen > len(children) {
		childLen = len(children)
	}
	n.Keys = keys[:keyLen]
	n.Children = children[:childLen]
	return n
}

func (t *Tree[K, V]) encodeDataPage(p *dataPage[K, V]) []byte {
	slots := t.m + 2
	buf := make([]byte, t.dataRecordSize)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], uint64(p.ParentID))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(p.KeyCount))
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], uint64(p.NextBlockID))
	off += 8
	keySize := t.keyCodec.Size()
	valSize := t.valCodec.Size()
	for i := 0; i < slots; i++ {
		if i < len(p.EntryKeys) {
			t.keyCodec.Encode(p.EntryKeys[i], buf[off:off+keySize])
		}
		off += keySize
		if i < len(p.EntryVals) {
			t.valCodec.Encode(p.EntryVals[i], buf[off:off+valSize])
		}
		off += valSize
	}
	return buf
}

func (t *Tree[K, V]) decodeDataPage(id int64, buf []byte) *dataPage[K, V] {
	slots := t.m + 2
	p := &dataPage[K, V]{ID: id}
	off := 0
	p.ParentID = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	p.KeyCount = int(int32(binary.LittleEndian.Uint32(buf[off:])))
	off += 4
	p.NextBlockID = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	keySize := t.keyCodec.Size()
	valSize := t.valCodec.Size()
	keys := make([]K, slots)
	vals := make([]V, slots)
	for i := 0; i < slots; i++ {
		keys[i] = t.keyCodec.Decode(buf[off : off+keySize])
		off += keySize
		vals[i] = t.valCodec.Decode(buf[off : off+valSize])
		off += valSize
	}
	n := p.KeyCount
	if n > len(keys) {
		n = len(keys)
	}
	p.EntryKeys = keys[:n]
	p.EntryVals = vals[:n]
	return p
}
