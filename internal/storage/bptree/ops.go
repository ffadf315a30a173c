package bptree

import "github.com/jontk/ticketd/pkg/logging"

// childIndex returns the smallest i in [0,n.KeyCount] such that
// key <= n.Keys[i], or n.KeyCount if key is greater than every stored
// key (routing into the unbounded rightmost child). n.Children always
// has n.KeyCount+1 entries, so the result is always a valid index.
func (t *Tree[K, V]) childIndex(n *node[K, V], key K) int {
	for i := 0; i < n.KeyCount; i++ {
		if !t.keyLess(n.Keys[i], key) {
			return i
		}
	}
	return n.KeyCount
}

// locateChildIndex finds the slot of childID within parent.Children.
func (t *Tree[K, V]) locateChildIndex(parent *node[K, V], childID int64) int {
	for i, id := range parent.Children {
		if id == childID {
			return i
		}
	}
	return -1
}

func (t *Tree[K, V]) findLeafIndexNode(key K) (*node[K, V], error) {
	cur, err := t.readNode(t.rootID)
	if err != nil {
		return nil, err
	}
	for !cur.IsLeaf {
		i := t.childIndex(cur, key)
		child, err := t.readNode(cur.Children[i])
		if err != nil {
			return nil, err
		}
		cur = child
	}
	return cur, nil
}

// Find returns every value bagged under key, sorted ascending, per
// §4.5.2: descend to the owning leaf index node, pick the data page
// the separator keys route to, then follow next_block_id forward
// while the next page's leading key does not exceed the request.
func (t *Tree[K, V]) Find(key K) ([]V, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf, err := t.findLeafIndexNode(key)
	if err != nil {
		return nil, err
	}
	i := t.childIndex(leaf, key)
	pageID := leaf.Children[i]
	if pageID == nullID {
		return nil, nil
	}
	page, err := t.readPage(pageID)
	if err != nil {
		return nil, err
	}

	var result []V
	for idx, ek := range page.EntryKeys {
		if t.keyEqual(ek, key) {
			result = append(result, page.EntryVals[idx])
		}
	}
	cur := page
	for cur.NextBlockID != nullID {
		next, err := t.readPage(cur.NextBlockID)
		if err != nil {
			return nil, err
		}
		if len(next.EntryKeys) == 0 || t.keyLess(key, next.EntryKeys[0]) {
			break
		}
		found := false
		for idx, ek := range next.EntryKeys {
			if t.keyEqual(ek, key) {
				result = append(result, next.EntryVals[idx])
				found = true
			}
		}
		if !found {
			break
		}
		cur = next
	}
	return result, nil
}

func lastKey[K, V any](p *dataPage[K, V]) K {
	return p.EntryKeys[len(p.EntryKeys)-1]
}

// reparentChildren updates the ParentID of every child in ids to
// newParentID. isLeafLevel selects whether ids name data pages or
// index nodes.
func (t *Tree[K, V]) reparentChildren(ids []int64, newParentID int64, isLeafLevel bool) error {
	for _, id := range ids {
		if id == nullID {
			continue
		}
		if isLeafLevel {
			p, err := t.readPage(id)
			if err != nil {
				return err
			}
			p.ParentID = newParentID
			t.writePage(p)
		} else {
			n, err := t.readNode(id)
			if err != nil {
				return err
			}
			n.ParentID = newParentID
			t.writeNode(n)
		}
	}
	return nil
}

// insertChildSlot inserts a new (key,child) pair into parent at
// position i+1: parent.Children[i] is left unchanged, newChildID
// becomes parent.Children[i+1], and everything past it shifts right.
// This is the single operation used both when a data page splits
// (parent is a leaf index node) and when an index node splits
// (parent is an internal node) — see §4.5.3 step 3.
func (t *Tree[K, V]) insertChildSlot(parent *node[K, V], i int, newKey K, newChildID int64) error {
	keys := make([]K, 0, len(parent.Keys)+1)
	keys = append(keys, parent.Keys[:i]...)
	keys = append(keys, newKey)
	keys = append(keys, parent.Keys[i:]...)

	children := make([]int64, 0, len(parent.Children)+1)
	children = append(children, parent.Children[:i+1]...)
	children = append(children, newChildID)
	children = append(children, parent.Children[i+1:]...)

	parent.Keys = keys
	parent.Children = children
	parent.KeyCount = len(keys)
	t.writeNode(parent)

	if parent.KeyCount > t.n {
		return t.splitNode(parent)
	}
	return nil
}

// splitNode splits an overflowing index node (leaf index or internal)
// into two, promoting a separator key into the parent — or, if n is
// the root, growing the tree by one level (§4.5.3 step 4).
func (t *Tree[K, V]) splitNode(n *node[K, V]) error {
	if n.IsRoot {
		return t.splitRoot(n)
	}

	total := len(n.Children)
	leftChildCount := total / 2
	if leftChildCount < 1 {
		leftChildCount = 1
	}
	if leftChildCount > total-1 {
		leftChildCount = total - 1
	}
	promotedKey := n.Keys[leftChildCount-1]

	rightKeys := append([]K{}, n.Keys[leftChildCount:]...)
	rightChildren := append([]int64{}, n.Children[leftChildCount:]...)

	n.Keys = append([]K{}, n.Keys[:leftChildCount-1]...)
	n.Children = append([]int64{}, n.Children[:leftChildCount]...)
	n.KeyCount = len(n.Keys)

	right := &node[K, V]{ParentID: n.ParentID, IsLeaf: n.IsLeaf, IsRoot: false,
		KeyCount: len(rightKeys), Keys: rightKeys, Children: rightChildren}
	rightID, err := t.appendNode(right)
	if err != nil {
		return err
	}
	if err := t.reparentChildren(rightChildren, rightID, n.IsLeaf); err != nil {
		return err
	}
	t.writeNode(n)
	logging.LogStorageEvent(t.log, "split", "bptree-node",
		"nodeId", n.ID, "newNodeId", rightID, "leaf", n.IsLeaf).Debug("node split")

	parent, err := t.readNode(n.ParentID)
	if err != nil {
		return err
	}
	i := t.locateChildIndex(parent, n.ID)
	return t.insertChildSlot(parent, i, promotedKey, rightID)
}

// splitRoot grows the tree by one level: n (the root) is split into
// two fresh children, and n is overwritten in place to become the new
// internal root. Because n keeps its id, the persisted root pointer
// never needs to change.
func (t *Tree[K, V]) splitRoot(n *node[K, V]) error {
	total := len(n.Children)
	leftChildCount := total / 2
	if leftChildCount < 1 {
		leftChildCount = 1
	}
	if leftChildCount > total-1 {
		leftChildCount = total - 1
	}
	promotedKey := n.Keys[leftChildCount-1]

	leftKeys := append([]K{}, n.Keys[:leftChildCount-1]...)
	leftChildren := append([]int64{}, n.Children[:leftChildCount]...)
	rightKeys := append([]K{}, n.Keys[leftChildCount:]...)
	rightChildren := append([]int64{}, n.Children[leftChildCount:]...)

	wasLeaf := n.IsLeaf

	left := &node[K, V]{ParentID: n.ID, IsLeaf: wasLeaf, IsRoot: false,
		KeyCount: len(leftKeys), Keys: leftKeys, Children: leftChildren}
	leftID, err := t.appendNode(left)
	if err != nil {
		return err
	}
	right := &node[K, V]{ParentID: n.ID, IsLeaf: wasLeaf, IsRoot: false,
		KeyCount: len(rightKeys), Keys: rightKeys, Children: rightChildren}
	rightID, err := t.appendNode(right)
	if err != nil {
		return err
	}
	if err := t.reparentChildren(leftChildren, leftID, wasLeaf); err != nil {
		return err
	}
	if err := t.reparentChildren(rightChildren, rightID, wasLeaf); err != nil {
		return err
	}

	n.IsLeaf = false
	n.ParentID = nullID
	n.KeyCount = 1
	n.Keys = []K{promotedKey}
	n.Children = []int64{leftID, rightID}
	t.writeNode(n)
	logging.LogStorageEvent(t.log, "split", "bptree-root",
		"rootId", n.ID, "leftId", leftID, "rightId", rightID).Debug("root split, tree grew one level")
	return nil
}

// dropChildSlot removes parent.Children[i+1] and parent.Keys[i] in
// place: the child at i absorbed the child at i+1 (via merge), and
// the key that used to bound slot i+1 becomes the new bound for slot
// i (or the new unbounded-last sentinel, if i+1 was the last slot).
func dropChildSlot[K, V any](parent *node[K, V], i int) {
	keys := make([]K, 0, len(parent.Keys)-1)
	keys = append(keys, parent.Keys[:i]...)
	keys = append(keys, parent.Keys[i+1:]...)

	children := make([]int64, 0, len(parent.Children)-1)
	children = append(children, parent.Children[:i+1]...)
	children = append(children, parent.Children[i+2:]...)

	parent.Keys = keys
	parent.Children = children
	parent.KeyCount = len(keys)
}

// dropChildSlotAndPropagate drops a slot from parent (see
// dropChildSlot) and, if that leaves parent underfull, rebalances or
// shrinks it per §4.5.4 step 4.
func (t *Tree[K, V]) dropChildSlotAndPropagate(parent *node[K, V], i int) error {
	dropChildSlot(parent, i)

	if parent.IsRoot {
		if parent.KeyCount == 0 {
			survivingID := parent.Children[0]
			surviving, err := t.readNode(survivingID)
			if err != nil {
				return err
			}
			surviving.IsRoot = true
			surviving.ParentID = nullID
			t.writeNode(surviving)
			t.rootID = survivingID
			return t.nodeFile.WriteInfo(1, int32(survivingID))
		}
		t.writeNode(parent)
		return nil
	}
	t.writeNode(parent)
	if parent.KeyCount <= t.n/3 {
		return t.rebalanceNode(parent)
	}
	return nil
}

// rebalanceNode restores an underfull index node (leaf index or
// internal) by borrowing from or merging with a sibling at the same
// parent, preferring the left sibling, falling back to the right
// (§4.5.4 step 3, §4.5.6).
func (t *Tree[K, V]) rebalanceNode(n *node[K, V]) error {
	if n.IsRoot {
		return nil
	}
	parent, err := t.readNode(n.ParentID)
	if err != nil {
		return err
	}
	j := t.locateChildIndex(parent, n.ID)
	if j < 0 {
		return nil
	}

	if j > 0 {
		left, err := t.readNode(parent.Children[j-1])
		if err != nil {
			return err
		}
		if left.KeyCount > t.n/2 {
			borrowedKey := left.Keys[len(left.Keys)-1]
			borrowedChild := left.Children[len(left.Children)-1]
			left.Keys = left.Keys[:len(left.Keys)-1]
			left.Children = left.Children[:len(left.Children)-1]
			left.KeyCount = len(left.Keys)

			n.Keys = append([]K{borrowedKey}, n.Keys...)
			n.Children = append([]int64{borrowedChild}, n.Children...)
			n.KeyCount = len(n.Keys)

			if err := t.reparentChildren([]int64{borrowedChild}, n.ID, n.IsLeaf); err != nil {
				return err
			}
			if len(left.Keys) > 0 {
				parent.Keys[j-1] = left.Keys[len(left.Keys)-1]
			} else {
				parent.Keys[j-1] = borrowedKey
			}
			t.writeNode(left)
			t.writeNode(n)
			t.writeNode(parent)
			return nil
		}

		if err := t.reparentChildren(n.Children, left.ID, n.IsLeaf); err != nil {
			return err
		}
		left.Keys = append(left.Keys, n.Keys...)
		left.Children = append(left.Children, n.Children...)
		left.KeyCount = len(left.Keys)
		t.writeNode(left)
		logging.LogStorageEvent(t.log, "merge", "bptree-node",
			"survivorId", left.ID, "mergedId", n.ID, "side", "left").Debug("node merged into left sibling")
		return t.dropChildSlotAndPropagate(parent, j-1)
	}

	if j+1 < len(parent.Children) {
		right, err := t.readNode(parent.Children[j+1])
		if err != nil {
			return err
		}
		if right.KeyCount > t.n/2 {
			borrowedKey := right.Keys[0]
			borrowedChild := right.Children[0]
			right.Keys = right.Keys[1:]
			right.Children = right.Children[1:]
			right.KeyCount = len(right.Keys)

			n.Keys = append(n.Keys, borrowedKey)
			n.Children = append(n.Children, borrowedChild)
			n.KeyCount = len(n.Keys)

			if err := t.reparentChildren([]int64{borrowedChild}, n.ID, n.IsLeaf); err != nil {
				return err
			}
			parent.Keys[j] = borrowedKey
			t.writeNode(right)
			t.writeNode(n)
			t.writeNode(parent)
			return nil
		}

		if err := t.reparentChildren(right.Children, n.ID, n.IsLeaf); err != nil {
			return err
		}
		n.Keys = append(n.Keys, right.Keys...)
		n.Children = append(n.Children, right.Children...)
		n.KeyCount = len(n.Keys)
		t.writeNode(n)
		logging.LogStorageEvent(t.log, "merge", "bptree-node",
			"survivorId", n.ID, "mergedId", right.ID, "side", "right").Debug("node merged with right sibling")
		return t.dropChildSlotAndPropagate(parent, j)
	}

	return nil
}

// Insert adds (key,value) to the bag. An exact (key,value) duplicate
// is rejected as a no-op (§4.5.3 step 1).
func (t *Tree[K, V]) Insert(key K, val V) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf, err := t.findLeafIndexNode(key)
	if err != nil {
		return err
	}
	i := t.childIndex(leaf, key)
	pageID := leaf.Children[i]

	var page *dataPage[K, V]
	if pageID == nullID {
		page = &dataPage[K, V]{ParentID: leaf.ID, NextBlockID: nullID}
		newID, err := t.appendPage(page)
		if err != nil {
			return err
		}
		leaf.Children[i] = newID
		pageID = newID
	} else {
		page, err = t.readPage(pageID)
		if err != nil {
			return err
		}
	}

	// When many values share one key, the key-only separator in leaf
	// ties every page in the run to the same bound, so childIndex
	// alone cannot tell which physical page (key,val) belongs in.
	// Walk the chain forward while the pair sorts at or after the
	// next page's first entry, so inserts land in value order and the
	// chain itself stays sorted for Find.
	for page.NextBlockID != nullID && i+1 < len(leaf.Children) && leaf.Children[i+1] == page.NextBlockID {
		next, err := t.readPage(page.NextBlockID)
		if err != nil {
			return err
		}
		if len(next.EntryKeys) == 0 || t.entryLess(key, val, next.EntryKeys[0], next.EntryVals[0]) {
			break
		}
		page = next
		i++
	}

	for idx := range page.EntryKeys {
		if t.keyEqual(page.EntryKeys[idx], key) && t.valEqual(page.EntryVals[idx], val) {
			return nil
		}
	}

	pos := 0
	for pos < len(page.EntryKeys) && t.entryLess(page.EntryKeys[pos], page.EntryVals[pos], key, val) {
		pos++
	}
	page.EntryKeys = append(page.EntryKeys, key)
	copy(page.EntryKeys[pos+1:], page.EntryKeys[pos:])
	page.EntryKeys[pos] = key
	page.EntryVals = append(page.EntryVals, val)
	copy(page.EntryVals[pos+1:], page.EntryVals[pos:])
	page.EntryVals[pos] = val
	page.KeyCount = len(page.EntryKeys)

	if page.KeyCount > t.m {
		mid := (t.m + 1) / 2
		newPage := &dataPage[K, V]{ParentID: leaf.ID, NextBlockID: page.NextBlockID,
			EntryKeys: append([]K{}, page.EntryKeys[mid:]...),
			EntryVals: append([]V{}, page.EntryVals[mid:]...)}
		newPage.KeyCount = len(newPage.EntryKeys)

		page.EntryKeys = page.EntryKeys[:mid]
		page.EntryVals = page.EntryVals[:mid]
		page.KeyCount = mid

		newID, err := t.appendPage(newPage)
		if err != nil {
			return err
		}
		page.NextBlockID = newID
		t.writePage(page)

		return t.insertChildSlot(leaf, i, lastKey(page), newID)
	}

	t.writePage(page)
	t.writeNode(leaf)
	return nil
}

// rebalanceDataPage restores an underfull data page by borrowing from
// or merging with its right sibling only — §9 preserves this
// right-only asymmetry as designed, rather than mirroring the
// left-preferred rule used at the index-node level.
func (t *Tree[K, V]) rebalanceDataPage(leaf *node[K, V], i int, page *dataPage[K, V]) error {
	if i >= leaf.KeyCount {
		// Rightmost slot: no right sibling to rebalance against.
		return nil
	}
	rightID := leaf.Children[i+1]
	if rightID == nullID {
		return nil
	}
	right, err := t.readPage(rightID)
	if err != nil {
		return err
	}

	if right.KeyCount > t.m/2 {
		bk, bv := right.EntryKeys[0], right.EntryVals[0]
		page.EntryKeys = append(page.EntryKeys, bk)
		page.EntryVals = append(page.EntryVals, bv)
		page.KeyCount++
		right.EntryKeys = right.EntryKeys[1:]
		right.EntryVals = right.EntryVals[1:]
		right.KeyCount--
		leaf.Keys[i] = bk
		t.writePage(page)
		t.writePage(right)
		t.writeNode(leaf)
		return nil
	}

	if page.KeyCount+right.KeyCount >= t.m {
		// Combined size would overflow: leave both pages underfull.
		return nil
	}

	page.EntryKeys = append(page.EntryKeys, right.EntryKeys...)
	page.EntryVals = append(page.EntryVals, right.EntryVals...)
	page.KeyCount = len(page.EntryKeys)
	page.NextBlockID = right.NextBlockID
	t.writePage(page)

	dropChildSlot(leaf, i)
	t.writeNode(leaf)

	if leaf.IsRoot {
		return nil
	}
	if leaf.KeyCount <= t.n/3 {
		return t.rebalanceNode(leaf)
	}
	return nil
}

// Remove deletes one occurrence of (key,value) from the bag. Removing
// a pair that is not present is a no-op (§4.5.4).
func (t *Tree[K, V]) Remove(key K, val V) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf, err := t.findLeafIndexNode(key)
	if err != nil {
		return err
	}
	i := t.childIndex(leaf, key)
	pageID := leaf.Children[i]
	if pageID == nullID {
		return nil
	}
	page, err := t.readPage(pageID)
	if err != nil {
		return err
	}

	pos := -1
	for idx := range page.EntryKeys {
		if t.keyEqual(page.EntryKeys[idx], key) && t.valEqual(page.EntryVals[idx], val) {
			pos = idx
			break
		}
	}
	if pos == -1 {
		// The pair may straddle into the next physical page; follow at
		// most one next_block_id hop, only while it still belongs to
		// this same leaf index node (§4.5.4).
		if page.NextBlockID != nullID && i+1 <= leaf.KeyCount && leaf.Children[i+1] == page.NextBlockID {
			next, err := t.readPage(page.NextBlockID)
			if err != nil {
				return err
			}
			for idx := range next.EntryKeys {
				if t.keyEqual(next.EntryKeys[idx], key) && t.valEqual(next.EntryVals[idx], val) {
					pos = idx
					page = next
					i++
					break
				}
			}
		}
		if pos == -1 {
			return nil
		}
	}

	page.EntryKeys = append(page.EntryKeys[:pos], page.EntryKeys[pos+1:]...)
	page.EntryVals = append(page.EntryVals[:pos], page.EntryVals[pos+1:]...)
	page.KeyCount = len(page.EntryKeys)
	t.writePage(page)

	if page.KeyCount <= t.m/3 {
		return t.rebalanceDataPage(leaf, i, page)
	}
	return nil
}
