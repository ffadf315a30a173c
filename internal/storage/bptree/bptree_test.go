package bptree

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestTree(t *testing.T) *Tree[uint64, int64] {
	t.Helper()
	dir := t.TempDir()
	tree, err := Open[uint64, int64](
		filepath.Join(dir, "nodes.db"),
		filepath.Join(dir, "data.db"),
		Options[uint64, int64]{
			NodeFanout:    4,
			BlockCapacity: 4,
			KeyCodec:      Uint64Codec{},
			ValueCodec:    Int64Codec{},
			KeyLess:       LessUint64,
			ValueLess:     func(a, b int64) bool { return a < b },
			MaxKey:        ^uint64(0),
			CacheK:        2,
			CacheCapacity: 16,
		})
	require.NoError(t, err)
	t.Cleanup(func() { tree.Close() })
	return tree
}

func TestBagInsertFindRemove(t *testing.T) {
	tree := openTestTree(t)
	a := uint64(hash("a"))
	b := uint64(hash("b"))

	require.NoError(t, tree.Insert(a, 1))
	require.NoError(t, tree.Insert(a, 2))
	require.NoError(t, tree.Insert(b, 3))
	require.NoError(t, tree.Insert(a, 1)) // exact duplicate: no-op

	got, err := tree.Find(a)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, got)

	require.NoError(t, tree.Remove(a, 2))
	got, err = tree.Find(a)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, got)

	got, err = tree.Find(b)
	require.NoError(t, err)
	require.Equal(t, []int64{3}, got)
}

func TestRemoveMissingIsNoOp(t *testing.T) {
	tree := openTestTree(t)
	require.NoError(t, tree.Insert(1, 10))
	require.NoError(t, tree.Remove(1, 99))

	got, err := tree.Find(1)
	require.NoError(t, err)
	require.Equal(t, []int64{10}, got)
}

func TestDataPageSplitsAndFindsAllValues(t *testing.T) {
	tree := openTestTree(t)
	for i := int64(0); i < 20; i++ {
		require.NoError(t, tree.Insert(42, i))
	}
	got, err := tree.Find(42)
	require.NoError(t, err)
	require.Len(t, got, 20)
	for i := int64(0); i < 20; i++ {
		require.Equal(t, i, got[i])
	}
}

func TestManyKeysSplitIndexNodes(t *testing.T) {
	tree := openTestTree(t)
	const n = 200
	for i := uint64(0); i < n; i++ {
		require.NoError(t, tree.Insert(i, int64(i)))
	}
	for i := uint64(0); i < n; i++ {
		got, err := tree.Find(i)
		require.NoError(t, err)
		require.Equal(t, []int64{int64(i)}, got, "key %d", i)
	}
}

func TestInsertRemoveManyPreservesRemainder(t *testing.T) {
	tree := openTestTree(t)
	const n = 100
	for i := uint64(0); i < n; i++ {
		require.NoError(t, tree.Insert(i, int64(i)))
	}
	for i := uint64(0); i < n; i += 2 {
		require.NoError(t, tree.Remove(i, int64(i)))
	}
	for i := uint64(0); i < n; i++ {
		got, err := tree.Find(i)
		require.NoError(t, err)
		if i%2 == 0 {
			require.Empty(t, got, "key %d should be gone", i)
		} else {
			require.Equal(t, []int64{int64(i)}, got, "key %d", i)
		}
	}
}

// hash is a tiny deterministic stand-in for the package's real string
// hashing (internal/hashkey), kept local to avoid a test-only
// cross-package dependency.
func hash(s string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}
