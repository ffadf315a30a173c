package lrukcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetMissThenHit(t *testing.T) {
	c := New[int, string](2, 4, nil, nil)
	_, ok := c.Get(1)
	require.False(t, ok)

	c.Put(1, "a", false)
	v, ok := c.Get(1)
	require.True(t, ok)
	require.Equal(t, "a", v)
}

func TestEvictsColdBeforeKHot(t *testing.T) {
	var written []int
	writer := func(k int, v string) { written = append(written, k) }
	c := New[int, string](2, 2, writer, nil)

	c.Put(1, "a", true)
	c.Get(1) // 2 accesses -> K-hot
	c.Put(2, "b", true)
	// key 2 has only 1 access (sub-K), key 1 has 2 (K-hot): inserting a
	// third key must evict the sub-K entry (key 2).
	c.Put(3, "c", true)

	require.Contains(t, written, 2)
	require.True(t, c.Contains(1))
	require.True(t, c.Contains(3))
	require.False(t, c.Contains(2))
}

func TestFlushWritesDirtyAndClears(t *testing.T) {
	var written []int
	writer := func(k int, v string) { written = append(written, k) }
	c := New[int, string](1, 4, writer, nil)

	c.Put(1, "a", true)
	c.Put(2, "b", false)
	c.Flush()

	require.ElementsMatch(t, []int{1}, written)

	stats := c.Stats()
	require.Equal(t, 2, stats.Size)
}

func TestMarkDirtyWithoutChangingHistory(t *testing.T) {
	var written []int
	writer := func(k int, v string) { written = append(written, k) }
	c := New[int, string](1, 4, writer, nil)

	c.Put(1, "a", false)
	c.MarkDirty(1)
	require.Len(t, c.entries[1].hist, 1, "MarkDirty must not record an access")
	c.Flush()
	require.Equal(t, []int{1}, written)
}
