package trie

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/attestate/leafsync/hash"
)

func build(t *testing.T, entries ...Entry) *Trie {
	t.Helper()
	tr := New(nil)
	require.NoError(t, tr.Load(entries))
	return tr
}

func paths(nodes []NodeDescriptor) [][]byte {
	rst := make([][]byte, 0, len(nodes))
	for _, n := range nodes {
		rst = append(rst, n.Key)
	}
	return rst
}

func TestDescend(t *testing.T) {
	a := Entry{Key: key(0, 1, 0), Value: []byte("a")}
	b := Entry{Key: key(0, 1, 1), Value: []byte("b")}
	c := Entry{Key: key(0, 2), Value: []byte("c")}
	view := build(t, a, b, c).Snapshot()

	level0 := Descend(view, 0, nil)
	require.Equal(t, [][]byte{{1}, {2}}, paths(level0))
	require.Nil(t, level0[0].Node)
	require.Nil(t, level0[0].Leaf())
	require.Equal(t, c.Key, level0[1].Leaf().Key)
	require.Equal(t, c.Value, level0[1].Leaf().Value)
	require.Equal(t, level0[1].Leaf().Hash(), level0[1].Hash)
	require.Equal(t, 0, level0[1].Level())

	level1 := Descend(view, 1, nil)
	require.Equal(t, [][]byte{{1, 0}, {1, 1}}, paths(level1))
	require.Equal(t, a.Key, level1[0].Leaf().Key)
	require.Equal(t, b.Key, level1[1].Leaf().Key)

	require.Empty(t, Descend(view, 2, nil))
	require.Empty(t, Descend(view, -1, nil))
	require.Empty(t, Descend(view, MaxDepth, nil))

	t.Run("exclude subtree", func(t *testing.T) {
		exclude := map[hash.Hash32]struct{}{level0[0].Hash: {}}
		require.Empty(t, Descend(view, 1, exclude))
		require.Equal(t, [][]byte{{2}}, paths(Descend(view, 0, exclude)))
	})
	t.Run("exclude leaf", func(t *testing.T) {
		exclude := map[hash.Hash32]struct{}{level1[0].Hash: {}}
		require.Equal(t, [][]byte{{1, 1}}, paths(Descend(view, 1, exclude)))
	})
	t.Run("exclude root", func(t *testing.T) {
		exclude := map[hash.Hash32]struct{}{view.Root(): {}}
		require.Empty(t, Descend(view, 0, exclude))
	})
}

func TestCompare(t *testing.T) {
	a := Entry{Key: key(0, 1, 0), Value: []byte("a")}
	b := Entry{Key: key(0, 1, 1), Value: []byte("b")}
	c := Entry{Key: key(0, 2), Value: []byte("c")}
	d := Entry{Key: key(0, 3), Value: []byte("d")}

	local := build(t, a, b, c).Snapshot()

	t.Run("identical", func(t *testing.T) {
		remote := Descend(build(t, a, b, c).Snapshot(), 0, nil)
		cmp := Compare(local, remote)
		require.True(t, cmp.Empty())
		require.Len(t, cmp.Match, 2)
	})
	t.Run("missing and mismatch", func(t *testing.T) {
		b2 := Entry{Key: key(0, 1, 2), Value: []byte("b2")}
		remote := Descend(build(t, a, b2, c, d).Snapshot(), 0, nil)
		cmp := Compare(local, remote)
		require.Equal(t, [][]byte{{1}}, paths(cmp.Mismatch))
		require.Equal(t, [][]byte{{2}}, paths(cmp.Match))
		require.Equal(t, [][]byte{{3}}, paths(cmp.Missing))
	})
	t.Run("leaf at different depth", func(t *testing.T) {
		// remote holds only a below nibble 1, so a is a leaf on level 0
		// there and on level 1 locally
		remote := Descend(build(t, a, c).Snapshot(), 0, nil)
		require.Equal(t, a.Key, remote[0].Leaf().Key)
		cmp := Compare(local, remote)
		require.True(t, cmp.Empty())
		require.Len(t, cmp.Match, 2)

		// and the other way around
		remote = Descend(build(t, a, b, d).Snapshot(), 1, nil)
		cmp = Compare(build(t, a, d).Snapshot(), remote)
		require.Equal(t, [][]byte{{1, 0}}, paths(cmp.Match))
		require.Equal(t, [][]byte{{1, 1}}, paths(cmp.Missing))
	})
	t.Run("same key different value", func(t *testing.T) {
		leaf := &Leaf{Key: c.Key, Value: []byte("forged")}
		remote := []NodeDescriptor{{Key: []byte{2}, Hash: leaf.Hash(), Node: leaf}}
		cmp := Compare(local, remote)
		require.Len(t, cmp.Mismatch, 1)
	})
	t.Run("invalid path", func(t *testing.T) {
		remote := []NodeDescriptor{{Key: []byte{16}, Hash: hash.Sum([]byte("x"))}}
		cmp := Compare(local, remote)
		require.Len(t, cmp.Missing, 1)
	})
}
