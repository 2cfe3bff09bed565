package triesync

import (
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/attestate/leafsync/hash"
	"github.com/attestate/leafsync/trie"
)

func testTrie(t *testing.T, n int) *trie.Trie {
	t.Helper()
	tr := trie.New(nil)
	for i := range n {
		value := []byte(fmt.Sprintf("value %d", i))
		require.NoError(t, tr.Put(hash.Sum(value), value))
	}
	return tr
}

func TestSerializeRoundTrip(t *testing.T) {
	tr := testTrie(t, 64)
	for level := range 3 {
		nodes := trie.Descend(tr.Snapshot(), level, nil)
		require.NotEmpty(t, nodes)

		descriptors, err := Serialize(nodes)
		require.NoError(t, err)
		require.Len(t, descriptors, len(nodes))
		for i, d := range descriptors {
			require.Equal(t, nodes[i].Leaf() != nil, d.Node != "")
		}

		decoded, err := Deserialize(descriptors)
		require.NoError(t, err)
		require.Equal(t, nodes, decoded)
	}
}

func TestSerializeEmpty(t *testing.T) {
	descriptors, err := Serialize(nil)
	require.NoError(t, err)
	require.NotNil(t, descriptors)
	require.Empty(t, descriptors)
}

func TestDeserializeEmpty(t *testing.T) {
	_, err := Deserialize(nil)
	require.ErrorIs(t, err, ErrNoDescriptors)
	_, err = Deserialize([]Descriptor{})
	require.ErrorIs(t, err, ErrNoDescriptors)
}

func TestDeserializeInvalid(t *testing.T) {
	leaf := &trie.Leaf{Key: hash.Sum([]byte("a")), Value: []byte("a")}
	other := &trie.Leaf{Key: hash.Sum([]byte("b")), Value: []byte("b")}
	buf, err := trie.EncodeNode(leaf)
	require.NoError(t, err)
	valid := Descriptor{
		Key:  "01",
		Hash: leaf.Hash().Hex(),
		Node: hex.EncodeToString(buf),
	}
	_, err = Deserialize([]Descriptor{valid})
	require.NoError(t, err)

	for _, tc := range []struct {
		desc   string
		modify func(*Descriptor)
	}{
		{"key not hex", func(d *Descriptor) { d.Key = "zz" }},
		{"empty key", func(d *Descriptor) { d.Key = "" }},
		{"nibble out of range", func(d *Descriptor) { d.Key = "0110" }},
		{"key too long", func(d *Descriptor) { d.Key = strings.Repeat("01", trie.MaxDepth+1) }},
		{"hash not hex", func(d *Descriptor) { d.Hash = "xyz" }},
		{"short hash", func(d *Descriptor) { d.Hash = "abcd" }},
		{"node not hex", func(d *Descriptor) { d.Node = "0g" }},
		{"unknown node", func(d *Descriptor) { d.Node = "ff" }},
		{"truncated node", func(d *Descriptor) { d.Node = d.Node[:len(d.Node)-2] }},
		{"leaf hash mismatch", func(d *Descriptor) { d.Hash = other.Hash().Hex() }},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			d := valid
			tc.modify(&d)
			_, err := Deserialize([]Descriptor{valid, d})
			require.Error(t, err)
		})
	}
}
