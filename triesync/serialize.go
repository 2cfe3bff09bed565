package triesync

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/attestate/leafsync/hash"
	"github.com/attestate/leafsync/trie"
)

// ErrNoDescriptors is returned when a message carries no nodes.
var ErrNoDescriptors = errors.New("no node descriptors")

// Descriptor is the wire form of trie.NodeDescriptor.
type Descriptor struct {
	Key  string `cbor:"key"`
	Hash string `cbor:"hash"`
	Node string `cbor:"node,omitempty"`
}

// Serialize converts descriptors to their wire form. The result is never nil.
func Serialize(nodes []trie.NodeDescriptor) ([]Descriptor, error) {
	rst := make([]Descriptor, 0, len(nodes))
	for i := range nodes {
		d := Descriptor{
			Key:  hex.EncodeToString(nodes[i].Key),
			Hash: nodes[i].Hash.Hex(),
		}
		if nodes[i].Node != nil {
			buf, err := trie.EncodeNode(nodes[i].Node)
			if err != nil {
				return nil, fmt.Errorf("encode node %s: %w", nodes[i].Hash.ShortString(), err)
			}
			d.Node = hex.EncodeToString(buf)
		}
		rst = append(rst, d)
	}
	return rst, nil
}

// Deserialize is the inverse of Serialize. It fails on an empty input and on
// the first descriptor that is malformed.
func Deserialize(descriptors []Descriptor) ([]trie.NodeDescriptor, error) {
	if len(descriptors) == 0 {
		return nil, ErrNoDescriptors
	}
	rst := make([]trie.NodeDescriptor, 0, len(descriptors))
	for i, d := range descriptors {
		nd, err := deserialize(d)
		if err != nil {
			return nil, fmt.Errorf("descriptor %d: %w", i, err)
		}
		rst = append(rst, nd)
	}
	return rst, nil
}

func deserialize(d Descriptor) (trie.NodeDescriptor, error) {
	var nd trie.NodeDescriptor
	key, err := hex.DecodeString(d.Key)
	if err != nil {
		return nd, fmt.Errorf("key: %w", err)
	}
	if len(key) == 0 || len(key) > trie.MaxDepth {
		return nd, fmt.Errorf("key length %d out of range", len(key))
	}
	for _, n := range key {
		if n >= trie.Radix {
			return nd, fmt.Errorf("key nibble %d out of range", n)
		}
	}
	h, err := hash.FromHex(d.Hash)
	if err != nil {
		return nd, fmt.Errorf("hash: %w", err)
	}
	nd.Key = key
	nd.Hash = h
	if d.Node == "" {
		return nd, nil
	}
	buf, err := hex.DecodeString(d.Node)
	if err != nil {
		return nd, fmt.Errorf("node: %w", err)
	}
	node, err := trie.DecodeNode(buf)
	if err != nil {
		return nd, fmt.Errorf("node: %w", err)
	}
	if _, ok := node.(*trie.Leaf); ok && node.Hash() != h {
		return nd, fmt.Errorf("leaf hash %s does not match %s", node.Hash().ShortString(), h.ShortString())
	}
	nd.Node = node
	return nd, nil
}
