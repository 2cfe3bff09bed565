package trie

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/attestate/leafsync/codec"
	"github.com/attestate/leafsync/hash"
)

const (
	// Radix is the number of children of a branch.
	Radix = 16
	// MaxDepth is the number of nibbles in a key. No node is deeper.
	MaxDepth = 2 * hash.Size
	// MaxValueSize bounds the size of a leaf value.
	MaxValueSize = 1 << 16
)

const (
	leafTag   byte = 0
	branchTag byte = 1
)

// ErrUnknownNode is returned when a payload does not start with a known tag.
var ErrUnknownNode = errors.New("unknown node type")

// Node is a decoded trie node payload.
type Node interface {
	codec.Encodable
	// Hash returns the hash of the canonical encoding of the node.
	Hash() hash.Hash32
	tag() byte
}

// Leaf holds a single record.
type Leaf struct {
	Key   hash.Hash32
	Value []byte
}

// Hash implements Node.
func (l *Leaf) Hash() hash.Hash32 { return hashNode(l) }

func (*Leaf) tag() byte { return leafTag }

// EncodeScale implements scale.Encodable.
func (l *Leaf) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteArray(enc, l.Key[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, l.Value, MaxValueSize)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (l *Leaf) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		n, err := scale.DecodeByteArray(dec, l.Key[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, MaxValueSize)
		if err != nil {
			return total, err
		}
		total += n
		l.Value = field
	}
	return total, nil
}

// Branch holds the hashes of up to Radix children. Empty slots are zero.
type Branch struct {
	Children [Radix]hash.Hash32
}

// Hash implements Node.
func (b *Branch) Hash() hash.Hash32 { return hashNode(b) }

func (*Branch) tag() byte { return branchTag }

// EncodeScale implements scale.Encodable.
func (b *Branch) EncodeScale(enc *scale.Encoder) (total int, err error) {
	for i := range b.Children {
		n, err := scale.EncodeByteArray(enc, b.Children[i][:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (b *Branch) DecodeScale(dec *scale.Decoder) (total int, err error) {
	for i := range b.Children {
		n, err := scale.DecodeByteArray(dec, b.Children[i][:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// EncodeNode returns the canonical encoding of a node: a type tag followed by
// the SCALE encoding of the node.
func EncodeNode(n Node) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(n.tag())
	if _, err := codec.EncodeTo(&buf, n); err != nil {
		return nil, fmt.Errorf("encode node: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeNode reverses EncodeNode.
func DecodeNode(buf []byte) (Node, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnknownNode)
	}
	switch buf[0] {
	case leafTag:
		var l Leaf
		if err := codec.Decode(buf[1:], &l); err != nil {
			return nil, err
		}
		return &l, nil
	case branchTag:
		var b Branch
		if err := codec.Decode(buf[1:], &b); err != nil {
			return nil, err
		}
		return &b, nil
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownNode, buf[0])
	}
}

func hashNode(n Node) hash.Hash32 {
	buf, err := EncodeNode(n)
	if err != nil {
		panic(fmt.Sprintf("BUG: encode node: %v", err))
	}
	return hash.Sum(buf)
}

// nibble returns the i-th 4 bit digit of key, most significant first.
func nibble(key hash.Hash32, i int) byte {
	b := key[i/2]
	if i%2 == 0 {
		return b >> 4
	}
	return b & 0x0f
}

// Path returns the first depth nibbles of key.
func Path(key hash.Hash32, depth int) []byte {
	path := make([]byte, depth)
	for i := range path {
		path[i] = nibble(key, i)
	}
	return path
}
