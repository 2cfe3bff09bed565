// Package trie implements an append-only hexary Merkle Patricia trie keyed by
// 32 byte record ids.
//
// Only branch and leaf nodes exist. A leaf sits at the shallowest depth where
// the prefix of its key is unique among all keys, therefore the shape of the
// trie and its root hash depend only on the set of keys. The root is always a
// branch.
package trie

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/attestate/leafsync/hash"
)

var (
	// ErrConflict is returned when a key is put again with a different value.
	ErrConflict = errors.New("key exists with a different value")
	// ErrClosed is returned when a committed or reverted checkpoint is used.
	ErrClosed = errors.New("checkpoint closed")
)

// Entry is a key/value pair persisted by a Backend.
type Entry struct {
	Key   hash.Hash32
	Value []byte
}

// Backend persists leaves. WriteBatch must apply all entries or none.
type Backend interface {
	WriteBatch(entries []Entry) error
}

// Writer is the part of the trie that accepts records.
// Both Trie and Checkpoint implement it.
type Writer interface {
	Put(key hash.Hash32, value []byte) error
	Has(key hash.Hash32) bool
}

type memNode interface {
	hash() hash.Hash32
}

type memLeaf struct {
	leaf Leaf
	h    hash.Hash32
}

func (l *memLeaf) hash() hash.Hash32 { return l.h }

type memBranch struct {
	children [Radix]memNode
	h        hash.Hash32
}

func (b *memBranch) hash() hash.Hash32 { return b.h }

func (b *memBranch) seal() {
	var br Branch
	for i, child := range b.children {
		if child != nil {
			br.Children[i] = child.hash()
		}
	}
	b.h = br.Hash()
}

func newLeaf(key hash.Hash32, value []byte) *memLeaf {
	l := &memLeaf{leaf: Leaf{Key: key, Value: bytes.Clone(value)}}
	l.h = l.leaf.Hash()
	return l
}

var emptyRoot = func() *memBranch {
	b := &memBranch{}
	b.seal()
	return b
}()

// EmptyRoot is the root hash of a trie without leaves.
func EmptyRoot() hash.Hash32 {
	return emptyRoot.h
}

// insert adds leaf under n. depth is the number of nibbles on the path to n.
// It reports whether the key was not present yet.
func insert(n memNode, leaf *memLeaf, depth int) (memNode, bool, error) {
	switch n := n.(type) {
	case nil:
		return leaf, true, nil
	case *memLeaf:
		if n.leaf.Key == leaf.leaf.Key {
			if !bytes.Equal(n.leaf.Value, leaf.leaf.Value) {
				return n, false, fmt.Errorf("%w: %s", ErrConflict, leaf.leaf.Key)
			}
			return n, false, nil
		}
		split := &memBranch{}
		split.children[nibble(n.leaf.Key, depth)] = n
		return insertBranch(split, leaf, depth)
	case *memBranch:
		return insertBranch(n, leaf, depth)
	default:
		panic(fmt.Sprintf("BUG: unknown node %T", n))
	}
}

func insertBranch(b *memBranch, leaf *memLeaf, depth int) (*memBranch, bool, error) {
	if depth >= MaxDepth {
		panic("BUG: trie deeper than key length")
	}
	idx := nibble(leaf.leaf.Key, depth)
	child, added, err := insert(b.children[idx], leaf, depth+1)
	if err != nil || !added {
		return b, false, err
	}
	updated := &memBranch{children: b.children}
	updated.children[idx] = child
	updated.seal()
	return updated, true, nil
}

// View is an immutable snapshot of the trie.
type View struct {
	root *memBranch
	size int
}

// Root returns the root hash of the snapshot.
func (v *View) Root() hash.Hash32 {
	return v.root.h
}

// Len returns the number of leaves.
func (v *View) Len() int {
	return v.size
}

// Get returns the value stored under key.
func (v *View) Get(key hash.Hash32) ([]byte, bool) {
	l := v.leaf(key)
	if l == nil {
		return nil, false
	}
	return l.leaf.Value, true
}

// Has reports whether key is stored.
func (v *View) Has(key hash.Hash32) bool {
	return v.leaf(key) != nil
}

func (v *View) leaf(key hash.Hash32) *memLeaf {
	var n memNode = v.root
	for depth := 0; depth < MaxDepth; depth++ {
		b, ok := n.(*memBranch)
		if !ok {
			break
		}
		n = b.children[nibble(key, depth)]
		if n == nil {
			return nil
		}
	}
	l, ok := n.(*memLeaf)
	if !ok || l.leaf.Key != key {
		return nil
	}
	return l
}

// nodeAt returns the node at the nibble path, or nil.
func (v *View) nodeAt(path []byte) memNode {
	var n memNode = v.root
	for _, nib := range path {
		b, ok := n.(*memBranch)
		if !ok || int(nib) >= Radix {
			return nil
		}
		n = b.children[nib]
		if n == nil {
			return nil
		}
	}
	return n
}

// Leaves calls fn for every leaf in key order until fn returns false.
func (v *View) Leaves(fn func(*Leaf) bool) {
	walk(v.root, func(l *memLeaf) bool {
		leaf := l.leaf
		return fn(&leaf)
	})
}

func walk(n memNode, fn func(*memLeaf) bool) bool {
	switch n := n.(type) {
	case *memLeaf:
		return fn(n)
	case *memBranch:
		for _, child := range n.children {
			if child != nil && !walk(child, fn) {
				return false
			}
		}
	}
	return true
}

// Trie is safe for concurrent use. Readers take a Snapshot, writers go
// through a Checkpoint.
type Trie struct {
	backend Backend

	mu   sync.Mutex
	view *View
}

// New creates an empty trie. backend may be nil for a trie that lives only
// in memory.
func New(backend Backend) *Trie {
	return &Trie{
		backend: backend,
		view:    &View{root: emptyRoot},
	}
}

// Load inserts entries that are already persisted, without writing them to
// the backend again.
func (t *Trie) Load(entries []Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	view, _, err := apply(t.view, entries)
	if err != nil {
		return err
	}
	t.view = view
	return nil
}

// Snapshot returns the current state. It is never modified.
func (t *Trie) Snapshot() *View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view
}

// Root returns the current root hash.
func (t *Trie) Root() hash.Hash32 {
	return t.Snapshot().Root()
}

// Len returns the current number of leaves.
func (t *Trie) Len() int {
	return t.Snapshot().Len()
}

// Has reports whether key is stored.
func (t *Trie) Has(key hash.Hash32) bool {
	return t.Snapshot().Has(key)
}

// Get returns the value stored under key.
func (t *Trie) Get(key hash.Hash32) ([]byte, bool) {
	return t.Snapshot().Get(key)
}

// Put stores a single entry in its own checkpoint.
func (t *Trie) Put(key hash.Hash32, value []byte) error {
	cp := t.Checkpoint()
	if err := cp.Put(key, value); err != nil {
		cp.Revert()
		return err
	}
	return cp.Commit()
}

// Checkpoint starts a transaction on top of the current state.
func (t *Trie) Checkpoint() *Checkpoint {
	return &Checkpoint{trie: t, view: t.Snapshot()}
}

func (t *Trie) commit(entries []Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	view, added, err := apply(t.view, entries)
	if err != nil {
		return err
	}
	if len(added) == 0 {
		return nil
	}
	if t.backend != nil {
		if err := t.backend.WriteBatch(added); err != nil {
			return fmt.Errorf("persist %d leaves: %w", len(added), err)
		}
	}
	t.view = view
	return nil
}

// apply returns a new view with the entries inserted and the entries that
// were not present in v.
func apply(v *View, entries []Entry) (*View, []Entry, error) {
	root, size := v.root, v.size
	var added []Entry
	for _, e := range entries {
		updated, ok, err := insertBranch(root, newLeaf(e.Key, e.Value), 0)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			root = updated
			size++
			added = append(added, e)
		}
	}
	return &View{root: root, size: size}, added, nil
}

// Checkpoint stages inserts and applies them atomically on Commit. A
// Checkpoint is used by a single goroutine.
type Checkpoint struct {
	trie    *Trie
	view    *View
	pending []Entry
	closed  bool
}

// Put stages an entry. Putting a key that is already stored with the same
// value is a no-op.
func (c *Checkpoint) Put(key hash.Hash32, value []byte) error {
	if c.closed {
		return ErrClosed
	}
	if len(value) > MaxValueSize {
		return fmt.Errorf("value of %d bytes exceeds %d", len(value), MaxValueSize)
	}
	e := Entry{Key: key, Value: bytes.Clone(value)}
	view, added, err := apply(c.view, []Entry{e})
	if err != nil {
		return err
	}
	if len(added) == 0 {
		return nil
	}
	c.view = view
	c.pending = append(c.pending, e)
	return nil
}

// Has reports whether key is stored in the trie or staged in the checkpoint.
func (c *Checkpoint) Has(key hash.Hash32) bool {
	return c.view.Has(key)
}

// Root returns the root hash the trie would have if nothing else was
// committed before this checkpoint.
func (c *Checkpoint) Root() hash.Hash32 {
	return c.view.Root()
}

// Len returns the number of staged entries.
func (c *Checkpoint) Len() int {
	return len(c.pending)
}

// Commit persists the staged entries in one batch and publishes them with a
// single root swap. Entries committed concurrently by other checkpoints are
// kept. On error nothing is applied.
func (c *Checkpoint) Commit() error {
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	if len(c.pending) == 0 {
		return nil
	}
	return c.trie.commit(c.pending)
}

// Revert discards the staged entries.
func (c *Checkpoint) Revert() {
	c.closed = true
	c.pending = nil
}
