package trie

import (
	"github.com/attestate/leafsync/hash"
)

// NodeDescriptor identifies a node by its position and hash. Node is set
// for leaves.
type NodeDescriptor struct {
	// Key is the nibble path from the root.
	Key  []byte
	Hash hash.Hash32
	Node Node
}

// Leaf returns the leaf payload, or nil for branches.
func (d *NodeDescriptor) Leaf() *Leaf {
	l, _ := d.Node.(*Leaf)
	return l
}

// Level returns the level of the node. Children of the root are on level 0.
func (d *NodeDescriptor) Level() int {
	return len(d.Key) - 1
}

// Comparison partitions remote descriptors by their state in the local trie.
type Comparison struct {
	// Missing are nodes that do not exist locally.
	Missing []NodeDescriptor
	// Mismatch are nodes that exist locally with a different hash.
	Mismatch []NodeDescriptor
	// Match are nodes that exist locally with the same hash.
	Match []NodeDescriptor
}

// Empty reports whether nothing is missing and nothing differs.
func (c *Comparison) Empty() bool {
	return len(c.Missing) == 0 && len(c.Mismatch) == 0
}

type frontierItem struct {
	path []byte
	node memNode
}

// Descend returns the nodes on the given level in path order. Level 0 are the
// children of the root. Subtrees whose hash is in exclude are skipped.
func Descend(v *View, level int, exclude map[hash.Hash32]struct{}) []NodeDescriptor {
	if level < 0 || level >= MaxDepth {
		return nil
	}
	if _, ok := exclude[v.root.h]; ok {
		return nil
	}
	frontier := []frontierItem{{node: v.root}}
	for depth := 0; depth <= level && len(frontier) > 0; depth++ {
		var next []frontierItem
		for _, item := range frontier {
			b, ok := item.node.(*memBranch)
			if !ok {
				continue
			}
			for i, child := range b.children {
				if child == nil {
					continue
				}
				if _, ok := exclude[child.hash()]; ok {
					continue
				}
				path := make([]byte, len(item.path)+1)
				copy(path, item.path)
				path[len(item.path)] = byte(i)
				next = append(next, frontierItem{path: path, node: child})
			}
		}
		frontier = next
	}
	nodes := make([]NodeDescriptor, 0, len(frontier))
	for _, item := range frontier {
		nodes = append(nodes, describe(item.path, item.node))
	}
	return nodes
}

func describe(path []byte, n memNode) NodeDescriptor {
	d := NodeDescriptor{Key: path, Hash: n.hash()}
	if l, ok := n.(*memLeaf); ok {
		leaf := l.leaf
		d.Node = &leaf
	}
	return d
}

// Compare classifies remote descriptors against the local view.
//
// Branches are looked up by path. Leaves are looked up by record key, so a
// record that sits at a different depth locally is still recognized as
// present.
func Compare(v *View, remote []NodeDescriptor) Comparison {
	var c Comparison
	for _, r := range remote {
		if leaf := r.Leaf(); leaf != nil {
			local := v.leaf(leaf.Key)
			switch {
			case local == nil:
				c.Missing = append(c.Missing, r)
			case local.h == r.Hash:
				c.Match = append(c.Match, r)
			default:
				c.Mismatch = append(c.Mismatch, r)
			}
			continue
		}
		local := v.nodeAt(r.Key)
		switch {
		case local == nil:
			c.Missing = append(c.Missing, r)
		case local.hash() == r.Hash:
			c.Match = append(c.Match, r)
		default:
			c.Mismatch = append(c.Mismatch, r)
		}
	}
	return c
}
