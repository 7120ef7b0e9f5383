// Copyright 2025 UniRep Synchronizer
//
// Package tree implements the two Merkle structures spec.md §4 builds
// incrementally from the event log: a fixed-depth incremental binary
// tree for the Global State Tree, and a sparse Merkle tree keyed by
// epoch key for epoch trees and the per-user state tree. Both are
// grounded on the append-then-recompute-root shape of
// pkg/merkle/tree.go in the teacher repo, generalized from SHA256 over
// byte slices to Poseidon2 over field elements (pkg/field.Hash), and
// from whole-tree-rebuild to O(depth) incremental update since
// spec.md requires rebuilds to replay efficiently from the full leaf
// log on every UserState read.
package tree

import (
	"fmt"
	"sync"

	"github.com/unirep/synchronizer/pkg/field"
)

var ErrTreeFull = fmt.Errorf("tree: no more leaves can be inserted at this depth")

// IncrementalTree is a fixed-depth binary Merkle tree built by
// appending leaves left to right, matching the Global State Tree of
// spec.md §3-4: leaves are dense and insert-only, never updated or
// removed.
type IncrementalTree struct {
	mu      sync.RWMutex
	depth   uint
	zeroes  []field.Element // zeroes[i] = root of an empty subtree of height i
	filled  []field.Element // filled[i] = right-most complete node's hash at level i, if any
	leaves  []field.Element
	root    field.Element
}

// NewIncrementalTree builds an empty tree of the given depth. zeroValue
// is the hash used for unfilled leaves (conventionally 0).
func NewIncrementalTree(depth uint, zeroValue field.Element) *IncrementalTree {
	zeroes := make([]field.Element, depth+1)
	zeroes[0] = zeroValue
	for i := uint(1); i <= depth; i++ {
		zeroes[i] = field.Hash(zeroes[i-1], zeroes[i-1])
	}
	t := &IncrementalTree{
		depth:  depth,
		zeroes: zeroes,
		filled: make([]field.Element, depth),
	}
	t.root = zeroes[depth]
	return t
}

// Depth returns the tree's fixed depth.
func (t *IncrementalTree) Depth() uint { return t.depth }

// NumLeaves returns how many leaves have been inserted so far.
func (t *IncrementalTree) NumLeaves() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.leaves)
}

// Root returns the current root hash.
func (t *IncrementalTree) Root() field.Element {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Insert appends leaf as the next dense leaf and returns its index.
func (t *IncrementalTree) Insert(leaf field.Element) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	capacity := int64(1) << t.depth
	index := int64(len(t.leaves))
	if index >= capacity {
		return 0, ErrTreeFull
	}
	t.leaves = append(t.leaves, leaf)

	cur := leaf
	idx := index
	for level := uint(0); level < t.depth; level++ {
		var sibling field.Element
		if idx%2 == 0 {
			// cur is a left child; its sibling is the zero subtree at
			// this level unless a previous right sibling was filled.
			sibling = t.zeroes[level]
			t.filled[level] = cur
			cur = field.Hash(cur, sibling)
		} else {
			sibling = t.filled[level]
			cur = field.Hash(sibling, cur)
		}
		idx /= 2
	}
	t.root = cur
	return index, nil
}

// Leaves returns a copy of all inserted leaves in index order.
func (t *IncrementalTree) Leaves() []field.Element {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]field.Element, len(t.leaves))
	copy(out, t.leaves)
	return out
}

// MerklePathElement is one sibling hash and its side on the path from
// a leaf to the root.
type MerklePathElement struct {
	Sibling field.Element
	OnRight bool // true if the sibling sits to the right of the path node
}

// MerkleProof returns the authentication path for the leaf at index,
// rebuilding it by replaying every inserted leaf — the tree keeps only
// the running root incrementally, so a proof for an arbitrary leaf
// needs the full leaf set to reconstruct intermediate levels.
func (t *IncrementalTree) MerkleProof(index int64) ([]MerklePathElement, field.Element, error) {
	t.mu.RLock()
	leaves := make([]field.Element, len(t.leaves))
	copy(leaves, t.leaves)
	depth := t.depth
	zeroes := t.zeroes
	t.mu.RUnlock()

	if index < 0 || index >= int64(len(leaves)) {
		return nil, field.Element{}, fmt.Errorf("tree: leaf index %d out of range [0, %d)", index, len(leaves))
	}

	level := leaves
	path := make([]MerklePathElement, 0, depth)
	idx := index

	for d := uint(0); d < depth; d++ {
		var sibling field.Element
		if idx%2 == 0 {
			if int(idx+1) < len(level) {
				sibling = level[idx+1]
			} else {
				sibling = zeroes[d]
			}
			path = append(path, MerklePathElement{Sibling: sibling, OnRight: true})
		} else {
			sibling = level[idx-1]
			path = append(path, MerklePathElement{Sibling: sibling, OnRight: false})
		}

		next := make([]field.Element, (len(level)+1)/2)
		for i := range next {
			l := level[2*i]
			var r field.Element
			if 2*i+1 < len(level) {
				r = level[2*i+1]
			} else {
				r = zeroes[d]
			}
			next[i] = field.Hash(l, r)
		}
		level = next
		idx /= 2
	}

	return path, level[0], nil
}

// VerifyMerkleProof recomputes the root from a leaf and its
// authentication path and compares it against expectedRoot.
func VerifyMerkleProof(leaf field.Element, path []MerklePathElement, expectedRoot field.Element) bool {
	cur := leaf
	for _, p := range path {
		if p.OnRight {
			cur = field.Hash(cur, p.Sibling)
		} else {
			cur = field.Hash(p.Sibling, cur)
		}
	}
	return field.Equal(cur, expectedRoot)
}
