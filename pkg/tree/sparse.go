// Copyright 2025 UniRep Synchronizer
package tree

import (
	"math/big"
	"sync"

	"github.com/unirep/synchronizer/pkg/field"
)

// SparseTree is a fixed-depth Merkle tree addressed by an arbitrary
// key in [0, 2^depth), with every unset leaf defaulting to zeroValue.
// Used for epoch trees (keyed by epoch key) and the per-user state
// tree (keyed by attester ID), both of which are updated out of
// order and read far more often than they are written, unlike the
// GST's append-only IncrementalTree.
//
// Keys are *big.Int, not int64: the epoch tree's depth defaults to 64
// (the real UniRep epoch key range), so a key can legitimately occupy
// the full [0, 2^64) range, beyond int64's [0, 2^63) — leaves are kept
// in a map keyed by the key's canonical decimal string rather than a
// fixed-width int to avoid truncating or sign-flipping such a key.
type SparseTree struct {
	mu     sync.RWMutex
	depth  uint
	zeroes []field.Element
	leaves map[string]field.Element
}

// NewSparseTree builds an empty sparse tree of the given depth.
func NewSparseTree(depth uint, zeroValue field.Element) *SparseTree {
	zeroes := make([]field.Element, depth+1)
	zeroes[0] = zeroValue
	for i := uint(1); i <= depth; i++ {
		zeroes[i] = field.Hash(zeroes[i-1], zeroes[i-1])
	}
	return &SparseTree{
		depth:  depth,
		zeroes: zeroes,
		leaves: make(map[string]field.Element),
	}
}

func (t *SparseTree) Depth() uint { return t.depth }

// Update sets the leaf at key and returns the new root. Recomputes the
// authentication path for key from scratch (O(depth) map lookups),
// matching the tradeoff spec.md accepts for epoch trees: updates are
// infrequent relative to reads, so there is no benefit to caching
// intermediate node hashes beyond the leaves map itself.
func (t *SparseTree) Update(key *big.Int, value field.Element) field.Element {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.leaves[key.String()] = value
	return t.rootLocked()
}

// Get returns the leaf at key, or zeroValue if unset.
func (t *SparseTree) Get(key *big.Int) field.Element {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if v, ok := t.leaves[key.String()]; ok {
		return v
	}
	return t.zeroes[0]
}

// Root returns the tree's current root.
func (t *SparseTree) Root() field.Element {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rootLocked()
}

func (t *SparseTree) rootLocked() field.Element {
	return t.nodeHash(0, big.NewInt(0))
}

// nodeHash computes the hash of the subtree rooted at (level, index)
// from the top (level 0 = root, level depth = leaves), recursing down
// to the sparse leaves map and falling back to precomputed zero
// subtrees wherever no leaf has been set under that node.
//
// All index/size arithmetic runs on *big.Int rather than int64: at
// remainingDepth 64 (this project's own epoch tree default),
// int64(1)<<64 overflows to 0, silently short-circuiting every lookup
// to the empty-tree root, and int64(1)<<63 is negative — both corrupt
// the range check below. *big.Int has no such width limit.
func (t *SparseTree) nodeHash(level uint, index *big.Int) field.Element {
	if level == t.depth {
		if v, ok := t.leaves[index.String()]; ok {
			return v
		}
		return t.zeroes[0]
	}

	remainingDepth := t.depth - level
	subtreeSize := new(big.Int).Lsh(big.NewInt(1), remainingDepth)
	start := new(big.Int).Mul(index, subtreeSize)
	end := new(big.Int).Add(start, subtreeSize)
	if !t.hasLeafInRange(start, end) {
		return t.zeroes[remainingDepth]
	}

	left := t.nodeHash(level+1, new(big.Int).Lsh(index, 1))
	right := t.nodeHash(level+1, new(big.Int).Add(new(big.Int).Lsh(index, 1), big.NewInt(1)))
	return field.Hash(left, right)
}

func (t *SparseTree) hasLeafInRange(start, end *big.Int) bool {
	for k := range t.leaves {
		key, ok := new(big.Int).SetString(k, 10)
		if !ok {
			continue
		}
		if key.Cmp(start) >= 0 && key.Cmp(end) < 0 {
			return true
		}
	}
	return false
}

// MerkleProof returns the authentication path for key, the leaf's
// value, and the current root.
func (t *SparseTree) MerkleProof(key *big.Int) ([]MerklePathElement, field.Element, field.Element) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf := t.zeroes[0]
	if v, ok := t.leaves[key.String()]; ok {
		leaf = v
	}

	path := make([]MerklePathElement, 0, t.depth)
	idx := new(big.Int).Set(key)
	one := big.NewInt(1)
	for d := t.depth; d > 0; d-- {
		siblingIndex := new(big.Int).Xor(idx, one)
		onRight := idx.Bit(0) == 0
		siblingLevel := d // level counted from root at 0; leaves at depth
		sibling := t.nodeHash(siblingLevel, siblingIndex)
		path = append(path, MerklePathElement{Sibling: sibling, OnRight: onRight})
		idx.Rsh(idx, 1)
	}

	return path, leaf, t.rootLocked()
}
