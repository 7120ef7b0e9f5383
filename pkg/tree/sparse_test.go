// Copyright 2025 UniRep Synchronizer
package tree

import (
	"math/big"
	"testing"

	"github.com/unirep/synchronizer/pkg/field"
)

func TestSparseTreeEmptyRootMatchesZero(t *testing.T) {
	st := NewSparseTree(4, field.Zero())
	if !field.Equal(st.Root(), st.zeroes[4]) {
		t.Fatalf("empty sparse tree root mismatch")
	}
}

func TestSparseTreeUpdateChangesRoot(t *testing.T) {
	st := NewSparseTree(4, field.Zero())
	before := st.Root()
	st.Update(big.NewInt(3), field.FromUint64(7))
	if field.Equal(st.Root(), before) {
		t.Fatalf("root should change after update")
	}
	if !field.Equal(st.Get(big.NewInt(3)), field.FromUint64(7)) {
		t.Fatalf("Get should return updated leaf value")
	}
}

func TestSparseTreeGetDefaultsToZero(t *testing.T) {
	st := NewSparseTree(4, field.Zero())
	if !field.Equal(st.Get(big.NewInt(10)), field.Zero()) {
		t.Fatalf("unset leaf should read as zero")
	}
}

func TestSparseTreeMerkleProofVerifies(t *testing.T) {
	st := NewSparseTree(4, field.Zero())
	st.Update(big.NewInt(2), field.FromUint64(11))
	st.Update(big.NewInt(9), field.FromUint64(22))

	path, leaf, root := st.MerkleProof(big.NewInt(2))
	if !field.Equal(leaf, field.FromUint64(11)) {
		t.Fatalf("unexpected leaf value")
	}
	if !VerifyMerkleProof(leaf, path, root) {
		t.Fatalf("merkle proof failed to verify for key 2")
	}

	path9, leaf9, root9 := st.MerkleProof(big.NewInt(9))
	if !field.Equal(leaf9, field.FromUint64(22)) {
		t.Fatalf("unexpected leaf value for key 9")
	}
	if !VerifyMerkleProof(leaf9, path9, root9) {
		t.Fatalf("merkle proof failed to verify for key 9")
	}
}

func TestSparseTreeMerkleProofForUnsetKey(t *testing.T) {
	st := NewSparseTree(3, field.Zero())
	st.Update(big.NewInt(1), field.FromUint64(5))

	path, leaf, root := st.MerkleProof(big.NewInt(6))
	if !field.Equal(leaf, field.Zero()) {
		t.Fatalf("unset leaf should be zero")
	}
	if !VerifyMerkleProof(leaf, path, root) {
		t.Fatalf("merkle proof for unset key should still verify")
	}
}

// TestSparseTreeDepth64HandlesFullRangeKeys exercises this project's own
// default epoch tree depth (pkg/config.Config.EpochTreeDepth = 64) with
// keys above 2^63, the range where int64(1)<<remainingDepth previously
// overflowed to zero (and negative one level down), silently collapsing
// every lookup to the empty-tree root.
func TestSparseTreeDepth64HandlesFullRangeKeys(t *testing.T) {
	st := NewSparseTree(64, field.Zero())
	before := st.Root()

	// 2^63 + 5: beyond int64's positive range, would have wrapped to a
	// negative index under the old int64 arithmetic.
	key := new(big.Int).Lsh(big.NewInt(1), 63)
	key.Add(key, big.NewInt(5))

	st.Update(key, field.FromUint64(99))
	if field.Equal(st.Root(), before) {
		t.Fatalf("root should change after updating a key above 2^63")
	}
	if !field.Equal(st.Get(key), field.FromUint64(99)) {
		t.Fatalf("Get should return the updated leaf for a key above 2^63")
	}

	path, leaf, root := st.MerkleProof(key)
	if !field.Equal(leaf, field.FromUint64(99)) {
		t.Fatalf("unexpected leaf value for key above 2^63")
	}
	if len(path) != 64 {
		t.Fatalf("expected path length 64, got %d", len(path))
	}
	if !VerifyMerkleProof(leaf, path, root) {
		t.Fatalf("merkle proof failed to verify for key above 2^63")
	}

	// A key that was never set, at the top of the depth-64 range, must
	// still read back as the zero leaf rather than aliasing key above.
	maxKey := new(big.Int).Lsh(big.NewInt(1), 64)
	maxKey.Sub(maxKey, big.NewInt(1))
	if !field.Equal(st.Get(maxKey), field.Zero()) {
		t.Fatalf("unset key at top of depth-64 range should read as zero")
	}
}
