// Copyright 2025 UniRep Synchronizer
package tree

import (
	"testing"

	"github.com/unirep/synchronizer/pkg/field"
)

func TestIncrementalTreeEmptyRootMatchesZeroes(t *testing.T) {
	tr := NewIncrementalTree(4, field.Zero())
	want := tr.zeroes[4]
	if !field.Equal(tr.Root(), want) {
		t.Fatalf("empty tree root should equal zero subtree of full depth")
	}
}

func TestIncrementalTreeInsertChangesRoot(t *testing.T) {
	tr := NewIncrementalTree(4, field.Zero())
	before := tr.Root()

	idx, err := tr.Insert(field.FromUint64(42))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected first index 0, got %d", idx)
	}
	if field.Equal(tr.Root(), before) {
		t.Fatalf("root should change after insert")
	}
}

func TestIncrementalTreeSequentialIndices(t *testing.T) {
	tr := NewIncrementalTree(4, field.Zero())
	for i := uint64(0); i < 5; i++ {
		idx, err := tr.Insert(field.FromUint64(i))
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if idx != int64(i) {
			t.Fatalf("expected dense index %d, got %d", i, idx)
		}
	}
	if tr.NumLeaves() != 5 {
		t.Fatalf("expected 5 leaves, got %d", tr.NumLeaves())
	}
}

func TestIncrementalTreeFullRejectsInsert(t *testing.T) {
	tr := NewIncrementalTree(2, field.Zero())
	for i := 0; i < 4; i++ {
		if _, err := tr.Insert(field.FromUint64(uint64(i))); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if _, err := tr.Insert(field.FromUint64(99)); err != ErrTreeFull {
		t.Fatalf("expected ErrTreeFull, got %v", err)
	}
}

func TestIncrementalMerkleProofVerifies(t *testing.T) {
	tr := NewIncrementalTree(3, field.Zero())
	var leaves []field.Element
	for i := uint64(0); i < 5; i++ {
		l := field.FromUint64(i + 1)
		leaves = append(leaves, l)
		if _, err := tr.Insert(l); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	for i, leaf := range leaves {
		path, root, err := tr.MerkleProof(int64(i))
		if err != nil {
			t.Fatalf("proof for leaf %d: %v", i, err)
		}
		if !field.Equal(root, tr.Root()) {
			t.Fatalf("proof root mismatch for leaf %d", i)
		}
		if !VerifyMerkleProof(leaf, path, root) {
			t.Fatalf("proof failed to verify for leaf %d", i)
		}
	}
}

func TestIncrementalMerkleProofRejectsWrongLeaf(t *testing.T) {
	tr := NewIncrementalTree(3, field.Zero())
	for i := uint64(0); i < 3; i++ {
		if _, err := tr.Insert(field.FromUint64(i)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	path, root, err := tr.MerkleProof(0)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	if VerifyMerkleProof(field.FromUint64(999), path, root) {
		t.Fatalf("expected verification to fail for wrong leaf value")
	}
}

func TestIncrementalMerkleProofOutOfRange(t *testing.T) {
	tr := NewIncrementalTree(3, field.Zero())
	if _, err := tr.Insert(field.FromUint64(1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, _, err := tr.MerkleProof(5); err == nil {
		t.Fatalf("expected out of range error")
	}
}
