// Copyright 2025 UniRep Synchronizer
package handler

import (
	"math/big"
	"testing"

	"github.com/unirep/synchronizer/pkg/field"
)

func TestComputeInitUSTRootZeroAirdropUsesSentinelLeaf(t *testing.T) {
	root := ComputeInitUSTRoot(8, big.NewInt(1), big.NewInt(0))
	if field.IsZero(root) {
		t.Fatal("expected a nonzero root even with no airdrop")
	}
}

func TestComputeInitUSTRootVariesWithAirdropAmount(t *testing.T) {
	r0 := ComputeInitUSTRoot(8, big.NewInt(1), big.NewInt(0))
	r1 := ComputeInitUSTRoot(8, big.NewInt(1), big.NewInt(100))
	if field.Equal(r0, r1) {
		t.Fatal("expected airdrop amount to change the init root")
	}
}

func TestComputeInitUSTRootDeterministic(t *testing.T) {
	a := ComputeInitUSTRoot(8, big.NewInt(5), big.NewInt(50))
	b := ComputeInitUSTRoot(8, big.NewInt(5), big.NewInt(50))
	if !field.Equal(a, b) {
		t.Fatal("expected deterministic root for identical inputs")
	}
}

func TestComputeInitUSTRootVariesWithAttesterID(t *testing.T) {
	a := ComputeInitUSTRoot(8, big.NewInt(1), big.NewInt(50))
	b := ComputeInitUSTRoot(8, big.NewInt(2), big.NewInt(50))
	if field.Equal(a, b) {
		t.Fatal("expected different attester key to change the init root")
	}
}
