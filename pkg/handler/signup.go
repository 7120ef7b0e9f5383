// Copyright 2025 UniRep Synchronizer
package handler

import (
	"math/big"

	"github.com/unirep/synchronizer/pkg/field"
	"github.com/unirep/synchronizer/pkg/store"
)

// ComputeInitUSTRoot builds the empty user-state tree's root for a
// freshly signed-up identity: a sparse tree of depth D_ust where every
// attester's reputation leaf starts at the protocol's SMT_ONE_LEAF,
// except the signing attester's leaf, which encodes the sign-up
// airdrop as an initial positive-reputation balance when airdropAmount
// is non-zero. Exposed as a pure function so it is independently
// testable against spec.md's worked example.
func ComputeInitUSTRoot(ustDepth uint, attesterID *big.Int, airdropAmount *big.Int) field.Element {
	leaf := field.FromBigInt(big.NewInt(1)) // SMT_ONE_LEAF sentinel
	if airdropAmount != nil && airdropAmount.Sign() > 0 {
		leaf = field.Hash(field.FromBigInt(airdropAmount), field.Zero(), field.Zero(), field.FromUint64(1))
	}

	key := new(big.Int).Mod(attesterID, new(big.Int).Lsh(big.NewInt(1), ustDepth))
	_, _, root := sealedSingleLeafTree(ustDepth, key, leaf)
	return root
}

// sealedSingleLeafTree builds a throwaway sparse tree with exactly one
// leaf set, returning its root (and the leaf/key, for callers that
// want them too) — used by ComputeInitUSTRoot, which never needs to
// retain the tree itself.
func sealedSingleLeafTree(depth uint, key *big.Int, leaf field.Element) (*big.Int, field.Element, field.Element) {
	st := newThrowawaySparseTree(depth)
	st.Update(key, leaf)
	return key, leaf, st.Root()
}

// decodeUserSignedUp extracts the signup event's fields. Declaration
// order matches spec.md's UserSignedUp semantics: epoch, identity
// commitment, attester id, airdrop amount.
func decodeUserSignedUp(l logData) (epoch uint64, idCommitment, attesterID, airdropAmount *big.Int, err error) {
	values, err := decodeUint256Data(l.Data, 4)
	if err != nil {
		return 0, nil, nil, nil, err
	}
	return values[0].Uint64(), values[1], values[2], values[3], nil
}

func handleUserSignedUp(hc *Context) error {
	epoch, idCommitment, attesterID, airdropAmount, err := decodeUserSignedUp(logData{Data: hc.Log.Data})
	if err != nil {
		return badProtocolData(err)
	}
	if err := requireCurrentEpoch(hc, epoch); err != nil {
		return err
	}

	initRoot := ComputeInitUSTRoot(hc.Params.USTTreeDepth, attesterID, airdropAmount)
	leaf := field.Hash(field.FromBigInt(idCommitment), initRoot)

	index, newRoot, err := hc.Engine.InsertGSTLeaf(epoch, leaf)
	if err != nil {
		return storeErr(err)
	}

	if err := hc.Tx.InsertGSTLeaf(hc.Ctx, store.GSTLeaf{
		Epoch:  epoch,
		Index:  index,
		Hash:   field.ToDecimalString(leaf),
		TxHash: hc.Log.TxHash.Hex(),
	}); err != nil {
		return storeErr(err)
	}
	if err := hc.Tx.InsertGSTRoot(hc.Ctx, epoch, field.ToDecimalString(newRoot)); err != nil {
		return storeErr(err)
	}
	return nil
}
