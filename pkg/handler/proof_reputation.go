// Copyright 2025 UniRep Synchronizer
package handler

import (
	"math/big"

	"github.com/unirep/synchronizer/pkg/field"
	"github.com/unirep/synchronizer/pkg/store"
)

// proveReputation's public-signal layout, per spec.md §6:
// repNullifiers[N] (dynamic), epoch, epochKey, globalStateTree,
// attesterId, proveReputationAmount, minRep, proveGraffiti,
// graffitiPreImage.
const reputationProofFixedSignalCount = 8

func decodeReputationProof(data []byte) (repNullifiers, fixed, proof []*big.Int, err error) {
	r := newWordReader(data)
	repNullifiers, err = r.Array()
	if err != nil {
		return nil, nil, nil, err
	}
	fixed, err = r.Fixed(reputationProofFixedSignalCount)
	if err != nil {
		return nil, nil, nil, err
	}
	proof, err = r.Array()
	if err != nil {
		return nil, nil, nil, err
	}
	return repNullifiers, fixed, proof, nil
}

func handleProofReputation(hc *Context) error {
	repNullifiers, fixed, proof, err := decodeReputationProof(hc.Log.Data)
	if err != nil {
		return badProtocolData(err)
	}
	epoch := fixed[0].Uint64()
	globalStateTree := fixed[2].String()

	if err := requireExistingEpoch(hc, epoch); err != nil {
		return err
	}

	signals := append(append([]*big.Int{}, repNullifiers...), fixed...)
	ok, err := hc.Verifier.Verify(hc.Ctx, CircuitProveReputation, signals, proof)
	if err != nil {
		return storeErr(err)
	}
	rootExists, err := hc.Tx.GSTRootExists(hc.Ctx, epoch, globalStateTree)
	if err != nil {
		return storeErr(err)
	}

	duplicate := false
	for _, n := range repNullifiers {
		if field.IsZero(field.FromBigInt(n)) {
			continue
		}
		confirmed, err := hc.Tx.NullifierConfirmed(hc.Ctx, n.String())
		if err != nil {
			return storeErr(err)
		}
		if confirmed {
			duplicate = true
			break
		}
	}

	valid := ok && rootExists && !duplicate

	p := store.Proof{
		Event:           store.ProofEventReputation,
		Epoch:           &epoch,
		PublicSignals:   bigStrs(signals),
		ProofBytes:      bigStrs(proof),
		Valid:           valid,
		GlobalStateTree: &globalStateTree,
	}
	if _, err := hc.Tx.InsertProof(hc.Ctx, p); err != nil {
		return storeErr(err)
	}

	if valid {
		for _, n := range repNullifiers {
			if field.IsZero(field.FromBigInt(n)) {
				continue
			}
			if err := hc.Tx.InsertNullifier(hc.Ctx, store.Nullifier{Epoch: epoch, Nullifier: n.String(), Confirmed: false}); err != nil {
				return storeErr(err)
			}
		}
	}
	return nil
}
