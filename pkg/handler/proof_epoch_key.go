// Copyright 2025 UniRep Synchronizer
package handler

import (
	"github.com/unirep/synchronizer/pkg/store"
)

// verifyEpochKey's public-signal layout, per spec.md §6:
// globalStateTree, epoch, epochKey.
const epochKeyProofSignalCount = 3

func handleProofEpochKey(hc *Context) error {
	signals, proof, err := decodeProofEvent(hc.Log.Data, epochKeyProofSignalCount)
	if err != nil {
		return badProtocolData(err)
	}
	globalStateTree := signals[0].String()
	epoch := signals[1].Uint64()

	if err := requireExistingEpoch(hc, epoch); err != nil {
		return err
	}

	ok, err := hc.Verifier.Verify(hc.Ctx, CircuitVerifyEpochKey, signals, proof)
	if err != nil {
		return storeErr(err)
	}
	rootExists, err := hc.Tx.GSTRootExists(hc.Ctx, epoch, globalStateTree)
	if err != nil {
		return storeErr(err)
	}
	valid := ok && rootExists

	p := store.Proof{
		Event:           store.ProofEventEpochKey,
		Epoch:           &epoch,
		PublicSignals:   bigStrs(signals),
		ProofBytes:      bigStrs(proof),
		Valid:           valid,
		GlobalStateTree: &globalStateTree,
	}
	if _, err := hc.Tx.InsertProof(hc.Ctx, p); err != nil {
		return storeErr(err)
	}
	return nil
}
