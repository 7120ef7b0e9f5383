// Copyright 2025 UniRep Synchronizer
package handler

import (
	"github.com/unirep/synchronizer/pkg/store"
)

// proveUserSignUp's public-signal layout, per spec.md §6:
// epoch, epochKey, globalStateTree, attesterId, userHasSignedUp.
const signUpProofSignalCount = 5

func handleProofSignUp(hc *Context) error {
	signals, proof, err := decodeProofEvent(hc.Log.Data, signUpProofSignalCount)
	if err != nil {
		return badProtocolData(err)
	}
	epoch := signals[0].Uint64()
	globalStateTree := signals[2].String()

	if err := requireExistingEpoch(hc, epoch); err != nil {
		return err
	}

	ok, err := hc.Verifier.Verify(hc.Ctx, CircuitProveUserSignUp, signals, proof)
	if err != nil {
		return storeErr(err)
	}
	rootExists, err := hc.Tx.GSTRootExists(hc.Ctx, epoch, globalStateTree)
	if err != nil {
		return storeErr(err)
	}
	valid := ok && rootExists

	p := store.Proof{
		Event:           store.ProofEventSignUp,
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
