// Copyright 2025 UniRep Synchronizer
package handler

import (
	"github.com/unirep/synchronizer/pkg/store"
)

// startTransition's public-signal layout, per spec.md §6:
// blindedUserState, blindedHashChain, globalStateTree.
const startTransitionProofSignalCount = 3

func handleProofStartTransition(hc *Context) error {
	signals, proof, err := decodeProofEvent(hc.Log.Data, startTransitionProofSignalCount)
	if err != nil {
		return badProtocolData(err)
	}
	blindedUserState := signals[0].String()
	blindedHashChain := signals[1].String()
	globalStateTree := signals[2].String()

	ok, err := hc.Verifier.Verify(hc.Ctx, CircuitStartTransition, signals, proof)
	if err != nil {
		return storeErr(err)
	}
	rootExists, err := hc.Tx.GSTRootExistsAnyEpoch(hc.Ctx, globalStateTree)
	if err != nil {
		return storeErr(err)
	}
	valid := ok && rootExists

	p := store.Proof{
		Event:         store.ProofEventStartTransition,
		PublicSignals: bigStrs(signals),
		ProofBytes:    bigStrs(proof),
		Valid:         valid,

		BlindedUserState: &blindedUserState,
		BlindedHashChain: &blindedHashChain,
		// A start-transition proof's own hash chain step has no
		// predecessor: its output is its declared blindedHashChain,
		// letting the UST validator's step 4 treat it uniformly with
		// processed-attestations proofs when matching chain links.
		OutputBlindedHashChain: &blindedHashChain,
		GlobalStateTree:        &globalStateTree,
	}
	if _, err := hc.Tx.InsertProof(hc.Ctx, p); err != nil {
		return storeErr(err)
	}
	return nil
}
