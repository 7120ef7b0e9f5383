// Copyright 2025 UniRep Synchronizer
package handler

import (
	"github.com/unirep/synchronizer/pkg/store"
)

// processAttestations's public-signal layout, per spec.md §6:
// outputBlindedUserState, outputBlindedHashChain, inputBlindedUserState.
const processAttestationsProofSignalCount = 3

func handleProofProcessAttestations(hc *Context) error {
	signals, proof, err := decodeProofEvent(hc.Log.Data, processAttestationsProofSignalCount)
	if err != nil {
		return badProtocolData(err)
	}
	outputBlindedUserState := signals[0].String()
	outputBlindedHashChain := signals[1].String()
	inputBlindedUserState := signals[2].String()

	ok, err := hc.Verifier.Verify(hc.Ctx, CircuitProcessAttestations, signals, proof)
	if err != nil {
		return storeErr(err)
	}

	p := store.Proof{
		Event:         store.ProofEventProcessAttestations,
		PublicSignals: bigStrs(signals),
		ProofBytes:    bigStrs(proof),
		Valid:         ok,

		OutputBlindedUserState: &outputBlindedUserState,
		OutputBlindedHashChain: &outputBlindedHashChain,
		InputBlindedUserState:  &inputBlindedUserState,
	}
	if _, err := hc.Tx.InsertProof(hc.Ctx, p); err != nil {
		return storeErr(err)
	}
	return nil
}
