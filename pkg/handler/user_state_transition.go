// Copyright 2025 UniRep Synchronizer
package handler

import (
	"github.com/unirep/synchronizer/pkg/chainerr"
	"github.com/unirep/synchronizer/pkg/field"
	"github.com/unirep/synchronizer/pkg/store"
)

// applyUserStateTransition runs the UserStateTransitioned validation
// chain of spec.md §4.4, steps 2-7 (step 1, "the UST proof itself must
// be valid," is already established by the caller). Any rejection in
// steps 2-6 is logged and the event is a no-op; only a missing
// predecessor proof row is fatal, per "only internal invariant
// violations ... are fatal."
func applyUserStateTransition(hc *Context, s *ustSignals) error {
	if len(s.proofIndexRecords) == 0 {
		return chainerr.NewProtocolViolation("user state transition: no proofIndexRecords")
	}

	startProof, err := getProofOrFatal(hc, s.proofIndexRecords[0])
	if err != nil {
		return err
	}
	if !startProof.Valid || startProof.Event != store.ProofEventStartTransition {
		return chainerr.NewProtocolViolation("user state transition: start-transition proof %d invalid", s.proofIndexRecords[0])
	}
	blindedUserState0 := s.blindedUserStates[0].String()
	if startProof.BlindedUserState == nil || *startProof.BlindedUserState != blindedUserState0 {
		return chainerr.NewProtocolViolation("user state transition: blindedUserState mismatch with start-transition proof %d", s.proofIndexRecords[0])
	}
	if startProof.GlobalStateTree == nil || *startProof.GlobalStateTree != s.fromGlobalStateTree.String() {
		return chainerr.NewProtocolViolation("user state transition: globalStateTree mismatch with start-transition proof %d", s.proofIndexRecords[0])
	}

	chainOutputs := map[string]bool{}
	if startProof.OutputBlindedHashChain != nil {
		chainOutputs[*startProof.OutputBlindedHashChain] = true
	}

	currentBlindedUserState := blindedUserState0
	for _, idx := range s.proofIndexRecords[1:] {
		proc, err := getProofOrFatal(hc, idx)
		if err != nil {
			return err
		}
		if !proc.Valid || proc.Event != store.ProofEventProcessAttestations {
			return chainerr.NewProtocolViolation("user state transition: processed-attestations proof %d invalid", idx)
		}
		if proc.InputBlindedUserState == nil || *proc.InputBlindedUserState != currentBlindedUserState {
			return chainerr.NewProtocolViolation("user state transition: inputBlindedUserState chain break at proof %d", idx)
		}
		if proc.OutputBlindedUserState == nil {
			return chainerr.NewProtocolViolation("user state transition: processed-attestations proof %d missing outputBlindedUserState", idx)
		}
		currentBlindedUserState = *proc.OutputBlindedUserState
		if proc.OutputBlindedHashChain != nil {
			chainOutputs[*proc.OutputBlindedHashChain] = true
		}
	}

	for _, chain := range s.blindedHashChains {
		if !chainOutputs[chain.String()] {
			return chainerr.NewProtocolViolation("user state transition: blindedHashChain %s has no matching proof output", chain.String())
		}
	}

	sourceEpoch, err := lookupEpoch(hc, s.transitionFromEpoch)
	if err != nil {
		return err
	}
	if sourceEpoch.EpochRoot == nil || *sourceEpoch.EpochRoot != s.fromEpochTree.String() {
		return chainerr.NewProtocolViolation("user state transition: fromEpochTree does not match sealed epoch tree of epoch %d", s.transitionFromEpoch)
	}

	for _, n := range s.epkNullifiers {
		if field.IsZero(field.FromBigInt(n)) {
			continue
		}
		confirmed, err := hc.Tx.NullifierConfirmed(hc.Ctx, n.String())
		if err != nil {
			return storeErr(err)
		}
		if confirmed {
			return chainerr.NewProtocolViolation("user state transition: nullifier %s already confirmed", n.String())
		}
	}

	newEpoch := hc.Engine.CurrentEpoch()
	leaf := field.FromBigInt(s.newLeaf)
	index, newRoot, err := hc.Engine.InsertGSTLeaf(newEpoch, leaf)
	if err != nil {
		return storeErr(err)
	}
	if err := hc.Tx.InsertGSTLeaf(hc.Ctx, store.GSTLeaf{
		Epoch:  newEpoch,
		Index:  index,
		Hash:   field.ToDecimalString(leaf),
		TxHash: hc.Log.TxHash.Hex(),
	}); err != nil {
		return storeErr(err)
	}
	if err := hc.Tx.InsertGSTRoot(hc.Ctx, newEpoch, field.ToDecimalString(newRoot)); err != nil {
		return storeErr(err)
	}

	for _, n := range s.epkNullifiers {
		if field.IsZero(field.FromBigInt(n)) {
			continue
		}
		if err := hc.Tx.ConfirmNullifierReplacing(hc.Ctx, newEpoch, n.String()); err != nil {
			return err
		}
	}

	return nil
}
