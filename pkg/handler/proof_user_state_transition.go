// Copyright 2025 UniRep Synchronizer
package handler

import (
	"math/big"

	"github.com/unirep/synchronizer/pkg/store"
)

// userStateTransition's public-signal layout, per spec.md §6:
// newGlobalStateTreeLeaf, epkNullifiers[K], transitionFromEpoch,
// blindedUserStates[2], fromGlobalStateTree, blindedHashChains[M],
// fromEpochTree. proofIndexRecords[M] and the raw proof word array
// follow as auxiliary data the contract event carries but the circuit
// never sees: proofIndexRecords[0] names the start-transition proof,
// proofIndexRecords[1..M-1] name the processed-attestations proofs in
// hash-chain order.
type ustSignals struct {
	newLeaf             *big.Int
	epkNullifiers       []*big.Int
	transitionFromEpoch uint64
	blindedUserStates   []*big.Int
	fromGlobalStateTree *big.Int
	blindedHashChains   []*big.Int
	fromEpochTree       *big.Int
	all                 []*big.Int
	proofIndexRecords   []int64
	proof               []*big.Int
}

func decodeUserStateTransitionProof(data []byte) (*ustSignals, error) {
	r := newWordReader(data)
	s := &ustSignals{}
	var err error

	if s.newLeaf, err = r.Uint256(); err != nil {
		return nil, err
	}
	if s.epkNullifiers, err = r.Array(); err != nil {
		return nil, err
	}
	transitionFromEpoch, err := r.Uint256()
	if err != nil {
		return nil, err
	}
	s.transitionFromEpoch = transitionFromEpoch.Uint64()
	if s.blindedUserStates, err = r.Fixed(2); err != nil {
		return nil, err
	}
	if s.fromGlobalStateTree, err = r.Uint256(); err != nil {
		return nil, err
	}
	if s.blindedHashChains, err = r.Array(); err != nil {
		return nil, err
	}
	if s.fromEpochTree, err = r.Uint256(); err != nil {
		return nil, err
	}

	s.all = append(s.all, s.newLeaf)
	s.all = append(s.all, s.epkNullifiers...)
	s.all = append(s.all, transitionFromEpoch)
	s.all = append(s.all, s.blindedUserStates...)
	s.all = append(s.all, s.fromGlobalStateTree)
	s.all = append(s.all, s.blindedHashChains...)
	s.all = append(s.all, s.fromEpochTree)

	records, err := r.Array()
	if err != nil {
		return nil, err
	}
	s.proofIndexRecords = make([]int64, len(records))
	for i, v := range records {
		s.proofIndexRecords[i] = v.Int64()
	}
	if s.proof, err = r.Array(); err != nil {
		return nil, err
	}
	return s, nil
}

// handleProofUserStateTransition persists the base proof record (the
// generic Indexed*Proof behavior: valid = verify ∧ referenced-root-
// exists) and, only if the proof itself is valid, hands off to
// user_state_transition.go's chain-validation-and-mutation pipeline —
// there is no separate on-chain topic for "UserStateTransitioned" in
// this event set, so the one IndexedUserStateTransitionProof topic
// carries both responsibilities.
func handleProofUserStateTransition(hc *Context) error {
	s, err := decodeUserStateTransitionProof(hc.Log.Data)
	if err != nil {
		return badProtocolData(err)
	}

	ok, err := hc.Verifier.Verify(hc.Ctx, CircuitUserStateTransition, s.all, s.proof)
	if err != nil {
		return storeErr(err)
	}
	fromGST := s.fromGlobalStateTree.String()
	rootExists, err := hc.Tx.GSTRootExists(hc.Ctx, s.transitionFromEpoch, fromGST)
	if err != nil {
		return storeErr(err)
	}
	valid := ok && rootExists

	proofIndexRecords64 := append([]int64{}, s.proofIndexRecords...)
	globalStateTree := fromGST
	p := store.Proof{
		Event:             store.ProofEventUserStateTransition,
		Epoch:             &s.transitionFromEpoch,
		PublicSignals:     bigStrs(s.all),
		ProofBytes:        bigStrs(s.proof),
		Valid:             valid,
		GlobalStateTree:   &globalStateTree,
		ProofIndexRecords: proofIndexRecords64,
	}
	if _, err := hc.Tx.InsertProof(hc.Ctx, p); err != nil {
		return storeErr(err)
	}
	if !valid {
		return nil
	}

	return applyUserStateTransition(hc, s)
}
