// Copyright 2025 UniRep Synchronizer
package userstate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/unirep/synchronizer/pkg/field"
	"github.com/unirep/synchronizer/pkg/tree"
)

// Each Gen*ProofInputs method assembles the structured record a
// prover needs to fill one circuit's witness, per spec.md §6's
// public-signal tables: Merkle paths and selectors this package can
// derive from the Store, plus caller-supplied private values (nonces,
// attestation data, selected reputation amounts) it cannot — proof
// generation itself is out of scope (the prover collaborator's job).

// SignUpProofInputs backs the proveUserSignUp circuit.
type SignUpProofInputs struct {
	Epoch           uint64
	EpochKey        *big.Int
	GlobalStateTree field.Element
	AttesterID      *big.Int
	UserHasSignedUp bool
	GSTPath         []tree.MerklePathElement
	GSTLeafIndex    int64
}

// GenSignUpProofInputs assembles proveUserSignUp's inputs: the GST
// membership path for identity's leaf in epoch, plus the signUp flag
// folded out of its reputation with attester.
func (u *UserState) GenSignUpProofInputs(ctx context.Context, identityNullifier, attester *big.Int, epoch uint64, gstLeaf field.Element) (*SignUpProofInputs, error) {
	gst, err := u.GenGSTTree(ctx, epoch)
	if err != nil {
		return nil, err
	}
	index, err := u.FindGSTLeafIndex(ctx, epoch, gstLeaf)
	if err != nil {
		return nil, err
	}
	path, root, err := gst.MerkleProof(index)
	if err != nil {
		return nil, fmt.Errorf("userstate: sign up proof inputs: %w", err)
	}
	rep, err := u.Reputation(ctx, identityNullifier, attester, epoch)
	if err != nil {
		return nil, err
	}
	keys := u.EpochKeys(identityNullifier, epoch)
	return &SignUpProofInputs{
		Epoch:           epoch,
		EpochKey:        keys[0],
		GlobalStateTree: root,
		AttesterID:      attester,
		UserHasSignedUp: rep.SignUp,
		GSTPath:         path,
		GSTLeafIndex:    index,
	}, nil
}

// EpochKeyProofInputs backs the verifyEpochKey circuit.
type EpochKeyProofInputs struct {
	GlobalStateTree field.Element
	Epoch           uint64
	EpochKey        *big.Int
	GSTPath         []tree.MerklePathElement
	GSTLeafIndex    int64
}

// GenEpochKeyProofInputs assembles verifyEpochKey's inputs: the GST
// membership path proving gstLeaf belongs to epoch, plus the epoch key
// for the given nonce.
func (u *UserState) GenEpochKeyProofInputs(ctx context.Context, identityNullifier *big.Int, epoch uint64, nonce int, gstLeaf field.Element) (*EpochKeyProofInputs, error) {
	if nonce < 0 || nonce >= u.params.NumEpochKeyNoncePerEpoch {
		return nil, fmt.Errorf("userstate: epoch key proof inputs: nonce %d out of range", nonce)
	}
	gst, err := u.GenGSTTree(ctx, epoch)
	if err != nil {
		return nil, err
	}
	index, err := u.FindGSTLeafIndex(ctx, epoch, gstLeaf)
	if err != nil {
		return nil, err
	}
	path, root, err := gst.MerkleProof(index)
	if err != nil {
		return nil, fmt.Errorf("userstate: epoch key proof inputs: %w", err)
	}
	return &EpochKeyProofInputs{
		GlobalStateTree: root,
		Epoch:           epoch,
		EpochKey:        u.EpochKeys(identityNullifier, epoch)[nonce],
		GSTPath:         path,
		GSTLeafIndex:    index,
	}, nil
}

// ReputationProofInputs backs the proveReputation circuit.
type ReputationProofInputs struct {
	RepNullifiers         []*big.Int
	Epoch                 uint64
	EpochKey              *big.Int
	GlobalStateTree       field.Element
	AttesterID            *big.Int
	ProveReputationAmount *big.Int
	MinRep                *big.Int
	ProveGraffiti         bool
	GraffitiPreImage      *big.Int
	GSTPath               []tree.MerklePathElement
	GSTLeafIndex          int64
	Reputation            Reputation
}

// ReputationProofParams carries the prover-selected values GenReputationProofInputs
// cannot derive from the Store alone — which amount/minRep threshold
// the caller is proving, whether graffiti is asserted, and the
// nullifiers it spends.
type ReputationProofParams struct {
	RepNullifiers         []*big.Int
	ProveReputationAmount *big.Int
	MinRep                *big.Int
	ProveGraffiti         bool
	GraffitiPreImage      *big.Int
}

// GenReputationProofInputs assembles proveReputation's inputs: the
// folded reputation against attester as of epoch, plus the GST
// membership path for gstLeaf and the caller-selected proof params.
func (u *UserState) GenReputationProofInputs(ctx context.Context, identityNullifier, attester *big.Int, epoch uint64, gstLeaf field.Element, params ReputationProofParams) (*ReputationProofInputs, error) {
	gst, err := u.GenGSTTree(ctx, epoch)
	if err != nil {
		return nil, err
	}
	index, err := u.FindGSTLeafIndex(ctx, epoch, gstLeaf)
	if err != nil {
		return nil, err
	}
	path, root, err := gst.MerkleProof(index)
	if err != nil {
		return nil, fmt.Errorf("userstate: reputation proof inputs: %w", err)
	}
	rep, err := u.Reputation(ctx, identityNullifier, attester, epoch)
	if err != nil {
		return nil, err
	}
	return &ReputationProofInputs{
		RepNullifiers:         params.RepNullifiers,
		Epoch:                 epoch,
		EpochKey:              u.EpochKeys(identityNullifier, epoch)[0],
		GlobalStateTree:       root,
		AttesterID:            attester,
		ProveReputationAmount: params.ProveReputationAmount,
		MinRep:                params.MinRep,
		ProveGraffiti:         params.ProveGraffiti,
		GraffitiPreImage:      params.GraffitiPreImage,
		GSTPath:               path,
		GSTLeafIndex:          index,
		Reputation:            rep,
	}, nil
}

// StartTransitionProofInputs backs the startTransition circuit.
type StartTransitionProofInputs struct {
	BlindedUserState field.Element
	BlindedHashChain field.Element
	GlobalStateTree  field.Element
	GSTPath          []tree.MerklePathElement
	GSTLeafIndex     int64
}

// GenStartTransitionProofInputs assembles startTransition's inputs:
// the GST membership path plus the caller-computed blinded values
// (these fold the identity secret, which this package never sees).
func (u *UserState) GenStartTransitionProofInputs(ctx context.Context, epoch uint64, gstLeaf, blindedUserState, blindedHashChain field.Element) (*StartTransitionProofInputs, error) {
	gst, err := u.GenGSTTree(ctx, epoch)
	if err != nil {
		return nil, err
	}
	index, err := u.FindGSTLeafIndex(ctx, epoch, gstLeaf)
	if err != nil {
		return nil, err
	}
	path, root, err := gst.MerkleProof(index)
	if err != nil {
		return nil, fmt.Errorf("userstate: start transition proof inputs: %w", err)
	}
	return &StartTransitionProofInputs{
		BlindedUserState: blindedUserState,
		BlindedHashChain: blindedHashChain,
		GlobalStateTree:  root,
		GSTPath:          path,
		GSTLeafIndex:     index,
	}, nil
}

// ProcessAttestationsProofInputs backs the processAttestations circuit.
// It carries no Merkle path — spec.md §6 lists only blinded values for
// this circuit, folded over a chunk of one epoch key's attestations.
type ProcessAttestationsProofInputs struct {
	OutputBlindedUserState field.Element
	OutputBlindedHashChain field.Element
	InputBlindedUserState  field.Element
	Attestations           []big.Int
}

// GenProcessAttestationsProofInputs loads the valid attestations for
// epochKey in epoch so the caller can fold them into the next blinded
// state and hash chain; the blinded values themselves are the
// caller's to compute (they depend on the identity secret).
func (u *UserState) GenProcessAttestationsProofInputs(ctx context.Context, epoch uint64, epochKey *big.Int, inputBlindedUserState, outputBlindedUserState, outputBlindedHashChain field.Element) (*ProcessAttestationsProofInputs, error) {
	atts, err := u.AttestationsForKey(ctx, epoch, epochKey)
	if err != nil {
		return nil, err
	}
	hashes := make([]big.Int, 0, len(atts))
	for _, a := range atts {
		h, err := field.FromDecimalString(a.Hash)
		if err != nil {
			return nil, fmt.Errorf("userstate: malformed attestation hash %q: %w", a.Hash, err)
		}
		hashes = append(hashes, *h.BigInt(new(big.Int)))
	}
	return &ProcessAttestationsProofInputs{
		OutputBlindedUserState: outputBlindedUserState,
		OutputBlindedHashChain: outputBlindedHashChain,
		InputBlindedUserState:  inputBlindedUserState,
		Attestations:           hashes,
	}, nil
}

// UserStateTransitionProofInputs backs the userStateTransition circuit.
type UserStateTransitionProofInputs struct {
	NewGlobalStateTreeLeaf field.Element
	EpkNullifiers          []*big.Int
	TransitionFromEpoch    uint64
	BlindedUserStates      [2]field.Element
	FromGlobalStateTree    field.Element
	BlindedHashChains      []field.Element
	FromEpochTree          field.Element
	FromGSTPath            []tree.MerklePathElement
	FromGSTLeafIndex       int64
	EpochTreePaths         [][]tree.MerklePathElement
}

// GenUserStateTransitionProofInputs assembles userStateTransition's
// inputs: the GST membership path for the identity's leaf in
// fromEpoch, the epoch tree membership path for each epoch key it is
// transitioning out of, and the caller-computed blinded chain values
// (newGlobalStateTreeLeaf, blindedUserStates, blindedHashChains are
// folds over the identity secret this package never sees).
func (u *UserState) GenUserStateTransitionProofInputs(
	ctx context.Context,
	identityNullifier *big.Int,
	fromEpoch uint64,
	fromGSTLeaf field.Element,
	epkNullifiers []*big.Int,
	newGSTLeaf field.Element,
	blindedUserStates [2]field.Element,
	blindedHashChains []field.Element,
) (*UserStateTransitionProofInputs, error) {
	gst, err := u.GenGSTTree(ctx, fromEpoch)
	if err != nil {
		return nil, err
	}
	fromIndex, err := u.FindGSTLeafIndex(ctx, fromEpoch, fromGSTLeaf)
	if err != nil {
		return nil, err
	}
	fromPath, fromRoot, err := gst.MerkleProof(fromIndex)
	if err != nil {
		return nil, fmt.Errorf("userstate: user state transition proof inputs: %w", err)
	}

	epochTree, err := u.GenEpochTree(ctx, fromEpoch)
	if err != nil {
		return nil, err
	}
	keys := u.EpochKeys(identityNullifier, fromEpoch)
	epochTreePaths := make([][]tree.MerklePathElement, 0, len(keys))
	var epochTreeRoot field.Element
	for _, key := range keys {
		path, _, root := epochTree.MerkleProof(key)
		epochTreePaths = append(epochTreePaths, path)
		epochTreeRoot = root
	}

	return &UserStateTransitionProofInputs{
		NewGlobalStateTreeLeaf: newGSTLeaf,
		EpkNullifiers:          epkNullifiers,
		TransitionFromEpoch:    fromEpoch,
		BlindedUserStates:      blindedUserStates,
		FromGlobalStateTree:    fromRoot,
		BlindedHashChains:      blindedHashChains,
		FromEpochTree:          epochTreeRoot,
		FromGSTPath:            fromPath,
		FromGSTLeafIndex:       fromIndex,
		EpochTreePaths:         epochTreePaths,
	}, nil
}
