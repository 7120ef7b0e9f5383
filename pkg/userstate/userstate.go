// Copyright 2025 UniRep Synchronizer
//
// Package userstate implements spec.md §4.5's read-only projection
// layer: everything here reads through pkg/store and never mutates
// it, and never touches the ingestor's live tree.Engine — a second
// concurrent reader of the same persisted log, grounded on the
// repository-of-repositories read style of the teacher's
// pkg/database/repository_unified.go (aggregating several record
// families behind one API) generalized from CRUD aggregation to
// fold/rebuild aggregation, since nothing here is ever written back.
package userstate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/unirep/synchronizer/pkg/field"
	"github.com/unirep/synchronizer/pkg/store"
	"github.com/unirep/synchronizer/pkg/tree"
)

// Params carries the protocol parameters UserState needs to derive
// epoch keys and rebuild trees — the same shape handler.Params uses,
// kept as its own type so this package has no import on pkg/handler.
type Params struct {
	GSTTreeDepth             uint
	EpochTreeDepth           uint
	USTTreeDepth             uint
	NumEpochKeyNoncePerEpoch int
}

// UserState is a stateless view layered on the Store, per spec.md
// §4.5. Every method opens its own read against the pooled
// connection (store.Store satisfies the same Queryer-backed accessor
// Tx does; see pkg/store/queryer.go) — there is no cross-method
// transaction, since repeatable-reads-within-one-call is all spec.md
// requires here.
type UserState struct {
	store  *store.Store
	params Params
}

// New builds a UserState reading through st.
func New(st *store.Store, params Params) *UserState {
	return &UserState{store: st, params: params}
}

// CurrentEpoch reads the highest-numbered Epoch.
func (u *UserState) CurrentEpoch(ctx context.Context) (*store.Epoch, error) {
	e, err := u.store.CurrentEpoch(ctx)
	if err != nil {
		return nil, fmt.Errorf("userstate: current epoch: %w", err)
	}
	return e, nil
}

// EpochKeys derives up to NumEpochKeyNoncePerEpoch keys for identity
// in epoch, as H(identityNullifier, epoch, nonce) truncated to
// D_epoch bits.
func (u *UserState) EpochKeys(identityNullifier *big.Int, epoch uint64) []*big.Int {
	keys := make([]*big.Int, u.params.NumEpochKeyNoncePerEpoch)
	for nonce := 0; nonce < u.params.NumEpochKeyNoncePerEpoch; nonce++ {
		h := field.HashBigInts(identityNullifier, new(big.Int).SetUint64(epoch), big.NewInt(int64(nonce)))
		keys[nonce] = field.Mod(h, u.params.EpochTreeDepth)
	}
	return keys
}

// AttestationsForKey returns the valid attestations against epochKey
// in epoch, in event order — spec.md's attestations_for_key, which an
// invalid (valid == false) or still-unresolved (valid == nil)
// attestation never appears in.
func (u *UserState) AttestationsForKey(ctx context.Context, epoch uint64, epochKey *big.Int) ([]store.Attestation, error) {
	all, err := u.store.AttestationsForKey(ctx, epoch, epochKey.String())
	if err != nil {
		return nil, fmt.Errorf("userstate: attestations for key: %w", err)
	}
	out := make([]store.Attestation, 0, len(all))
	for _, a := range all {
		if a.Valid != nil && *a.Valid {
			out = append(out, a)
		}
	}
	return out, nil
}

// Reputation is the folded per-(identity, attester) view spec.md
// §3/§4.5 names: {posRep, negRep, graffiti, signUp}.
type Reputation struct {
	PosRep   *big.Int
	NegRep   *big.Int
	Graffiti *big.Int
	SignUp   bool
}

// Reputation folds identity's valid attestations from attester across
// every sealed epoch up to and including upToEpoch into a Reputation.
// graffiti follows overwriteGraffiti semantics: the latest attestation
// (by event order, across epochs) whose graffiti is nonzero wins.
// signUp is sticky — once any attestation from attester carries
// signUp=true, it stays true for every later fold.
func (u *UserState) Reputation(ctx context.Context, identityNullifier, attester *big.Int, upToEpoch uint64) (Reputation, error) {
	rep := Reputation{PosRep: big.NewInt(0), NegRep: big.NewInt(0), Graffiti: big.NewInt(0)}
	attesterStr := attester.String()
	graffitiIndex := int64(-1)

	for epoch := uint64(1); epoch <= upToEpoch; epoch++ {
		e, err := u.store.GetEpoch(ctx, epoch)
		if err != nil {
			return Reputation{}, fmt.Errorf("userstate: reputation: load epoch %d: %w", epoch, err)
		}
		if !e.Sealed {
			continue // spec.md §4.5: fold across sealed epochs only
		}

		for _, key := range u.EpochKeys(identityNullifier, epoch) {
			atts, err := u.AttestationsForKey(ctx, epoch, key)
			if err != nil {
				return Reputation{}, err
			}
			for _, a := range atts {
				if a.AttesterID != attesterStr {
					continue
				}
				pos, ok := new(big.Int).SetString(a.PosRep, 10)
				if !ok {
					return Reputation{}, fmt.Errorf("userstate: reputation: malformed posRep %q", a.PosRep)
				}
				neg, ok := new(big.Int).SetString(a.NegRep, 10)
				if !ok {
					return Reputation{}, fmt.Errorf("userstate: reputation: malformed negRep %q", a.NegRep)
				}
				graffiti, ok := new(big.Int).SetString(a.Graffiti, 10)
				if !ok {
					return Reputation{}, fmt.Errorf("userstate: reputation: malformed graffiti %q", a.Graffiti)
				}
				rep.PosRep.Add(rep.PosRep, pos)
				rep.NegRep.Add(rep.NegRep, neg)
				if graffiti.Sign() != 0 && a.Index > graffitiIndex {
					rep.Graffiti = graffiti
					graffitiIndex = a.Index
				}
				if a.SignUp {
					rep.SignUp = true
				}
			}
		}
	}
	return rep, nil
}

// GenGSTTree rebuilds epoch's Global State Tree by replaying
// persisted GSTLeaf rows in index order — spec.md §5's
// gen_gst_tree(epoch), the fallback UserState uses for any epoch
// since it never shares the ingestor's live tree.Engine.
func (u *UserState) GenGSTTree(ctx context.Context, epoch uint64) (*tree.IncrementalTree, error) {
	leaves, err := u.store.GSTLeavesForEpoch(ctx, epoch)
	if err != nil {
		return nil, fmt.Errorf("userstate: gst leaves epoch=%d: %w", epoch, err)
	}
	t := tree.NewIncrementalTree(u.params.GSTTreeDepth, field.Zero())
	for _, l := range leaves {
		leaf, err := field.FromDecimalString(l.Hash)
		if err != nil {
			return nil, fmt.Errorf("userstate: gst leaf epoch=%d index=%d: %w", epoch, l.Index, err)
		}
		if _, err := t.Insert(leaf); err != nil {
			return nil, fmt.Errorf("userstate: gst leaf epoch=%d index=%d: %w", epoch, l.Index, err)
		}
	}
	return t, nil
}

// GenEpochTree rebuilds epoch's epoch tree by replaying every valid
// attestation in the epoch — spec.md §5's gen_epoch_tree(epoch),
// reusing tree.SealEpochTree so this package folds hash chains
// exactly the way the EpochEnded handler sealed them the first time.
func (u *UserState) GenEpochTree(ctx context.Context, epoch uint64) (*tree.SparseTree, error) {
	atts, err := u.store.AttestationsForEpoch(ctx, epoch)
	if err != nil {
		return nil, fmt.Errorf("userstate: attestations epoch=%d: %w", epoch, err)
	}

	hashesByKey := make(map[string][]field.Element)
	for _, a := range atts {
		if a.Valid == nil || !*a.Valid {
			continue
		}
		if _, ok := new(big.Int).SetString(a.EpochKey, 10); !ok {
			return nil, fmt.Errorf("userstate: malformed epoch key %q", a.EpochKey)
		}
		h, err := field.FromDecimalString(a.Hash)
		if err != nil {
			return nil, fmt.Errorf("userstate: malformed attestation hash %q: %w", a.Hash, err)
		}
		hashesByKey[a.EpochKey] = append(hashesByKey[a.EpochKey], h)
	}

	st := tree.NewSparseTree(u.params.EpochTreeDepth, field.Zero())
	_, sealed := tree.SealEpochTree(u.params.EpochTreeDepth, field.Zero(), hashesByKey)
	for key, leaf := range sealed {
		keyInt, ok := new(big.Int).SetString(key, 10)
		if !ok {
			return nil, fmt.Errorf("userstate: malformed epoch key %q", key)
		}
		st.Update(keyInt, leaf)
	}
	return st, nil
}

// FindGSTLeafIndex returns the dense index of leaf within epoch's GST,
// by linear scan of the persisted leaf log — UserState has no index
// on leaf value, matching spec.md's "rebuilds one by replaying
// persisted GSTLeaf rows" as the only access path it defines.
func (u *UserState) FindGSTLeafIndex(ctx context.Context, epoch uint64, leaf field.Element) (int64, error) {
	leaves, err := u.store.GSTLeavesForEpoch(ctx, epoch)
	if err != nil {
		return 0, fmt.Errorf("userstate: gst leaves epoch=%d: %w", epoch, err)
	}
	want := field.ToDecimalString(leaf)
	for _, l := range leaves {
		if l.Hash == want {
			return l.Index, nil
		}
	}
	return 0, fmt.Errorf("userstate: leaf not found in epoch %d GST", epoch)
}
