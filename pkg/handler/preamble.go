// Copyright 2025 UniRep Synchronizer
package handler

import (
	"database/sql"
	"errors"
	"math/big"

	"github.com/unirep/synchronizer/pkg/chainerr"
	"github.com/unirep/synchronizer/pkg/store"
)

// requireCurrentEpoch validates that epoch is the live, unsealed
// epoch — the guard every state-mutating handler (signup, attestation,
// epoch-end) runs first, per spec.md §4.4.
func requireCurrentEpoch(hc *Context, epoch uint64) error {
	e, err := lookupEpoch(hc, epoch)
	if err != nil {
		return err
	}
	if e.Sealed {
		return chainerr.NewProtocolViolation("epoch %d is already sealed", epoch)
	}
	return nil
}

// requireExistingEpoch validates that epoch exists at all (sealed or
// not) — the weaker guard proof-event handlers run, since a proof may
// reference a past, sealed epoch.
func requireExistingEpoch(hc *Context, epoch uint64) error {
	_, err := lookupEpoch(hc, epoch)
	return err
}

// lookupEpoch loads an epoch, mapping a missing row to ProtocolViolation
// and any other failure to StoreError, matching getProof's classification.
func lookupEpoch(hc *Context, epoch uint64) (*store.Epoch, error) {
	e, err := hc.Tx.GetEpoch(hc.Ctx, epoch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chainerr.NewProtocolViolation("epoch %d does not exist", epoch)
		}
		return nil, &chainerr.StoreError{Err: err}
	}
	return e, nil
}

// requireEpochKeyInRange validates epochKey < 2^D_epoch.
func requireEpochKeyInRange(hc *Context, epochKey *big.Int) error {
	bound := new(big.Int).Lsh(big.NewInt(1), hc.Params.EpochTreeDepth)
	if epochKey.Cmp(bound) >= 0 {
		return chainerr.NewProtocolViolation("epoch key %s exceeds 2^%d", epochKey.String(), hc.Params.EpochTreeDepth)
	}
	return nil
}

// getProof loads a proof row. A missing row is a ProtocolViolation —
// spec.md §7 classifies "missing predecessor row" as a no-op, not a
// fatal condition: the contract indexed a submission this synchronizer
// cannot reconcile, which happens under normal adversarial conditions,
// not just programming errors. Any other lookup failure is a StoreError
// and is retried.
func getProof(hc *Context, index int64) (*store.Proof, error) {
	p, err := hc.Tx.GetProof(hc.Ctx, index)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chainerr.NewProtocolViolation("proof %d not found", index)
		}
		return nil, &chainerr.StoreError{Err: err}
	}
	return p, nil
}
