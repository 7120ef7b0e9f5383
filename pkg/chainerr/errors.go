// Copyright 2025 UniRep Synchronizer
//
// Package chainerr implements the error taxonomy of spec.md §7:
// transient chain errors are retried, unknown topics are fatal,
// protocol violations and duplicate nullifiers are recorded but do
// not abort the transaction, store errors are retried up to a bound
// before becoming fatal, and an attestation whose referenced proof
// does not exist is fatal (spec.md §4.4's "if missing: fatal").
//
// Grounded on pkg/database/errors.go's sentinel-error convention in the
// teacher repo (F.4 remediation: explicit errors instead of nil, nil).
package chainerr

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotFound is returned by UserState operations that reference a
// missing record — never silently, per spec.md §7.
var ErrNotFound = errors.New("chainerr: entity not found")

// ErrCursorDesynced is returned by Store.VerifyCursorResolves when the persisted
// SynchronizerState cursor no longer resolves to a real log — spec.md
// §6 requires a full resync from zero in that case.
var ErrCursorDesynced = errors.New("chainerr: persisted cursor does not resolve to a real log, full resync required")

// TransientChainError wraps an RPC timeout/disconnect. The ingestor
// retries the current poll (or the initial cursor load) on the next
// tick; it never aborts the run.
type TransientChainError struct {
	Err error
}

func (e *TransientChainError) Error() string { return fmt.Sprintf("transient chain error: %v", e.Err) }
func (e *TransientChainError) Unwrap() error  { return e.Err }

// UnknownEventTopic is a fatal programming error: the log matched the
// UniRep filter but its first topic is not one of the 11 known topics.
// The ingestor logs the log record and aborts.
type UnknownEventTopic struct {
	Topic common.Hash
}

func (e *UnknownEventTopic) Error() string {
	return fmt.Sprintf("unknown event topic %s", e.Topic.Hex())
}

// ProtocolViolation covers an inconsistent proof chain, a missing
// predecessor row referenced by an event, or a mismatched root. The
// handler that detects it logs and no-ops the event: the event is
// still considered processed, so the cursor advances past it — this
// matches on-chain semantics where the contract itself indexed a bad
// submission.
type ProtocolViolation struct {
	Reason string
}

func (e *ProtocolViolation) Error() string { return "protocol violation: " + e.Reason }

// NewProtocolViolation is a convenience constructor.
func NewProtocolViolation(format string, args ...interface{}) *ProtocolViolation {
	return &ProtocolViolation{Reason: fmt.Sprintf(format, args...)}
}

// DuplicateNullifier is handled identically to ProtocolViolation: the
// event is rejected and recorded, existing confirmed state untouched.
type DuplicateNullifier struct {
	Epoch      uint64
	Nullifier  string // decimal string, the canonical field-element encoding
}

func (e *DuplicateNullifier) Error() string {
	return fmt.Sprintf("duplicate nullifier %s in epoch %d", e.Nullifier, e.Epoch)
}

// MissingReferencedProof is fatal: an attestation's toProof or
// fromProof index does not resolve to any stored Proof row. Per
// spec.md §4.4 this is distinct from the general "missing predecessor
// row" ProtocolViolation case — an attestation can only legally
// reference a proof event already processed earlier in the total
// order, so a missing reference here means the synchronizer's own
// ingestion has fallen out of sync with the chain, not that the chain
// indexed a bad submission. The ingestor aborts rather than silently
// advancing past state it cannot reconcile.
type MissingReferencedProof struct {
	Index int64
}

func (e *MissingReferencedProof) Error() string {
	return fmt.Sprintf("referenced proof %d does not exist", e.Index)
}

// StoreError wraps a storage/infrastructure failure. The wrapping
// transaction is aborted and the ingestor re-runs the event at once,
// up to ingestor.Config.StoreRetryLimit attempts in total; when those
// are used up the error ends the run. The retry is not deferred to a
// later poll.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store error: %v", e.Err) }
func (e *StoreError) Unwrap() error  { return e.Err }

// IsNoOp reports whether err represents a handler-internal violation
// that the ingestor should treat as "processed" rather than abort on —
// ProtocolViolation and DuplicateNullifier, per spec.md §7's
// propagation policy ("handler-internal violations never escape the
// ingestor loop; only storage/infrastructure errors do").
func IsNoOp(err error) bool {
	var pv *ProtocolViolation
	var dn *DuplicateNullifier
	return errors.As(err, &pv) || errors.As(err, &dn)
}

// IsFatal reports whether err should stop the ingestor loop outright.
func IsFatal(err error) bool {
	var ut *UnknownEventTopic
	var mrp *MissingReferencedProof
	return errors.As(err, &ut) || errors.As(err, &mrp)
}
