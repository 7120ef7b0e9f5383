// Copyright 2025 UniRep Synchronizer
package tree

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/unirep/synchronizer/pkg/field"
)

// Engine is the ingestor's live tree state: the current epoch's
// Global State Tree, kept incrementally in memory across the event
// log rather than rebuilt on every signup (spec.md §4.4: "Insert into
// in-memory GST"). EpochEnded resets it to empty for the new epoch.
//
// Epoch trees and the user-state tree are not kept live here — they
// are folded once per epoch (EpochEnded) or rebuilt on demand by
// pkg/userstate from the persisted leaf/attestation log, since those
// reads happen far less often than GST inserts during an epoch.
type Engine struct {
	mu           sync.Mutex
	gstDepth     uint
	zeroValue    field.Element
	gst          *IncrementalTree
	currentEpoch uint64
}

// NewEngine builds an Engine with no current epoch. ResetGST must be
// called once the first epoch exists.
func NewEngine(gstDepth uint, zeroValue field.Element) *Engine {
	return &Engine{gstDepth: gstDepth, zeroValue: zeroValue}
}

// ResetGST starts a fresh, empty GST for the given epoch — called by
// the EpochEnded handler when it creates the epoch's successor.
func (e *Engine) ResetGST(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gst = NewIncrementalTree(e.gstDepth, e.zeroValue)
	e.currentEpoch = epoch
}

// CurrentEpoch returns the epoch the live GST belongs to.
func (e *Engine) CurrentEpoch() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentEpoch
}

// InsertGSTLeaf appends leaf to the current epoch's live GST and
// returns its dense index and the tree's new root.
func (e *Engine) InsertGSTLeaf(epoch uint64, leaf field.Element) (int64, field.Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gst == nil || epoch != e.currentEpoch {
		return 0, field.Element{}, fmt.Errorf("tree: engine has no live GST for epoch %d (current=%d)", epoch, e.currentEpoch)
	}
	idx, err := e.gst.Insert(leaf)
	if err != nil {
		return 0, field.Element{}, err
	}
	return idx, e.gst.Root(), nil
}

// GSTRoot returns the current epoch's live GST root.
func (e *Engine) GSTRoot() field.Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gst == nil {
		return e.zeroValue
	}
	return e.gst.Root()
}

// SealEpochTree folds an epoch's valid attestations (already ordered
// by index) into a sparse tree and returns its root — the EpochEnded
// algorithm of spec.md §4.4, factored out as a pure function so it is
// testable without a store transaction in scope.
//
// hashChain folds as H(attHash, hashChain) per key, sealed with
// H(1, hashChain); keys with no attestations never enter the tree and
// read back as the sparse tree's default leaf.
//
// Keys are the epoch key's canonical decimal string (what every
// caller already has on hand from the store or field.Mod) rather than
// int64: an epoch key can occupy the full [0, 2^64) range at this
// project's default EpochTreeDepth, beyond what int64 represents.
func SealEpochTree(depth uint, zeroValue field.Element, attestationHashesByKey map[string][]field.Element) (field.Element, map[string]field.Element) {
	st := NewSparseTree(depth, zeroValue)
	sealed := make(map[string]field.Element, len(attestationHashesByKey))
	for key, hashes := range attestationHashesByKey {
		chain := field.Zero()
		for _, h := range hashes {
			chain = field.Hash(h, chain)
		}
		leaf := field.Hash(field.One(), chain)
		sealed[key] = leaf
		keyInt, ok := new(big.Int).SetString(key, 10)
		if !ok {
			continue // callers validate keys as decimal strings before reaching here
		}
		st.Update(keyInt, leaf)
	}
	return st.Root(), sealed
}
