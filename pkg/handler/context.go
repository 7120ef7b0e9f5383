// Copyright 2025 UniRep Synchronizer
//
// Package handler implements the one-handler-per-topic decision logic
// of spec.md §4.4. Each handler decodes its log's public signals,
// validates against the store, and mutates state through the open
// *store.Tx it is given. Grounded on the teacher's one-parseX-per-event
// convention in pkg/anchor/event_watcher.go and the multi-proof
// cross-referencing style of pkg/verification/unified_verifier.go.
package handler

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/unirep/synchronizer/pkg/chainerr"
	"github.com/unirep/synchronizer/pkg/ingestor"
	"github.com/unirep/synchronizer/pkg/store"
	"github.com/unirep/synchronizer/pkg/tree"
)

// Circuit names the six circuits a Verifier can check, per spec.md §6.
type Circuit string

const (
	CircuitUserStateTransition Circuit = "userStateTransition"
	CircuitProcessAttestations Circuit = "processAttestations"
	CircuitStartTransition     Circuit = "startTransition"
	CircuitProveUserSignUp     Circuit = "proveUserSignUp"
	CircuitProveReputation     Circuit = "proveReputation"
	CircuitVerifyEpochKey      Circuit = "verifyEpochKey"
)

// Verifier checks a Groth16 proof against a circuit's declared public
// signal layout. Implemented by pkg/gnarkverifier.
type Verifier interface {
	Verify(ctx context.Context, circuit Circuit, publicSignals []*big.Int, proof []*big.Int) (bool, error)
}

// Params carries the protocol's fixed tree-depth/nonce parameters,
// needed by several handlers (epoch-key range checks, UST-root
// derivation) without threading pkg/config into this package.
type Params struct {
	GSTTreeDepth             uint
	EpochTreeDepth           uint
	USTTreeDepth             uint
	NumEpochKeyNoncePerEpoch int
}

// Context bundles everything a handler needs: the open transaction,
// the live tree engine, the decoded log, and the proof verifier.
type Context struct {
	Ctx      context.Context
	Tx       *store.Tx
	Engine   *tree.Engine
	Verifier Verifier
	Params   Params
	Log      ingestor.Log
	Topic    ingestor.Topic
}

// Dispatcher implements ingestor.Handler, routing each log to its
// topic's handler function.
type Dispatcher struct {
	Engine   *tree.Engine
	Verifier Verifier
	Params   Params
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(engine *tree.Engine, verifier Verifier, params Params) *Dispatcher {
	return &Dispatcher{Engine: engine, Verifier: verifier, Params: params}
}

// Dispatch satisfies ingestor.Handler.
func (d *Dispatcher) Dispatch(ctx context.Context, tx *store.Tx, l ingestor.Log) error {
	if len(l.Topics) == 0 {
		return &chainerr.UnknownEventTopic{Topic: common.Hash{}}
	}
	topic, ok := ingestor.TopicForHash(l.Topics[0])
	if !ok {
		return &chainerr.UnknownEventTopic{Topic: l.Topics[0]}
	}

	hc := &Context{
		Ctx:      ctx,
		Tx:       tx,
		Engine:   d.Engine,
		Verifier: d.Verifier,
		Params:   d.Params,
		Log:      l,
		Topic:    topic,
	}

	switch topic {
	case ingestor.TopicUserSignedUp:
		return handleUserSignedUp(hc)
	case ingestor.TopicAttestationSubmitted, ingestor.TopicAttestationSubmittedLegacy:
		return handleAttestationSubmitted(hc)
	case ingestor.TopicEpochEnded:
		return handleEpochEnded(hc)
	case ingestor.TopicIndexedUserSignUpProof:
		return handleProofSignUp(hc)
	case ingestor.TopicIndexedReputationProof:
		return handleProofReputation(hc)
	case ingestor.TopicIndexedEpochKeyProof:
		return handleProofEpochKey(hc)
	case ingestor.TopicIndexedStartTransitionProof:
		return handleProofStartTransition(hc)
	case ingestor.TopicIndexedProcessedAttestations:
		return handleProofProcessAttestations(hc)
	case ingestor.TopicIndexedUserStateTransitionProof:
		return handleProofUserStateTransition(hc)
	case ingestor.TopicNewGSTLeafInserted:
		return nil // informational log only; the leaf itself is inserted by the proof/signup handler that emits it
	default:
		return &chainerr.UnknownEventTopic{Topic: l.Topics[0]}
	}
}
