// Copyright 2025 UniRep Synchronizer
//
// Package ingestor polls the chain for UniRep protocol events, orders
// them deterministically, and dispatches each to its topic-specific
// handler inside a single store transaction, advancing the persisted
// cursor only after a successful commit. Grounded on the teacher's
// pkg/anchor/event_watcher.go poll/parse/dispatch shape, collapsed
// from its two-goroutine (poll + channel-dispatch) design into one
// cooperative loop: spec.md §4.3 rules out a queue between polling
// and dispatch ("unnecessary because batches are drained in order"),
// so there is nothing for a second goroutine to buffer.
package ingestor

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Log is a single decoded chain log, restricted to the fields the
// ordering and dispatch logic needs.
type Log struct {
	BlockNumber uint64
	TxIndex     uint64
	LogIndex    uint64
	TxHash      common.Hash
	Topics      []common.Hash
	Data        []byte
}

// Chain is the minimal surface the ingestor polls. Implemented by
// pkg/ethereum against ethclient.Client, and by a fake in tests.
type Chain interface {
	GetBlockNumber(ctx context.Context) (uint64, error)
	QueryFilter(ctx context.Context, from, to uint64) ([]Log, error)
	SubscribeBlocks(ctx context.Context) (<-chan uint64, error)
}
