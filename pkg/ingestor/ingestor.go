// Copyright 2025 UniRep Synchronizer
package ingestor

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/unirep/synchronizer/pkg/chainerr"
	"github.com/unirep/synchronizer/pkg/logging"
	"github.com/unirep/synchronizer/pkg/store"
)

// Handler dispatches a single ordered log inside an open transaction.
// pkg/handler implements this; kept as an interface here so pkg/ingestor
// never imports pkg/handler (the dependency runs the other way: handler
// imports ingestor for Log/Topic).
type Handler interface {
	Dispatch(ctx context.Context, tx *store.Tx, log Log) error
}

// Observer is notified after each log's transaction commits — the
// "emit after commit" hook of spec.md §4.3, so a consumer (metrics,
// an external notifier) never observes state ahead of the store.
type Observer func(log Log)

// Config tunes the ingestor's poll cadence and retry bounds.
type Config struct {
	PollInterval    time.Duration
	BlockLookback   uint64
	StoreRetryLimit int
}

// Ingestor is the single-writer event processor of spec.md §4.3: poll,
// order, dispatch one transaction per log, advance the cursor only on
// commit. No goroutine pool and no queue between polling and dispatch
// — see the package doc comment for why that collapses the teacher's
// two-goroutine EventWatcher shape into one loop.
type Ingestor struct {
	chain   Chain
	store   *store.Store
	handler Handler
	cfg     Config
	logger  *log.Logger
	observe Observer
}

// New builds an Ingestor. observe may be nil.
func New(chain Chain, st *store.Store, handler Handler, cfg Config, logger *log.Logger, observe Observer) *Ingestor {
	if logger == nil {
		logger = logging.New("Ingestor")
	}
	if observe == nil {
		observe = func(Log) {}
	}
	return &Ingestor{chain: chain, store: st, handler: handler, cfg: cfg, logger: logger, observe: observe}
}

// Run polls and dispatches until ctx is cancelled or a fatal error
// (chainerr.UnknownEventTopic, chainerr.MissingReferencedProof, or a
// StoreError that exceeds StoreRetryLimit) is hit.
func (ing *Ingestor) Run(ctx context.Context) error {
	cursor, err := ing.initialCursor(ctx)
	for err != nil {
		var transient *chainerr.TransientChainError
		if !errors.As(err, &transient) {
			return err
		}
		ing.logger.Printf("transient chain error loading cursor, will retry next poll: %v", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ing.cfg.PollInterval):
		}
		cursor, err = ing.initialCursor(ctx)
	}

	ticker := time.NewTicker(ing.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			next, err := ing.pollOnce(ctx, cursor)
			if err != nil {
				if chainerr.IsFatal(err) {
					return err
				}
				var transient *chainerr.TransientChainError
				if errors.As(err, &transient) {
					ing.logger.Printf("transient chain error, will retry next poll: %v", err)
					continue
				}
				return err
			}
			cursor = next
		}
	}
}

// initialCursor loads the persisted cursor, falling back to
// (currentBlock - BlockLookback) on a fresh deployment.
func (ing *Ingestor) initialCursor(ctx context.Context) (Cursor, error) {
	state, err := ing.store.GetSynchronizerState(ctx)
	if err != nil {
		return Cursor{}, &chainerr.StoreError{Err: err}
	}
	if state.LatestProcessedBlock > 0 {
		return Cursor{
			Block:      state.LatestProcessedBlock,
			TxIndex:    state.LatestProcessedTransactionIndex,
			EventIndex: state.LatestProcessedEventIndex,
		}, nil
	}

	current, err := ing.chain.GetBlockNumber(ctx)
	if err != nil {
		return Cursor{}, &chainerr.TransientChainError{Err: err}
	}
	start := uint64(0)
	if current > ing.cfg.BlockLookback {
		start = current - ing.cfg.BlockLookback
	}
	return Cursor{Block: start}, nil
}

// pollOnce fetches logs since cursor, orders and dedups them, and
// dispatches each in its own transaction. Returns the new cursor.
func (ing *Ingestor) pollOnce(ctx context.Context, cursor Cursor) (Cursor, error) {
	currentBlock, err := ing.chain.GetBlockNumber(ctx)
	if err != nil {
		return cursor, &chainerr.TransientChainError{Err: err}
	}
	if currentBlock < cursor.Block {
		return cursor, nil // reorg below our cursor would need a fuller resync; treated as no new blocks here
	}

	logs, err := ing.chain.QueryFilter(ctx, cursor.Block, currentBlock)
	if err != nil {
		return cursor, &chainerr.TransientChainError{Err: err}
	}

	ordered := OrderAndFilter(logs, cursor)
	for _, l := range ordered {
		if err := ing.processLogWithRetry(ctx, l); err != nil {
			return cursor, err
		}
		cursor = cursorOf(l)
		ing.observe(l)
	}

	if err := ing.store.AdvanceCompleteBlock(ctx, currentBlock); err != nil {
		ing.logger.Printf("advance complete block: %v", err)
	}

	return cursor, nil
}

// processLogWithRetry dispatches one log inside a transaction,
// retrying a bounded number of times on StoreError before giving up
// fatally — spec.md §7: "StoreError retries bounded then fatal."
func (ing *Ingestor) processLogWithRetry(ctx context.Context, l Log) error {
	var lastErr error
	attempts := ing.cfg.StoreRetryLimit
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		err := ing.processLog(ctx, l)
		if err == nil {
			return nil
		}
		var storeErr *chainerr.StoreError
		if !errors.As(err, &storeErr) {
			return err // fatal or unexpected — not retryable here
		}
		lastErr = err
		ing.logger.Printf("store error on attempt %d/%d for log at block=%d tx=%d idx=%d: %v",
			i+1, attempts, l.BlockNumber, l.TxIndex, l.LogIndex, err)
	}
	return lastErr
}

// processLog runs the handler for one log inside a single transaction
// and advances the cursor on commit. A no-op error (ProtocolViolation
// or DuplicateNullifier) still advances the cursor — spec.md §7: "the
// event is considered processed so the cursor advances."
func (ing *Ingestor) processLog(ctx context.Context, l Log) error {
	c := cursorOf(l)
	return ing.store.Transaction(ctx, func(tx *store.Tx) error {
		if err := ing.handler.Dispatch(ctx, tx, l); err != nil {
			if chainerr.IsNoOp(err) {
				ing.logger.Printf("no-op at block=%d tx=%d idx=%d: %v", c.Block, c.TxIndex, c.EventIndex, err)
			} else {
				return err
			}
		}
		return tx.AdvanceCursor(store.Cursor{Block: c.Block, TxIndex: c.TxIndex, EventIndex: c.EventIndex})
	})
}
