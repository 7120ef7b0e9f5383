// Copyright 2025 UniRep Synchronizer
package store

import (
	"context"
	"fmt"
)

// GetSynchronizerState loads the singleton cursor row. The row itself
// is seeded with zero values by migration 0001_init.sql; this method
// only reads it.
func (a *accessor) GetSynchronizerState(ctx context.Context) (*SynchronizerState, error) {
	var s SynchronizerState
	err := a.q.QueryRowContext(ctx,
		`SELECT latest_processed_block, latest_processed_transaction_index,
		        latest_processed_event_index, latest_complete_block
		 FROM synchronizer_state WHERE id = 1`,
	).Scan(&s.LatestProcessedBlock, &s.LatestProcessedTransactionIndex,
		&s.LatestProcessedEventIndex, &s.LatestCompleteBlock)
	if err != nil {
		return nil, fmt.Errorf("get synchronizer state: %w", err)
	}
	return &s, nil
}

// AdvanceCursor persists the cursor for one processed event, inside
// that event's transaction and before it commits — emit-after-commit semantics
// (spec.md §4.3) require this call happen inside the same Tx as the
// mutations it follows, never after.
func (a *accessor) AdvanceCursor(ctx context.Context, c Cursor) error {
	_, err := a.q.ExecContext(ctx,
		`UPDATE synchronizer_state
		 SET latest_processed_block = $1,
		     latest_processed_transaction_index = $2,
		     latest_processed_event_index = $3
		 WHERE id = 1`,
		c.Block, c.TxIndex, c.EventIndex,
	)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}

// AdvanceCompleteBlock records the highest block number known to have
// no further logs pending (used to bound re-sync lookback on restart).
func (a *accessor) AdvanceCompleteBlock(ctx context.Context, block uint64) error {
	_, err := a.q.ExecContext(ctx,
		`UPDATE synchronizer_state SET latest_complete_block = $1
		 WHERE id = 1 AND latest_complete_block < $1`,
		block,
	)
	if err != nil {
		return fmt.Errorf("advance complete block: %w", err)
	}
	return nil
}
