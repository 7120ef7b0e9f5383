// Copyright 2025 UniRep Synchronizer
//
// End-to-end ingestor test against a live Postgres instance, matching
// the skip-without-live-DB convention of pkg/store's tests.
package ingestor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/unirep/synchronizer/pkg/store"
)

type fakeChain struct {
	blockNumber uint64
	logs        []Log
}

func (f *fakeChain) GetBlockNumber(ctx context.Context) (uint64, error) { return f.blockNumber, nil }

func (f *fakeChain) QueryFilter(ctx context.Context, from, to uint64) ([]Log, error) {
	var out []Log
	for _, l := range f.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeChain) SubscribeBlocks(ctx context.Context) (<-chan uint64, error) {
	ch := make(chan uint64)
	close(ch)
	return ch, nil
}

type recordingHandler struct {
	seen []Log
}

func (h *recordingHandler) Dispatch(ctx context.Context, tx *store.Tx, l Log) error {
	h.seen = append(h.seen, l)
	return nil
}

func TestIngestorDispatchesInOrderAndAdvancesCursor(t *testing.T) {
	connStr := os.Getenv("UNIREP_TEST_DB")
	if connStr == "" {
		t.Skip("test database not configured")
	}

	st, err := store.Open(context.Background(), store.Config{DatabaseURL: connStr}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	chain := &fakeChain{
		blockNumber: 5,
		logs: []Log{
			{BlockNumber: 3, TxIndex: 1, LogIndex: 0},
			{BlockNumber: 2, TxIndex: 0, LogIndex: 0},
			{BlockNumber: 2, TxIndex: 0, LogIndex: 1},
		},
	}
	handler := &recordingHandler{}
	ing := New(chain, st, handler, Config{PollInterval: 10 * time.Millisecond, BlockLookback: 10, StoreRetryLimit: 1}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_ = ing.Run(ctx) // expected to end via context deadline

	if len(handler.seen) != 3 {
		t.Fatalf("expected 3 logs dispatched, got %d", len(handler.seen))
	}
	want := []Cursor{{2, 0, 0}, {2, 0, 1}, {3, 1, 0}}
	for i, l := range handler.seen {
		if cursorOf(l) != want[i] {
			t.Fatalf("dispatch order mismatch at %d: got %+v want %+v", i, cursorOf(l), want[i])
		}
	}

	state, err := st.GetSynchronizerState(ctx)
	if err != nil {
		t.Fatalf("get synchronizer state: %v", err)
	}
	if state.LatestProcessedBlock != 3 || state.LatestProcessedTransactionIndex != 1 {
		t.Fatalf("unexpected cursor after run: %+v", state)
	}
}
