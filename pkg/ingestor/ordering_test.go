// Copyright 2025 UniRep Synchronizer
package ingestor

import "testing"

func mkLog(block, tx, idx uint64) Log {
	return Log{BlockNumber: block, TxIndex: tx, LogIndex: idx}
}

func TestOrderAndFilterSortsByTuple(t *testing.T) {
	logs := []Log{
		mkLog(2, 0, 0),
		mkLog(1, 1, 0),
		mkLog(1, 0, 1),
		mkLog(1, 0, 0),
	}
	out := OrderAndFilter(logs, Cursor{})
	want := []Cursor{{1, 0, 0}, {1, 0, 1}, {1, 1, 0}, {2, 0, 0}}
	if len(out) != len(want) {
		t.Fatalf("expected %d logs, got %d", len(want), len(out))
	}
	for i, l := range out {
		if cursorOf(l) != want[i] {
			t.Fatalf("position %d: got %+v, want %+v", i, cursorOf(l), want[i])
		}
	}
}

func TestOrderAndFilterDropsAlreadyProcessed(t *testing.T) {
	logs := []Log{mkLog(1, 0, 0), mkLog(1, 0, 1), mkLog(2, 0, 0)}
	out := OrderAndFilter(logs, Cursor{Block: 1, TxIndex: 0, EventIndex: 0})
	if len(out) != 2 {
		t.Fatalf("expected 2 logs after filtering, got %d", len(out))
	}
	if cursorOf(out[0]) != (Cursor{1, 0, 1}) {
		t.Fatalf("expected first remaining log at (1,0,1), got %+v", cursorOf(out[0]))
	}
}

func TestOrderAndFilterDropsExactDuplicates(t *testing.T) {
	logs := []Log{mkLog(1, 0, 0), mkLog(1, 0, 0), mkLog(1, 0, 1)}
	out := OrderAndFilter(logs, Cursor{})
	if len(out) != 2 {
		t.Fatalf("expected duplicates collapsed to 2 logs, got %d", len(out))
	}
}

func TestOrderAndFilterEmptyInput(t *testing.T) {
	out := OrderAndFilter(nil, Cursor{})
	if len(out) != 0 {
		t.Fatalf("expected no logs, got %d", len(out))
	}
}
