// Copyright 2025 UniRep Synchronizer
package store

import "testing"

func TestCursorLess(t *testing.T) {
	cases := []struct {
		a, b Cursor
		want bool
	}{
		{Cursor{1, 0, 0}, Cursor{2, 0, 0}, true},
		{Cursor{2, 0, 0}, Cursor{1, 0, 0}, false},
		{Cursor{1, 0, 0}, Cursor{1, 1, 0}, true},
		{Cursor{1, 1, 0}, Cursor{1, 0, 0}, false},
		{Cursor{1, 1, 0}, Cursor{1, 1, 1}, true},
		{Cursor{1, 1, 1}, Cursor{1, 1, 1}, false},
	}
	for _, c := range cases {
		if got := c.a.Less(c.b); got != c.want {
			t.Errorf("%+v.Less(%+v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestEncodeEventIndexPreservesTupleOrder(t *testing.T) {
	tuples := []Cursor{
		{Block: 1, TxIndex: 0, EventIndex: 0},
		{Block: 1, TxIndex: 0, EventIndex: 1},
		{Block: 1, TxIndex: 1, EventIndex: 0},
		{Block: 2, TxIndex: 0, EventIndex: 0},
		{Block: 2, TxIndex: 0, EventIndex: 1},
	}
	for i := 1; i < len(tuples); i++ {
		prev := EncodeEventIndex(tuples[i-1].Block, tuples[i-1].TxIndex, tuples[i-1].EventIndex)
		next := EncodeEventIndex(tuples[i].Block, tuples[i].TxIndex, tuples[i].EventIndex)
		if !(prev < next) {
			t.Fatalf("expected encoded index to increase: %d (%v) !< %d (%v)", prev, tuples[i-1], next, tuples[i])
		}
	}
}

func TestEncodeEventIndexDistinctValues(t *testing.T) {
	seen := map[int64]Cursor{}
	samples := []Cursor{
		{0, 0, 0},
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{1000000, 5, 10},
	}
	for _, c := range samples {
		idx := EncodeEventIndex(c.Block, c.TxIndex, c.EventIndex)
		if other, ok := seen[idx]; ok {
			t.Fatalf("collision between %+v and %+v at index %d", c, other, idx)
		}
		seen[idx] = c
	}
}

func TestFromSyncState(t *testing.T) {
	s := SynchronizerState{
		LatestProcessedBlock:            10,
		LatestProcessedTransactionIndex: 2,
		LatestProcessedEventIndex:       3,
	}
	c := FromSyncState(s)
	if c.Block != 10 || c.TxIndex != 2 || c.EventIndex != 3 {
		t.Fatalf("unexpected cursor from state: %+v", c)
	}
}
