// Copyright 2025 UniRep Synchronizer
package ethereum

import (
	"reflect"
	"testing"
)

func TestBlockWindowsSingleWindowWhenUnderLimit(t *testing.T) {
	got := blockWindows(10, 15, 100)
	want := [][2]uint64{{10, 15}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBlockWindowsSplitsAtMaxRange(t *testing.T) {
	got := blockWindows(0, 25, 10)
	want := [][2]uint64{{0, 10}, {11, 21}, {22, 25}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBlockWindowsUnboundedWhenMaxRangeZero(t *testing.T) {
	got := blockWindows(5, 5000, 0)
	want := [][2]uint64{{5, 5000}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBlockWindowsEmptyWhenFromAfterTo(t *testing.T) {
	got := blockWindows(20, 10, 5)
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestBlockWindowsSingleBlockRange(t *testing.T) {
	got := blockWindows(7, 7, 10)
	want := [][2]uint64{{7, 7}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
