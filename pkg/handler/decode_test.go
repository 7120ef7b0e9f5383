// Copyright 2025 UniRep Synchronizer
package handler

import (
	"math/big"
	"testing"

	"github.com/unirep/synchronizer/pkg/ingestor"
)

func word(n int64) []byte {
	b := make([]byte, wordSize)
	big.NewInt(n).FillBytes(b)
	return b
}

func concatWords(ws ...[]byte) []byte {
	var out []byte
	for _, w := range ws {
		out = append(out, w...)
	}
	return out
}

func TestWordReaderFixedAndArray(t *testing.T) {
	data := concatWords(word(1), word(2), word(2), word(10), word(20))
	r := newWordReader(data)

	fixed, err := r.Fixed(2)
	if err != nil {
		t.Fatalf("Fixed: %v", err)
	}
	if fixed[0].Int64() != 1 || fixed[1].Int64() != 2 {
		t.Fatalf("unexpected fixed words: %v", fixed)
	}

	arr, err := r.Array()
	if err != nil {
		t.Fatalf("Array: %v", err)
	}
	if len(arr) != 2 || arr[0].Int64() != 10 || arr[1].Int64() != 20 {
		t.Fatalf("unexpected array: %v", arr)
	}
}

func TestWordReaderShortReadErrors(t *testing.T) {
	r := newWordReader(word(1)[:10])
	if _, err := r.Uint256(); err == nil {
		t.Fatal("expected short read error")
	}
}

func TestWordReaderRejectsImplausibleArrayLength(t *testing.T) {
	data := concatWords(word(1 << 20))
	r := newWordReader(data)
	if _, err := r.Array(); err == nil {
		t.Fatal("expected implausible array length error")
	}
}

func TestDecodeAttestationSubmittedCurrentTopic(t *testing.T) {
	data := concatWords(
		word(7),  // epoch
		word(42), // epochKey
		word(99), // attester
		word(3),  // proofIndex
		word(2),  // fromProofIndex
		word(5),  // posRep
		word(1),  // negRep
		word(0),  // graffiti
		word(1),  // signUp
	)
	d, err := decodeAttestationSubmitted(ingestor.TopicAttestationSubmitted, logData{Data: data})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.epoch != 7 || d.proofIndex != 3 || d.fromProofIndex != 2 || !d.signUp {
		t.Fatalf("unexpected decode: %+v", d)
	}
}

func TestDecodeAttestationSubmittedLegacyTopicHasNoFromProofIndex(t *testing.T) {
	data := concatWords(
		word(7),  // epoch
		word(42), // epochKey
		word(99), // attester
		word(3),  // proofIndex
		word(5),  // posRep
		word(1),  // negRep
		word(0),  // graffiti
		word(0),  // signUp
	)
	d, err := decodeAttestationSubmitted(ingestor.TopicAttestationSubmittedLegacy, logData{Data: data})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.fromProofIndex != 0 {
		t.Fatalf("expected zero fromProofIndex for legacy topic, got %d", d.fromProofIndex)
	}
	if d.signUp {
		t.Fatal("expected signUp=false")
	}
}
