// Copyright 2025 UniRep Synchronizer
package handler

import (
	"fmt"
	"math/big"

	"github.com/unirep/synchronizer/pkg/chainerr"
	"github.com/unirep/synchronizer/pkg/field"
	"github.com/unirep/synchronizer/pkg/tree"
)

// logData is the minimal view decode helpers need from an
// ingestor.Log, kept separate from that type so this file's tests
// don't need to import pkg/ingestor.
type logData struct {
	Data []byte
}

// decodeUint256Data splits data into n big-endian uint256 words, the
// ABI encoding every UniRep event signature in this package uses for
// its non-indexed fields (spec.md never indexes more than one or two
// topics per event).
func decodeUint256Data(data []byte, n int) ([]*big.Int, error) {
	const wordSize = 32
	if len(data) < n*wordSize {
		return nil, fmt.Errorf("expected %d words (%d bytes), got %d bytes", n, n*wordSize, len(data))
	}
	out := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		word := data[i*wordSize : (i+1)*wordSize]
		out[i] = new(big.Int).SetBytes(word)
	}
	return out, nil
}

// wordReader sequentially decodes a log's data as a stream of 32-byte
// big-endian words, the same ABI convention decodeUint256Data uses for
// the fixed-width events. Proof events additionally carry dynamic
// arrays (epkNullifiers, blindedHashChains, proofIndexRecords), encoded
// length-prefixed the way Solidity ABI-encodes a dynamic array: one
// length word followed by that many element words.
type wordReader struct {
	data []byte
	pos  int
}

const wordSize = 32

func newWordReader(data []byte) *wordReader {
	return &wordReader{data: data}
}

func (r *wordReader) Uint256() (*big.Int, error) {
	if len(r.data) < r.pos+wordSize {
		return nil, fmt.Errorf("word reader: short read at offset %d", r.pos)
	}
	v := new(big.Int).SetBytes(r.data[r.pos : r.pos+wordSize])
	r.pos += wordSize
	return v, nil
}

func (r *wordReader) Fixed(n int) ([]*big.Int, error) {
	out := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		v, err := r.Uint256()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *wordReader) Array() ([]*big.Int, error) {
	n, err := r.Uint256()
	if err != nil {
		return nil, err
	}
	if !n.IsInt64() || n.Int64() < 0 || n.Int64() > 4096 {
		return nil, fmt.Errorf("word reader: implausible array length %s", n.String())
	}
	return r.Fixed(int(n.Int64()))
}

// decodeProofEvent reads a fixed-width public-signal layout (per
// spec.md §6's table) followed by the dynamic Groth16 proof word
// array every Indexed*Proof topic carries.
func decodeProofEvent(data []byte, signalCount int) (signals []*big.Int, proof []*big.Int, err error) {
	r := newWordReader(data)
	signals, err = r.Fixed(signalCount)
	if err != nil {
		return nil, nil, err
	}
	proof, err = r.Array()
	if err != nil {
		return nil, nil, err
	}
	return signals, proof, nil
}

// bigStrs renders a slice of big.Ints as the decimal strings the
// store's public_signals/proof TEXT[] columns persist.
func bigStrs(xs []*big.Int) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = x.String()
	}
	return out
}

// badProtocolData wraps a decode failure as a ProtocolViolation: a log
// that doesn't match its topic's expected shape is a malformed
// on-chain submission, not a synchronizer bug.
func badProtocolData(err error) error {
	return chainerr.NewProtocolViolation("malformed event data: %v", err)
}

// storeErr wraps a genuine store failure for the bounded-retry path.
func storeErr(err error) error {
	return &chainerr.StoreError{Err: err}
}

// newThrowawaySparseTree builds a fresh sparse tree for one-off root
// computations (e.g. ComputeInitUSTRoot) that never need to retain the
// tree itself.
func newThrowawaySparseTree(depth uint) *tree.SparseTree {
	return tree.NewSparseTree(depth, field.One())
}
