// Copyright 2025 UniRep Synchronizer
//
// Package field provides the canonical boundary encoding for protocol
// field elements (decimal strings, per the legacy UniRep.js convention)
// and the Poseidon-style hash the Tree Engine and handlers build on.
//
// Per spec.md §1, Poseidon, the Merkle tree shapes, and field arithmetic
// are assumed-available library functions; here they are backed by
// gnark-crypto's BN254 scalar field and its Poseidon2 sponge. This is
// not bit-compatible with the circomlib Poseidon used by the production
// UniRep circuits (different constants/permutation) — it stands in for
// "a Poseidon-style hash is available," the assumption spec.md licenses.
package field

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

// Element is a BN254 scalar field element — the unit every record,
// hash, and circuit signal crosses the store/chain boundary as.
type Element = fr.Element

// Zero returns the additive identity.
func Zero() Element {
	var z Element
	return z
}

// One returns the multiplicative identity.
func One() Element {
	var o Element
	o.SetOne()
	return o
}

// FromUint64 lifts a uint64 into the field.
func FromUint64(v uint64) Element {
	var e Element
	e.SetUint64(v)
	return e
}

// FromBigInt lifts a big.Int into the field, reducing modulo the field order.
func FromBigInt(v *big.Int) Element {
	var e Element
	e.SetBigInt(v)
	return e
}

// FromDecimalString parses the canonical boundary encoding: a base-10
// string, as persisted in publicSignals/proof columns and emitted by
// the legacy UniRep.js JSON encoding. Returns an error on malformed input
// rather than silently truncating, since a bad public signal must not
// be mistaken for a zero signal.
func FromDecimalString(s string) (Element, error) {
	var e Element
	if _, ok := new(big.Int).SetString(s, 10); !ok {
		return e, fmt.Errorf("field: %q is not a valid base-10 integer", s)
	}
	if _, err := e.SetString(s); err != nil {
		return e, fmt.Errorf("field: parse %q: %w", s, err)
	}
	return e, nil
}

// ToDecimalString renders the canonical boundary encoding.
func ToDecimalString(e Element) string {
	return e.BigInt(new(big.Int)).String()
}

// DecimalStrings renders a slice of elements, preserving order —
// the shape publicSignals/proof columns are persisted in.
func DecimalStrings(es []Element) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = ToDecimalString(e)
	}
	return out
}

// ParseDecimalStrings is the inverse of DecimalStrings.
func ParseDecimalStrings(ss []string) ([]Element, error) {
	out := make([]Element, len(ss))
	for i, s := range ss {
		e, err := FromDecimalString(s)
		if err != nil {
			return nil, fmt.Errorf("field: element %d: %w", i, err)
		}
		out[i] = e
	}
	return out, nil
}

// Equal reports whether two elements are the same field value.
func Equal(a, b Element) bool {
	return a.Equal(&b)
}

// IsZero reports whether e is the additive identity — used throughout
// the handlers to detect "unset"/sentinel epoch-key nullifiers.
func IsZero(e Element) bool {
	return e.IsZero()
}

// hasher returns a fresh Poseidon2 sponge over the BN254 scalar field.
// A fresh instance is taken per call: gnark-crypto's sponge is stateful
// and Hash below must be safe for concurrent handler invocations within
// one ingestor run (though the ingestor itself is single-threaded, the
// UserState read path calls Hash concurrently with event processing).
func hasher() *poseidon2.Permutation {
	return poseidon2.NewPermutation(poseidon2.GetDefaultParameters())
}

// Hash computes the Poseidon-style hash of the given field elements,
// H(a, b, ...) in the notation of spec.md (e.g. H(idCommitment, initialUSTRoot),
// H(attHash, hashChain), H(identityNullifier, epoch, nonce)).
func Hash(inputs ...Element) Element {
	perm := hasher()
	state := make([]Element, perm.Width())
	copy(state, inputs)
	perm.Permutation(state)
	return state[0]
}

// HashBigInts is a convenience wrapper for call sites still carrying
// big.Int values (chain-decoded epoch numbers, nonces, attester IDs).
func HashBigInts(inputs ...*big.Int) Element {
	elems := make([]Element, len(inputs))
	for i, v := range inputs {
		elems[i] = FromBigInt(v)
	}
	return Hash(elems...)
}

// Mod returns v reduced into [0, 2^bits) by truncation — used to derive
// an epoch key from H(identityNullifier, epoch, nonce) truncated to
// D_epoch bits, per spec.md's EpochKey definition.
func Mod(e Element, bits uint) *big.Int {
	v := e.BigInt(new(big.Int))
	mask := new(big.Int).Lsh(big.NewInt(1), bits)
	mask.Sub(mask, big.NewInt(1))
	return v.And(v, mask)
}
