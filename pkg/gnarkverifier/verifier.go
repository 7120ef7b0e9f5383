// Copyright 2025 UniRep Synchronizer
//
// Package gnarkverifier implements handler.Verifier with Groth16 proof
// verification over BN254, adapted from the teacher's
// pkg/crypto/bls_zkp/prover.go VerifyProofLocally/reconstructProof
// pair. Unlike the teacher, this package only ever verifies: it never
// compiles a circuit or runs a trusted setup, since the six UniRep
// circuits' verifying keys are produced by the protocol's own
// (non-Go) proving toolchain and are loaded here as opaque artifacts.
package gnarkverifier

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/backend/witness"

	"github.com/unirep/synchronizer/pkg/handler"
)

// circuits lists every circuit a Verifier must hold a key for.
var circuits = []handler.Circuit{
	handler.CircuitUserStateTransition,
	handler.CircuitProcessAttestations,
	handler.CircuitStartTransition,
	handler.CircuitProveUserSignUp,
	handler.CircuitProveReputation,
	handler.CircuitVerifyEpochKey,
}

// Verifier holds one Groth16 verifying key per circuit.
type Verifier struct {
	keys map[handler.Circuit]groth16.VerifyingKey
}

// New loads a verifying key for every circuit in circuits from
// <dir>/<circuit>.vk, in the gnark-native binary format written by
// groth16.VerifyingKey.WriteTo. Fails fast if any key is missing: a
// synchronizer that cannot verify one of the six circuits cannot
// safely process any of the events that reference it.
func New(dir string) (*Verifier, error) {
	keys := make(map[handler.Circuit]groth16.VerifyingKey, len(circuits))
	for _, c := range circuits {
		path := filepath.Join(dir, string(c)+".vk")
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("gnarkverifier: open verifying key for %s: %w", c, err)
		}
		vk := groth16.NewVerifyingKey(ecc.BN254)
		_, err = vk.ReadFrom(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("gnarkverifier: read verifying key for %s: %w", c, err)
		}
		keys[c] = vk
	}
	return &Verifier{keys: keys}, nil
}

// NewFromKeys builds a Verifier directly from an in-memory key set,
// bypassing the filesystem. Used by tests and by any future setup
// path that fetches keys from somewhere other than local disk.
func NewFromKeys(keys map[handler.Circuit]groth16.VerifyingKey) *Verifier {
	return &Verifier{keys: keys}
}

// Verify implements handler.Verifier. publicSignals must appear in
// the exact declaration order spec.md §6 lists for circuit; proof is
// the 8-element Groth16 proof encoding (Ar.X, Ar.Y, Bs.X.A0, Bs.X.A1,
// Bs.Y.A0, Bs.Y.A1, Krs.X, Krs.Y), matching the teacher's
// reconstructProof layout.
func (v *Verifier) Verify(ctx context.Context, circuit handler.Circuit, publicSignals []*big.Int, proof []*big.Int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	vk, ok := v.keys[circuit]
	if !ok {
		return false, fmt.Errorf("gnarkverifier: no verifying key registered for circuit %q", circuit)
	}

	gProof, err := decodeProof(proof)
	if err != nil {
		return false, err
	}

	pw, err := publicWitness(publicSignals)
	if err != nil {
		return false, err
	}

	if err := groth16.Verify(gProof, vk, pw); err != nil {
		return false, nil
	}
	return true, nil
}

// publicWitness builds a public-only gnark witness directly from
// field-element values, without a frontend.Circuit assignment struct —
// this package verifies proofs from a non-Go proving toolchain, so
// there is no Go circuit definition to assign into.
func publicWitness(signals []*big.Int) (witness.Witness, error) {
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("gnarkverifier: new witness: %w", err)
	}

	values := make(chan any, len(signals))
	for _, s := range signals {
		values <- s
	}
	close(values)

	if err := w.Fill(len(signals), 0, values); err != nil {
		return nil, fmt.Errorf("gnarkverifier: fill witness: %w", err)
	}
	return w, nil
}

// decodeProof reconstructs a BN254 Groth16 proof from its 8-element
// big.Int encoding.
func decodeProof(p []*big.Int) (groth16.Proof, error) {
	if len(p) != 8 {
		return nil, fmt.Errorf("gnarkverifier: expected 8 proof elements, got %d", len(p))
	}
	proof := &groth16bn254.Proof{}
	proof.Ar.X.SetBigInt(p[0])
	proof.Ar.Y.SetBigInt(p[1])
	proof.Bs.X.A0.SetBigInt(p[2])
	proof.Bs.X.A1.SetBigInt(p[3])
	proof.Bs.Y.A0.SetBigInt(p[4])
	proof.Bs.Y.A1.SetBigInt(p[5])
	proof.Krs.X.SetBigInt(p[6])
	proof.Krs.Y.SetBigInt(p[7])
	return proof, nil
}
