// Copyright 2025 UniRep Synchronizer
package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

// InsertProof records a freshly-seen proof event. Index is a dense,
// strictly-increasing global counter matching the ProofIndexRecords
// values other proofs reference, mirroring the Synchronizer's
// proofIndex column.
func (a *accessor) InsertProof(ctx context.Context, p Proof) (int64, error) {
	var index int64
	err := a.q.QueryRowContext(ctx,
		`INSERT INTO proofs
			(event, epoch, public_signals, proof, valid, spent,
			 blinded_user_state, blinded_hash_chain, output_blinded_user_state,
			 input_blinded_user_state, output_blinded_hash_chain, global_state_tree,
			 proof_index_records)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		 RETURNING index`,
		p.Event, p.Epoch, pq.Array(p.PublicSignals), pq.Array(p.ProofBytes), p.Valid, p.Spent,
		p.BlindedUserState, p.BlindedHashChain, p.OutputBlindedUserState,
		p.InputBlindedUserState, p.OutputBlindedHashChain, p.GlobalStateTree,
		pq.Array(p.ProofIndexRecords),
	).Scan(&index)
	if err != nil {
		return 0, fmt.Errorf("insert proof event=%s: %w", p.Event, err)
	}
	return index, nil
}

// GetProof loads a proof by its global index.
func (a *accessor) GetProof(ctx context.Context, index int64) (*Proof, error) {
	var p Proof
	err := a.q.QueryRowContext(ctx,
		`SELECT index, event, epoch, public_signals, proof, valid, spent,
		        blinded_user_state, blinded_hash_chain, output_blinded_user_state,
		        input_blinded_user_state, output_blinded_hash_chain, global_state_tree,
		        proof_index_records
		 FROM proofs WHERE index = $1`,
		index,
	).Scan(&p.Index, &p.Event, &p.Epoch, pq.Array(&p.PublicSignals), pq.Array(&p.ProofBytes),
		&p.Valid, &p.Spent, &p.BlindedUserState, &p.BlindedHashChain, &p.OutputBlindedUserState,
		&p.InputBlindedUserState, &p.OutputBlindedHashChain, &p.GlobalStateTree,
		pq.Array(&p.ProofIndexRecords))
	if err != nil {
		return nil, fmt.Errorf("get proof index=%d: %w", index, err)
	}
	return &p, nil
}

// MarkProofSpent flags a proof's nullifier(s) as consumed, preventing
// a later event from reusing the same proof index.
func (a *accessor) MarkProofSpent(ctx context.Context, index int64) error {
	_, err := a.q.ExecContext(ctx, `UPDATE proofs SET spent = TRUE WHERE index = $1`, index)
	if err != nil {
		return fmt.Errorf("mark proof spent index=%d: %w", index, err)
	}
	return nil
}
