// Copyright 2025 UniRep Synchronizer
package store

import (
	"context"
	"fmt"
)

// InsertAttestation appends a new attestation record. Valid starts
// unset (nil) and is filled in once the owning proof's validity is
// known — see SetAttestationValid.
func (a *accessor) InsertAttestation(ctx context.Context, att Attestation) error {
	_, err := a.q.ExecContext(ctx,
		`INSERT INTO attestations
			(epoch, epoch_key, index, attester, proof_index, from_proof_index,
			 attester_id, pos_rep, neg_rep, graffiti, sign_up, hash, valid)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		att.Epoch, att.EpochKey, att.Index, att.Attester, att.ProofIndex, att.FromProofIndex,
		att.AttesterID, att.PosRep, att.NegRep, att.Graffiti, att.SignUp, att.Hash, att.Valid,
	)
	if err != nil {
		return fmt.Errorf("insert attestation epoch=%d key=%s index=%d: %w", att.Epoch, att.EpochKey, att.Index, err)
	}
	return nil
}

// SetAttestationValid backfills the Valid column once a referenced
// proof's verification result is known.
func (a *accessor) SetAttestationValid(ctx context.Context, epoch uint64, index int64, valid bool) error {
	_, err := a.q.ExecContext(ctx,
		`UPDATE attestations SET valid = $3 WHERE epoch = $1 AND index = $2`,
		epoch, index, valid,
	)
	if err != nil {
		return fmt.Errorf("set attestation valid epoch=%d index=%d: %w", epoch, index, err)
	}
	return nil
}

// AttestationsForKey returns every attestation against an epoch key,
// in event order, for the given epoch — the sequence reputation
// folding and epoch-tree sealing replay over.
func (a *accessor) AttestationsForKey(ctx context.Context, epoch uint64, epochKey string) ([]Attestation, error) {
	rows, err := a.q.QueryContext(ctx,
		`SELECT epoch, epoch_key, index, attester, proof_index, from_proof_index,
		        attester_id, pos_rep, neg_rep, graffiti, sign_up, hash, valid
		 FROM attestations WHERE epoch = $1 AND epoch_key = $2 ORDER BY index ASC`,
		epoch, epochKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list attestations epoch=%d key=%s: %w", epoch, epochKey, err)
	}
	defer rows.Close()
	return scanAttestations(rows)
}

// AttestationsForEpoch returns every attestation in an epoch in event
// order, across all epoch keys — used when rebuilding a sealed epoch
// tree (userstate.GenEpochTree); the EpochEnded handler reads per key
// through AttestationsForKey instead.
func (a *accessor) AttestationsForEpoch(ctx context.Context, epoch uint64) ([]Attestation, error) {
	rows, err := a.q.QueryContext(ctx,
		`SELECT epoch, epoch_key, index, attester, proof_index, from_proof_index,
		        attester_id, pos_rep, neg_rep, graffiti, sign_up, hash, valid
		 FROM attestations WHERE epoch = $1 ORDER BY index ASC`,
		epoch,
	)
	if err != nil {
		return nil, fmt.Errorf("list attestations epoch=%d: %w", epoch, err)
	}
	defer rows.Close()
	return scanAttestations(rows)
}

func scanAttestations(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]Attestation, error) {
	var out []Attestation
	for rows.Next() {
		var att Attestation
		if err := rows.Scan(&att.Epoch, &att.EpochKey, &att.Index, &att.Attester, &att.ProofIndex,
			&att.FromProofIndex, &att.AttesterID, &att.PosRep, &att.NegRep, &att.Graffiti,
			&att.SignUp, &att.Hash, &att.Valid); err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, rows.Err()
}
