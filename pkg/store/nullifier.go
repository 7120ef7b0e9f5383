// Copyright 2025 UniRep Synchronizer
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/unirep/synchronizer/pkg/chainerr"
)

// InsertNullifier records a nullifier as unconfirmed (seen in a proof
// log, not yet known to have survived on-chain confirmation depth).
func (a *accessor) InsertNullifier(ctx context.Context, n Nullifier) error {
	_, err := a.q.ExecContext(ctx,
		`INSERT INTO nullifiers (epoch, nullifier, confirmed) VALUES ($1, $2, $3)
		 ON CONFLICT (epoch, nullifier) DO NOTHING`,
		n.Epoch, n.Nullifier, n.Confirmed,
	)
	if err != nil {
		return fmt.Errorf("insert nullifier %s: %w", n.Nullifier, err)
	}
	return nil
}

// ConfirmNullifier marks a nullifier confirmed. The migration's
// partial unique index on (nullifier) WHERE confirmed makes a second
// confirmation of the same value fail with a unique-violation, which
// this method maps to chainerr.DuplicateNullifier.
func (a *accessor) ConfirmNullifier(ctx context.Context, epoch uint64, nullifier string) error {
	_, err := a.q.ExecContext(ctx,
		`UPDATE nullifiers SET confirmed = TRUE WHERE epoch = $1 AND nullifier = $2`,
		epoch, nullifier,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &chainerr.DuplicateNullifier{Epoch: epoch, Nullifier: nullifier}
		}
		return fmt.Errorf("confirm nullifier %s: %w", nullifier, err)
	}
	return nil
}

// ConfirmNullifierReplacing implements the user-state-transition
// validator's nullifier-commit step: any unconfirmed row previously
// recorded for this nullifier in this epoch is discarded and replaced
// by a confirmed one. A unique violation (the nullifier is already
// confirmed, in this epoch or another) maps to DuplicateNullifier.
func (a *accessor) ConfirmNullifierReplacing(ctx context.Context, epoch uint64, nullifier string) error {
	if _, err := a.q.ExecContext(ctx,
		`DELETE FROM nullifiers WHERE epoch = $1 AND nullifier = $2 AND NOT confirmed`,
		epoch, nullifier,
	); err != nil {
		return fmt.Errorf("delete unconfirmed nullifier %s: %w", nullifier, err)
	}
	_, err := a.q.ExecContext(ctx,
		`INSERT INTO nullifiers (epoch, nullifier, confirmed) VALUES ($1, $2, TRUE)`,
		epoch, nullifier,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &chainerr.DuplicateNullifier{Epoch: epoch, Nullifier: nullifier}
		}
		return fmt.Errorf("confirm nullifier %s: %w", nullifier, err)
	}
	return nil
}

// NullifierConfirmed reports whether a nullifier value has already
// been confirmed spent, across any epoch.
func (a *accessor) NullifierConfirmed(ctx context.Context, nullifier string) (bool, error) {
	var exists bool
	err := a.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM nullifiers WHERE nullifier = $1 AND confirmed)`,
		nullifier,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("nullifier confirmed %s: %w", nullifier, err)
	}
	return exists, nil
}

// isUniqueViolation checks the driver-specific error code lib/pq
// reports for a unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
