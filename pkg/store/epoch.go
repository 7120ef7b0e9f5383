// Copyright 2025 UniRep Synchronizer
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateEpoch inserts a new unsealed epoch. The migration's partial
// unique index on the constant (TRUE) WHERE NOT sealed rejects a second unsealed
// epoch, which is the database-level backstop for spec.md's "at most
// one unsealed epoch" invariant.
func (a *accessor) CreateEpoch(ctx context.Context, number uint64) error {
	_, err := a.q.ExecContext(ctx,
		`INSERT INTO epochs (number, sealed, epoch_root) VALUES ($1, FALSE, NULL)`,
		number,
	)
	if err != nil {
		return fmt.Errorf("create epoch %d: %w", number, err)
	}
	return nil
}

// SealEpoch marks an epoch sealed and records its final epoch tree root.
func (a *accessor) SealEpoch(ctx context.Context, number uint64, epochRoot string) error {
	res, err := a.q.ExecContext(ctx,
		`UPDATE epochs SET sealed = TRUE, epoch_root = $2 WHERE number = $1 AND NOT sealed`,
		number, epochRoot,
	)
	if err != nil {
		return fmt.Errorf("seal epoch %d: %w", number, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("seal epoch %d: %w", number, err)
	}
	if n == 0 {
		return fmt.Errorf("seal epoch %d: %w", number, sql.ErrNoRows)
	}
	return nil
}

// GetEpoch loads a single epoch by number.
func (a *accessor) GetEpoch(ctx context.Context, number uint64) (*Epoch, error) {
	var e Epoch
	err := a.q.QueryRowContext(ctx,
		`SELECT number, sealed, epoch_root FROM epochs WHERE number = $1`,
		number,
	).Scan(&e.Number, &e.Sealed, &e.EpochRoot)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CurrentEpoch returns the highest-numbered epoch, sealed or not. The
// Synchronizer always has exactly one such row once signup has occurred.
func (a *accessor) CurrentEpoch(ctx context.Context) (*Epoch, error) {
	var e Epoch
	err := a.q.QueryRowContext(ctx,
		`SELECT number, sealed, epoch_root FROM epochs ORDER BY number DESC LIMIT 1`,
	).Scan(&e.Number, &e.Sealed, &e.EpochRoot)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
