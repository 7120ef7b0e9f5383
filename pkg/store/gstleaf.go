// Copyright 2025 UniRep Synchronizer
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertGSTLeaf appends a new leaf. Index must be the next dense index
// within the epoch; the migration's primary key on (epoch, index)
// rejects a duplicate index at the database layer, but a gap is not
// detected here.
func (a *accessor) InsertGSTLeaf(ctx context.Context, leaf GSTLeaf) error {
	_, err := a.q.ExecContext(ctx,
		`INSERT INTO gst_leaves (epoch, index, hash, tx_hash) VALUES ($1, $2, $3, $4)`,
		leaf.Epoch, leaf.Index, leaf.Hash, leaf.TxHash,
	)
	if err != nil {
		return fmt.Errorf("insert gst leaf epoch=%d index=%d: %w", leaf.Epoch, leaf.Index, err)
	}
	return nil
}

// GSTLeavesForEpoch returns every leaf for an epoch in ascending index
// order — the sequence UserState.GenGSTTree replays to rebuild the tree.
func (a *accessor) GSTLeavesForEpoch(ctx context.Context, epoch uint64) ([]GSTLeaf, error) {
	rows, err := a.q.QueryContext(ctx,
		`SELECT epoch, index, hash, tx_hash FROM gst_leaves WHERE epoch = $1 ORDER BY index ASC`,
		epoch,
	)
	if err != nil {
		return nil, fmt.Errorf("list gst leaves epoch=%d: %w", epoch, err)
	}
	defer rows.Close()

	var leaves []GSTLeaf
	for rows.Next() {
		var l GSTLeaf
		if err := rows.Scan(&l.Epoch, &l.Index, &l.Hash, &l.TxHash); err != nil {
			return nil, err
		}
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

// NextGSTLeafIndex returns the dense index the next inserted leaf
// should use for the given epoch.
func (a *accessor) NextGSTLeafIndex(ctx context.Context, epoch uint64) (int64, error) {
	var next sql.NullInt64
	err := a.q.QueryRowContext(ctx,
		`SELECT MAX(index) FROM gst_leaves WHERE epoch = $1`,
		epoch,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next gst leaf index epoch=%d: %w", epoch, err)
	}
	if !next.Valid {
		return 0, nil
	}
	return next.Int64 + 1, nil
}
