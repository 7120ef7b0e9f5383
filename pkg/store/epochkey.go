// Copyright 2025 UniRep Synchronizer
package store

import (
	"context"
	"fmt"
)

// EnsureEpochKey creates an EpochKey record the first time it is seen
// in an epoch (lazily, on first attestation referencing it).
func (a *accessor) EnsureEpochKey(ctx context.Context, epoch uint64, key string) error {
	_, err := a.q.ExecContext(ctx,
		`INSERT INTO epoch_keys (epoch, key) VALUES ($1, $2)
		 ON CONFLICT (epoch, key) DO NOTHING`,
		epoch, key,
	)
	if err != nil {
		return fmt.Errorf("ensure epoch key epoch=%d key=%s: %w", epoch, key, err)
	}
	return nil
}

// EpochKeysForEpoch lists every epoch key that has received at least
// one attestation in the given epoch.
func (a *accessor) EpochKeysForEpoch(ctx context.Context, epoch uint64) ([]string, error) {
	rows, err := a.q.QueryContext(ctx,
		`SELECT key FROM epoch_keys WHERE epoch = $1 ORDER BY key ASC`,
		epoch,
	)
	if err != nil {
		return nil, fmt.Errorf("list epoch keys epoch=%d: %w", epoch, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
