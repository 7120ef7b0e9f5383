// Copyright 2025 UniRep Synchronizer
package store

import (
	"context"
	"fmt"
)

// InsertGSTRoot records a new GST root observed for an epoch, so a
// proof's declared root can be checked for historic membership
// regardless of how many leaves have been inserted since.
func (a *accessor) InsertGSTRoot(ctx context.Context, epoch uint64, root string) error {
	_, err := a.q.ExecContext(ctx,
		`INSERT INTO gst_roots (epoch, root, created_at) VALUES ($1, $2, now())
		 ON CONFLICT (epoch, root) DO NOTHING`,
		epoch, root,
	)
	if err != nil {
		return fmt.Errorf("insert gst root epoch=%d: %w", epoch, err)
	}
	return nil
}

// GSTRootExistsAnyEpoch reports whether root was ever a valid GST root
// in any epoch — used by the one proof layout (startTransition) that
// does not declare which epoch its globalStateTree belongs to.
func (a *accessor) GSTRootExistsAnyEpoch(ctx context.Context, root string) (bool, error) {
	var exists bool
	err := a.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM gst_roots WHERE root = $1)`,
		root,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("gst root exists any epoch: %w", err)
	}
	return exists, nil
}

// GSTRootExists reports whether root was ever a valid GST root for epoch.
func (a *accessor) GSTRootExists(ctx context.Context, epoch uint64, root string) (bool, error) {
	var exists bool
	err := a.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM gst_roots WHERE epoch = $1 AND root = $2)`,
		epoch, root,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("gst root exists epoch=%d: %w", epoch, err)
	}
	return exists, nil
}
