// Copyright 2025 UniRep Synchronizer
package store

import (
	"context"
	"database/sql"
)

// Queryer is satisfied by both *sql.DB and *sql.Tx, letting every
// record-family accessor below run unmodified whether it is handed the
// pooled connection (UserState's read-only queries) or an open
// transaction (the ingestor's single-writer path) — mirrors the
// teacher's Client.ExecContext/QueryContext/QueryRowContext helpers in
// pkg/database/client.go, generalized into an interface so Tx and
// Store can share one set of CRUD method bodies.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// accessor is embedded by both Store and Tx; every record-family file
// (epoch.go, attestation.go, ...) defines its CRUD methods on *accessor
// so they are promoted onto both.
type accessor struct {
	q Queryer
}
