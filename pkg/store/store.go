// Copyright 2025 UniRep Synchronizer
//
// Connection pooling, migrations, and transaction support — grounded on
// pkg/database/client.go in the teacher repo (same embed.FS migration
// runner, same BeginTx/Commit/Rollback shape).
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/unirep/synchronizer/pkg/chainerr"
	"github.com/unirep/synchronizer/pkg/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config configures the pooled connection. Kept separate from
// pkg/config.Config so this package has no import-cycle dependency on
// the top-level config loader.
type Config struct {
	DatabaseURL  string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
	MaxLifetime  time.Duration
}

// Store is the durable, transactional record set of spec.md §3.
type Store struct {
	accessor
	db     *sql.DB
	logger *log.Logger
}

// Open connects to Postgres, applies pending migrations, and returns a
// ready Store.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (*Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("store: database URL cannot be empty")
	}
	if logger == nil {
		logger = logging.New("Store")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.MaxIdleTime)
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{accessor: accessor{q: db}, db: db, logger: logger}

	if err := s.migrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return s, nil
}

// Close closes the pooled connection.
func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying *sql.DB for uses outside this package's
// repository surface (health checks, metrics).
func (s *Store) DB() *sql.DB { return s.db }

// Tx is an open transaction. It is the only handle handlers are given:
// spec.md §4.1 requires that the transaction writer be the only path
// that mutates persistent state during event processing.
type Tx struct {
	accessor
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback rolls back the transaction. Safe to call after Commit (it
// is then a no-op returning sql.ErrTxDone, which callers ignore via
// defer, matching the teacher's applyMigration pattern).
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// Transaction runs fn against a single *Tx and commits atomically on
// success. On any error — including one returned by fn — the
// transaction is rolled back and nothing is persisted. This is the
// single-writer path of spec.md §4.1/§4.3: the ingestor is the only
// caller.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &chainerr.StoreError{Err: fmt.Errorf("begin transaction: %w", err)}
	}
	tx := &Tx{accessor: accessor{q: sqlTx}, tx: sqlTx}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &chainerr.StoreError{Err: fmt.Errorf("commit transaction: %w", err)}
	}
	return nil
}

// VerifyCursorResolves checks that the persisted cursor still points
// at a real log via the supplied resolver (typically backed by the
// chain client's QueryFilter for exactly that block/tx/log triple).
// Per spec.md §6: "re-opening a store must verify the cursor still
// resolves to a real log (else require a full resync from zero)."
func (s *Store) VerifyCursorResolves(ctx context.Context, resolves func(ctx context.Context, c Cursor) (bool, error)) error {
	state, err := s.GetSynchronizerState(ctx)
	if err != nil {
		return fmt.Errorf("store: load synchronizer state: %w", err)
	}
	if state.LatestProcessedBlock == 0 {
		return nil // genesis cursor, nothing to verify
	}
	ok, err := resolves(ctx, FromSyncState(*state))
	if err != nil {
		return fmt.Errorf("store: resolve cursor: %w", err)
	}
	if !ok {
		return chainerr.ErrCursorDesynced
	}
	return nil
}

// ============================================================================
// MIGRATIONS
// ============================================================================

type migration struct {
	version string
	sql     string
}

func (s *Store) migrateUp(ctx context.Context) error {
	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("list applied migrations: %w", err)
		}
		applied = map[string]bool{}
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		s.logger.Printf("applying migration %s", m.version)
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
	}
	return nil
}

func loadMigrations() ([]migration, error) {
	var out []migration
	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return err
		}
		out = append(out, migration{
			version: strings.TrimSuffix(d.Name(), ".sql"),
			sql:     string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func (s *Store) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return err
	}
	return tx.Commit()
}
