// Package storage persists the ledger's entities in SQLite.
//
// Amount columns are stored as fixed-point decimal strings and timestamps
// are always written in UTC. All multi-row writes go through WithTx; the
// connection opens transactions with BEGIN IMMEDIATE so the write lock is
// held for the whole check-then-write sequence of a transfer.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Repository is the SQLite-backed store for wallets, transactions,
// transfers and recurring rules.
type Repository struct {
	db *sql.DB
}

// DBTX is satisfied by both *sql.DB and *sql.Tx; query helpers take it so
// the same SQL serves plain reads and transactional paths.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewRepository opens (creating if needed) the database at dbPath, applies
// migrations and returns a ready repository.
func NewRepository(dbPath string) (*Repository, error) {
	if !strings.Contains(dbPath, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	// _time_format=sqlite stores timestamps in the format SQLite's date
	// functions understand; MonthSummary relies on strftime over them.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_time_format=sqlite&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite has a single writer anyway; one pooled connection keeps the
	// in-memory variant coherent for tests as well.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

// NewMemoryRepository opens a private in-memory database, used by tests.
func NewMemoryRepository() (*Repository, error) {
	return NewRepository(":memory:")
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// WithTx runs fn inside a single database transaction. The unit of work is
// all-or-nothing: any error from fn rolls back every write.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func nullID(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time
	return &v
}
