// Package sqlitedb owns the shared SQLite handle for the ledger.
//
// The token ledger and the marketplace keep their state in separate tables of
// one database so a purchase settlement can span both inside a single
// transaction. The host environment serializes mutating calls; the write lock
// here only protects in-process callers that ignore that contract.
package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ydacademy/courseledger/internal/platform/storage/sqlitedb/migrations"
	"github.com/ydacademy/courseledger/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps the shared SQLite handle.
type DB struct {
	sqlDB *sql.DB
	mu    sync.Mutex
}

type txKey struct{}

// Open opens the ledger database and applies embedded migrations.
func Open(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &DB{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (d *DB) Close() error {
	if d == nil || d.sqlDB == nil {
		return nil
	}
	return d.sqlDB.Close()
}

// Querier returns the transaction bound to ctx, or the base handle when no
// transaction is in flight. Store methods route all statements through it so
// they participate in a caller's transaction transparently.
func (d *DB) Querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return d.sqlDB
}

// InTx runs fn inside a transaction carried on the context. Every statement a
// store issues through Querier within fn joins that transaction; if fn returns
// an error the transaction rolls back and none of its effects persist. Nested
// calls join the outer transaction instead of opening their own.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if d == nil || d.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
