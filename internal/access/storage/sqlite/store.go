// Package sqlite provides a SQLite-backed access-control storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ydacademy/courseledger/internal/access/storage"
	"github.com/ydacademy/courseledger/internal/id"
	"github.com/ydacademy/courseledger/internal/platform/storage/sqlitedb"
)

// Store persists the administrator identity in the shared ledger database.
type Store struct {
	db *sqlitedb.DB
}

// New creates an access-control store over the shared ledger database.
func New(db *sqlitedb.DB) *Store {
	return &Store{db: db}
}

// Administrator returns the recorded administrator address.
func (s *Store) Administrator(ctx context.Context) (id.Address, error) {
	if err := ctx.Err(); err != nil {
		return id.Zero, err
	}
	if s == nil || s.db == nil {
		return id.Zero, fmt.Errorf("storage is not configured")
	}

	var admin string
	row := s.db.Querier(ctx).QueryRowContext(ctx, `SELECT administrator FROM platform_admin WHERE id = 1`)
	if err := row.Scan(&admin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return id.Zero, storage.ErrNotFound
		}
		return id.Zero, fmt.Errorf("get administrator: %w", err)
	}
	return id.Address(admin), nil
}

// SetAdministrator records the administrator address, overwriting any prior one.
func (s *Store) SetAdministrator(ctx context.Context, admin id.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.db.Querier(ctx).ExecContext(
		ctx,
		`INSERT INTO platform_admin (id, administrator, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET administrator = excluded.administrator, updated_at = excluded.updated_at`,
		admin.String(),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set administrator: %w", err)
	}
	return nil
}

var _ storage.AdminStore = (*Store)(nil)
