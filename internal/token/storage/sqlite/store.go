// Package sqlite provides a SQLite-backed token ledger storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ydacademy/courseledger/internal/id"
	"github.com/ydacademy/courseledger/internal/platform/storage/sqlitedb"
	"github.com/ydacademy/courseledger/internal/token/storage"
)

// Store persists token state in the shared ledger database.
type Store struct {
	db *sqlitedb.DB
}

// New creates a token store over the shared ledger database.
func New(db *sqlitedb.DB) *Store {
	return &Store{db: db}
}

// Balance returns the account balance, zero for accounts never credited.
func (s *Store) Balance(ctx context.Context, account id.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var balance int64
	row := s.db.Querier(ctx).QueryRowContext(
		ctx,
		`SELECT balance FROM token_balances WHERE address = ?`,
		account.String(),
	)
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return uint64(balance), nil
}

// Credit adds amount to the account balance, creating the account row lazily.
func (s *Store) Credit(ctx context.Context, account id.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.db.Querier(ctx).ExecContext(
		ctx,
		`INSERT INTO token_balances (address, balance) VALUES (?, ?)
		 ON CONFLICT (address) DO UPDATE SET balance = balance + excluded.balance`,
		account.String(),
		int64(amount),
	)
	if err != nil {
		return fmt.Errorf("credit %s: %w", account, err)
	}
	return nil
}

// Debit subtracts amount from the account balance. The WHERE guard keeps the
// balance from going negative even if a caller skipped the pre-check.
func (s *Store) Debit(ctx context.Context, account id.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	// A zero debit matches no row for accounts never credited; skip the
	// UPDATE so the missing row is not mistaken for insufficient funds.
	if amount == 0 {
		return nil
	}

	res, err := s.db.Querier(ctx).ExecContext(
		ctx,
		`UPDATE token_balances SET balance = balance - ? WHERE address = ? AND balance >= ?`,
		int64(amount),
		account.String(),
		int64(amount),
	)
	if err != nil {
		return fmt.Errorf("debit %s: %w", account, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit %s: %w", account, err)
	}
	if affected == 0 {
		return storage.ErrInsufficientFunds
	}
	return nil
}

// Allowance returns the amount spender may move on behalf of owner.
func (s *Store) Allowance(ctx context.Context, owner, spender id.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var amount int64
	row := s.db.Querier(ctx).QueryRowContext(
		ctx,
		`SELECT amount FROM token_allowances WHERE owner = ? AND spender = ?`,
		owner.String(),
		spender.String(),
	)
	if err := row.Scan(&amount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get allowance: %w", err)
	}
	return uint64(amount), nil
}

// SetAllowance overwrites the (owner, spender) allowance. Absolute set, not a
// delta.
func (s *Store) SetAllowance(ctx context.Context, owner, spender id.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.db.Querier(ctx).ExecContext(
		ctx,
		`INSERT INTO token_allowances (owner, spender, amount) VALUES (?, ?, ?)
		 ON CONFLICT (owner, spender) DO UPDATE SET amount = excluded.amount`,
		owner.String(),
		spender.String(),
		int64(amount),
	)
	if err != nil {
		return fmt.Errorf("set allowance: %w", err)
	}
	return nil
}

// TotalSupply returns the recorded total supply, zero before initialization.
func (s *Store) TotalSupply(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var supply int64
	row := s.db.Querier(ctx).QueryRowContext(ctx, `SELECT total_supply FROM token_supply WHERE id = 1`)
	if err := row.Scan(&supply); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get total supply: %w", err)
	}
	return uint64(supply), nil
}

// SetTotalSupply overwrites the recorded total supply.
func (s *Store) SetTotalSupply(ctx context.Context, supply uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.db.Querier(ctx).ExecContext(
		ctx,
		`INSERT INTO token_supply (id, total_supply) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET total_supply = excluded.total_supply`,
		int64(supply),
	)
	if err != nil {
		return fmt.Errorf("set total supply: %w", err)
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
