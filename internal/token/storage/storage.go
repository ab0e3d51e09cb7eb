// Package storage defines persistence contracts for token ledger state.
package storage

import (
	"context"
	"errors"

	"github.com/ydacademy/courseledger/internal/id"
)

// ErrInsufficientFunds indicates a debit larger than the account balance.
// Services pre-check balances for clearer failures; the store enforces the
// same rule again so a debit can never drive a balance negative.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Store persists balances, allowances, and the total supply.
type Store interface {
	Balance(ctx context.Context, account id.Address) (uint64, error)
	Credit(ctx context.Context, account id.Address, amount uint64) error
	Debit(ctx context.Context, account id.Address, amount uint64) error

	Allowance(ctx context.Context, owner, spender id.Address) (uint64, error)
	SetAllowance(ctx context.Context, owner, spender id.Address, amount uint64) error

	TotalSupply(ctx context.Context) (uint64, error)
	SetTotalSupply(ctx context.Context, supply uint64) error
}
