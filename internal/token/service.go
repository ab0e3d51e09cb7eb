// Package token implements the fungible token ledger: balances, allowances,
// and total supply. It is the trusted primitive for moving value; the
// marketplace settles purchases exclusively through its operations.
package token

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ydacademy/courseledger/internal/access"
	"github.com/ydacademy/courseledger/internal/id"
	"github.com/ydacademy/courseledger/internal/platform/errors"
	"github.com/ydacademy/courseledger/internal/platform/storage/sqlitedb"
	"github.com/ydacademy/courseledger/internal/telemetry"
	"github.com/ydacademy/courseledger/internal/token/storage"
)

// Token metadata, fixed at deployment.
const (
	Name     = "YD Token"
	Symbol   = "YD"
	Decimals = 18
)

// maxSupply keeps every balance and the total supply representable as a
// non-negative SQLite integer.
const maxSupply = uint64(math.MaxInt64)

// Service exposes the token ledger operations.
type Service struct {
	db        *sqlitedb.DB
	store     storage.Store
	authority *access.Authority
	emitter   *telemetry.Emitter
	tracer    trace.Tracer
}

// NewService creates a token ledger service.
func NewService(db *sqlitedb.DB, store storage.Store, authority *access.Authority, emitter *telemetry.Emitter) *Service {
	return &Service{
		db:        db,
		store:     store,
		authority: authority,
		emitter:   emitter,
		tracer:    otel.Tracer("courseledger/token"),
	}
}

// Transfer moves amount from the caller to the recipient. Fails with
// ZeroAddress for a null recipient and InsufficientBalance when the caller
// holds less than amount. The debit and credit commit together or not at all.
func (s *Service) Transfer(ctx context.Context, caller, to id.Address, amount uint64) error {
	if s == nil || s.store == nil {
		return errors.New(errors.CodeUnknown, "token store is not configured")
	}
	ctx, span := s.tracer.Start(ctx, "token.transfer")
	defer span.End()

	return s.db.InTx(ctx, func(ctx context.Context) error {
		return s.move(ctx, caller, to, amount)
	})
}

// Approve overwrites the allowance the caller grants to spender. Absolute set;
// no balance check is performed at approval time.
func (s *Service) Approve(ctx context.Context, caller, spender id.Address, amount uint64) error {
	if s == nil || s.store == nil {
		return errors.New(errors.CodeUnknown, "token store is not configured")
	}
	ctx, span := s.tracer.Start(ctx, "token.approve")
	defer span.End()

	owner := id.Normalize(caller)
	spender = id.Normalize(spender)
	return s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.SetAllowance(ctx, owner, spender, amount); err != nil {
			return errors.Wrap(errors.CodeUnknown, "persist allowance", err)
		}
		return s.emit(ctx, telemetry.Event{
			Kind:   telemetry.KindApproval,
			From:   owner,
			To:     spender,
			Amount: amount,
		})
	})
}

// TransferFrom moves amount from the owner to the recipient on the caller's
// allowance. The allowance is decremented before the transfer; both revert
// together on failure.
func (s *Service) TransferFrom(ctx context.Context, caller, from, to id.Address, amount uint64) error {
	if s == nil || s.store == nil {
		return errors.New(errors.CodeUnknown, "token store is not configured")
	}
	ctx, span := s.tracer.Start(ctx, "token.transfer_from")
	defer span.End()

	spender := id.Normalize(caller)
	owner := id.Normalize(from)
	return s.db.InTx(ctx, func(ctx context.Context) error {
		allowed, err := s.store.Allowance(ctx, owner, spender)
		if err != nil {
			return errors.Wrap(errors.CodeUnknown, "load allowance", err)
		}
		if allowed < amount {
			return errors.WithMetadata(errors.CodeInsufficientAllowance, "allowance is smaller than the transfer amount", map[string]string{
				"owner":   owner.String(),
				"spender": spender.String(),
			})
		}
		if err := s.store.SetAllowance(ctx, owner, spender, allowed-amount); err != nil {
			return errors.Wrap(errors.CodeUnknown, "decrement allowance", err)
		}
		return s.move(ctx, owner, to, amount)
	})
}

// Mint credits amount to the recipient and grows the total supply by the same
// amount in one atomic step. Administrator only; fails with ZeroAddress for a
// null recipient.
func (s *Service) Mint(ctx context.Context, caller, to id.Address, amount uint64) error {
	if s == nil || s.store == nil {
		return errors.New(errors.CodeUnknown, "token store is not configured")
	}
	ctx, span := s.tracer.Start(ctx, "token.mint")
	defer span.End()

	recipient := id.Normalize(to)
	if recipient.IsZero() {
		return errors.New(errors.CodeZeroAddress, "mint to the zero address")
	}
	return s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.authority.Require(ctx, caller); err != nil {
			return err
		}
		supply, err := s.store.TotalSupply(ctx)
		if err != nil {
			return errors.Wrap(errors.CodeUnknown, "load total supply", err)
		}
		if amount > maxSupply-supply {
			return errors.New(errors.CodeSupplyOverflow, "mint would overflow the total supply")
		}
		if err := s.store.SetTotalSupply(ctx, supply+amount); err != nil {
			return errors.Wrap(errors.CodeUnknown, "grow total supply", err)
		}
		if err := s.store.Credit(ctx, recipient, amount); err != nil {
			return errors.Wrap(errors.CodeUnknown, "credit mint recipient", err)
		}
		return s.emit(ctx, telemetry.Event{
			Kind:   telemetry.KindTransfer,
			From:   id.Zero,
			To:     recipient,
			Amount: amount,
		})
	})
}

// Burn destroys amount of the caller's own balance and shrinks the total
// supply by the same amount. Self-service, not privileged.
func (s *Service) Burn(ctx context.Context, caller id.Address, amount uint64) error {
	if s == nil || s.store == nil {
		return errors.New(errors.CodeUnknown, "token store is not configured")
	}
	ctx, span := s.tracer.Start(ctx, "token.burn")
	defer span.End()

	owner := id.Normalize(caller)
	return s.db.InTx(ctx, func(ctx context.Context) error {
		balance, err := s.store.Balance(ctx, owner)
		if err != nil {
			return errors.Wrap(errors.CodeUnknown, "load balance", err)
		}
		if balance < amount {
			return s.insufficientBalance(owner)
		}
		if err := s.store.Debit(ctx, owner, amount); err != nil {
			if stderrors.Is(err, storage.ErrInsufficientFunds) {
				return s.insufficientBalance(owner)
			}
			return errors.Wrap(errors.CodeUnknown, "debit burned balance", err)
		}
		supply, err := s.store.TotalSupply(ctx)
		if err != nil {
			return errors.Wrap(errors.CodeUnknown, "load total supply", err)
		}
		if err := s.store.SetTotalSupply(ctx, supply-amount); err != nil {
			return errors.Wrap(errors.CodeUnknown, "shrink total supply", err)
		}
		return s.emit(ctx, telemetry.Event{
			Kind:   telemetry.KindTransfer,
			From:   owner,
			To:     id.Zero,
			Amount: amount,
		})
	})
}

// BalanceOf returns the account balance. Pure read, always succeeds.
func (s *Service) BalanceOf(ctx context.Context, account id.Address) (uint64, error) {
	if s == nil || s.store == nil {
		return 0, errors.New(errors.CodeUnknown, "token store is not configured")
	}
	balance, err := s.store.Balance(ctx, id.Normalize(account))
	if err != nil {
		return 0, errors.Wrap(errors.CodeUnknown, "load balance", err)
	}
	return balance, nil
}

// Allowance returns what spender may move on behalf of owner.
func (s *Service) Allowance(ctx context.Context, owner, spender id.Address) (uint64, error) {
	if s == nil || s.store == nil {
		return 0, errors.New(errors.CodeUnknown, "token store is not configured")
	}
	amount, err := s.store.Allowance(ctx, id.Normalize(owner), id.Normalize(spender))
	if err != nil {
		return 0, errors.Wrap(errors.CodeUnknown, "load allowance", err)
	}
	return amount, nil
}

// TotalSupply returns the current total supply.
func (s *Service) TotalSupply(ctx context.Context) (uint64, error) {
	if s == nil || s.store == nil {
		return 0, errors.New(errors.CodeUnknown, "token store is not configured")
	}
	supply, err := s.store.TotalSupply(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.CodeUnknown, "load total supply", err)
	}
	return supply, nil
}

// move debits from and credits to within the transaction carried on ctx.
func (s *Service) move(ctx context.Context, from, to id.Address, amount uint64) error {
	sender := id.Normalize(from)
	recipient := id.Normalize(to)
	if recipient.IsZero() {
		return errors.New(errors.CodeZeroAddress, "transfer to the zero address")
	}

	balance, err := s.store.Balance(ctx, sender)
	if err != nil {
		return errors.Wrap(errors.CodeUnknown, "load balance", err)
	}
	if balance < amount {
		return s.insufficientBalance(sender)
	}
	if err := s.store.Debit(ctx, sender, amount); err != nil {
		if stderrors.Is(err, storage.ErrInsufficientFunds) {
			return s.insufficientBalance(sender)
		}
		return errors.Wrap(errors.CodeUnknown, "debit sender", err)
	}
	if err := s.store.Credit(ctx, recipient, amount); err != nil {
		return errors.Wrap(errors.CodeUnknown, "credit recipient", err)
	}
	return s.emit(ctx, telemetry.Event{
		Kind:   telemetry.KindTransfer,
		From:   sender,
		To:     recipient,
		Amount: amount,
	})
}

func (s *Service) emit(ctx context.Context, evt telemetry.Event) error {
	if err := s.emitter.Emit(ctx, evt); err != nil {
		return errors.Wrap(errors.CodeUnknown, fmt.Sprintf("record %s event", evt.Kind), err)
	}
	return nil
}

func (s *Service) insufficientBalance(account id.Address) error {
	return errors.WithMetadata(errors.CodeInsufficientBalance, "balance is smaller than the requested amount", map[string]string{
		"account": account.String(),
	})
}
