package token

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ydacademy/courseledger/internal/access"
	accesssqlite "github.com/ydacademy/courseledger/internal/access/storage/sqlite"
	"github.com/ydacademy/courseledger/internal/id"
	"github.com/ydacademy/courseledger/internal/platform/errors"
	"github.com/ydacademy/courseledger/internal/platform/storage/sqlitedb"
	"github.com/ydacademy/courseledger/internal/telemetry"
	telemetrysqlite "github.com/ydacademy/courseledger/internal/telemetry/sqlite"
	tokensqlite "github.com/ydacademy/courseledger/internal/token/storage/sqlite"
)

const admin = id.Address("0xadmin")

func newTestService(t *testing.T) (*Service, *telemetrysqlite.Store) {
	t.Helper()

	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	admins := accesssqlite.New(db)
	if err := admins.SetAdministrator(context.Background(), admin); err != nil {
		t.Fatalf("set administrator: %v", err)
	}
	journal := telemetrysqlite.New(db)
	svc := NewService(db, tokensqlite.New(db), access.NewAuthority(admins), telemetry.NewEmitter(journal))
	return svc, journal
}

func mustMint(t *testing.T, svc *Service, to id.Address, amount uint64) {
	t.Helper()
	if err := svc.Mint(context.Background(), admin, to, amount); err != nil {
		t.Fatalf("mint %d to %s: %v", amount, to, err)
	}
}

func mustBalance(t *testing.T, svc *Service, account id.Address) uint64 {
	t.Helper()
	balance, err := svc.BalanceOf(context.Background(), account)
	if err != nil {
		t.Fatalf("balance of %s: %v", account, err)
	}
	return balance
}

func TestTransferMovesBalance(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	mustMint(t, svc, "alice", 1000)

	if err := svc.Transfer(context.Background(), "alice", "bob", 400); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := mustBalance(t, svc, "alice"); got != 600 {
		t.Fatalf("alice balance = %d, want 600", got)
	}
	if got := mustBalance(t, svc, "bob"); got != 400 {
		t.Fatalf("bob balance = %d, want 400", got)
	}
}

func TestTransferRejectsZeroAddress(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	mustMint(t, svc, "alice", 100)

	err := svc.Transfer(context.Background(), "alice", id.Zero, 10)
	if !errors.IsCode(err, errors.CodeZeroAddress) {
		t.Fatalf("transfer error = %v, want %s", err, errors.CodeZeroAddress)
	}
	if got := mustBalance(t, svc, "alice"); got != 100 {
		t.Fatalf("alice balance = %d, want 100", got)
	}
}

func TestTransferZeroAmountFromFreshAccount(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	// balance[from] < amount is false for 0 < 0, so a zero transfer succeeds
	// even when the sender never held tokens.
	if err := svc.Transfer(ctx, "ghost", "bob", 0); err != nil {
		t.Fatalf("zero-amount transfer: %v", err)
	}
	if got := mustBalance(t, svc, "ghost"); got != 0 {
		t.Fatalf("ghost balance = %d, want 0", got)
	}
	if got := mustBalance(t, svc, "bob"); got != 0 {
		t.Fatalf("bob balance = %d, want 0", got)
	}
}

func TestTransferRejectsInsufficientBalance(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	mustMint(t, svc, "alice", 50)

	err := svc.Transfer(context.Background(), "alice", "bob", 51)
	if !errors.IsCode(err, errors.CodeInsufficientBalance) {
		t.Fatalf("transfer error = %v, want %s", err, errors.CodeInsufficientBalance)
	}
	if got := mustBalance(t, svc, "bob"); got != 0 {
		t.Fatalf("bob balance = %d, want 0", got)
	}
}

func TestApproveOverwritesAllowance(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Approve(ctx, "alice", "bob", 500); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := svc.Approve(ctx, "alice", "bob", 120); err != nil {
		t.Fatalf("approve again: %v", err)
	}
	allowed, err := svc.Allowance(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowed != 120 {
		t.Fatalf("allowance = %d, want 120 (overwritten, not accumulated)", allowed)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	mustMint(t, svc, "alice", 1000)
	if err := svc.Approve(ctx, "alice", "spender", 300); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if err := svc.TransferFrom(ctx, "spender", "alice", "carol", 200); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	allowed, err := svc.Allowance(ctx, "alice", "spender")
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowed != 100 {
		t.Fatalf("allowance = %d, want 100", allowed)
	}
	if got := mustBalance(t, svc, "carol"); got != 200 {
		t.Fatalf("carol balance = %d, want 200", got)
	}
}

func TestTransferFromRejectsInsufficientAllowance(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	mustMint(t, svc, "alice", 1000)
	if err := svc.Approve(ctx, "alice", "spender", 100); err != nil {
		t.Fatalf("approve: %v", err)
	}

	err := svc.TransferFrom(ctx, "spender", "alice", "carol", 101)
	if !errors.IsCode(err, errors.CodeInsufficientAllowance) {
		t.Fatalf("transfer from error = %v, want %s", err, errors.CodeInsufficientAllowance)
	}
	allowed, err := svc.Allowance(ctx, "alice", "spender")
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowed != 100 {
		t.Fatalf("allowance = %d, want 100 (unchanged after rejection)", allowed)
	}
}

func TestTransferFromRollsBackAllowanceWhenBalanceShort(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	mustMint(t, svc, "alice", 50)
	if err := svc.Approve(ctx, "alice", "spender", 100); err != nil {
		t.Fatalf("approve: %v", err)
	}

	err := svc.TransferFrom(ctx, "spender", "alice", "carol", 80)
	if !errors.IsCode(err, errors.CodeInsufficientBalance) {
		t.Fatalf("transfer from error = %v, want %s", err, errors.CodeInsufficientBalance)
	}
	allowed, err := svc.Allowance(ctx, "alice", "spender")
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowed != 100 {
		t.Fatalf("allowance = %d, want 100 (decrement rolled back)", allowed)
	}
	if got := mustBalance(t, svc, "alice"); got != 50 {
		t.Fatalf("alice balance = %d, want 50", got)
	}
}

func TestMintRequiresAdministrator(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	err := svc.Mint(context.Background(), "mallory", "mallory", 1000)
	if !errors.IsCode(err, errors.CodeUnauthorized) {
		t.Fatalf("mint error = %v, want %s", err, errors.CodeUnauthorized)
	}
	supply, err := svc.TotalSupply(context.Background())
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply != 0 {
		t.Fatalf("total supply = %d, want 0", supply)
	}
}

func TestMintRejectsZeroAddress(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Mint(ctx, admin, id.Zero, 100)
	if !errors.IsCode(err, errors.CodeZeroAddress) {
		t.Fatalf("mint error = %v, want %s", err, errors.CodeZeroAddress)
	}
	supply, err := svc.TotalSupply(ctx)
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply != 0 {
		t.Fatalf("total supply = %d, want 0", supply)
	}
}

func TestMintGrowsSupplyAndBalanceTogether(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	mustMint(t, svc, "alice", 777)

	supply, err := svc.TotalSupply(context.Background())
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply != 777 {
		t.Fatalf("total supply = %d, want 777", supply)
	}
	if got := mustBalance(t, svc, "alice"); got != 777 {
		t.Fatalf("alice balance = %d, want 777", got)
	}
}

func TestBurnIsSelfServiceAndShrinksSupply(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	mustMint(t, svc, "alice", 500)

	if err := svc.Burn(ctx, "alice", 200); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := mustBalance(t, svc, "alice"); got != 300 {
		t.Fatalf("alice balance = %d, want 300", got)
	}
	supply, err := svc.TotalSupply(ctx)
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply != 300 {
		t.Fatalf("total supply = %d, want 300", supply)
	}

	err = svc.Burn(ctx, "alice", 301)
	if !errors.IsCode(err, errors.CodeInsufficientBalance) {
		t.Fatalf("burn error = %v, want %s", err, errors.CodeInsufficientBalance)
	}
}

func TestTransferEmitsJournalEvent(t *testing.T) {
	t.Parallel()

	svc, journal := newTestService(t)
	ctx := context.Background()
	mustMint(t, svc, "alice", 100)
	if err := svc.Transfer(ctx, "alice", "bob", 25); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	events, err := journal.ListEvents(ctx, telemetry.KindTransfer, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	// Mint writes a transfer from the zero address first.
	if len(events) != 2 {
		t.Fatalf("transfer events = %d, want 2", len(events))
	}
	last := events[1]
	if last.From != "alice" || last.To != "bob" || last.Amount != 25 {
		t.Fatalf("event = %+v, want alice->bob amount 25", last)
	}
}

func TestConservationAcrossOperations(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	mustMint(t, svc, "alice", 1000)
	mustMint(t, svc, "bob", 500)
	if err := svc.Transfer(ctx, "alice", "carol", 250); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := svc.Burn(ctx, "bob", 100); err != nil {
		t.Fatalf("burn: %v", err)
	}

	supply, err := svc.TotalSupply(ctx)
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	sum := mustBalance(t, svc, "alice") + mustBalance(t, svc, "bob") + mustBalance(t, svc, "carol")
	if sum != supply {
		t.Fatalf("sum(balances) = %d, total supply = %d, want equal", sum, supply)
	}
	if supply != 1400 {
		t.Fatalf("total supply = %d, want 1400", supply)
	}
}
