package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ydacademy/courseledger/internal/access"
	accesssqlite "github.com/ydacademy/courseledger/internal/access/storage/sqlite"
	"github.com/ydacademy/courseledger/internal/id"
	marketsqlite "github.com/ydacademy/courseledger/internal/market/storage/sqlite"
	"github.com/ydacademy/courseledger/internal/platform/errors"
	"github.com/ydacademy/courseledger/internal/platform/storage/sqlitedb"
	"github.com/ydacademy/courseledger/internal/telemetry"
	telemetrysqlite "github.com/ydacademy/courseledger/internal/telemetry/sqlite"
	"github.com/ydacademy/courseledger/internal/token"
	tokensqlite "github.com/ydacademy/courseledger/internal/token/storage/sqlite"
)

type world struct {
	db     *sqlitedb.DB
	admins *accesssqlite.Store
	tokens *token.Service
	market *marketsqlite.Store
}

func newWorld(t *testing.T) world {
	t.Helper()

	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	admins := accesssqlite.New(db)
	emitter := telemetry.NewEmitter(telemetrysqlite.New(db))
	tokens := token.NewService(db, tokensqlite.New(db), access.NewAuthority(admins), emitter)
	return world{db: db, admins: admins, tokens: tokens, market: marketsqlite.New(db)}
}

func TestInitializeAppliesDefaults(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	ctx := context.Background()
	err := Initialize(ctx, w.db, w.admins, w.tokens, w.market, Config{
		Administrator: "0xroot",
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	admin, err := w.admins.Administrator(ctx)
	if err != nil {
		t.Fatalf("administrator: %v", err)
	}
	if admin != id.Address("0xroot") {
		t.Fatalf("administrator = %s, want 0xroot", admin)
	}

	supply, err := w.tokens.TotalSupply(ctx)
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply != DefaultInitialSupply {
		t.Fatalf("total supply = %d, want %d", supply, uint64(DefaultInitialSupply))
	}
	balance, err := w.tokens.BalanceOf(ctx, "0xroot")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != supply {
		t.Fatalf("administrator balance = %d, want the full supply %d", balance, supply)
	}

	settings, err := w.market.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.FeePercentage != DefaultFeePercentage {
		t.Fatalf("fee = %d, want %d", settings.FeePercentage, uint64(DefaultFeePercentage))
	}
	if settings.FeeRecipient != id.Address("0xroot") {
		t.Fatalf("fee recipient = %s, want the administrator", settings.FeeRecipient)
	}
	if settings.MarketplaceAddress != DefaultMarketplaceAddress {
		t.Fatalf("marketplace address = %s, want %s", settings.MarketplaceAddress, DefaultMarketplaceAddress)
	}
}

func TestInitializeRunsOnce(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	ctx := context.Background()
	cfg := Config{Administrator: "0xroot", InitialSupply: 500}
	if err := Initialize(ctx, w.db, w.admins, w.tokens, w.market, cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	err := Initialize(ctx, w.db, w.admins, w.tokens, w.market, cfg)
	if !errors.IsCode(err, errors.CodeAlreadyInitialized) {
		t.Fatalf("second initialize error = %v, want %s", err, errors.CodeAlreadyInitialized)
	}
	supply, err := w.tokens.TotalSupply(ctx)
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply != 500 {
		t.Fatalf("total supply = %d, want 500 (no double mint)", supply)
	}
}

func TestInitializeRejectsBadConfig(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	ctx := context.Background()

	err := Initialize(ctx, w.db, w.admins, w.tokens, w.market, Config{})
	if !errors.IsCode(err, errors.CodeZeroAddress) {
		t.Fatalf("empty admin error = %v, want %s", err, errors.CodeZeroAddress)
	}

	err = Initialize(ctx, w.db, w.admins, w.tokens, w.market, Config{
		Administrator: "0xroot",
		FeePercentage: 60,
	})
	if !errors.IsCode(err, errors.CodeFeeTooHigh) {
		t.Fatalf("fee error = %v, want %s", err, errors.CodeFeeTooHigh)
	}
	// Neither failed attempt may leave an administrator behind.
	if _, err := w.admins.Administrator(ctx); err == nil {
		t.Fatal("administrator recorded despite failed initialization")
	}
}
