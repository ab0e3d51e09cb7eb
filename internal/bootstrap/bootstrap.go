// Package bootstrap performs the one-time ledger initialization: it records
// the administrator, mints the initial supply to them, and fixes the platform
// fee configuration. Initialization is not repeatable.
package bootstrap

import (
	"context"
	stderrors "errors"

	accessstorage "github.com/ydacademy/courseledger/internal/access/storage"
	"github.com/ydacademy/courseledger/internal/id"
	marketstorage "github.com/ydacademy/courseledger/internal/market/storage"
	"github.com/ydacademy/courseledger/internal/platform/errors"
	"github.com/ydacademy/courseledger/internal/platform/storage/sqlitedb"
	"github.com/ydacademy/courseledger/internal/token"
)

// Defaults match the reference deployment.
const (
	DefaultInitialSupply      = 1_000_000
	DefaultFeePercentage      = 10
	DefaultMarketplaceAddress = id.Address("marketplace")
)

// Config describes the initial ledger constants.
type Config struct {
	Administrator      id.Address
	InitialSupply      uint64
	FeePercentage      uint64
	FeeRecipient       id.Address // defaults to the administrator
	MarketplaceAddress id.Address
}

// Initialize writes the bootstrap state in one transaction. It fails with
// AlreadyInitialized when an administrator is already recorded.
func Initialize(ctx context.Context, db *sqlitedb.DB, admins accessstorage.AdminStore, tokens *token.Service, settings marketstorage.Store, cfg Config) error {
	admin := id.Normalize(cfg.Administrator)
	if admin.IsZero() {
		return errors.New(errors.CodeZeroAddress, "administrator address is required")
	}
	if cfg.InitialSupply == 0 {
		cfg.InitialSupply = DefaultInitialSupply
	}
	if cfg.FeePercentage == 0 {
		cfg.FeePercentage = DefaultFeePercentage
	}
	if cfg.FeePercentage > 50 {
		return errors.New(errors.CodeFeeTooHigh, "platform fee cannot exceed 50 percent")
	}
	if cfg.FeeRecipient.IsZero() {
		cfg.FeeRecipient = admin
	}
	if cfg.MarketplaceAddress.IsZero() {
		cfg.MarketplaceAddress = DefaultMarketplaceAddress
	}

	return db.InTx(ctx, func(ctx context.Context) error {
		_, err := admins.Administrator(ctx)
		if err == nil {
			return errors.New(errors.CodeAlreadyInitialized, "ledger is already initialized")
		}
		if !stderrors.Is(err, accessstorage.ErrNotFound) {
			return errors.Wrap(errors.CodeUnknown, "check administrator", err)
		}

		if err := admins.SetAdministrator(ctx, admin); err != nil {
			return errors.Wrap(errors.CodeUnknown, "record administrator", err)
		}
		if err := settings.PutSettings(ctx, marketstorage.Settings{
			FeePercentage:      cfg.FeePercentage,
			FeeRecipient:       id.Normalize(cfg.FeeRecipient),
			MarketplaceAddress: id.Normalize(cfg.MarketplaceAddress),
		}); err != nil {
			return errors.Wrap(errors.CodeUnknown, "record platform settings", err)
		}
		return tokens.Mint(ctx, admin, admin, cfg.InitialSupply)
	})
}
