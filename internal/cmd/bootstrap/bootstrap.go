// Package bootstrap parses flags for the one-time ledger initialization and
// runs it.
package bootstrap

import (
	"context"
	"flag"
	"log"
	"path/filepath"
	"strings"

	"github.com/ydacademy/courseledger/internal/app"
	ledgerboot "github.com/ydacademy/courseledger/internal/bootstrap"
	"github.com/ydacademy/courseledger/internal/id"
	entrypoint "github.com/ydacademy/courseledger/internal/platform/cmd"
)

// Config holds bootstrap command configuration.
type Config struct {
	DBPath        string `env:"COURSELEDGER_DB_PATH"`
	Administrator string `env:"COURSELEDGER_ADMIN"`
	InitialSupply uint64 `env:"COURSELEDGER_INITIAL_SUPPLY" envDefault:"1000000"`
	FeePercentage uint64 `env:"COURSELEDGER_FEE_PERCENTAGE" envDefault:"10"`
	FeeRecipient  string `env:"COURSELEDGER_FEE_RECIPIENT"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the ledger database")
	fs.StringVar(&cfg.Administrator, "admin", cfg.Administrator, "Administrator account address")
	fs.Uint64Var(&cfg.InitialSupply, "supply", cfg.InitialSupply, "Initial token supply minted to the administrator")
	fs.Uint64Var(&cfg.FeePercentage, "fee", cfg.FeePercentage, "Platform fee percentage (0-50)")
	fs.StringVar(&cfg.FeeRecipient, "fee-recipient", cfg.FeeRecipient, "Platform fee recipient (defaults to the administrator)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "ledger.db")
	}
	return cfg, nil
}

// Run initializes the ledger once.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ToolBootstrap, func(ctx context.Context) error {
		ledger, err := app.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := ledger.Close(); err != nil {
				log.Printf("close ledger: %v", err)
			}
		}()

		err = ledgerboot.Initialize(ctx, ledger.DB, ledger.Admins, ledger.Tokens, ledger.MarketDB, ledgerboot.Config{
			Administrator: id.Address(cfg.Administrator),
			InitialSupply: cfg.InitialSupply,
			FeePercentage: cfg.FeePercentage,
			FeeRecipient:  id.Address(cfg.FeeRecipient),
		})
		if err != nil {
			return err
		}
		log.Printf("ledger initialized: admin=%s supply=%d fee=%d%%", cfg.Administrator, cfg.InitialSupply, cfg.FeePercentage)
		return nil
	})
}
