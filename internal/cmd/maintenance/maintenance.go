// Package maintenance runs operational tasks against an initialized ledger.
package maintenance

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/ydacademy/courseledger/internal/app"
	"github.com/ydacademy/courseledger/internal/id"
	entrypoint "github.com/ydacademy/courseledger/internal/platform/cmd"
	"github.com/ydacademy/courseledger/internal/telemetry"
)

// Config holds maintenance command configuration.
type Config struct {
	DBPath string `env:"COURSELEDGER_DB_PATH"`
	Caller string `env:"COURSELEDGER_ADMIN"`

	Task      string
	NewAdmin  string
	FeePct    uint64
	Recipient string
	EventKind string
	Limit     int
}

// ParseConfig parses environment and flags into Config. The first positional
// argument selects the task: stats, transfer-ownership, set-fee,
// set-fee-recipient, emergency-withdraw, or events.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the ledger database")
	fs.StringVar(&cfg.Caller, "caller", cfg.Caller, "Acting administrator address")
	fs.StringVar(&cfg.NewAdmin, "new-admin", "", "New administrator for transfer-ownership")
	fs.Uint64Var(&cfg.FeePct, "fee", 0, "Fee percentage for set-fee")
	fs.StringVar(&cfg.Recipient, "recipient", "", "Recipient for set-fee-recipient")
	fs.StringVar(&cfg.EventKind, "kind", "", "Event kind filter for events")
	fs.IntVar(&cfg.Limit, "limit", 50, "Maximum events to print")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "ledger.db")
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return Config{}, fmt.Errorf("a task is required: stats, transfer-ownership, set-fee, set-fee-recipient, emergency-withdraw, events")
	}
	cfg.Task = rest[0]
	return cfg, nil
}

// Run executes one maintenance task.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ToolMaintenance, func(ctx context.Context) error {
		ledger, err := app.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := ledger.Close(); err != nil {
				log.Printf("close ledger: %v", err)
			}
		}()

		caller := id.Address(cfg.Caller)
		switch cfg.Task {
		case "stats":
			stats, err := ledger.Market.GetPlatformStats(ctx)
			if err != nil {
				return err
			}
			supply, err := ledger.Tokens.TotalSupply(ctx)
			if err != nil {
				return err
			}
			log.Printf("courses=%d active=%d sales=%d total_supply=%d",
				stats.TotalCourses, stats.ActiveCourses, stats.TotalSales, supply)
			return nil

		case "transfer-ownership":
			if strings.TrimSpace(cfg.NewAdmin) == "" {
				return fmt.Errorf("-new-admin is required")
			}
			if err := ledger.Authority.TransferOwnership(ctx, caller, id.Address(cfg.NewAdmin)); err != nil {
				return err
			}
			log.Printf("administrator is now %s", cfg.NewAdmin)
			return nil

		case "set-fee":
			if err := ledger.Market.SetPlatformFeePercentage(ctx, caller, cfg.FeePct); err != nil {
				return err
			}
			log.Printf("platform fee set to %d%%", cfg.FeePct)
			return nil

		case "set-fee-recipient":
			if strings.TrimSpace(cfg.Recipient) == "" {
				return fmt.Errorf("-recipient is required")
			}
			if err := ledger.Market.SetPlatformFeeRecipient(ctx, caller, id.Address(cfg.Recipient)); err != nil {
				return err
			}
			log.Printf("fee recipient is now %s", cfg.Recipient)
			return nil

		case "emergency-withdraw":
			withdrawn, err := ledger.Market.EmergencyWithdrawTokens(ctx, caller)
			if err != nil {
				return err
			}
			log.Printf("withdrew %d tokens to the administrator", withdrawn)
			return nil

		case "events":
			events, err := ledger.Journal.ListEvents(ctx, telemetry.Kind(cfg.EventKind), cfg.Limit)
			if err != nil {
				return err
			}
			for _, evt := range events {
				log.Printf("%s from=%s to=%s amount=%d course=%d detail=%q at=%s",
					evt.Kind, evt.From, evt.To, evt.Amount, evt.CourseID, evt.Detail,
					evt.OccurredAt.Format("2006-01-02T15:04:05Z"))
			}
			return nil

		default:
			return fmt.Errorf("unknown task %q", cfg.Task)
		}
	})
}
