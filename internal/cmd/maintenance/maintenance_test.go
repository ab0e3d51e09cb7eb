package maintenance

import (
	"flag"
	"testing"
)

func TestParseConfigRequiresTask(t *testing.T) {
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	if _, err := ParseConfig(fs, []string{"-db", "ledger.db"}); err == nil {
		t.Fatal("expected error when no task is given")
	}
}

func TestParseConfigReadsTaskAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db", "ledger.db", "-caller", "0xroot", "-fee", "15", "set-fee"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Task != "set-fee" {
		t.Fatalf("task = %q, want set-fee", cfg.Task)
	}
	if cfg.DBPath != "ledger.db" || cfg.Caller != "0xroot" || cfg.FeePct != 15 {
		t.Fatalf("cfg = %+v, want db, caller, and fee set", cfg)
	}
}

func TestParseConfigEventDefaults(t *testing.T) {
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"events"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Task != "events" {
		t.Fatalf("task = %q, want events", cfg.Task)
	}
	if cfg.Limit != 50 {
		t.Fatalf("limit = %d, want 50", cfg.Limit)
	}
	if cfg.EventKind != "" {
		t.Fatalf("kind = %q, want empty (all kinds)", cfg.EventKind)
	}
}
