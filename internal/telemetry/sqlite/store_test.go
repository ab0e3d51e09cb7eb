package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ydacademy/courseledger/internal/platform/storage/sqlitedb"
	"github.com/ydacademy/courseledger/internal/telemetry"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestAppendAndListEvents(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()
	when := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	entries := []telemetry.Event{
		{Kind: telemetry.KindTransfer, From: "alice", To: "bob", Amount: 10, OccurredAt: when},
		{Kind: telemetry.KindApproval, From: "alice", To: "spender", Amount: 50, OccurredAt: when},
		{Kind: telemetry.KindTransfer, From: "bob", To: "carol", Amount: 5, OccurredAt: when.Add(time.Second)},
	}
	for _, evt := range entries {
		if err := store.AppendEvent(ctx, evt); err != nil {
			t.Fatalf("append %s: %v", evt.Kind, err)
		}
	}

	transfers, err := store.ListEvents(ctx, telemetry.KindTransfer, 10)
	if err != nil {
		t.Fatalf("list transfers: %v", err)
	}
	if len(transfers) != 2 {
		t.Fatalf("transfers = %d, want 2", len(transfers))
	}
	if transfers[0].From != "alice" || transfers[1].From != "bob" {
		t.Fatalf("transfer order = %s, %s, want alice then bob", transfers[0].From, transfers[1].From)
	}
	if !transfers[0].OccurredAt.Equal(when) {
		t.Fatalf("occurred at = %s, want %s", transfers[0].OccurredAt, when)
	}

	all, err := store.ListEvents(ctx, "", 10)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all events = %d, want 3", len(all))
	}
}

func TestListEventsHonorsLimit(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		evt := telemetry.Event{Kind: telemetry.KindTransfer, From: "alice", To: "bob", Amount: uint64(i), OccurredAt: time.Now()}
		if err := store.AppendEvent(ctx, evt); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := store.ListEvents(ctx, telemetry.KindTransfer, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Amount != 0 || events[1].Amount != 1 {
		t.Fatalf("amounts = %d, %d, want oldest first", events[0].Amount, events[1].Amount)
	}
}

func TestEventInsideRolledBackTransactionVanishes(t *testing.T) {
	t.Parallel()

	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store := New(db)
	ctx := context.Background()

	wantErr := context.Canceled
	err = db.InTx(ctx, func(ctx context.Context) error {
		evt := telemetry.Event{Kind: telemetry.KindCoursePurchased, From: "buyer", CourseID: 1, Amount: 100, OccurredAt: time.Now()}
		if err := store.AppendEvent(ctx, evt); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("in tx error = %v, want %v", err, wantErr)
	}

	events, err := store.ListEvents(ctx, telemetry.KindCoursePurchased, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0 after rollback", len(events))
	}
}
