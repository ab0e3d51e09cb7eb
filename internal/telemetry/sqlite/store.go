// Package sqlite provides the SQLite-backed ledger event journal.
package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ydacademy/courseledger/internal/id"
	"github.com/ydacademy/courseledger/internal/platform/storage/sqlitedb"
	"github.com/ydacademy/courseledger/internal/telemetry"
)

// Store appends ledger events to the shared database.
type Store struct {
	db *sqlitedb.DB
}

// New creates a journal store over the shared ledger database.
func New(db *sqlitedb.DB) *Store {
	return &Store{db: db}
}

// AppendEvent inserts one journal entry.
func (s *Store) AppendEvent(ctx context.Context, evt telemetry.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	_, err := s.db.Querier(ctx).ExecContext(
		ctx,
		`INSERT INTO ledger_events (kind, addr_from, addr_to, amount, course_id, detail, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(evt.Kind),
		evt.From.String(),
		evt.To.String(),
		int64(evt.Amount),
		evt.CourseID,
		evt.Detail,
		evt.OccurredAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append ledger event: %w", err)
	}
	return nil
}

// ListEvents returns up to limit journal entries of one kind, oldest first.
// An empty kind returns entries of every kind.
func (s *Store) ListEvents(ctx context.Context, kind telemetry.Kind, limit int) ([]telemetry.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT kind, addr_from, addr_to, amount, course_id, detail, occurred_at
	            FROM ledger_events`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger events: %w", err)
	}
	defer rows.Close()

	var events []telemetry.Event
	for rows.Next() {
		var evt telemetry.Event
		var kindValue, from, to string
		var amount int64
		var occurredAt int64
		if err := rows.Scan(&kindValue, &from, &to, &amount, &evt.CourseID, &evt.Detail, &occurredAt); err != nil {
			return nil, fmt.Errorf("list ledger events: %w", err)
		}
		evt.Kind = telemetry.Kind(kindValue)
		evt.From = id.Address(from)
		evt.To = id.Address(to)
		evt.Amount = uint64(amount)
		evt.OccurredAt = time.UnixMilli(occurredAt).UTC()
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ledger events: %w", err)
	}
	return events, nil
}

var _ telemetry.Store = (*Store)(nil)
