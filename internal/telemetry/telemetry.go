// Package telemetry records the ledger event journal.
//
// Every mutating operation appends Transfer, Approval, CourseCreated, or
// CoursePurchased facts for off-core indexers. Events are notifications, not
// invariants: they are written through the same transaction as the mutation
// that produced them, so the journal never shows an event for a rolled-back
// call, but nothing in the ledger reads them back.
package telemetry

import (
	"context"
	"time"

	"github.com/ydacademy/courseledger/internal/id"
)

// Kind names a ledger event type.
type Kind string

const (
	KindTransfer        Kind = "TRANSFER"
	KindApproval        Kind = "APPROVAL"
	KindCourseCreated   Kind = "COURSE_CREATED"
	KindCoursePurchased Kind = "COURSE_PURCHASED"
)

// Event is one journal entry. Field use depends on Kind:
// Transfer uses From/To/Amount, Approval uses From (owner), To (spender) and
// Amount, CourseCreated uses CourseID, To (instructor), Amount (price) and
// Detail (title), CoursePurchased uses CourseID, From (buyer) and Amount.
type Event struct {
	Kind       Kind
	From       id.Address
	To         id.Address
	Amount     uint64
	CourseID   int64
	Detail     string
	OccurredAt time.Time
}

// Store persists journal entries.
type Store interface {
	AppendEvent(ctx context.Context, evt Event) error
}

// Emitter records ledger events.
type Emitter struct {
	store Store
	clock func() time.Time
}

// NewEmitter creates a new event emitter.
func NewEmitter(store Store) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records a ledger event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, evt Event) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.OccurredAt.IsZero() {
		if e.clock == nil {
			evt.OccurredAt = time.Now().UTC()
		} else {
			evt.OccurredAt = e.clock().UTC()
		}
	}
	return e.store.AppendEvent(ctx, evt)
}
