// Package storage defines persistence contracts for access-control state.
package storage

import (
	"context"
	"errors"

	"github.com/ydacademy/courseledger/internal/id"
)

// ErrNotFound indicates no administrator has been recorded yet.
var ErrNotFound = errors.New("record not found")

// AdminStore persists the single administrator identity.
type AdminStore interface {
	Administrator(ctx context.Context) (id.Address, error)
	SetAdministrator(ctx context.Context, admin id.Address) error
}
