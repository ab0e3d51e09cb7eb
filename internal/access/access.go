// Package access holds the single administrator capability consulted by every
// privileged ledger operation.
package access

import (
	"context"
	stderrors "errors"

	"github.com/ydacademy/courseledger/internal/access/storage"
	"github.com/ydacademy/courseledger/internal/id"
	"github.com/ydacademy/courseledger/internal/platform/errors"
)

// Authority answers whether a caller holds the administrator capability.
type Authority struct {
	store storage.AdminStore
}

// NewAuthority creates an Authority backed by admin storage.
func NewAuthority(store storage.AdminStore) *Authority {
	return &Authority{store: store}
}

// Administrator returns the current administrator address.
func (a *Authority) Administrator(ctx context.Context) (id.Address, error) {
	if a == nil || a.store == nil {
		return id.Zero, errors.New(errors.CodeUnknown, "admin store is not configured")
	}
	admin, err := a.store.Administrator(ctx)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return id.Zero, errors.New(errors.CodeNotInitialized, "ledger has not been initialized")
		}
		return id.Zero, errors.Wrap(errors.CodeUnknown, "load administrator", err)
	}
	return admin, nil
}

// Require fails with Unauthorized unless caller is the administrator.
func (a *Authority) Require(ctx context.Context, caller id.Address) error {
	admin, err := a.Administrator(ctx)
	if err != nil {
		return err
	}
	if id.Normalize(caller) != id.Normalize(admin) {
		return errors.WithMetadata(errors.CodeUnauthorized, "caller is not the administrator", map[string]string{
			"caller": caller.String(),
		})
	}
	return nil
}

// IsAdministrator reports whether caller is the administrator without failing.
func (a *Authority) IsAdministrator(ctx context.Context, caller id.Address) (bool, error) {
	admin, err := a.Administrator(ctx)
	if err != nil {
		return false, err
	}
	return id.Normalize(caller) == id.Normalize(admin), nil
}

// TransferOwnership hands the administrator capability to newAdmin. Only the
// current administrator may call it. The new address is written as given; the
// reference behavior carries no zero-address guard here.
func (a *Authority) TransferOwnership(ctx context.Context, caller, newAdmin id.Address) error {
	if err := a.Require(ctx, caller); err != nil {
		return err
	}
	if err := a.store.SetAdministrator(ctx, id.Normalize(newAdmin)); err != nil {
		return errors.Wrap(errors.CodeUnknown, "persist administrator", err)
	}
	return nil
}
