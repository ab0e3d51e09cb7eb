// Package id defines the opaque account identifier used across the ledger.
package id

import "strings"

// Address identifies an account. The host environment authenticates the
// identity behind an address; the ledger only compares addresses.
type Address string

// Zero is the null address. Transfers to it are rejected.
const Zero Address = ""

// Normalize trims surrounding whitespace from an address.
func Normalize(a Address) Address {
	return Address(strings.TrimSpace(string(a)))
}

// IsZero reports whether the address is the null address.
func (a Address) IsZero() bool {
	return Normalize(a) == Zero
}

// String returns the address as a plain string.
func (a Address) String() string {
	return string(a)
}
