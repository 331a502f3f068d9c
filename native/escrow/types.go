package escrow

import (
	"errors"

	"arenaledger/native/balance"
)

// Errors surfaced by the escrow operation set. Arithmetic failures
// (balance.ErrInsufficientBalance and friends) propagate from the balance
// library unchanged; authorization failures propagate from the ownership
// capability.
var (
	// ErrLocked rejects a direct withdrawal while the escrow is locked.
	ErrLocked = errors.New("escrow: locked")
	// ErrNoneDue rejects a deposit from a party with nothing owed.
	ErrNoneDue = errors.New("escrow: depositor has no due balance")
	// ErrNotFunded rejects settlement before full funding.
	ErrNotFunded = errors.New("escrow: not fully funded")
	// ErrNoMessage signals a dispatch envelope with no variant set.
	ErrNoMessage = errors.New("escrow: no message variant set")
	// ErrAmbiguousMessage signals a dispatch envelope with more than one
	// variant set.
	ErrAmbiguousMessage = errors.New("escrow: multiple message variants set")
	// ErrNotConfigured signals an engine used before its state backend was
	// wired.
	ErrNotConfigured = errors.New("escrow: state not configured")
)

// CurrentSchemaVersion is the storage layout version written at instantiation
// and by the migration hook.
const CurrentSchemaVersion uint64 = 1

// Pagination bounds for the Balances and Dues listings. Enumeration of keyed
// collections must stay bounded per call in a resource-metered host.
const (
	DefaultPageLimit = 30
	MaxPageLimit     = 100
)

// MemberShare and MemberBundle are the balance library's types; the escrow
// surface re-exports them so callers assembling messages need only this
// package.
type (
	MemberShare  = balance.MemberShare
	MemberBundle = balance.MemberBundle
)
