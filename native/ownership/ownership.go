package ownership

import (
	"errors"

	"arenaledger/state"
)

// The escrow core consumes the platform ownership capability through a
// deliberately narrow surface: read the current owner and assert that a
// caller is the owner. Ownership transfer, acceptance and renouncement are
// the capability's own operations and are not re-implemented here.

var (
	// ErrUnauthorized signals a caller that is not the configured owner.
	ErrUnauthorized = errors.New("ownership: caller is not the owner")
	// ErrNoOwner signals an assertion against a ledger with no owner set.
	ErrNoOwner = errors.New("ownership: no owner configured")
)

var ownerKey = []byte("ownership/owner")

// Capability reads the owner slot maintained by the external ownership
// contract from shared state.
type Capability struct{}

// Initialize writes the owner slot. Called once at instantiation by the
// governing module; omitted entirely for ownerless escrows.
func (Capability) Initialize(kv state.KV, owner [20]byte) error {
	return kv.KVPut(ownerKey, owner)
}

// Owner returns the current owner and whether one is configured.
func (Capability) Owner(kv state.KV) ([20]byte, bool, error) {
	var owner [20]byte
	ok, err := kv.KVGet(ownerKey, &owner)
	if err != nil {
		return [20]byte{}, false, err
	}
	return owner, ok, nil
}

// AssertOwner fails unless the caller is the configured owner.
func (c Capability) AssertOwner(kv state.KV, caller [20]byte) error {
	owner, ok, err := c.Owner(kv)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoOwner
	}
	if owner != caller {
		return ErrUnauthorized
	}
	return nil
}
