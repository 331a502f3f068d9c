package escrow

import (
	"encoding/hex"
	"strconv"
	"strings"

	"arenaledger/core/types"
	"arenaledger/native/balance"
)

const (
	EventTypeInstantiated    = "escrow.instantiated"
	EventTypeDeposited       = "escrow.deposited"
	EventTypeActivated       = "escrow.activated"
	EventTypeWithdrawn       = "escrow.withdrawn"
	EventTypeDistributionSet = "escrow.distribution_set"
	EventTypeLocked          = "escrow.locked"
	EventTypeDistributed     = "escrow.distributed"
	EventTypeMigrated        = "escrow.migrated"
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// NewInstantiatedEvent returns the canonical payload for a freshly created
// escrow ledger.
func NewInstantiatedEvent(parties int, fullyFunded bool) *types.Event {
	return &types.Event{Type: EventTypeInstantiated, Attributes: map[string]string{
		"action":       "instantiate",
		"parties":      strconv.Itoa(parties),
		"fully_funded": strconv.FormatBool(fullyFunded),
	}}
}

// NewDepositedEvent returns the canonical payload emitted when a party's
// deposit is credited. balance is the party's cumulative held balance after
// the deposit.
func NewDepositedEvent(party [20]byte, held balance.Bundle, funded bool) *types.Event {
	return &types.Event{Type: EventTypeDeposited, Attributes: map[string]string{
		"action":  "receive_balance",
		"party":   hex.EncodeToString(party[:]),
		"balance": held.String(),
		"funded":  strconv.FormatBool(funded),
	}}
}

// NewActivatedEvent returns the canonical payload for the one-shot transition
// to fully funded.
func NewActivatedEvent(owner *[20]byte) *types.Event {
	attrs := map[string]string{"action": "activate"}
	if owner != nil {
		attrs["owner"] = hex.EncodeToString(owner[:])
	}
	return &types.Event{Type: EventTypeActivated, Attributes: attrs}
}

// NewWithdrawnEvent returns the canonical payload for a withdrawal batch. The
// listed addresses are the ones whose balances were actually drained.
func NewWithdrawnEvent(addrs [][20]byte, settlement bool) *types.Event {
	encoded := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		encoded = append(encoded, hex.EncodeToString(addr[:]))
	}
	return &types.Event{Type: EventTypeWithdrawn, Attributes: map[string]string{
		"action":     "withdraw",
		"addrs":      strings.Join(encoded, ","),
		"settlement": strconv.FormatBool(settlement),
	}}
}

// NewDistributionSetEvent returns the canonical payload for an override
// registration or replacement.
func NewDistributionSetEvent(sender [20]byte, entries int) *types.Event {
	return &types.Event{Type: EventTypeDistributionSet, Attributes: map[string]string{
		"action":  "set_distribution",
		"sender":  hex.EncodeToString(sender[:]),
		"entries": strconv.Itoa(entries),
	}}
}

// NewLockedEvent returns the canonical payload for an explicit lock change.
func NewLockedEvent(value bool) *types.Event {
	return &types.Event{Type: EventTypeLocked, Attributes: map[string]string{
		"action":    "lock",
		"is_locked": strconv.FormatBool(value),
	}}
}

// NewDistributedEvent returns the canonical payload for a settlement.
func NewDistributedEvent(recomputed bool, recipients int) *types.Event {
	return &types.Event{Type: EventTypeDistributed, Attributes: map[string]string{
		"action":     "distribute",
		"recomputed": strconv.FormatBool(recomputed),
		"recipients": strconv.Itoa(recipients),
	}}
}

// NewMigratedEvent returns the canonical payload for a schema migration.
func NewMigratedEvent(from, to uint64) *types.Event {
	return &types.Event{Type: EventTypeMigrated, Attributes: map[string]string{
		"action": "migrate",
		"from":   strconv.FormatUint(from, 10),
		"to":     strconv.FormatUint(to, 10),
	}}
}
