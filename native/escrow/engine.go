package escrow

import (
	"fmt"

	"arenaledger/core/events"
	"arenaledger/core/types"
	"arenaledger/native/balance"
	"arenaledger/native/ownership"
	"arenaledger/observability"
	"arenaledger/state"
)

// Authority is the narrow surface of the external ownership capability the
// engine consumes. Ownership transfer, acceptance and renouncement stay with
// the capability itself.
type Authority interface {
	Owner(kv state.KV) ([20]byte, bool, error)
	AssertOwner(kv state.KV, caller [20]byte) error
}

// ActivationEffect is the single outbound instruction invoking the owning
// collaborator's activate entrypoint once funding completes. Like transfer
// instructions it is data only and is applied by the host after commit.
type ActivationEffect struct {
	Target [20]byte
}

// Result carries everything an operation produced besides its state change:
// the events describing it and the outbound effects the host must apply once
// the change is durably committed. A failed operation produces no result and
// no effects.
type Result struct {
	Events     []*types.Event
	Transfers  []balance.TransferInstruction
	Activation *ActivationEffect
}

func (r *Result) merge(other *Result) {
	if other == nil {
		return
	}
	r.Events = append(r.Events, other.Events...)
	r.Transfers = append(r.Transfers, other.Transfers...)
	if other.Activation != nil {
		r.Activation = other.Activation
	}
}

// Engine wires the escrow settlement logic with durable state, the ownership
// capability and event emission. Operations run under a staged transaction:
// either every write commits or none do, and effects are only surfaced for
// committed operations.
type Engine struct {
	state   *state.Manager
	auth    Authority
	emitter events.Emitter
	metrics *observability.EscrowMetrics
}

// NewEngine creates an escrow engine with the default ownership capability
// and a no-op emitter. Callers wire the state backend via SetState.
func NewEngine() *Engine {
	return &Engine{
		auth:    ownership.Capability{},
		emitter: events.NoopEmitter{},
		metrics: observability.Escrow(),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(manager *state.Manager) { e.state = manager }

// SetAuthority overrides the ownership capability. Passing nil restores the
// default implementation.
func (e *Engine) SetAuthority(auth Authority) {
	if auth == nil {
		e.auth = ownership.Capability{}
		return
	}
	e.auth = auth
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evts []*types.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	for _, evt := range evts {
		if evt != nil {
			e.emitter.Emit(escrowEvent{evt: evt})
		}
	}
}

// View returns a read-only ledger over the durable state, serving the query
// surface.
func (e *Engine) View() (*Ledger, error) {
	if e == nil || e.state == nil {
		return nil, ErrNotConfigured
	}
	return NewLedger(e.state), nil
}

// Owner returns the configured owner, if any.
func (e *Engine) Owner() ([20]byte, bool, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, false, ErrNotConfigured
	}
	return e.auth.Owner(e.state)
}

// Instantiate initialises the ledger with its initial due map. An empty due
// map starts the escrow already fully funded, but no activation is emitted:
// the activation effect belongs to the funding transition alone. The owner,
// when provided, is written through the ownership capability's initial slot.
func (e *Engine) Instantiate(owner *[20]byte, dues []balance.MemberBundle) (*Result, error) {
	if e == nil || e.state == nil {
		return nil, ErrNotConfigured
	}
	txn := e.state.Begin()
	led := NewLedger(txn)
	if owner != nil {
		if err := (ownership.Capability{}).Initialize(txn, *owner); err != nil {
			return nil, err
		}
	}
	parties := 0
	for _, entry := range dues {
		if entry.Bundle.IsEmpty() {
			return nil, fmt.Errorf("escrow: initial due for %x must not be empty", entry.Account)
		}
		existing, has, err := led.Due(entry.Account)
		if err != nil {
			return nil, err
		}
		next, err := existing.Add(entry.Bundle)
		if err != nil {
			return nil, err
		}
		if err := led.setDue(entry.Account, next); err != nil {
			return nil, err
		}
		if err := led.setInitialDue(entry.Account, next); err != nil {
			return nil, err
		}
		if !has {
			parties++
		}
	}
	if err := led.setLocked(false); err != nil {
		return nil, err
	}
	if err := led.setTotalBalance(balance.New()); err != nil {
		return nil, err
	}
	if err := led.setSchemaVersion(CurrentSchemaVersion); err != nil {
		return nil, err
	}
	res := &Result{Events: []*types.Event{NewInstantiatedEvent(parties, parties == 0)}}
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	e.emit(res.Events)
	return res, nil
}

// receiveBundle credits a deposit and advances the funding state machine.
// The deposit is rejected outright when the party has nothing due; an
// overpayment fails the balance subtraction and aborts the operation.
func (e *Engine) receiveBundle(led *Ledger, party [20]byte, bundle balance.Bundle) (*Result, error) {
	_, hasDue, err := led.Due(party)
	if err != nil {
		return nil, err
	}
	if !hasDue {
		return nil, ErrNoneDue
	}
	held, err := led.creditBalance(party, bundle)
	if err != nil {
		return nil, err
	}
	initial, _, err := led.InitialDue(party)
	if err != nil {
		return nil, err
	}
	newDue, err := initial.Sub(held)
	if err != nil {
		return nil, fmt.Errorf("escrow: deposit exceeds due: %w", err)
	}
	funded := newDue.IsEmpty()
	if funded {
		if err := led.removeDue(party); err != nil {
			return nil, err
		}
	} else {
		if err := led.setDue(party, newDue); err != nil {
			return nil, err
		}
	}
	total, err := led.TotalBalance()
	if err != nil {
		return nil, err
	}
	total, err = total.Add(bundle)
	if err != nil {
		return nil, err
	}
	if err := led.setTotalBalance(total); err != nil {
		return nil, err
	}
	res := &Result{Events: []*types.Event{NewDepositedEvent(party, held, funded)}}
	if !funded {
		return res, nil
	}
	fully, err := led.IsFullyFunded()
	if err != nil {
		return nil, err
	}
	if !fully {
		return res, nil
	}
	if err := led.setLocked(true); err != nil {
		return nil, err
	}
	owner, ok, err := e.auth.Owner(led.kv)
	if err != nil {
		return nil, err
	}
	if ok {
		res.Activation = &ActivationEffect{Target: owner}
		res.Events = append(res.Events, NewActivatedEvent(&owner))
	} else {
		res.Events = append(res.Events, NewActivatedEvent(nil))
	}
	return res, nil
}

// withdrawBatch drains the balances of the given parties into transfer
// instructions. Outside settlement each drained party is unfunded: the
// withdrawn amount is re-added to its due and subtracted from the running
// total. The settlement sweep skips that bookkeeping (settlement already
// cleared it) and removes the total balance slot once drained. Parties with
// no stored balance are skipped silently.
func (e *Engine) withdrawBatch(led *Ledger, addrs [][20]byte, tokenHint, nftHint []byte, settlement bool) (*Result, error) {
	var total balance.Bundle
	var err error
	if !settlement {
		total, err = led.TotalBalance()
		if err != nil {
			return nil, err
		}
	}
	drained := make([][20]byte, 0, len(addrs))
	transfers := make([]balance.TransferInstruction, 0)
	for _, addr := range addrs {
		held, ok, err := led.Balance(addr)
		if err != nil {
			return nil, err
		}
		if !ok || held.IsEmpty() {
			continue
		}
		transfers = append(transfers, held.Transfers(addr, tokenHint, nftHint)...)
		if err := led.removeBalance(addr); err != nil {
			return nil, err
		}
		if !settlement {
			total, err = total.Sub(held)
			if err != nil {
				return nil, err
			}
			due, _, err := led.Due(addr)
			if err != nil {
				return nil, err
			}
			due, err = due.Add(held)
			if err != nil {
				return nil, err
			}
			if err := led.setDue(addr, due); err != nil {
				return nil, err
			}
			if _, hasInitial, err := led.InitialDue(addr); err != nil {
				return nil, err
			} else if !hasInitial {
				if err := led.setInitialDue(addr, due); err != nil {
					return nil, err
				}
			}
		}
		drained = append(drained, addr)
	}
	if settlement {
		if err := led.removeTotalBalance(); err != nil {
			return nil, err
		}
	} else {
		if err := led.setTotalBalance(total); err != nil {
			return nil, err
		}
	}
	return &Result{
		Events:    []*types.Event{NewWithdrawnEvent(drained, settlement)},
		Transfers: transfers,
	}, nil
}

// setMemberDistribution registers, replaces or (with an empty list) clears
// the caller's own payout override. No weight-sum validation is performed;
// weights are relative and interpreted by the split algorithm at settlement.
func (e *Engine) setMemberDistribution(led *Ledger, caller [20]byte, shares []balance.MemberShare) (*Result, error) {
	if len(shares) == 0 {
		if err := led.removeDistribution(caller); err != nil {
			return nil, err
		}
		return &Result{Events: []*types.Event{NewDistributionSetEvent(caller, 0)}}, nil
	}
	if err := balance.ValidateShares(shares); err != nil {
		return nil, err
	}
	if err := led.setDistribution(caller, shares); err != nil {
		return nil, err
	}
	return &Result{Events: []*types.Event{NewDistributionSetEvent(caller, len(shares))}}, nil
}

// distribute settles the escrow. With a distribution supplied the total pool
// is re-split between the listed recipients (with per-recipient overrides
// applied as a second-level split); without one the funded balances stand as
// the payouts. Either way the escrow ends unlocked with no outstanding
// obligations and every remaining balance is swept into transfer
// instructions.
func (e *Engine) distribute(led *Ledger, caller [20]byte, distribution []balance.MemberShare, remainder [20]byte) (*Result, error) {
	if err := e.auth.AssertOwner(led.kv, caller); err != nil {
		return nil, err
	}
	fully, err := led.IsFullyFunded()
	if err != nil {
		return nil, err
	}
	if !fully {
		return nil, ErrNotFunded
	}
	recomputed := distribution != nil
	recipients := 0
	if recomputed {
		total, err := led.TotalBalance()
		if err != nil {
			return nil, err
		}
		allocations, err := total.Split(distribution, remainder)
		if err != nil {
			return nil, err
		}
		if err := led.clearBalances(); err != nil {
			return nil, err
		}
		for _, alloc := range allocations {
			override, ok, err := led.Distribution(alloc.Account)
			if err != nil {
				return nil, err
			}
			if !ok {
				if _, err := led.creditBalance(alloc.Account, alloc.Bundle); err != nil {
					return nil, err
				}
				continue
			}
			// Second-level split with the recipient itself as the
			// implicit remainder fallback.
			subs, err := alloc.Bundle.Split(override, alloc.Account)
			if err != nil {
				return nil, err
			}
			for _, sub := range subs {
				if _, err := led.creditBalance(sub.Account, sub.Bundle); err != nil {
					return nil, err
				}
			}
		}
		recipients = len(allocations)
	}
	if err := led.setLocked(false); err != nil {
		return nil, err
	}
	if err := led.clearDues(); err != nil {
		return nil, err
	}
	if err := led.clearInitialDues(); err != nil {
		return nil, err
	}
	if err := led.clearDistributions(); err != nil {
		return nil, err
	}
	addrs, err := led.balanceAccounts()
	if err != nil {
		return nil, err
	}
	res := &Result{Events: []*types.Event{NewDistributedEvent(recomputed, recipients)}}
	sweep, err := e.withdrawBatch(led, addrs, nil, nil, true)
	if err != nil {
		return nil, err
	}
	res.merge(sweep)
	return res, nil
}

// lock sets the lock flag explicitly, overriding the funding-driven value.
func (e *Engine) lock(led *Ledger, caller [20]byte, value bool) (*Result, error) {
	if err := e.auth.AssertOwner(led.kv, caller); err != nil {
		return nil, err
	}
	if err := led.setLocked(value); err != nil {
		return nil, err
	}
	return &Result{Events: []*types.Event{NewLockedEvent(value)}}, nil
}

// migrate is the opaque schema-upgrade hook: it records the current layout
// version and deliberately does nothing else.
func (e *Engine) migrate(led *Ledger, caller [20]byte) (*Result, error) {
	if err := e.auth.AssertOwner(led.kv, caller); err != nil {
		return nil, err
	}
	from, err := led.SchemaVersion()
	if err != nil {
		return nil, err
	}
	if err := led.setSchemaVersion(CurrentSchemaVersion); err != nil {
		return nil, err
	}
	return &Result{Events: []*types.Event{NewMigratedEvent(from, CurrentSchemaVersion)}}, nil
}
