package escrow

import (
	"math/big"

	"arenaledger/native/balance"
)

// The operation surface is a tagged set of request variants dispatched by a
// single entry function. Exactly one variant must be set per envelope.

// WithdrawMsg requests withdrawal of the caller's current balance. The
// optional hints are forwarded verbatim on the generated fungible and
// non-fungible transfer instructions.
type WithdrawMsg struct {
	TokenHint []byte
	NFTHint   []byte
}

// SetDistributionMsg registers or replaces the caller's payout override. An
// empty list clears a previously registered override.
type SetDistributionMsg struct {
	Distribution []MemberShare
}

// ReceiveNativeMsg deposits the native coins attached to the call; the
// depositor is the caller itself.
type ReceiveNativeMsg struct {
	Funds []balance.Coin
}

// ReceiveMsg is a fungible-token transfer notification. The caller is the
// issuing contract; Sender is the depositing party.
type ReceiveMsg struct {
	Sender [20]byte
	Amount *big.Int
}

// ReceiveNFTMsg is a non-fungible transfer notification. The caller is the
// issuing contract; Sender is the depositing party.
type ReceiveNFTMsg struct {
	Sender  [20]byte
	TokenID string
}

// DistributeMsg settles the escrow. A nil Distribution keeps the funded
// balances as the payouts; a non-nil list re-splits the total pool with the
// residual routed to Remainder.
type DistributeMsg struct {
	Distribution []MemberShare
	Remainder    [20]byte
}

// LockMsg sets the lock flag to an explicit value.
type LockMsg struct {
	Value bool
}

// MigrateMsg invokes the opaque schema-upgrade hook.
type MigrateMsg struct{}

// Msg is the operation envelope: a one-of over the request variants.
type Msg struct {
	Withdraw        *WithdrawMsg
	SetDistribution *SetDistributionMsg
	ReceiveNative   *ReceiveNativeMsg
	Receive         *ReceiveMsg
	ReceiveNFT      *ReceiveNFTMsg
	Distribute      *DistributeMsg
	Lock            *LockMsg
	Migrate         *MigrateMsg
}

func (m *Msg) action() (string, error) {
	action := ""
	set := 0
	if m.Withdraw != nil {
		action, set = "withdraw", set+1
	}
	if m.SetDistribution != nil {
		action, set = "set_distribution", set+1
	}
	if m.ReceiveNative != nil {
		action, set = "receive_native", set+1
	}
	if m.Receive != nil {
		action, set = "receive", set+1
	}
	if m.ReceiveNFT != nil {
		action, set = "receive_nft", set+1
	}
	if m.Distribute != nil {
		action, set = "distribute", set+1
	}
	if m.Lock != nil {
		action, set = "lock", set+1
	}
	if m.Migrate != nil {
		action, set = "migrate", set+1
	}
	switch set {
	case 0:
		return "", ErrNoMessage
	case 1:
		return action, nil
	default:
		return "", ErrAmbiguousMessage
	}
}

// Execute dispatches a single operation. The operation runs against a staged
// transaction: on success the transaction commits, events are emitted and the
// queued effects are returned for the host to apply; on failure nothing is
// written and no effects survive.
func (e *Engine) Execute(caller [20]byte, msg *Msg) (*Result, error) {
	if e == nil || e.state == nil {
		return nil, ErrNotConfigured
	}
	if msg == nil {
		return nil, ErrNoMessage
	}
	action, err := msg.action()
	if err != nil {
		return nil, err
	}
	res, err := e.apply(caller, msg)
	if err != nil {
		e.metrics.RecordOperation(action, "error")
		return nil, err
	}
	e.metrics.RecordOperation(action, "ok")
	e.metrics.RecordEffects(len(res.Transfers), res.Activation != nil)
	e.emit(res.Events)
	return res, nil
}

func (e *Engine) apply(caller [20]byte, msg *Msg) (*Result, error) {
	txn := e.state.Begin()
	led := NewLedger(txn)
	var res *Result
	var err error
	switch {
	case msg.Withdraw != nil:
		var locked bool
		locked, err = led.IsLocked()
		if err != nil {
			return nil, err
		}
		if locked {
			return nil, ErrLocked
		}
		res, err = e.withdrawBatch(led, [][20]byte{caller}, msg.Withdraw.TokenHint, msg.Withdraw.NFTHint, false)
	case msg.SetDistribution != nil:
		res, err = e.setMemberDistribution(led, caller, msg.SetDistribution.Distribution)
	case msg.ReceiveNative != nil:
		var bundle balance.Bundle
		bundle, err = balance.NewNative(msg.ReceiveNative.Funds...)
		if err != nil {
			return nil, err
		}
		res, err = e.receiveBundle(led, caller, bundle)
	case msg.Receive != nil:
		var bundle balance.Bundle
		bundle, err = balance.NewToken(caller, msg.Receive.Amount)
		if err != nil {
			return nil, err
		}
		res, err = e.receiveBundle(led, msg.Receive.Sender, bundle)
	case msg.ReceiveNFT != nil:
		var bundle balance.Bundle
		bundle, err = balance.NewNFT(caller, msg.ReceiveNFT.TokenID)
		if err != nil {
			return nil, err
		}
		res, err = e.receiveBundle(led, msg.ReceiveNFT.Sender, bundle)
	case msg.Distribute != nil:
		res, err = e.distribute(led, caller, msg.Distribute.Distribution, msg.Distribute.Remainder)
	case msg.Lock != nil:
		res, err = e.lock(led, caller, msg.Lock.Value)
	case msg.Migrate != nil:
		res, err = e.migrate(led, caller)
	}
	if err != nil {
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}
