package escrow

import (
	"bytes"

	"arenaledger/native/balance"
	"arenaledger/state"
)

// Persisted layout: named single-value slots plus keyed collections addressed
// by party. Each collection that must be enumerable keeps a sorted address
// index alongside its entries.
var (
	totalBalanceKey = []byte("escrow/total")
	lockedKey       = []byte("escrow/locked")
	versionKey      = []byte("escrow/version")
	// Reserved slot. Declared for layout compatibility; no operation reads
	// or writes it.
	hasDistributedKey = []byte("escrow/distributed")

	balancePrefix    = []byte("escrow/balance/")
	balanceIndexKey  = []byte("escrow/balance-index")
	duePrefix        = []byte("escrow/due/")
	dueIndexKey      = []byte("escrow/due-index")
	initialDuePrefix = []byte("escrow/initial-due/")
	initialDueIndex  = []byte("escrow/initial-due-index")
	distPrefix       = []byte("escrow/distribution/")
	distIndexKey     = []byte("escrow/distribution-index")
)

func collectionKey(prefix []byte, addr [20]byte) []byte {
	key := make([]byte, len(prefix)+len(addr))
	copy(key, prefix)
	copy(key[len(prefix):], addr[:])
	return key
}

// Ledger exposes the escrow collections over a state.KV. Bound to a staged
// transaction it serves the mutating operations; bound to the durable manager
// it serves the read-only query surface.
type Ledger struct {
	kv state.KV
}

// NewLedger binds a ledger view to the provided state surface.
func NewLedger(kv state.KV) *Ledger {
	return &Ledger{kv: kv}
}

// --- balances ---

// Balance returns the currently held bundle for the party.
func (l *Ledger) Balance(addr [20]byte) (balance.Bundle, bool, error) {
	var stored balance.Bundle
	ok, err := l.kv.KVGet(collectionKey(balancePrefix, addr), &stored)
	if err != nil || !ok {
		return balance.New(), false, err
	}
	return stored, true, nil
}

func (l *Ledger) setBalance(addr [20]byte, bundle balance.Bundle) error {
	if err := l.kv.KVPut(collectionKey(balancePrefix, addr), bundle); err != nil {
		return err
	}
	return state.IndexAdd(l.kv, balanceIndexKey, addr[:])
}

func (l *Ledger) removeBalance(addr [20]byte) error {
	if err := l.kv.KVDelete(collectionKey(balancePrefix, addr)); err != nil {
		return err
	}
	return state.IndexRemove(l.kv, balanceIndexKey, addr[:])
}

// creditBalance adds the bundle to the party's held balance and returns the
// new cumulative value.
func (l *Ledger) creditBalance(addr [20]byte, bundle balance.Bundle) (balance.Bundle, error) {
	held, _, err := l.Balance(addr)
	if err != nil {
		return balance.Bundle{}, err
	}
	next, err := held.Add(bundle)
	if err != nil {
		return balance.Bundle{}, err
	}
	if err := l.setBalance(addr, next); err != nil {
		return balance.Bundle{}, err
	}
	return next, nil
}

func (l *Ledger) balanceAccounts() ([][20]byte, error) {
	return indexAccounts(l.kv, balanceIndexKey)
}

func (l *Ledger) clearBalances() error {
	accounts, err := l.balanceAccounts()
	if err != nil {
		return err
	}
	for _, addr := range accounts {
		if err := l.kv.KVDelete(collectionKey(balancePrefix, addr)); err != nil {
			return err
		}
	}
	return state.IndexClear(l.kv, balanceIndexKey)
}

// Balances lists (party, bundle) pairs in address order, starting after the
// optional cursor, up to limit entries. A non-positive limit selects the
// default page size; limits above MaxPageLimit are clamped.
func (l *Ledger) Balances(startAfter *[20]byte, limit int) ([]balance.MemberBundle, error) {
	return l.page(balanceIndexKey, balancePrefix, startAfter, limit)
}

// --- dues ---

// Due returns the outstanding bundle still owed by the party.
func (l *Ledger) Due(addr [20]byte) (balance.Bundle, bool, error) {
	var stored balance.Bundle
	ok, err := l.kv.KVGet(collectionKey(duePrefix, addr), &stored)
	if err != nil || !ok {
		return balance.New(), false, err
	}
	return stored, true, nil
}

// setDue stores a non-empty outstanding amount. Empty dues are never stored;
// callers remove the entry instead.
func (l *Ledger) setDue(addr [20]byte, bundle balance.Bundle) error {
	if err := l.kv.KVPut(collectionKey(duePrefix, addr), bundle); err != nil {
		return err
	}
	return state.IndexAdd(l.kv, dueIndexKey, addr[:])
}

func (l *Ledger) removeDue(addr [20]byte) error {
	if err := l.kv.KVDelete(collectionKey(duePrefix, addr)); err != nil {
		return err
	}
	return state.IndexRemove(l.kv, dueIndexKey, addr[:])
}

func (l *Ledger) clearDues() error {
	accounts, err := indexAccounts(l.kv, dueIndexKey)
	if err != nil {
		return err
	}
	for _, addr := range accounts {
		if err := l.kv.KVDelete(collectionKey(duePrefix, addr)); err != nil {
			return err
		}
	}
	return state.IndexClear(l.kv, dueIndexKey)
}

// Dues lists (party, bundle) pairs of outstanding obligations in address
// order with the same cursor semantics as Balances.
func (l *Ledger) Dues(startAfter *[20]byte, limit int) ([]balance.MemberBundle, error) {
	return l.page(dueIndexKey, duePrefix, startAfter, limit)
}

// IsFunded reports whether the party has no outstanding due. Parties that
// never owed anything report funded.
func (l *Ledger) IsFunded(addr [20]byte) (bool, error) {
	ok, err := l.kv.KVGet(collectionKey(duePrefix, addr), nil)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// IsFullyFunded reports whether no outstanding dues remain.
func (l *Ledger) IsFullyFunded() (bool, error) {
	accounts, err := indexAccounts(l.kv, dueIndexKey)
	if err != nil {
		return false, err
	}
	return len(accounts) == 0, nil
}

// --- initial dues ---

// InitialDue returns the amount the party originally owed, as configured at
// instantiation or re-opened by an unfunding withdrawal.
func (l *Ledger) InitialDue(addr [20]byte) (balance.Bundle, bool, error) {
	var stored balance.Bundle
	ok, err := l.kv.KVGet(collectionKey(initialDuePrefix, addr), &stored)
	if err != nil || !ok {
		return balance.New(), false, err
	}
	return stored, true, nil
}

func (l *Ledger) setInitialDue(addr [20]byte, bundle balance.Bundle) error {
	if err := l.kv.KVPut(collectionKey(initialDuePrefix, addr), bundle); err != nil {
		return err
	}
	return state.IndexAdd(l.kv, initialDueIndex, addr[:])
}

func (l *Ledger) clearInitialDues() error {
	accounts, err := indexAccounts(l.kv, initialDueIndex)
	if err != nil {
		return err
	}
	for _, addr := range accounts {
		if err := l.kv.KVDelete(collectionKey(initialDuePrefix, addr)); err != nil {
			return err
		}
	}
	return state.IndexClear(l.kv, initialDueIndex)
}

// --- distribution overrides ---

// Distribution returns the party's registered override list.
func (l *Ledger) Distribution(addr [20]byte) ([]balance.MemberShare, bool, error) {
	var stored []balance.MemberShare
	ok, err := l.kv.KVGet(collectionKey(distPrefix, addr), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored, true, nil
}

func (l *Ledger) setDistribution(addr [20]byte, shares []balance.MemberShare) error {
	if err := l.kv.KVPut(collectionKey(distPrefix, addr), shares); err != nil {
		return err
	}
	return state.IndexAdd(l.kv, distIndexKey, addr[:])
}

func (l *Ledger) removeDistribution(addr [20]byte) error {
	if err := l.kv.KVDelete(collectionKey(distPrefix, addr)); err != nil {
		return err
	}
	return state.IndexRemove(l.kv, distIndexKey, addr[:])
}

func (l *Ledger) clearDistributions() error {
	accounts, err := indexAccounts(l.kv, distIndexKey)
	if err != nil {
		return err
	}
	for _, addr := range accounts {
		if err := l.kv.KVDelete(collectionKey(distPrefix, addr)); err != nil {
			return err
		}
	}
	return state.IndexClear(l.kv, distIndexKey)
}

// --- single-value slots ---

// TotalBalance returns the aggregate held across all parties. The slot is
// absent after a completed settlement sweep, reported as an empty bundle.
func (l *Ledger) TotalBalance() (balance.Bundle, error) {
	var stored balance.Bundle
	ok, err := l.kv.KVGet(totalBalanceKey, &stored)
	if err != nil || !ok {
		return balance.New(), err
	}
	return stored, nil
}

func (l *Ledger) setTotalBalance(bundle balance.Bundle) error {
	return l.kv.KVPut(totalBalanceKey, bundle)
}

func (l *Ledger) removeTotalBalance() error {
	return l.kv.KVDelete(totalBalanceKey)
}

// IsLocked reports whether withdrawals are currently blocked.
func (l *Ledger) IsLocked() (bool, error) {
	var locked bool
	ok, err := l.kv.KVGet(lockedKey, &locked)
	if err != nil || !ok {
		return false, err
	}
	return locked, nil
}

func (l *Ledger) setLocked(value bool) error {
	return l.kv.KVPut(lockedKey, value)
}

// SchemaVersion returns the persisted storage layout version.
func (l *Ledger) SchemaVersion() (uint64, error) {
	var version uint64
	if _, err := l.kv.KVGet(versionKey, &version); err != nil {
		return 0, err
	}
	return version, nil
}

func (l *Ledger) setSchemaVersion(version uint64) error {
	return l.kv.KVPut(versionKey, version)
}

// --- shared helpers ---

func indexAccounts(kv state.KV, indexKey []byte) ([][20]byte, error) {
	members, err := state.IndexMembers(kv, indexKey)
	if err != nil {
		return nil, err
	}
	accounts := make([][20]byte, 0, len(members))
	for _, member := range members {
		var addr [20]byte
		copy(addr[:], member)
		accounts = append(accounts, addr)
	}
	return accounts, nil
}

func (l *Ledger) page(indexKey, prefix []byte, startAfter *[20]byte, limit int) ([]balance.MemberBundle, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	accounts, err := indexAccounts(l.kv, indexKey)
	if err != nil {
		return nil, err
	}
	out := make([]balance.MemberBundle, 0, limit)
	for _, addr := range accounts {
		if startAfter != nil && bytes.Compare(addr[:], startAfter[:]) <= 0 {
			continue
		}
		var stored balance.Bundle
		ok, err := l.kv.KVGet(collectionKey(prefix, addr), &stored)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, balance.MemberBundle{Account: addr, Bundle: stored})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
