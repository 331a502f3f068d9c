package escrow

import (
	"math/big"
	"testing"

	"arenaledger/native/balance"
	"arenaledger/state"
	"arenaledger/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return NewLedger(state.NewManager(storage.NewMemDB()))
}

func seedDues(t *testing.T, led *Ledger, fills ...byte) [][20]byte {
	t.Helper()
	addrs := make([][20]byte, 0, len(fills))
	for _, fill := range fills {
		addr := newTestAddress(fill)
		if err := led.setDue(addr, nativeBundle(t, "u", int64(fill))); err != nil {
			t.Fatalf("set due for %x: %v", addr, err)
		}
		addrs = append(addrs, addr)
	}
	return addrs
}

func TestDuesPagination(t *testing.T) {
	led := newTestLedger(t)
	// Seeded out of order; listing is always in address order.
	seedDues(t, led, 0x05, 0x01, 0x04, 0x02, 0x03)

	page, err := led.Dues(nil, 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page) != 2 || page[0].Account != newTestAddress(0x01) || page[1].Account != newTestAddress(0x02) {
		t.Fatalf("unexpected first page: %+v", page)
	}

	cursor := page[len(page)-1].Account
	page, err = led.Dues(&cursor, 2)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(page) != 2 || page[0].Account != newTestAddress(0x03) || page[1].Account != newTestAddress(0x04) {
		t.Fatalf("unexpected second page: %+v", page)
	}

	cursor = page[len(page)-1].Account
	page, err = led.Dues(&cursor, 2)
	if err != nil {
		t.Fatalf("last page: %v", err)
	}
	if len(page) != 1 || page[0].Account != newTestAddress(0x05) {
		t.Fatalf("unexpected last page: %+v", page)
	}
	if !page[0].Bundle.Equal(nativeBundle(t, "u", 5)) {
		t.Fatalf("page entry carries the stored bundle: %s", page[0].Bundle)
	}
}

func TestPageLimitDefaultsAndClamp(t *testing.T) {
	led := newTestLedger(t)
	fills := make([]byte, 0, DefaultPageLimit+5)
	for i := 1; i <= DefaultPageLimit+5; i++ {
		fills = append(fills, byte(i))
	}
	seedDues(t, led, fills...)

	page, err := led.Dues(nil, 0)
	if err != nil {
		t.Fatalf("default page: %v", err)
	}
	if len(page) != DefaultPageLimit {
		t.Fatalf("non-positive limit should select the default page size, got %d", len(page))
	}

	page, err = led.Dues(nil, MaxPageLimit+500)
	if err != nil {
		t.Fatalf("clamped page: %v", err)
	}
	if len(page) != DefaultPageLimit+5 {
		t.Fatalf("oversized limit should be clamped, not error, got %d", len(page))
	}
}

func TestBalancesListing(t *testing.T) {
	led := newTestLedger(t)
	a, b := newTestAddress(0x0A), newTestAddress(0x0B)
	if _, err := led.creditBalance(b, nativeBundle(t, "u", 7)); err != nil {
		t.Fatalf("credit b: %v", err)
	}
	if _, err := led.creditBalance(a, nativeBundle(t, "u", 3)); err != nil {
		t.Fatalf("credit a: %v", err)
	}
	if _, err := led.creditBalance(a, nativeBundle(t, "u", 2)); err != nil {
		t.Fatalf("credit a again: %v", err)
	}

	entries, err := led.Balances(nil, MaxPageLimit)
	if err != nil {
		t.Fatalf("list balances: %v", err)
	}
	if len(entries) != 2 || entries[0].Account != a || entries[1].Account != b {
		t.Fatalf("unexpected listing: %+v", entries)
	}
	if !entries[0].Bundle.Equal(nativeBundle(t, "u", 5)) {
		t.Fatalf("credits should accumulate, got %s", entries[0].Bundle)
	}

	if err := led.removeBalance(a); err != nil {
		t.Fatalf("remove: %v", err)
	}
	entries, err = led.Balances(nil, MaxPageLimit)
	if err != nil {
		t.Fatalf("list after removal: %v", err)
	}
	if len(entries) != 1 || entries[0].Account != b {
		t.Fatalf("removed balance should not be listed: %+v", entries)
	}
}

func TestFundedQueries(t *testing.T) {
	led := newTestLedger(t)
	a := newTestAddress(0x0A)
	stranger := newTestAddress(0x0F)
	seedDues(t, led, 0x0A)

	if funded, err := led.IsFunded(a); err != nil || funded {
		t.Fatalf("party with an open due must not report funded: %v %v", funded, err)
	}
	// A party that never owed anything reports funded.
	if funded, err := led.IsFunded(stranger); err != nil || !funded {
		t.Fatalf("stranger should report funded: %v %v", funded, err)
	}
	if fully, err := led.IsFullyFunded(); err != nil || fully {
		t.Fatalf("open dues must not report fully funded: %v %v", fully, err)
	}

	if err := led.removeDue(a); err != nil {
		t.Fatalf("remove due: %v", err)
	}
	if fully, err := led.IsFullyFunded(); err != nil || !fully {
		t.Fatalf("no open dues should report fully funded: %v %v", fully, err)
	}
}

func TestSingleValueSlots(t *testing.T) {
	led := newTestLedger(t)

	// Absent slots report zero values.
	if locked, err := led.IsLocked(); err != nil || locked {
		t.Fatalf("absent lock slot should read false: %v %v", locked, err)
	}
	total, err := led.TotalBalance()
	if err != nil || !total.IsEmpty() {
		t.Fatalf("absent total slot should read empty: %s %v", total, err)
	}
	if version, err := led.SchemaVersion(); err != nil || version != 0 {
		t.Fatalf("absent version slot should read zero: %d %v", version, err)
	}

	if err := led.setLocked(true); err != nil {
		t.Fatalf("set locked: %v", err)
	}
	if locked, _ := led.IsLocked(); !locked {
		t.Fatalf("lock flag should round-trip")
	}
	if err := led.setTotalBalance(nativeBundle(t, "u", 9)); err != nil {
		t.Fatalf("set total: %v", err)
	}
	if err := led.removeTotalBalance(); err != nil {
		t.Fatalf("remove total: %v", err)
	}
	total, err = led.TotalBalance()
	if err != nil || !total.IsEmpty() {
		t.Fatalf("removed total slot should read empty: %s %v", total, err)
	}
}

func TestDistributionOverrideStorage(t *testing.T) {
	led := newTestLedger(t)
	a := newTestAddress(0x0A)

	if _, ok, err := led.Distribution(a); err != nil || ok {
		t.Fatalf("absent override should report not found: %v %v", ok, err)
	}
	shares := []balance.MemberShare{
		{Account: newTestAddress(0x01), Weight: big.NewInt(1)},
	}
	if err := led.setDistribution(a, shares); err != nil {
		t.Fatalf("set distribution: %v", err)
	}
	stored, ok, err := led.Distribution(a)
	if err != nil || !ok || len(stored) != 1 || stored[0].Account != shares[0].Account {
		t.Fatalf("override should round-trip: %+v %v %v", stored, ok, err)
	}
	if err := led.clearDistributions(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := led.Distribution(a); ok {
		t.Fatalf("cleared override should report not found")
	}
}
