package state

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// Txn stages writes and deletes against a Manager so a multi-step operation
// either commits in full or leaves no trace. Reads observe staged values
// first, then fall through to the underlying store. A Txn is not safe for
// concurrent use; the execution environment serialises operations.
type Txn struct {
	manager   *Manager
	writes    map[string][]byte
	deletes   map[string]struct{}
	committed bool
}

// Begin opens a new staged transaction against the manager.
func (m *Manager) Begin() *Txn {
	return &Txn{
		manager: m,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// KVPut stages a value under the supplied key. Encoding happens eagerly so an
// unencodable value fails the operation before any state is touched.
func (t *Txn) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	k := string(key)
	delete(t.deletes, k)
	t.writes[k] = encoded
	return nil
}

// KVGet reads through the staged writes and deletes before consulting the
// underlying store.
func (t *Txn) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	k := string(key)
	if _, gone := t.deletes[k]; gone {
		return false, nil
	}
	if data, ok := t.writes[k]; ok {
		if out == nil {
			return true, nil
		}
		if err := rlp.DecodeBytes(data, out); err != nil {
			return false, err
		}
		return true, nil
	}
	return t.manager.KVGet(key, out)
}

// KVDelete stages the removal of a key.
func (t *Txn) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	k := string(key)
	delete(t.writes, k)
	t.deletes[k] = struct{}{}
	return nil
}

// Commit flushes the staged writes and deletes to the underlying store in
// deterministic key order. A Txn can be committed at most once; an abandoned
// Txn needs no cleanup since nothing was written.
func (t *Txn) Commit() error {
	if t.committed {
		return fmt.Errorf("kv: transaction already committed")
	}
	keys := make([]string, 0, len(t.writes)+len(t.deletes))
	for k := range t.writes {
		keys = append(keys, k)
	}
	for k := range t.deletes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if data, ok := t.writes[k]; ok {
			if err := t.manager.db.Put(kvKey([]byte(k)), data); err != nil {
				return err
			}
			continue
		}
		if err := t.manager.db.Delete(kvKey([]byte(k))); err != nil {
			return err
		}
	}
	t.committed = true
	return nil
}
