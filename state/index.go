package state

import (
	"bytes"
	"sort"
)

// Index helpers maintain a sorted, duplicate-free list of byte-slice members
// under a single key. Keyed collections use an index to enumerate their
// entries deterministically and to serve paginated reads; the hashed key
// space of the backing store has no iteration order of its own.

// IndexAdd inserts a member into the index, keeping the stored list sorted.
// Adding an existing member is a no-op.
func IndexAdd(kv KV, key []byte, member []byte) error {
	var members [][]byte
	if err := KVGetList(kv, key, &members); err != nil {
		return err
	}
	pos := sort.Search(len(members), func(i int) bool {
		return bytes.Compare(members[i], member) >= 0
	})
	if pos < len(members) && bytes.Equal(members[pos], member) {
		return nil
	}
	members = append(members, nil)
	copy(members[pos+1:], members[pos:])
	members[pos] = append([]byte(nil), member...)
	return kv.KVPut(key, members)
}

// IndexRemove removes a member from the index. Removing an absent member is a
// no-op. An index that becomes empty is deleted from state.
func IndexRemove(kv KV, key []byte, member []byte) error {
	var members [][]byte
	if err := KVGetList(kv, key, &members); err != nil {
		return err
	}
	pos := sort.Search(len(members), func(i int) bool {
		return bytes.Compare(members[i], member) >= 0
	})
	if pos >= len(members) || !bytes.Equal(members[pos], member) {
		return nil
	}
	members = append(members[:pos], members[pos+1:]...)
	if len(members) == 0 {
		return kv.KVDelete(key)
	}
	return kv.KVPut(key, members)
}

// IndexMembers returns the sorted members of the index.
func IndexMembers(kv KV, key []byte) ([][]byte, error) {
	var members [][]byte
	if err := KVGetList(kv, key, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// IndexClear removes the entire index.
func IndexClear(kv KV, key []byte) error {
	return kv.KVDelete(key)
}
