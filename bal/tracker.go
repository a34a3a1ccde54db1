package bal

import (
	"sort"

	"github.com/holiman/uint256"

	"github.com/ethaccess/ethaccess/core/types"
	"github.com/ethaccess/ethaccess/log"
)

// AccessTracker accumulates per-transaction state writes during block
// execution and turns them into a canonical BlockAccessList. Recording the
// same field twice for one transaction keeps the later value, so each entry
// carries the post-transaction state. Ordering is irrelevant while
// recording; Finalize sorts once.
//
// The tracker is not safe for concurrent use.
type AccessTracker struct {
	storage  map[types.Address]map[types.Hash]map[uint64]uint256.Int
	balances map[types.Address]map[uint64]uint256.Int
	nonces   map[types.Address]map[uint64]uint64
	codes    map[types.Address]map[uint64][]byte
	touched  map[types.Address]struct{}
}

// NewTracker creates an empty AccessTracker.
func NewTracker() *AccessTracker {
	t := &AccessTracker{}
	t.Reset()
	return t
}

// RecordTouch marks an address as accessed without modification. Touched
// accounts appear in the final list with all-empty change lists.
func (t *AccessTracker) RecordTouch(addr types.Address) {
	t.touched[addr] = struct{}{}
}

// RecordStorageWrite records the value a transaction leaves in a storage
// slot.
func (t *AccessTracker) RecordStorageWrite(txIndex uint64, addr types.Address, slot types.Hash, value *uint256.Int) {
	slots, ok := t.storage[addr]
	if !ok {
		slots = make(map[types.Hash]map[uint64]uint256.Int)
		t.storage[addr] = slots
	}
	writes, ok := slots[slot]
	if !ok {
		writes = make(map[uint64]uint256.Int)
		slots[slot] = writes
	}
	writes[txIndex] = *value
	t.touched[addr] = struct{}{}
}

// RecordBalanceChange records an account's balance after a transaction.
func (t *AccessTracker) RecordBalanceChange(txIndex uint64, addr types.Address, post *uint256.Int) {
	posts, ok := t.balances[addr]
	if !ok {
		posts = make(map[uint64]uint256.Int)
		t.balances[addr] = posts
	}
	posts[txIndex] = *post
	t.touched[addr] = struct{}{}
}

// RecordNonceChange records an account's nonce after a transaction.
func (t *AccessTracker) RecordNonceChange(txIndex uint64, addr types.Address, nonce uint64) {
	nonces, ok := t.nonces[addr]
	if !ok {
		nonces = make(map[uint64]uint64)
		t.nonces[addr] = nonces
	}
	nonces[txIndex] = nonce
	t.touched[addr] = struct{}{}
}

// RecordCodeChange records an account's code after a transaction. The code
// slice is copied.
func (t *AccessTracker) RecordCodeChange(txIndex uint64, addr types.Address, code []byte) {
	codes, ok := t.codes[addr]
	if !ok {
		codes = make(map[uint64][]byte)
		t.codes[addr] = codes
	}
	codes[txIndex] = append([]byte(nil), code...)
	t.touched[addr] = struct{}{}
}

// Finalize sorts the recorded writes into canonical order and returns the
// resulting list. The output satisfies ValidateStrict by construction:
// map keys are unique per (account, slot, transaction). The tracker keeps
// its state; call Reset before reusing it for another block.
func (t *AccessTracker) Finalize() *BlockAccessList {
	addrs := make([]types.Address, 0, len(t.touched))
	for addr := range t.touched {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].Cmp(addrs[j]) < 0
	})

	l := &BlockAccessList{Accounts: make([]AccountChanges, 0, len(addrs))}
	for _, addr := range addrs {
		l.Accounts = append(l.Accounts, t.buildAccount(addr))
	}

	counts := l.Counts()
	log.Default().Module("bal").Debug("finalized access list",
		"accounts", counts.Accounts,
		"slots", counts.Slots,
		"storage_changes", counts.StorageChanges)
	return l
}

func (t *AccessTracker) buildAccount(addr types.Address) AccountChanges {
	ac := NewAccountChanges(addr)

	if slots := t.storage[addr]; len(slots) > 0 {
		keys := make([]types.Hash, 0, len(slots))
		for slot := range slots {
			keys = append(keys, slot)
		}
		sort.Slice(keys, func(i, j int) bool {
			return keys[i].Cmp(keys[j]) < 0
		})
		ac.StorageChanges = make([]SlotChanges, 0, len(keys))
		for _, slot := range keys {
			writes := slots[slot]
			sc := SlotChanges{Slot: slot, Changes: make([]StorageChange, 0, len(writes))}
			for _, idx := range sortedTxIndexes(writes) {
				sc.Changes = append(sc.Changes, StorageChange{TxIndex: idx, NewValue: writes[idx]})
			}
			ac.StorageChanges = append(ac.StorageChanges, sc)
		}
	}
	if posts := t.balances[addr]; len(posts) > 0 {
		ac.BalanceChanges = make([]BalanceChange, 0, len(posts))
		for _, idx := range sortedTxIndexes(posts) {
			ac.BalanceChanges = append(ac.BalanceChanges, BalanceChange{TxIndex: idx, PostBalance: posts[idx]})
		}
	}
	if nonces := t.nonces[addr]; len(nonces) > 0 {
		ac.NonceChanges = make([]NonceChange, 0, len(nonces))
		for _, idx := range sortedTxIndexes(nonces) {
			ac.NonceChanges = append(ac.NonceChanges, NonceChange{TxIndex: idx, NewNonce: nonces[idx]})
		}
	}
	if codes := t.codes[addr]; len(codes) > 0 {
		ac.CodeChanges = make([]CodeChange, 0, len(codes))
		for _, idx := range sortedTxIndexes(codes) {
			ac.CodeChanges = append(ac.CodeChanges, CodeChange{TxIndex: idx, NewCode: codes[idx]})
		}
	}
	return ac
}

// Reset clears all recorded writes so the tracker can start a new block.
func (t *AccessTracker) Reset() {
	t.storage = make(map[types.Address]map[types.Hash]map[uint64]uint256.Int)
	t.balances = make(map[types.Address]map[uint64]uint256.Int)
	t.nonces = make(map[types.Address]map[uint64]uint64)
	t.codes = make(map[types.Address]map[uint64][]byte)
	t.touched = make(map[types.Address]struct{})
}

func sortedTxIndexes[V any](m map[uint64]V) []uint64 {
	idx := make([]uint64, 0, len(m))
	for i := range m {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool { return idx[a] < idx[b] })
	return idx
}
