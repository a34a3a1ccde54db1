// Package bal implements Block-Level Access Lists (EIP-7928): per-account
// records of storage writes, balance changes, nonce changes, and code changes,
// each attributed to the transaction index that produced it. The list has a
// canonical RLP encoding whose keccak256 hash commits to the block's state
// changes, enabling cross-client verification and parallel execution planning.
package bal

import (
	"github.com/holiman/uint256"

	"github.com/ethaccess/ethaccess/core/types"
)

// Protocol limits, chosen to support a 630 million gas limit.
const (
	// MaxTxs is the maximum number of transactions per block. Valid
	// transaction indices lie in [0, MaxTxs).
	MaxTxs = 30_000

	// MaxSlots is the maximum number of storage slot entries in a block.
	MaxSlots = 300_000

	// MaxAccounts is the maximum number of accounts in a block access list.
	MaxAccounts = 300_000

	// MaxCodeSize is the maximum contract bytecode size in bytes (EIP-170).
	MaxCodeSize = 24_576
)

// StorageChange is a single storage write: the transaction index that
// performed it and the value it left behind.
type StorageChange struct {
	TxIndex  uint64
	NewValue uint256.Int
}

// NewStorageChange creates a StorageChange.
func NewStorageChange(txIndex uint64, newValue uint256.Int) StorageChange {
	return StorageChange{TxIndex: txIndex, NewValue: newValue}
}

// IsZero reports whether the written value is zero.
func (c *StorageChange) IsZero() bool {
	return c.NewValue.IsZero()
}

// IsFromTx reports whether this change was made by the given transaction.
func (c *StorageChange) IsFromTx(txIndex uint64) bool {
	return c.TxIndex == txIndex
}

// WithValue returns a copy carrying a different value at the same index.
func (c *StorageChange) WithValue(value uint256.Int) StorageChange {
	return StorageChange{TxIndex: c.TxIndex, NewValue: value}
}

// SlotChanges collects every write to one storage slot across the block,
// ordered by transaction index.
type SlotChanges struct {
	Slot    types.Hash
	Changes []StorageChange
}

// NewSlotChanges creates a SlotChanges over the given changes. The slice is
// taken as-is: the caller supplies changes already ordered by TxIndex.
func NewSlotChanges(slot types.Hash, changes []StorageChange) SlotChanges {
	return SlotChanges{Slot: slot, Changes: changes}
}

// Push appends a storage change.
func (sc *SlotChanges) Push(change StorageChange) {
	sc.Changes = append(sc.Changes, change)
}

// Len returns the number of changes recorded for this slot.
func (sc *SlotChanges) Len() int {
	return len(sc.Changes)
}

// IsEmpty reports whether no changes have been recorded.
func (sc *SlotChanges) IsEmpty() bool {
	return len(sc.Changes) == 0
}

// WithSlot returns a copy keyed to a different slot.
func (sc *SlotChanges) WithSlot(slot types.Hash) SlotChanges {
	return SlotChanges{Slot: slot, Changes: sc.Changes}
}

// WithChange returns a copy with the change appended.
func (sc *SlotChanges) WithChange(change StorageChange) SlotChanges {
	changes := make([]StorageChange, len(sc.Changes), len(sc.Changes)+1)
	copy(changes, sc.Changes)
	return SlotChanges{Slot: sc.Slot, Changes: append(changes, change)}
}

// BalanceChange records the account balance left after a transaction.
type BalanceChange struct {
	TxIndex     uint64
	PostBalance uint256.Int
}

// NewBalanceChange creates a BalanceChange.
func NewBalanceChange(txIndex uint64, postBalance uint256.Int) BalanceChange {
	return BalanceChange{TxIndex: txIndex, PostBalance: postBalance}
}

// NonceChange records the account nonce set by a transaction.
type NonceChange struct {
	TxIndex  uint64
	NewNonce uint64
}

// NewNonceChange creates a NonceChange.
func NewNonceChange(txIndex uint64, newNonce uint64) NonceChange {
	return NonceChange{TxIndex: txIndex, NewNonce: newNonce}
}

// CodeChange records the bytecode deployed to an account by a transaction.
type CodeChange struct {
	TxIndex uint64
	NewCode []byte
}

// NewCodeChange creates a CodeChange.
func NewCodeChange(txIndex uint64, newCode []byte) CodeChange {
	return CodeChange{TxIndex: txIndex, NewCode: newCode}
}

// AccountChanges aggregates every change to one account in a block. The four
// change kinds are independent lists; there is no ordering requirement across
// kinds. StorageChanges is ordered by ascending slot key.
type AccountChanges struct {
	Address        types.Address
	StorageChanges []SlotChanges
	BalanceChanges []BalanceChange
	NonceChanges   []NonceChange
	CodeChanges    []CodeChange
}

// NewAccountChanges creates an empty change set for the given account.
func NewAccountChanges(addr types.Address) AccountChanges {
	return AccountChanges{Address: addr}
}

// StorageWrites returns the total number of storage writes across all slots.
func (ac *AccountChanges) StorageWrites() int {
	n := 0
	for i := range ac.StorageChanges {
		n += len(ac.StorageChanges[i].Changes)
	}
	return n
}

// SlotCount returns the number of distinct storage slots touched.
func (ac *AccountChanges) SlotCount() int {
	return len(ac.StorageChanges)
}

// IsEmpty reports whether the account carries no changes of any kind.
func (ac *AccountChanges) IsEmpty() bool {
	return len(ac.StorageChanges) == 0 && len(ac.BalanceChanges) == 0 &&
		len(ac.NonceChanges) == 0 && len(ac.CodeChanges) == 0
}

// BlockAccessList is the complete access list for one block: account change
// sets in ascending address order. It encodes transparently as the bare RLP
// list of its accounts.
type BlockAccessList struct {
	Accounts []AccountChanges
}

// NewBlockAccessList wraps the given account change sets. The slice is taken
// as-is: the caller supplies accounts already in canonical order. Build is
// the validating alternative for untrusted input.
func NewBlockAccessList(accounts []AccountChanges) *BlockAccessList {
	return &BlockAccessList{Accounts: accounts}
}

// Push appends an account change set.
func (l *BlockAccessList) Push(ac AccountChanges) {
	l.Accounts = append(l.Accounts, ac)
}

// Len returns the number of accounts in the list.
func (l *BlockAccessList) Len() int {
	return len(l.Accounts)
}

// AccountCount returns the number of accounts in the list.
func (l *BlockAccessList) AccountCount() int {
	return len(l.Accounts)
}

// TotalStorageChanges returns the number of storage writes across all
// accounts and slots.
func (l *BlockAccessList) TotalStorageChanges() int {
	n := 0
	for i := range l.Accounts {
		n += l.Accounts[i].StorageWrites()
	}
	return n
}

// TotalSlots returns the number of storage slot entries across all accounts.
func (l *BlockAccessList) TotalSlots() int {
	n := 0
	for i := range l.Accounts {
		n += len(l.Accounts[i].StorageChanges)
	}
	return n
}

// TotalBalanceChanges returns the number of balance changes across all accounts.
func (l *BlockAccessList) TotalBalanceChanges() int {
	n := 0
	for i := range l.Accounts {
		n += len(l.Accounts[i].BalanceChanges)
	}
	return n
}

// TotalNonceChanges returns the number of nonce changes across all accounts.
func (l *BlockAccessList) TotalNonceChanges() int {
	n := 0
	for i := range l.Accounts {
		n += len(l.Accounts[i].NonceChanges)
	}
	return n
}

// TotalCodeChanges returns the number of code changes across all accounts.
func (l *BlockAccessList) TotalCodeChanges() int {
	n := 0
	for i := range l.Accounts {
		n += len(l.Accounts[i].CodeChanges)
	}
	return n
}

// ChangeCounts summarizes the size of a block access list.
type ChangeCounts struct {
	Accounts       int
	Slots          int
	StorageChanges int
	BalanceChanges int
	NonceChanges   int
	CodeChanges    int
}

// Counts returns the combined change statistics in one pass.
func (l *BlockAccessList) Counts() ChangeCounts {
	var c ChangeCounts
	c.Accounts = len(l.Accounts)
	for i := range l.Accounts {
		ac := &l.Accounts[i]
		c.Slots += len(ac.StorageChanges)
		c.StorageChanges += ac.StorageWrites()
		c.BalanceChanges += len(ac.BalanceChanges)
		c.NonceChanges += len(ac.NonceChanges)
		c.CodeChanges += len(ac.CodeChanges)
	}
	return c
}
