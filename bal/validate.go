package bal

import (
	"fmt"
	"sort"

	"github.com/ethaccess/ethaccess/core/types"
)

// DuplicatePolicy selects how validation treats repeated transaction
// indices within a single change list.
type DuplicatePolicy uint8

const (
	// RejectDuplicates fails validation when two changes of the same kind
	// carry the same transaction index. This is the zero value.
	RejectDuplicates DuplicatePolicy = iota
	// AllowDuplicates tolerates repeated indices as long as the list stays
	// in ascending order.
	AllowDuplicates
)

// Config carries the validation policy. The zero value is the strict
// protocol configuration.
type Config struct {
	Duplicates DuplicatePolicy
}

// Validate checks the size bounds and ordering invariants: addresses and
// slot keys strictly ascending and unique, transaction indices ascending
// within each change list. Repeated transaction indices are tolerated;
// use ValidateStrict to reject them.
func (l *BlockAccessList) Validate() error {
	return l.ValidateConfig(Config{Duplicates: AllowDuplicates})
}

// ValidateStrict is Validate under the zero-value Config: repeated
// transaction indices within a change list fail with ErrDuplicateTxIndex.
func (l *BlockAccessList) ValidateStrict() error {
	return l.ValidateConfig(Config{})
}

// ValidateConfig checks the invariants under the given policy.
func (l *BlockAccessList) ValidateConfig(cfg Config) error {
	if len(l.Accounts) > MaxAccounts {
		return ErrTooManyAccounts
	}
	slots := 0
	for i := range l.Accounts {
		ac := &l.Accounts[i]
		if i > 0 {
			prev := &l.Accounts[i-1]
			switch c := prev.Address.Cmp(ac.Address); {
			case c == 0:
				return fmt.Errorf("%w: duplicate address %s", ErrAccountOrder, ac.Address)
			case c > 0:
				return fmt.Errorf("%w: %s after %s", ErrAccountOrder, ac.Address, prev.Address)
			}
		}
		slots += len(ac.StorageChanges)
		if slots > MaxSlots {
			return ErrTooManySlots
		}
		if err := ac.validate(cfg); err != nil {
			return err
		}
	}
	return nil
}

func (ac *AccountChanges) validate(cfg Config) error {
	for i := range ac.StorageChanges {
		sc := &ac.StorageChanges[i]
		if i > 0 {
			prev := &ac.StorageChanges[i-1]
			switch c := prev.Slot.Cmp(sc.Slot); {
			case c == 0:
				return fmt.Errorf("%w: %s: duplicate slot %s", ErrSlotOrder, ac.Address, sc.Slot)
			case c > 0:
				return fmt.Errorf("%w: %s: %s after %s", ErrSlotOrder, ac.Address, sc.Slot, prev.Slot)
			}
		}
		err := checkTxIndexes(ac.Address, "storage", len(sc.Changes), func(j int) uint64 {
			return sc.Changes[j].TxIndex
		}, cfg.Duplicates)
		if err != nil {
			return err
		}
	}
	err := checkTxIndexes(ac.Address, "balance", len(ac.BalanceChanges), func(j int) uint64 {
		return ac.BalanceChanges[j].TxIndex
	}, cfg.Duplicates)
	if err != nil {
		return err
	}
	err = checkTxIndexes(ac.Address, "nonce", len(ac.NonceChanges), func(j int) uint64 {
		return ac.NonceChanges[j].TxIndex
	}, cfg.Duplicates)
	if err != nil {
		return err
	}
	err = checkTxIndexes(ac.Address, "code", len(ac.CodeChanges), func(j int) uint64 {
		return ac.CodeChanges[j].TxIndex
	}, cfg.Duplicates)
	if err != nil {
		return err
	}
	for i := range ac.CodeChanges {
		if n := len(ac.CodeChanges[i].NewCode); n > MaxCodeSize {
			return fmt.Errorf("%w: %s: %d bytes", ErrCodeTooLarge, ac.Address, n)
		}
	}
	return nil
}

func checkTxIndexes(addr types.Address, kind string, n int, index func(int) uint64, pol DuplicatePolicy) error {
	var prev uint64
	for i := 0; i < n; i++ {
		idx := index(i)
		if idx >= MaxTxs {
			return fmt.Errorf("%w: %d", ErrTxIndexRange, idx)
		}
		if i > 0 {
			if idx < prev {
				return fmt.Errorf("%w: %s %s changes: tx %d after %d", ErrChangeOrder, addr, kind, idx, prev)
			}
			if idx == prev && pol == RejectDuplicates {
				return fmt.Errorf("%w: %s %s changes: tx %d", ErrDuplicateTxIndex, addr, kind, idx)
			}
		}
		prev = idx
	}
	return nil
}

// Build sorts the given account change sets into canonical order and
// validates the result under cfg. It is the checked construction path for
// callers that cannot guarantee ordering themselves; trusted producers use
// NewBlockAccessList or Push and skip the sort.
func Build(accounts []AccountChanges, cfg Config) (*BlockAccessList, error) {
	l := &BlockAccessList{Accounts: accounts}
	l.sortCanonical()
	if err := l.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return l, nil
}

// sortCanonical orders accounts by address, slots by key, and every change
// list by transaction index. Stable sorts keep insertion order between
// changes sharing an index.
func (l *BlockAccessList) sortCanonical() {
	sort.Slice(l.Accounts, func(i, j int) bool {
		return l.Accounts[i].Address.Cmp(l.Accounts[j].Address) < 0
	})
	for i := range l.Accounts {
		ac := &l.Accounts[i]
		sort.Slice(ac.StorageChanges, func(a, b int) bool {
			return ac.StorageChanges[a].Slot.Cmp(ac.StorageChanges[b].Slot) < 0
		})
		for j := range ac.StorageChanges {
			sc := &ac.StorageChanges[j]
			sort.SliceStable(sc.Changes, func(a, b int) bool {
				return sc.Changes[a].TxIndex < sc.Changes[b].TxIndex
			})
		}
		sort.SliceStable(ac.BalanceChanges, func(a, b int) bool {
			return ac.BalanceChanges[a].TxIndex < ac.BalanceChanges[b].TxIndex
		})
		sort.SliceStable(ac.NonceChanges, func(a, b int) bool {
			return ac.NonceChanges[a].TxIndex < ac.NonceChanges[b].TxIndex
		})
		sort.SliceStable(ac.CodeChanges, func(a, b int) bool {
			return ac.CodeChanges[a].TxIndex < ac.CodeChanges[b].TxIndex
		})
	}
}
