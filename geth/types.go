// Package geth bridges the ethaccess type system to go-ethereum. Block
// access lists are re-expressed with go-ethereum primitives and encoded
// through its reflection-based RLP codec, giving an independently derived
// encoding to check the hand-rolled canonical codec against. This is the
// only package that imports go-ethereum directly.
package geth

import (
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	gethrlp "github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/ethaccess/ethaccess/bal"
	"github.com/ethaccess/ethaccess/core/types"
)

// --- Address and Hash conversion (zero-copy, layout-compatible) ---

// ToGethAddress converts an ethaccess Address to a go-ethereum Address.
func ToGethAddress(a types.Address) gethcommon.Address {
	return gethcommon.Address(a)
}

// FromGethAddress converts a go-ethereum Address to an ethaccess Address.
func FromGethAddress(a gethcommon.Address) types.Address {
	return types.Address(a)
}

// ToGethHash converts an ethaccess Hash to a go-ethereum Hash.
func ToGethHash(h types.Hash) gethcommon.Hash {
	return gethcommon.Hash(h)
}

// FromGethHash converts a go-ethereum Hash to an ethaccess Hash.
func FromGethHash(h gethcommon.Hash) types.Hash {
	return types.Hash(h)
}

// --- Balance conversion ---

// ToUint256 converts *big.Int to *uint256.Int for go-ethereum balance
// operations. Nil maps to zero.
func ToUint256(b *big.Int) *uint256.Int {
	if b == nil {
		return new(uint256.Int)
	}
	u, _ := uint256.FromBig(b)
	return u
}

// FromUint256 converts *uint256.Int to *big.Int. Nil maps to zero.
func FromUint256(u *uint256.Int) *big.Int {
	if u == nil {
		return new(big.Int)
	}
	return u.ToBig()
}

// --- Block access list mirror types ---
//
// The mirror structs carry the same fields in the same order as their bal
// counterparts, so go-ethereum's generic RLP codec produces byte-identical
// output to the canonical encoder.

// StorageChange mirrors bal.StorageChange with go-ethereum field types.
type StorageChange struct {
	TxIndex  uint64
	NewValue uint256.Int
}

// SlotChanges mirrors bal.SlotChanges.
type SlotChanges struct {
	Slot    gethcommon.Hash
	Changes []StorageChange
}

// BalanceChange mirrors bal.BalanceChange.
type BalanceChange struct {
	TxIndex     uint64
	PostBalance uint256.Int
}

// NonceChange mirrors bal.NonceChange.
type NonceChange struct {
	TxIndex  uint64
	NewNonce uint64
}

// CodeChange mirrors bal.CodeChange.
type CodeChange struct {
	TxIndex uint64
	NewCode []byte
}

// AccountChanges mirrors bal.AccountChanges.
type AccountChanges struct {
	Address        gethcommon.Address
	StorageChanges []SlotChanges
	BalanceChanges []BalanceChange
	NonceChanges   []NonceChange
	CodeChanges    []CodeChange
}

// BlockAccessList mirrors bal.BlockAccessList. It encodes as the bare RLP
// list of its accounts.
type BlockAccessList []AccountChanges

// ToGethAccessList converts a block access list to its go-ethereum mirror.
func ToGethAccessList(l *bal.BlockAccessList) BlockAccessList {
	if l == nil {
		return nil
	}
	out := make(BlockAccessList, len(l.Accounts))
	for i := range l.Accounts {
		out[i] = toGethAccount(&l.Accounts[i])
	}
	return out
}

func toGethAccount(ac *bal.AccountChanges) AccountChanges {
	out := AccountChanges{
		Address:        ToGethAddress(ac.Address),
		StorageChanges: make([]SlotChanges, len(ac.StorageChanges)),
		BalanceChanges: make([]BalanceChange, len(ac.BalanceChanges)),
		NonceChanges:   make([]NonceChange, len(ac.NonceChanges)),
		CodeChanges:    make([]CodeChange, len(ac.CodeChanges)),
	}
	for i := range ac.StorageChanges {
		sc := &ac.StorageChanges[i]
		changes := make([]StorageChange, len(sc.Changes))
		for j, c := range sc.Changes {
			changes[j] = StorageChange{TxIndex: c.TxIndex, NewValue: c.NewValue}
		}
		out.StorageChanges[i] = SlotChanges{Slot: ToGethHash(sc.Slot), Changes: changes}
	}
	for i, bc := range ac.BalanceChanges {
		out.BalanceChanges[i] = BalanceChange{TxIndex: bc.TxIndex, PostBalance: bc.PostBalance}
	}
	for i, nc := range ac.NonceChanges {
		out.NonceChanges[i] = NonceChange{TxIndex: nc.TxIndex, NewNonce: nc.NewNonce}
	}
	for i, cc := range ac.CodeChanges {
		out.CodeChanges[i] = CodeChange{TxIndex: cc.TxIndex, NewCode: cc.NewCode}
	}
	return out
}

// FromGethAccessList converts a go-ethereum mirror back to a block access
// list.
func FromGethAccessList(l BlockAccessList) *bal.BlockAccessList {
	if l == nil {
		return nil
	}
	accounts := make([]bal.AccountChanges, len(l))
	for i := range l {
		accounts[i] = fromGethAccount(&l[i])
	}
	return bal.NewBlockAccessList(accounts)
}

func fromGethAccount(ac *AccountChanges) bal.AccountChanges {
	out := bal.AccountChanges{
		Address:        FromGethAddress(ac.Address),
		StorageChanges: make([]bal.SlotChanges, len(ac.StorageChanges)),
		BalanceChanges: make([]bal.BalanceChange, len(ac.BalanceChanges)),
		NonceChanges:   make([]bal.NonceChange, len(ac.NonceChanges)),
		CodeChanges:    make([]bal.CodeChange, len(ac.CodeChanges)),
	}
	for i := range ac.StorageChanges {
		sc := &ac.StorageChanges[i]
		changes := make([]bal.StorageChange, len(sc.Changes))
		for j, c := range sc.Changes {
			changes[j] = bal.StorageChange{TxIndex: c.TxIndex, NewValue: c.NewValue}
		}
		out.StorageChanges[i] = bal.SlotChanges{Slot: FromGethHash(sc.Slot), Changes: changes}
	}
	for i, bc := range ac.BalanceChanges {
		out.BalanceChanges[i] = bal.BalanceChange{TxIndex: bc.TxIndex, PostBalance: bc.PostBalance}
	}
	for i, nc := range ac.NonceChanges {
		out.NonceChanges[i] = bal.NonceChange{TxIndex: nc.TxIndex, NewNonce: nc.NewNonce}
	}
	for i, cc := range ac.CodeChanges {
		out.CodeChanges[i] = bal.CodeChange{TxIndex: cc.TxIndex, NewCode: cc.NewCode}
	}
	return out
}

// Encode renders the list through go-ethereum's RLP codec.
func (l BlockAccessList) Encode() ([]byte, error) {
	return gethrlp.EncodeToBytes(l)
}

// DecodeAccessList parses an access list through go-ethereum's RLP codec.
// It enforces RLP canonicality but not the domain rules (ordering, bounds);
// those belong to the bal package.
func DecodeAccessList(data []byte) (BlockAccessList, error) {
	var l BlockAccessList
	if err := gethrlp.DecodeBytes(data, &l); err != nil {
		return nil, err
	}
	return l, nil
}

// Hash returns keccak256 of the go-ethereum encoding.
func (l BlockAccessList) Hash() (gethcommon.Hash, error) {
	enc, err := l.Encode()
	if err != nil {
		return gethcommon.Hash{}, err
	}
	return gethcrypto.Keccak256Hash(enc), nil
}
