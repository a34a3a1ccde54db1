// json.go implements the JSON interchange form: camelCase field names and
// 0x-prefixed hex-quantity strings for integers. The transaction index is
// emitted as "blockAccessIndex"; the legacy "txIndex" spelling is accepted
// on decode. A BlockAccessList serializes as the bare array of its
// accounts, mirroring the wire encoding.
package bal

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/ethaccess/ethaccess/core/types"
)

func decodeAccessIndex(canonical, legacy *string, kind string) (uint64, error) {
	field := canonical
	if field == nil {
		field = legacy
	}
	if field == nil {
		return 0, fmt.Errorf("bal: %s: missing blockAccessIndex", kind)
	}
	idx, err := types.QuantityToUint64(*field)
	if err != nil {
		return 0, fmt.Errorf("bal: %s blockAccessIndex: %w", kind, err)
	}
	return idx, nil
}

func hexData(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func parseHexData(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("bal: data missing 0x prefix")
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, fmt.Errorf("bal: data: %w", err)
	}
	return b, nil
}

type storageChangeJSON struct {
	BlockAccessIndex *string `json:"blockAccessIndex,omitempty"`
	TxIndex          *string `json:"txIndex,omitempty"`
	NewValue         string  `json:"newValue"`
}

// MarshalJSON implements json.Marshaler using hex-quantity strings.
func (c *StorageChange) MarshalJSON() ([]byte, error) {
	idx := types.QuantityFromUint64(c.TxIndex)
	enc := storageChangeJSON{
		BlockAccessIndex: &idx,
		NewValue:         types.QuantityFromU256(&c.NewValue),
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *StorageChange) UnmarshalJSON(input []byte) error {
	var dec storageChangeJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	idx, err := decodeAccessIndex(dec.BlockAccessIndex, dec.TxIndex, "storage change")
	if err != nil {
		return err
	}
	var val uint256.Int
	if err := types.QuantityToU256(dec.NewValue, &val); err != nil {
		return fmt.Errorf("bal: storage change newValue: %w", err)
	}
	c.TxIndex = idx
	c.NewValue = val
	return nil
}

// slotChangesJSON accepts the legacy "slotChanges" spelling for the changes
// list on decode.
type slotChangesJSON struct {
	Slot    types.Hash      `json:"slot"`
	Changes []StorageChange `json:"changes"`
	Legacy  []StorageChange `json:"slotChanges,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (sc *SlotChanges) MarshalJSON() ([]byte, error) {
	changes := sc.Changes
	if changes == nil {
		changes = []StorageChange{}
	}
	return json.Marshal(&slotChangesJSON{Slot: sc.Slot, Changes: changes})
}

// UnmarshalJSON implements json.Unmarshaler.
func (sc *SlotChanges) UnmarshalJSON(input []byte) error {
	var dec slotChangesJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	changes := dec.Changes
	if changes == nil {
		changes = dec.Legacy
	}
	sc.Slot = dec.Slot
	sc.Changes = changes
	return nil
}

type balanceChangeJSON struct {
	BlockAccessIndex *string `json:"blockAccessIndex,omitempty"`
	TxIndex          *string `json:"txIndex,omitempty"`
	PostBalance      string  `json:"postBalance"`
}

// MarshalJSON implements json.Marshaler using hex-quantity strings.
func (bc *BalanceChange) MarshalJSON() ([]byte, error) {
	idx := types.QuantityFromUint64(bc.TxIndex)
	enc := balanceChangeJSON{
		BlockAccessIndex: &idx,
		PostBalance:      types.QuantityFromU256(&bc.PostBalance),
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON implements json.Unmarshaler.
func (bc *BalanceChange) UnmarshalJSON(input []byte) error {
	var dec balanceChangeJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	idx, err := decodeAccessIndex(dec.BlockAccessIndex, dec.TxIndex, "balance change")
	if err != nil {
		return err
	}
	var post uint256.Int
	if err := types.QuantityToU256(dec.PostBalance, &post); err != nil {
		return fmt.Errorf("bal: balance change postBalance: %w", err)
	}
	bc.TxIndex = idx
	bc.PostBalance = post
	return nil
}

type nonceChangeJSON struct {
	BlockAccessIndex *string `json:"blockAccessIndex,omitempty"`
	TxIndex          *string `json:"txIndex,omitempty"`
	NewNonce         string  `json:"newNonce"`
}

// MarshalJSON implements json.Marshaler using hex-quantity strings.
func (nc *NonceChange) MarshalJSON() ([]byte, error) {
	idx := types.QuantityFromUint64(nc.TxIndex)
	enc := nonceChangeJSON{
		BlockAccessIndex: &idx,
		NewNonce:         types.QuantityFromUint64(nc.NewNonce),
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON implements json.Unmarshaler.
func (nc *NonceChange) UnmarshalJSON(input []byte) error {
	var dec nonceChangeJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	idx, err := decodeAccessIndex(dec.BlockAccessIndex, dec.TxIndex, "nonce change")
	if err != nil {
		return err
	}
	nonce, err := types.QuantityToUint64(dec.NewNonce)
	if err != nil {
		return fmt.Errorf("bal: nonce change newNonce: %w", err)
	}
	nc.TxIndex = idx
	nc.NewNonce = nonce
	return nil
}

type codeChangeJSON struct {
	BlockAccessIndex *string `json:"blockAccessIndex,omitempty"`
	TxIndex          *string `json:"txIndex,omitempty"`
	NewCode          string  `json:"newCode"`
}

// MarshalJSON implements json.Marshaler. Code is plain 0x hex data, not a
// quantity.
func (cc *CodeChange) MarshalJSON() ([]byte, error) {
	idx := types.QuantityFromUint64(cc.TxIndex)
	enc := codeChangeJSON{
		BlockAccessIndex: &idx,
		NewCode:          hexData(cc.NewCode),
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON implements json.Unmarshaler.
func (cc *CodeChange) UnmarshalJSON(input []byte) error {
	var dec codeChangeJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	idx, err := decodeAccessIndex(dec.BlockAccessIndex, dec.TxIndex, "code change")
	if err != nil {
		return err
	}
	code, err := parseHexData(dec.NewCode)
	if err != nil {
		return fmt.Errorf("bal: code change newCode: %w", err)
	}
	cc.TxIndex = idx
	cc.NewCode = code
	return nil
}

type accountChangesJSON struct {
	Address        types.Address   `json:"address"`
	StorageChanges []SlotChanges   `json:"storageChanges"`
	BalanceChanges []BalanceChange `json:"balanceChanges"`
	NonceChanges   []NonceChange   `json:"nonceChanges"`
	CodeChanges    []CodeChange    `json:"codeChanges"`
}

// MarshalJSON implements json.Marshaler. Empty change lists are emitted as
// empty arrays, never null.
func (ac *AccountChanges) MarshalJSON() ([]byte, error) {
	enc := accountChangesJSON{
		Address:        ac.Address,
		StorageChanges: ac.StorageChanges,
		BalanceChanges: ac.BalanceChanges,
		NonceChanges:   ac.NonceChanges,
		CodeChanges:    ac.CodeChanges,
	}
	if enc.StorageChanges == nil {
		enc.StorageChanges = []SlotChanges{}
	}
	if enc.BalanceChanges == nil {
		enc.BalanceChanges = []BalanceChange{}
	}
	if enc.NonceChanges == nil {
		enc.NonceChanges = []NonceChange{}
	}
	if enc.CodeChanges == nil {
		enc.CodeChanges = []CodeChange{}
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON implements json.Unmarshaler.
func (ac *AccountChanges) UnmarshalJSON(input []byte) error {
	var dec accountChangesJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	ac.Address = dec.Address
	ac.StorageChanges = dec.StorageChanges
	ac.BalanceChanges = dec.BalanceChanges
	ac.NonceChanges = dec.NonceChanges
	ac.CodeChanges = dec.CodeChanges
	return nil
}

// MarshalJSON implements json.Marshaler. The list serializes transparently
// as the array of its accounts.
func (l *BlockAccessList) MarshalJSON() ([]byte, error) {
	accounts := l.Accounts
	if accounts == nil {
		accounts = []AccountChanges{}
	}
	return json.Marshal(accounts)
}

// UnmarshalJSON implements json.Unmarshaler. Like Decode, it does not check
// ordering invariants; call Validate on untrusted input.
func (l *BlockAccessList) UnmarshalJSON(input []byte) error {
	var accounts []AccountChanges
	if err := json.Unmarshal(input, &accounts); err != nil {
		return err
	}
	l.Accounts = accounts
	return nil
}
