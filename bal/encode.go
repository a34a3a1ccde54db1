// encode.go implements the canonical RLP codec for block access lists.
//
// On the wire every struct is the RLP list of its fields, every slice field
// is a nested list, and a BlockAccessList is the bare list of its account
// change sets with no outer wrapper. Integers use minimal big-endian form,
// addresses and slot keys are fixed-width strings. The encoder precomputes
// payload lengths so the output buffer is allocated exactly once; the
// decoder rejects any non-canonical form rather than repairing it.
package bal

import (
	"bytes"
	"fmt"

	"github.com/ethaccess/ethaccess/core/types"
	"github.com/ethaccess/ethaccess/metrics"
	"github.com/ethaccess/ethaccess/rlp"
)

// Encoded sizes of the fixed-width fields: 0x94 + 20 address bytes and
// 0xa0 + 32 slot bytes.
const (
	addressRLPSize = 1 + types.AddressLength
	slotRLPSize    = 1 + types.HashLength
)

func (c *StorageChange) payloadSize() int {
	return rlp.Uint64Size(c.TxIndex) + rlp.Uint256Size(&c.NewValue)
}

func (c *StorageChange) encodedSize() int {
	return rlp.EstimateListSize(c.payloadSize())
}

func appendStorageChange(dst []byte, c *StorageChange) []byte {
	dst = rlp.AppendListHeader(dst, c.payloadSize())
	dst = rlp.AppendUint64(dst, c.TxIndex)
	return rlp.AppendUint256(dst, &c.NewValue)
}

func (sc *SlotChanges) changesPayloadSize() int {
	n := 0
	for i := range sc.Changes {
		n += sc.Changes[i].encodedSize()
	}
	return n
}

func (sc *SlotChanges) payloadSize() int {
	return slotRLPSize + rlp.EstimateListSize(sc.changesPayloadSize())
}

func (sc *SlotChanges) encodedSize() int {
	return rlp.EstimateListSize(sc.payloadSize())
}

func appendSlotChanges(dst []byte, sc *SlotChanges) []byte {
	dst = rlp.AppendListHeader(dst, sc.payloadSize())
	dst = rlp.AppendBytes(dst, sc.Slot[:])
	dst = rlp.AppendListHeader(dst, sc.changesPayloadSize())
	for i := range sc.Changes {
		dst = appendStorageChange(dst, &sc.Changes[i])
	}
	return dst
}

func (bc *BalanceChange) payloadSize() int {
	return rlp.Uint64Size(bc.TxIndex) + rlp.Uint256Size(&bc.PostBalance)
}

func (bc *BalanceChange) encodedSize() int {
	return rlp.EstimateListSize(bc.payloadSize())
}

func appendBalanceChange(dst []byte, bc *BalanceChange) []byte {
	dst = rlp.AppendListHeader(dst, bc.payloadSize())
	dst = rlp.AppendUint64(dst, bc.TxIndex)
	return rlp.AppendUint256(dst, &bc.PostBalance)
}

func (nc *NonceChange) payloadSize() int {
	return rlp.Uint64Size(nc.TxIndex) + rlp.Uint64Size(nc.NewNonce)
}

func (nc *NonceChange) encodedSize() int {
	return rlp.EstimateListSize(nc.payloadSize())
}

func appendNonceChange(dst []byte, nc *NonceChange) []byte {
	dst = rlp.AppendListHeader(dst, nc.payloadSize())
	dst = rlp.AppendUint64(dst, nc.TxIndex)
	return rlp.AppendUint64(dst, nc.NewNonce)
}

func (cc *CodeChange) payloadSize() int {
	return rlp.Uint64Size(cc.TxIndex) + rlp.BytesSize(cc.NewCode)
}

func (cc *CodeChange) encodedSize() int {
	return rlp.EstimateListSize(cc.payloadSize())
}

func appendCodeChange(dst []byte, cc *CodeChange) []byte {
	dst = rlp.AppendListHeader(dst, cc.payloadSize())
	dst = rlp.AppendUint64(dst, cc.TxIndex)
	return rlp.AppendBytes(dst, cc.NewCode)
}

// Payload sizes of the four nested change lists of an account.
func (ac *AccountChanges) listPayloadSizes() (storage, balance, nonce, code int) {
	for i := range ac.StorageChanges {
		storage += ac.StorageChanges[i].encodedSize()
	}
	for i := range ac.BalanceChanges {
		balance += ac.BalanceChanges[i].encodedSize()
	}
	for i := range ac.NonceChanges {
		nonce += ac.NonceChanges[i].encodedSize()
	}
	for i := range ac.CodeChanges {
		code += ac.CodeChanges[i].encodedSize()
	}
	return
}

func (ac *AccountChanges) payloadSize() int {
	storage, balance, nonce, code := ac.listPayloadSizes()
	return addressRLPSize +
		rlp.EstimateListSize(storage) +
		rlp.EstimateListSize(balance) +
		rlp.EstimateListSize(nonce) +
		rlp.EstimateListSize(code)
}

func (ac *AccountChanges) encodedSize() int {
	return rlp.EstimateListSize(ac.payloadSize())
}

func appendAccountChanges(dst []byte, ac *AccountChanges) []byte {
	storage, balance, nonce, code := ac.listPayloadSizes()

	dst = rlp.AppendListHeader(dst, ac.payloadSize())
	dst = rlp.AppendBytes(dst, ac.Address[:])

	dst = rlp.AppendListHeader(dst, storage)
	for i := range ac.StorageChanges {
		dst = appendSlotChanges(dst, &ac.StorageChanges[i])
	}
	dst = rlp.AppendListHeader(dst, balance)
	for i := range ac.BalanceChanges {
		dst = appendBalanceChange(dst, &ac.BalanceChanges[i])
	}
	dst = rlp.AppendListHeader(dst, nonce)
	for i := range ac.NonceChanges {
		dst = appendNonceChange(dst, &ac.NonceChanges[i])
	}
	dst = rlp.AppendListHeader(dst, code)
	for i := range ac.CodeChanges {
		dst = appendCodeChange(dst, &ac.CodeChanges[i])
	}
	return dst
}

func (l *BlockAccessList) accountsPayloadSize() int {
	n := 0
	for i := range l.Accounts {
		n += l.Accounts[i].encodedSize()
	}
	return n
}

// EncodedSize returns the exact byte length of the canonical encoding.
func (l *BlockAccessList) EncodedSize() int {
	return rlp.EstimateListSize(l.accountsPayloadSize())
}

// Encode returns the canonical RLP encoding of the list. The output buffer
// is sized up front from the computed payload lengths, so encoding performs
// a single allocation regardless of list depth.
func (l *BlockAccessList) Encode() []byte {
	payload := l.accountsPayloadSize()
	buf := make([]byte, 0, rlp.EstimateListSize(payload))
	buf = rlp.AppendListHeader(buf, payload)
	for i := range l.Accounts {
		buf = appendAccountChanges(buf, &l.Accounts[i])
	}
	metrics.BALEncodes.Inc()
	metrics.BALEncodedBytes.Add(int64(len(buf)))
	return buf
}

// Decode parses a canonical encoding. It verifies RLP syntax and the size
// bounds (MaxAccounts, MaxSlots, MaxTxs, MaxCodeSize) but not the ordering
// invariants: a decoded list from an untrusted source should be passed
// through Validate before use.
func Decode(data []byte) (*BlockAccessList, error) {
	l, err := decode(data)
	if err != nil {
		metrics.BALDecodeFailures.Inc()
		return nil, err
	}
	metrics.BALDecodes.Inc()
	return l, nil
}

func decode(data []byte) (*BlockAccessList, error) {
	s := rlp.NewStream(bytes.NewReader(data))
	if _, err := s.List(); err != nil {
		return nil, fmt.Errorf("bal: access list: %w", err)
	}
	l := &BlockAccessList{}
	slots := 0
	for s.More() {
		if len(l.Accounts) == MaxAccounts {
			return nil, ErrTooManyAccounts
		}
		ac, n, err := decodeAccountChanges(s)
		if err != nil {
			return nil, err
		}
		slots += n
		if slots > MaxSlots {
			return nil, ErrTooManySlots
		}
		l.Accounts = append(l.Accounts, ac)
	}
	if err := s.ListEnd(); err != nil {
		return nil, fmt.Errorf("bal: access list: %w", err)
	}
	if s.More() {
		return nil, fmt.Errorf("bal: access list: %w", rlp.ErrMoreThanOneValue)
	}
	return l, nil
}

// decodeAccountChanges reads one account change set and returns it along
// with the number of slot entries it carries.
func decodeAccountChanges(s *rlp.Stream) (AccountChanges, int, error) {
	var ac AccountChanges
	if _, err := s.List(); err != nil {
		return ac, 0, fmt.Errorf("bal: account: %w", err)
	}

	addr, err := s.Bytes()
	if err != nil {
		return ac, 0, fmt.Errorf("bal: address: %w", err)
	}
	if len(addr) != types.AddressLength {
		return ac, 0, fmt.Errorf("bal: address: %w", rlp.ErrStringSize)
	}
	copy(ac.Address[:], addr)

	if _, err := s.List(); err != nil {
		return ac, 0, fmt.Errorf("bal: storage changes: %w", err)
	}
	slots := 0
	for s.More() {
		sc, err := decodeSlotChanges(s)
		if err != nil {
			return ac, 0, err
		}
		slots++
		if slots > MaxSlots {
			return ac, 0, ErrTooManySlots
		}
		ac.StorageChanges = append(ac.StorageChanges, sc)
	}
	if err := s.ListEnd(); err != nil {
		return ac, 0, fmt.Errorf("bal: storage changes: %w", err)
	}

	if _, err := s.List(); err != nil {
		return ac, 0, fmt.Errorf("bal: balance changes: %w", err)
	}
	for s.More() {
		bc, err := decodeBalanceChange(s)
		if err != nil {
			return ac, 0, err
		}
		ac.BalanceChanges = append(ac.BalanceChanges, bc)
	}
	if err := s.ListEnd(); err != nil {
		return ac, 0, fmt.Errorf("bal: balance changes: %w", err)
	}

	if _, err := s.List(); err != nil {
		return ac, 0, fmt.Errorf("bal: nonce changes: %w", err)
	}
	for s.More() {
		nc, err := decodeNonceChange(s)
		if err != nil {
			return ac, 0, err
		}
		ac.NonceChanges = append(ac.NonceChanges, nc)
	}
	if err := s.ListEnd(); err != nil {
		return ac, 0, fmt.Errorf("bal: nonce changes: %w", err)
	}

	if _, err := s.List(); err != nil {
		return ac, 0, fmt.Errorf("bal: code changes: %w", err)
	}
	for s.More() {
		cc, err := decodeCodeChange(s)
		if err != nil {
			return ac, 0, err
		}
		ac.CodeChanges = append(ac.CodeChanges, cc)
	}
	if err := s.ListEnd(); err != nil {
		return ac, 0, fmt.Errorf("bal: code changes: %w", err)
	}

	if err := s.ListEnd(); err != nil {
		return ac, 0, fmt.Errorf("bal: account: %w", err)
	}
	return ac, slots, nil
}

func decodeTxIndex(s *rlp.Stream, kind string) (uint64, error) {
	idx, err := s.Uint64()
	if err != nil {
		return 0, fmt.Errorf("bal: %s tx index: %w", kind, err)
	}
	if idx >= MaxTxs {
		return 0, fmt.Errorf("%w: %d", ErrTxIndexRange, idx)
	}
	return idx, nil
}

func decodeSlotChanges(s *rlp.Stream) (SlotChanges, error) {
	var sc SlotChanges
	if _, err := s.List(); err != nil {
		return sc, fmt.Errorf("bal: slot changes: %w", err)
	}
	slot, err := s.Bytes()
	if err != nil {
		return sc, fmt.Errorf("bal: slot key: %w", err)
	}
	if len(slot) != types.HashLength {
		return sc, fmt.Errorf("bal: slot key: %w", rlp.ErrStringSize)
	}
	copy(sc.Slot[:], slot)

	if _, err := s.List(); err != nil {
		return sc, fmt.Errorf("bal: slot writes: %w", err)
	}
	for s.More() {
		var c StorageChange
		if _, err := s.List(); err != nil {
			return sc, fmt.Errorf("bal: storage change: %w", err)
		}
		if c.TxIndex, err = decodeTxIndex(s, "storage"); err != nil {
			return sc, err
		}
		if err := s.Uint256(&c.NewValue); err != nil {
			return sc, fmt.Errorf("bal: storage value: %w", err)
		}
		if err := s.ListEnd(); err != nil {
			return sc, fmt.Errorf("bal: storage change: %w", err)
		}
		sc.Changes = append(sc.Changes, c)
	}
	if err := s.ListEnd(); err != nil {
		return sc, fmt.Errorf("bal: slot writes: %w", err)
	}
	if err := s.ListEnd(); err != nil {
		return sc, fmt.Errorf("bal: slot changes: %w", err)
	}
	return sc, nil
}

func decodeBalanceChange(s *rlp.Stream) (BalanceChange, error) {
	var bc BalanceChange
	if _, err := s.List(); err != nil {
		return bc, fmt.Errorf("bal: balance change: %w", err)
	}
	var err error
	if bc.TxIndex, err = decodeTxIndex(s, "balance"); err != nil {
		return bc, err
	}
	if err := s.Uint256(&bc.PostBalance); err != nil {
		return bc, fmt.Errorf("bal: post balance: %w", err)
	}
	if err := s.ListEnd(); err != nil {
		return bc, fmt.Errorf("bal: balance change: %w", err)
	}
	return bc, nil
}

func decodeNonceChange(s *rlp.Stream) (NonceChange, error) {
	var nc NonceChange
	if _, err := s.List(); err != nil {
		return nc, fmt.Errorf("bal: nonce change: %w", err)
	}
	var err error
	if nc.TxIndex, err = decodeTxIndex(s, "nonce"); err != nil {
		return nc, err
	}
	if nc.NewNonce, err = s.Uint64(); err != nil {
		return nc, fmt.Errorf("bal: new nonce: %w", err)
	}
	if err := s.ListEnd(); err != nil {
		return nc, fmt.Errorf("bal: nonce change: %w", err)
	}
	return nc, nil
}

func decodeCodeChange(s *rlp.Stream) (CodeChange, error) {
	var cc CodeChange
	if _, err := s.List(); err != nil {
		return cc, fmt.Errorf("bal: code change: %w", err)
	}
	var err error
	if cc.TxIndex, err = decodeTxIndex(s, "code"); err != nil {
		return cc, err
	}
	code, err := s.Bytes()
	if err != nil {
		return cc, fmt.Errorf("bal: new code: %w", err)
	}
	if len(code) > MaxCodeSize {
		return cc, fmt.Errorf("%w: %d bytes", ErrCodeTooLarge, len(code))
	}
	// Bytes returns a view into the stream's buffer.
	cc.NewCode = append([]byte(nil), code...)
	if err := s.ListEnd(); err != nil {
		return cc, fmt.Errorf("bal: code change: %w", err)
	}
	return cc, nil
}
