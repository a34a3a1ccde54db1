package bal

import (
	"bytes"
	"encoding/hex"
	"errors"
	"reflect"
	"testing"

	"github.com/holiman/uint256"

	"github.com/ethaccess/ethaccess/core/types"
	"github.com/ethaccess/ethaccess/rlp"
)

// Encodings and hashes below are fixed protocol vectors; the structure
// builders must reproduce them byte for byte.
const (
	scenarioEncHex  = "f841f83f940000000000000000000000000000000000000006e6e5a00000000000000000000000000000000000000000000000000000000000000001c3c2012ac0c0c0"
	scenarioHashHex = "0x94d7d9e55cf58d96f57a026d019435eefa1617a53c60db369f9aaec4e9552d0a"

	allEmptyEncHex  = "dad99400000000000000000000000000000000000000aac0c0c0c0"
	allEmptyHashHex = "0x754e399dfd96ed2e9df08e736899c26254d4db827855b67d2f15bc6b947b194f"

	twoAccountEncHex = "f89ef879940000000000000000000000000000000000000001f851e8a000000000" +
		"00000000000000000000000000000000000000000000000000000001c6c28001c20280e7a000000000000000" +
		"00000000000000000000000000000000000000000000000002c5c40282ffffcbca01880de0b6b3a7640000c3" +
		"c20101c0e2940000000000000000000000000000000000000002c0c0c0c9c88086600160005500"
	twoAccountHashHex = "0x3869bfda159686af01aa7e5ec07227d06892076ca95a871b88dc3577120d1dd7"
)

func testAddr(b byte) types.Address {
	var a types.Address
	a[types.AddressLength-1] = b
	return a
}

func testSlot(b byte) types.Hash {
	var h types.Hash
	h[types.HashLength-1] = b
	return h
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	return b
}

// scenarioList is one account (0x..06) writing 0x2a to slot 0x..01 in tx 1.
func scenarioList() *BlockAccessList {
	ac := NewAccountChanges(testAddr(0x06))
	ac.StorageChanges = []SlotChanges{{
		Slot:    testSlot(0x01),
		Changes: []StorageChange{{TxIndex: 1, NewValue: *uint256.NewInt(0x2a)}},
	}}
	return &BlockAccessList{Accounts: []AccountChanges{ac}}
}

// allEmptyList is one touched account (0x..aa) with no changes.
func allEmptyList() *BlockAccessList {
	return &BlockAccessList{Accounts: []AccountChanges{NewAccountChanges(testAddr(0xaa))}}
}

// twoAccountList exercises every change kind across two accounts.
func twoAccountList() *BlockAccessList {
	a1 := NewAccountChanges(testAddr(0x01))
	a1.StorageChanges = []SlotChanges{
		{Slot: testSlot(0x01), Changes: []StorageChange{
			{TxIndex: 0, NewValue: *uint256.NewInt(1)},
			{TxIndex: 2, NewValue: *uint256.NewInt(0)},
		}},
		{Slot: testSlot(0x02), Changes: []StorageChange{
			{TxIndex: 2, NewValue: *uint256.NewInt(0xffff)},
		}},
	}
	a1.BalanceChanges = []BalanceChange{{TxIndex: 1, PostBalance: *uint256.NewInt(1_000_000_000_000_000_000)}}
	a1.NonceChanges = []NonceChange{{TxIndex: 1, NewNonce: 1}}

	a2 := NewAccountChanges(testAddr(0x02))
	a2.CodeChanges = []CodeChange{{TxIndex: 0, NewCode: []byte{0x60, 0x01, 0x60, 0x00, 0x55, 0x00}}}

	return &BlockAccessList{Accounts: []AccountChanges{a1, a2}}
}

func TestEncodeEmptyList(t *testing.T) {
	got := (&BlockAccessList{}).Encode()
	if !bytes.Equal(got, []byte{0xc0}) {
		t.Fatalf("got %x, want c0", got)
	}
}

func TestEncodeFixtures(t *testing.T) {
	tests := []struct {
		name string
		list *BlockAccessList
		want string
	}{
		{"single storage write", scenarioList(), scenarioEncHex},
		{"all-empty account", allEmptyList(), allEmptyEncHex},
		{"two accounts", twoAccountList(), twoAccountEncHex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := mustHex(t, tt.want)
			got := tt.list.Encode()
			if !bytes.Equal(got, want) {
				t.Fatalf("got %x, want %x", got, want)
			}
		})
	}
}

func TestEncodedSizeMatchesEncode(t *testing.T) {
	tests := []struct {
		name string
		list *BlockAccessList
	}{
		{"empty", &BlockAccessList{}},
		{"single storage write", scenarioList()},
		{"all-empty account", allEmptyList()},
		{"two accounts", twoAccountList()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := tt.list.Encode()
			if got := tt.list.EncodedSize(); got != len(enc) {
				t.Fatalf("EncodedSize = %d, len(Encode) = %d", got, len(enc))
			}
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		list *BlockAccessList
	}{
		{"empty", &BlockAccessList{}},
		{"single storage write", scenarioList()},
		{"all-empty account", allEmptyList()},
		{"two accounts", twoAccountList()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := tt.list.Encode()
			got, err := Decode(enc)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got.Accounts, tt.list.Accounts) {
				t.Fatalf("decoded list differs: got %+v, want %+v", got, tt.list)
			}
			if again := got.Encode(); !bytes.Equal(again, enc) {
				t.Fatalf("re-encode differs: got %x, want %x", again, enc)
			}
		})
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	enc := mustHex(t, scenarioEncHex)
	for cut := 1; cut < len(enc); cut++ {
		if _, err := Decode(enc[:cut]); err == nil {
			t.Fatalf("decode of %d-byte prefix should fail", cut)
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	enc := append(mustHex(t, scenarioEncHex), 0x00)
	_, err := Decode(enc)
	if !errors.Is(err, rlp.ErrMoreThanOneValue) {
		t.Fatalf("got %v, want ErrMoreThanOneValue", err)
	}
}

func TestDecodeRejectsStringItem(t *testing.T) {
	_, err := Decode([]byte{0x83, 0x61, 0x62, 0x63})
	if err == nil {
		t.Fatal("decode of a string item should fail")
	}
}

func TestDecodeRejectsNonCanonicalForms(t *testing.T) {
	tests := []struct {
		name string
		enc  string
		want error
	}{
		{
			// tx index 1 encoded as 0x8101 instead of 0x01.
			"padded single-byte integer",
			"f842f840940000000000000000000000000000000000000006e7e6a000000000000000000000" +
				"00000000000000000000000000000000000000000001c4c381012ac0c0c0",
			rlp.ErrCanonSize,
		},
		{
			// storage value 0x2a encoded with a leading zero byte.
			"leading zero integer",
			"f843f841940000000000000000000000000000000000000006e8e7a000000000000000000000" +
				"00000000000000000000000000000000000000000001c5c40182002ac0c0c0",
			rlp.ErrCanonInt,
		},
		{
			// tx index 0 encoded as a literal 0x00 byte instead of the
			// empty string. Accepting it would let two distinct byte
			// streams decode to the same list.
			"non-minimal zero tx index",
			"f841f83f940000000000000000000000000000000000000006e6e5a000000000000000000000" +
				"00000000000000000000000000000000000000000001c3c2002ac0c0c0",
			rlp.ErrCanonInt,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(mustHex(t, tt.enc))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeRejectsBadAddressLength(t *testing.T) {
	// 19-byte address followed by the four empty change lists.
	enc := mustHex(t, "d9d89300000000000000000000000000000000000006c0c0c0c0")
	_, err := Decode(enc)
	if !errors.Is(err, rlp.ErrStringSize) {
		t.Fatalf("got %v, want ErrStringSize", err)
	}
}

func TestDecodeRejectsTxIndexOutOfRange(t *testing.T) {
	// tx index 30000 on the scenario shape.
	enc := mustHex(t, "f843f841940000000000000000000000000000000000000006e8e7a000000000000000"+
		"0000000000000000000000000000000000000000000001c5c48275302ac0c0c0")
	_, err := Decode(enc)
	if !errors.Is(err, ErrTxIndexRange) {
		t.Fatalf("got %v, want ErrTxIndexRange", err)
	}
}

func TestDecodeRejectsOversizedCode(t *testing.T) {
	ac := NewAccountChanges(testAddr(0x01))
	ac.CodeChanges = []CodeChange{{TxIndex: 0, NewCode: make([]byte, MaxCodeSize+1)}}
	enc := (&BlockAccessList{Accounts: []AccountChanges{ac}}).Encode()

	_, err := Decode(enc)
	if !errors.Is(err, ErrCodeTooLarge) {
		t.Fatalf("got %v, want ErrCodeTooLarge", err)
	}
}

func TestDecodeRejectsTooManyAccounts(t *testing.T) {
	enc := (&BlockAccessList{Accounts: make([]AccountChanges, MaxAccounts+1)}).Encode()
	_, err := Decode(enc)
	if !errors.Is(err, ErrTooManyAccounts) {
		t.Fatalf("got %v, want ErrTooManyAccounts", err)
	}
}

func TestDecodeRejectsTooManySlots(t *testing.T) {
	ac := NewAccountChanges(testAddr(0x01))
	ac.StorageChanges = make([]SlotChanges, MaxSlots+1)
	enc := (&BlockAccessList{Accounts: []AccountChanges{ac}}).Encode()

	_, err := Decode(enc)
	if !errors.Is(err, ErrTooManySlots) {
		t.Fatalf("got %v, want ErrTooManySlots", err)
	}
}

// Decoding checks syntax and bounds only. A structurally valid but
// misordered encoding decodes fine; Validate is the ordering gate.
func TestDecodeSkipsOrderingChecks(t *testing.T) {
	a1 := NewAccountChanges(testAddr(0x02))
	a2 := NewAccountChanges(testAddr(0x01))
	enc := (&BlockAccessList{Accounts: []AccountChanges{a1, a2}}).Encode()

	got, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if err := got.Validate(); !errors.Is(err, ErrAccountOrder) {
		t.Fatalf("Validate: got %v, want ErrAccountOrder", err)
	}
}
