package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/ethaccess/ethaccess/rlp"
)

// Authorization errors.
var (
	ErrAuthNilChainID    = errors.New("authorization: nil chain ID")
	ErrAuthChainIDRange  = errors.New("authorization: chain ID exceeds 256 bits")
	ErrAuthInvalidSig    = errors.New("authorization: invalid signature")
	ErrAuthSigValueRange = errors.New("authorization: signature value out of range")
)

var (
	secp256k1N, _  = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// Authorization is an unsigned EIP-7702 authorization tuple. It permits the
// holder of the signing key to delegate the authority account's code to
// Address for the duration of a SetCode transaction.
type Authorization struct {
	ChainID *big.Int
	Address Address
	Nonce   uint64
}

// SigHash returns the digest an authority signs to approve the tuple:
// keccak256(0x05 || rlp([chain_id, address, nonce])).
func (a *Authorization) SigHash() Hash {
	var payload []byte
	payload = rlp.AppendBigInt(payload, a.ChainID)
	payload = rlp.AppendBytes(payload, a.Address[:])
	payload = rlp.AppendUint64(payload, a.Nonce)

	d := sha3.NewLegacyKeccak256()
	d.Write([]byte{AuthMagic})
	d.Write(rlp.WrapList(payload))
	var h Hash
	d.Sum(h[:0])
	return h
}

// WithSignature attaches signature values to the tuple. V is kept exactly as
// given: 0/1 parity values and legacy 27/28 values both appear in the wild
// and both must re-encode byte-identically.
func (a *Authorization) WithSignature(v uint8, r, s *big.Int) *SignedAuthorization {
	return &SignedAuthorization{
		Authorization: Authorization{ChainID: a.ChainID, Address: a.Address, Nonce: a.Nonce},
		V:             v,
		R:             r,
		S:             s,
	}
}

// SignedAuthorization is an authorization tuple with its secp256k1 signature.
// On the wire it is the flat six-field list
// [chain_id, address, nonce, v, r, s] with V encoded raw.
type SignedAuthorization struct {
	Authorization
	V uint8
	R *big.Int
	S *big.Int
}

// YParity returns the signature parity bit, normalizing legacy 27/28 values.
func (sa *SignedAuthorization) YParity() (byte, error) {
	switch sa.V {
	case 0, 1:
		return sa.V, nil
	case 27, 28:
		return sa.V - 27, nil
	default:
		return 0, fmt.Errorf("%w: v = %d", ErrAuthInvalidSig, sa.V)
	}
}

// EncodeRLP returns the canonical six-field list encoding.
func (sa *SignedAuthorization) EncodeRLP() []byte {
	var payload []byte
	payload = rlp.AppendBigInt(payload, sa.ChainID)
	payload = rlp.AppendBytes(payload, sa.Address[:])
	payload = rlp.AppendUint64(payload, sa.Nonce)
	payload = rlp.AppendUint64(payload, uint64(sa.V))
	payload = rlp.AppendBigInt(payload, sa.R)
	payload = rlp.AppendBigInt(payload, sa.S)
	return rlp.WrapList(payload)
}

// DecodeSignedAuthorization decodes the six-field list form. The input must
// be a single complete value in canonical form; trailing bytes, padded
// integers, and out-of-range fields are rejected.
func DecodeSignedAuthorization(data []byte) (*SignedAuthorization, error) {
	s := rlp.NewStream(bytes.NewReader(data))
	if _, err := s.List(); err != nil {
		return nil, err
	}
	chainID, err := s.BigInt()
	if err != nil {
		return nil, err
	}
	if chainID.BitLen() > 256 {
		return nil, ErrAuthChainIDRange
	}
	addrBytes, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	if len(addrBytes) != AddressLength {
		return nil, rlp.ErrStringSize
	}
	nonce, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	v, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	if v > 255 {
		return nil, fmt.Errorf("%w: v = %d", ErrAuthSigValueRange, v)
	}
	r, err := s.BigInt()
	if err != nil {
		return nil, err
	}
	sv, err := s.BigInt()
	if err != nil {
		return nil, err
	}
	if r.BitLen() > 256 || sv.BitLen() > 256 {
		return nil, ErrAuthSigValueRange
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	if s.More() {
		return nil, rlp.ErrMoreThanOneValue
	}
	sa := &SignedAuthorization{
		Authorization: Authorization{ChainID: chainID, Address: BytesToAddress(addrBytes), Nonce: nonce},
		V:             uint8(v),
		R:             r,
		S:             sv,
	}
	return sa, nil
}

// ValidateSignatureValues checks the signature against Homestead rules:
// r in [1, N), s in [1, N/2], parity 0 or 1.
func (sa *SignedAuthorization) ValidateSignatureValues() error {
	if _, err := sa.YParity(); err != nil {
		return err
	}
	if sa.R == nil || sa.S == nil {
		return ErrAuthInvalidSig
	}
	if sa.R.Sign() <= 0 || sa.S.Sign() <= 0 {
		return ErrAuthInvalidSig
	}
	if sa.R.Cmp(secp256k1N) >= 0 {
		return ErrAuthSigValueRange
	}
	if sa.S.Cmp(secp256k1HalfN) > 0 {
		return ErrAuthSigValueRange
	}
	return nil
}

// RecoverAuthority recovers the signer of the authorization tuple. The
// returned address is the authority whose code is delegated.
func (sa *SignedAuthorization) RecoverAuthority() (Address, error) {
	if sa.ChainID == nil {
		return Address{}, ErrAuthNilChainID
	}
	if err := sa.ValidateSignatureValues(); err != nil {
		return Address{}, err
	}
	parity, _ := sa.YParity()

	// Compact signature layout for recovery: header byte then r, s.
	var sig [65]byte
	sig[0] = 27 + parity
	sa.R.FillBytes(sig[1:33])
	sa.S.FillBytes(sig[33:65])
	sighash := sa.SigHash()
	pub, _, err := ecdsa.RecoverCompact(sig[:], sighash[:])
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrAuthInvalidSig, err)
	}

	d := sha3.NewLegacyKeccak256()
	d.Write(pub.SerializeUncompressed()[1:])
	return BytesToAddress(d.Sum(nil)[12:]), nil
}

// Recovered resolves the authorization into its terminal recovery outcome.
// A failed recovery is a valid outcome, not an error: protocol rules skip
// invalid authorizations rather than rejecting the containing transaction.
func (sa *SignedAuthorization) Recovered() RecoveredAuthorization {
	addr, err := sa.RecoverAuthority()
	if err != nil {
		return RecoveredAuthorization{SignedAuthorization: *sa}
	}
	return RecoveredAuthorization{SignedAuthorization: *sa, Authority: &addr}
}

// RecoveredAuthorization pairs a signed authorization with the outcome of
// signature recovery. Authority is nil when recovery failed.
type RecoveredAuthorization struct {
	SignedAuthorization
	Authority *Address
}

// Valid reports whether signature recovery produced an authority.
func (ra *RecoveredAuthorization) Valid() bool {
	return ra.Authority != nil
}

// signedAuthJSON is the interchange form. yParity is emitted normalized;
// the legacy "v" spelling is accepted on decode.
type signedAuthJSON struct {
	ChainID string  `json:"chainId"`
	Address Address `json:"address"`
	Nonce   string  `json:"nonce"`
	YParity *string `json:"yParity,omitempty"`
	V       *string `json:"v,omitempty"`
	R       string  `json:"r"`
	S       string  `json:"s"`
}

// MarshalJSON implements json.Marshaler using hex-quantity strings.
func (sa *SignedAuthorization) MarshalJSON() ([]byte, error) {
	parity, err := sa.YParity()
	if err != nil {
		return nil, err
	}
	py := QuantityFromUint64(uint64(parity))
	enc := signedAuthJSON{
		ChainID: QuantityFromBig(sa.ChainID),
		Address: sa.Address,
		Nonce:   QuantityFromUint64(sa.Nonce),
		YParity: &py,
		R:       QuantityFromBig(sa.R),
		S:       QuantityFromBig(sa.S),
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON implements json.Unmarshaler.
func (sa *SignedAuthorization) UnmarshalJSON(input []byte) error {
	var dec signedAuthJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	chainID, err := QuantityToBig(dec.ChainID)
	if err != nil {
		return fmt.Errorf("authorization: chainId: %w", err)
	}
	nonce, err := QuantityToUint64(dec.Nonce)
	if err != nil {
		return fmt.Errorf("authorization: nonce: %w", err)
	}
	vField := dec.YParity
	if vField == nil {
		vField = dec.V
	}
	if vField == nil {
		return fmt.Errorf("%w: missing yParity", ErrAuthInvalidSig)
	}
	v, err := QuantityToUint64(*vField)
	if err != nil {
		return fmt.Errorf("authorization: yParity: %w", err)
	}
	if v > 255 {
		return fmt.Errorf("%w: v = %d", ErrAuthSigValueRange, v)
	}
	r, err := QuantityToBig(dec.R)
	if err != nil {
		return fmt.Errorf("authorization: r: %w", err)
	}
	s, err := QuantityToBig(dec.S)
	if err != nil {
		return fmt.Errorf("authorization: s: %w", err)
	}
	sa.ChainID = chainID
	sa.Address = dec.Address
	sa.Nonce = nonce
	sa.V = uint8(v)
	sa.R = r
	sa.S = s
	return nil
}

