package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	decredecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/ethaccess/ethaccess/core/types"
)

// Signature layout: 65 bytes [R || S || V] with V in {0, 1}.
const (
	SignatureLength  = 64 + 1
	RecoveryIDOffset = 64
	DigestLength     = 32
)

var (
	secp256k1N     = S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)

	errInvalidSignatureLen = errors.New("crypto: signature must be 65 bytes long")
	errInvalidRecoveryID   = errors.New("crypto: invalid signature recovery id")
	errInvalidPubkey       = errors.New("crypto: invalid public key")
)

// S256 returns the secp256k1 curve.
func S256() elliptic.Curve {
	return secp256k1.S256()
}

// Ecrecover returns the uncompressed public key that created the given
// signature over the given digest.
func Ecrecover(hash, sig []byte) ([]byte, error) {
	pub, err := sigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed(), nil
}

// SigToPub returns the public key that created the given signature.
func SigToPub(hash, sig []byte) (*ecdsa.PublicKey, error) {
	pub, err := sigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	return pub.ToECDSA(), nil
}

func sigToPub(hash, sig []byte) (*secp256k1.PublicKey, error) {
	if len(sig) != SignatureLength {
		return nil, errInvalidSignatureLen
	}
	if sig[RecoveryIDOffset] >= 4 {
		return nil, errInvalidRecoveryID
	}
	// Convert to compact form with the recovery id up front.
	btcsig := make([]byte, SignatureLength)
	btcsig[0] = sig[RecoveryIDOffset] + 27
	copy(btcsig[1:], sig)

	pub, _, err := decredecdsa.RecoverCompact(btcsig, hash)
	return pub, err
}

// Sign calculates an ECDSA signature over the given digest. The produced
// signature is in [R || S || V] format with a 0/1 recovery id.
//
// The digest must be the output of a cryptographic hash function; signing
// unhashed attacker-controlled data is unsafe.
func Sign(digestHash []byte, prv *ecdsa.PrivateKey) ([]byte, error) {
	if len(digestHash) != DigestLength {
		return nil, fmt.Errorf("crypto: digest is required to be exactly %d bytes (%d)", DigestLength, len(digestHash))
	}
	if prv.Curve != S256() {
		return nil, errors.New("crypto: private key curve is not secp256k1")
	}
	var priv secp256k1.PrivateKey
	if overflow := priv.Key.SetByteSlice(prv.D.Bytes()); overflow || priv.Key.IsZero() {
		return nil, errors.New("crypto: invalid private key")
	}
	defer priv.Zero()
	sig := decredecdsa.SignCompact(&priv, digestHash, false)
	// Rearrange to [R || S || V] with a normalized recovery id.
	v := sig[0] - 27
	copy(sig, sig[1:])
	sig[RecoveryIDOffset] = v
	return sig, nil
}

// VerifySignature checks that the given public key created the signature
// over the digest. The signature is the 64-byte [R || S] form.
func VerifySignature(pubkey, digestHash, signature []byte) bool {
	if len(signature) != 64 {
		return false
	}
	var r, s secp256k1.ModNScalar
	if r.SetByteSlice(signature[:32]) || s.SetByteSlice(signature[32:]) {
		return false // overflow
	}
	// Reject malleable signatures: could be valid with a flipped s.
	if s.IsOverHalfOrder() {
		return false
	}
	key, err := secp256k1.ParsePubKey(pubkey)
	if err != nil {
		return false
	}
	sig := decredecdsa.NewSignature(&r, &s)
	return sig.Verify(digestHash, key)
}

// ValidateSignatureValues verifies whether the signature values are valid
// with the given chain rules. Homestead adds the low-s requirement.
func ValidateSignatureValues(v byte, r, s *big.Int, homestead bool) bool {
	if r == nil || s == nil {
		return false
	}
	if r.Sign() < 1 || s.Sign() < 1 {
		return false
	}
	if homestead && s.Cmp(secp256k1HalfN) > 0 {
		return false
	}
	return r.Cmp(secp256k1N) < 0 && s.Cmp(secp256k1N) < 0 && (v == 0 || v == 1)
}

// PubkeyToAddress derives the account address from a public key:
// the last 20 bytes of the Keccak-256 of the uncompressed point.
func PubkeyToAddress(p ecdsa.PublicKey) types.Address {
	pubBytes := elliptic.Marshal(S256(), p.X, p.Y)
	return types.BytesToAddress(Keccak256(pubBytes[1:])[12:])
}

// GenerateKey generates a new secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	priv, err := secp256k1.GeneratePrivateKeyFromRand(rand.Reader)
	if err != nil {
		return nil, err
	}
	return priv.ToECDSA(), nil
}

// HexToECDSA parses a secp256k1 private key from its 32-byte hex form.
func HexToECDSA(hexkey string) (*ecdsa.PrivateKey, error) {
	b, err := hex.DecodeString(hexkey)
	if err != nil {
		return nil, errors.New("crypto: invalid hex string")
	}
	return ToECDSA(b)
}

// ToECDSA creates a private key from its 32-byte big-endian form.
func ToECDSA(d []byte) (*ecdsa.PrivateKey, error) {
	if len(d) != 32 {
		return nil, errors.New("crypto: private key must be 32 bytes")
	}
	var priv secp256k1.PrivateKey
	if overflow := priv.Key.SetByteSlice(d); overflow || priv.Key.IsZero() {
		return nil, errors.New("crypto: invalid private key, out of range")
	}
	return priv.ToECDSA(), nil
}

// UnmarshalPubkey converts an uncompressed 65-byte public key to an
// ecdsa.PublicKey.
func UnmarshalPubkey(pub []byte) (*ecdsa.PublicKey, error) {
	x, y := elliptic.Unmarshal(S256(), pub)
	if x == nil {
		return nil, errInvalidPubkey
	}
	return &ecdsa.PublicKey{Curve: S256(), X: x, Y: y}, nil
}

// FromECDSA exports a private key into its 32-byte big-endian form.
func FromECDSA(prv *ecdsa.PrivateKey) []byte {
	if prv == nil {
		return nil
	}
	return prv.D.FillBytes(make([]byte, 32))
}

// FromECDSAPub exports a public key in the uncompressed 65-byte form.
func FromECDSAPub(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(S256(), pub.X, pub.Y)
}

// CompressPubkey encodes a public key to the 33-byte compressed format.
func CompressPubkey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	var x, y secp256k1.FieldVal
	x.SetByteSlice(pub.X.Bytes())
	y.SetByteSlice(pub.Y.Bytes())
	return secp256k1.NewPublicKey(&x, &y).SerializeCompressed()
}

// DecompressPubkey parses a public key in the 33-byte compressed format.
func DecompressPubkey(pub []byte) (*ecdsa.PublicKey, error) {
	if len(pub) != 33 {
		return nil, errInvalidPubkey
	}
	key, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return nil, err
	}
	return key.ToECDSA(), nil
}
