package geth

import (
	"errors"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/ethaccess/ethaccess/core/types"
)

// ErrAuthValueRange is returned when a signature or chain-id value does not
// fit in 256 bits.
var ErrAuthValueRange = errors.New("geth: authorization value out of range")

// ToGethAuthorization converts a signed EIP-7702 authorization to
// go-ethereum's SetCodeAuthorization. Legacy 27/28 parity values are
// normalized to the canonical bit.
func ToGethAuthorization(sa *types.SignedAuthorization) (gethtypes.SetCodeAuthorization, error) {
	yParity, err := sa.YParity()
	if err != nil {
		return gethtypes.SetCodeAuthorization{}, err
	}
	var chainID, r, s uint256.Int
	if sa.ChainID != nil && chainID.SetFromBig(sa.ChainID) {
		return gethtypes.SetCodeAuthorization{}, ErrAuthValueRange
	}
	if sa.R != nil && r.SetFromBig(sa.R) {
		return gethtypes.SetCodeAuthorization{}, ErrAuthValueRange
	}
	if sa.S != nil && s.SetFromBig(sa.S) {
		return gethtypes.SetCodeAuthorization{}, ErrAuthValueRange
	}
	return gethtypes.SetCodeAuthorization{
		ChainID: chainID,
		Address: ToGethAddress(sa.Address),
		Nonce:   sa.Nonce,
		V:       yParity,
		R:       r,
		S:       s,
	}, nil
}

// FromGethAuthorization converts a go-ethereum SetCodeAuthorization to a
// signed authorization.
func FromGethAuthorization(a gethtypes.SetCodeAuthorization) *types.SignedAuthorization {
	inner := types.Authorization{
		ChainID: a.ChainID.ToBig(),
		Address: FromGethAddress(a.Address),
		Nonce:   a.Nonce,
	}
	return inner.WithSignature(a.V, a.R.ToBig(), a.S.ToBig())
}
