package core

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethaccess/ethaccess/core/types"
	"github.com/ethaccess/ethaccess/log"
	"github.com/ethaccess/ethaccess/metrics"
)

// StateDB is the minimal account surface needed to apply set-code
// authorizations: nonce and code per address, plus an existence check for
// the gas refund rule. Balances never enter the delegation rules.
type StateDB interface {
	GetNonce(types.Address) uint64
	SetNonce(types.Address, uint64)
	GetCode(types.Address) []byte
	SetCode(types.Address, []byte)
	Exists(types.Address) bool
}

var (
	ErrAuthChainID      = errors.New("authorization chain ID mismatch")
	ErrAuthNonce        = errors.New("authorization nonce mismatch")
	ErrAuthNonceMax     = errors.New("authorization nonce at maximum")
	ErrAuthCodeNotEmpty = errors.New("authority code is neither empty nor a delegation")
)

// ApplyResult summarizes the application of one transaction's authorization
// list. Skipped entries are invalid per protocol rules, never fatal.
type ApplyResult struct {
	Applied int
	Skipped int

	// Refund is the gas refunded for authorities that already existed in
	// state when their authorization was applied.
	Refund uint64
}

// ApplyAuthorizations applies an EIP-7702 authorization list against the
// given state. For each entry it verifies the chain ID, signature, authority
// code and nonce, then installs the delegation designator and bumps the
// authority's nonce. Invalid entries are skipped.
func ApplyAuthorizations(db StateDB, auths []types.SignedAuthorization, chainID *big.Int) ApplyResult {
	var res ApplyResult
	logger := log.Default().Module("core")
	for i := range auths {
		refund, err := applyAuthorization(db, &auths[i], chainID)
		if err != nil {
			res.Skipped++
			metrics.AuthorizationsRejected.Inc()
			logger.Debug("skipped authorization", "index", i, "err", err)
			continue
		}
		res.Applied++
		res.Refund += refund
		metrics.AuthorizationsApplied.Inc()
	}
	return res
}

// applyAuthorization applies one authorization entry. The returned error
// names the rule that failed; callers treat any error as a skip.
func applyAuthorization(db StateDB, auth *types.SignedAuthorization, chainID *big.Int) (uint64, error) {
	// Chain ID must match the local chain or be the any-chain zero value.
	if auth.ChainID != nil && auth.ChainID.Sign() != 0 {
		if chainID == nil || auth.ChainID.Cmp(chainID) != 0 {
			return 0, ErrAuthChainID
		}
	}

	// The nonce is incremented on success, so the maximum value can never
	// be authorized.
	if auth.Nonce == math.MaxUint64 {
		return 0, ErrAuthNonceMax
	}

	authority, err := auth.RecoverAuthority()
	if err != nil {
		return 0, err
	}

	// The authority must be an EOA: its code is empty or an earlier
	// delegation that this authorization replaces.
	if code := db.GetCode(authority); len(code) > 0 && !types.HasDelegationPrefix(code) {
		return 0, fmt.Errorf("%w: %s", ErrAuthCodeNotEmpty, authority.Hex())
	}

	nonce := db.GetNonce(authority)
	if auth.Nonce != nonce {
		return 0, fmt.Errorf("%w: have %d, want %d", ErrAuthNonce, auth.Nonce, nonce)
	}

	// The refund condition is observed before the account is touched.
	var refund uint64
	if db.Exists(authority) {
		refund = types.PerEmptyAccountCost - types.PerAuthBaseCost
	}

	// Install the designator. Delegating to the zero address clears the
	// account's code instead.
	if auth.Address == (types.Address{}) {
		db.SetCode(authority, nil)
	} else {
		db.SetCode(authority, types.AddressToDelegation(auth.Address))
	}
	db.SetNonce(authority, nonce+1)

	return refund, nil
}

// IntrinsicAuthorizationGas returns the upfront gas charged for a set-code
// transaction's authorization list. Refunds for pre-existing authorities
// are reported by ApplyAuthorizations.
func IntrinsicAuthorizationGas(n int) uint64 {
	return uint64(n) * types.PerEmptyAccountCost
}
