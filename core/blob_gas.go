package core

import "math/big"

// EIP-4844 blob gas constants.
const (
	// GasPerBlob is the blob gas consumed by a single blob: 2^17.
	GasPerBlob = 1 << 17 // 131072

	// MaxBlobGasPerBlock is the blob gas limit at the Cancun fork (6 blobs).
	MaxBlobGasPerBlock = 786432

	// TargetBlobGasPerBlock is the blob gas target at the Cancun fork (3 blobs).
	TargetBlobGasPerBlock = 393216

	// MinBlobGasprice is the floor price for a unit of blob gas.
	MinBlobGasprice = 1

	// BlobBaseFeeUpdateFraction bounds the per-block rate of change of the
	// blob base fee at the Cancun fork.
	BlobBaseFeeUpdateFraction = 3338477
)

// FakeExponential approximates factor * e^(numerator/denominator) using the
// Taylor expansion from EIP-4844. Arbitrary-precision arithmetic throughout:
// intermediate products exceed 128 bits at realistic fee magnitudes.
//
// A zero denominator is a programming error and panics.
func FakeExponential(factor, numerator, denominator *big.Int) *big.Int {
	if denominator.Sign() == 0 {
		panic("core: fake exponential with zero denominator")
	}
	var (
		i              = big.NewInt(1)
		output         = new(big.Int)
		numeratorAccum = new(big.Int).Mul(factor, denominator)
		tmp            = new(big.Int)
		denom          = new(big.Int)
	)
	for numeratorAccum.Sign() > 0 {
		output.Add(output, numeratorAccum)
		tmp.Mul(numeratorAccum, numerator)
		denom.Mul(denominator, i)
		numeratorAccum.Div(tmp, denom)
		i.Add(i, big.NewInt(1))
	}
	return output.Div(output, denominator)
}

// CalcBlobFee computes the blob base fee for a block with the given excess
// blob gas under the Cancun parameters.
func CalcBlobFee(excessBlobGas uint64) *big.Int {
	return CancunBlobParams.CalcBlobFee(excessBlobGas)
}

// CalcExcessBlobGas computes the excess blob gas for the block following a
// parent with the given excess and usage, under the Cancun parameters.
func CalcExcessBlobGas(parentExcessBlobGas, parentBlobGasUsed uint64) uint64 {
	return CancunBlobParams.NextBlockExcessBlobGas(parentExcessBlobGas, parentBlobGasUsed)
}
