package core

import "math/big"

// BlobParams holds the blob throughput and pricing parameters of one fork.
type BlobParams struct {
	TargetBlobCount uint64
	MaxBlobCount    uint64
	UpdateFraction  uint64
	MinBlobFee      uint64
}

// Per-fork blob parameters.
var (
	// CancunBlobParams: EIP-4844 launch values.
	CancunBlobParams = BlobParams{TargetBlobCount: 3, MaxBlobCount: 6, UpdateFraction: 3338477, MinBlobFee: MinBlobGasprice}

	// PragueBlobParams: EIP-7691 increased blob throughput.
	PragueBlobParams = BlobParams{TargetBlobCount: 6, MaxBlobCount: 9, UpdateFraction: 5007716, MinBlobFee: MinBlobGasprice}

	// OsakaBlobParams carries the Prague values; throughput rises afterwards
	// through the BPO forks.
	OsakaBlobParams = BlobParams{TargetBlobCount: 6, MaxBlobCount: 9, UpdateFraction: 5007716, MinBlobFee: MinBlobGasprice}

	// BPO1BlobParams: first blob parameter optimization fork.
	BPO1BlobParams = BlobParams{TargetBlobCount: 10, MaxBlobCount: 15, UpdateFraction: 8346193, MinBlobFee: MinBlobGasprice}

	// BPO2BlobParams: second blob parameter optimization fork.
	BPO2BlobParams = BlobParams{TargetBlobCount: 14, MaxBlobCount: 21, UpdateFraction: 11684671, MinBlobFee: MinBlobGasprice}
)

// TargetBlobGas returns the blob gas target per block.
func (p BlobParams) TargetBlobGas() uint64 {
	return p.TargetBlobCount * GasPerBlob
}

// MaxBlobGas returns the blob gas limit per block.
func (p BlobParams) MaxBlobGas() uint64 {
	return p.MaxBlobCount * GasPerBlob
}

// NextBlockExcessBlobGas computes the excess blob gas for the block
// following a parent with the given excess and usage. Consumption below the
// target drains the excess to zero, never negative.
func (p BlobParams) NextBlockExcessBlobGas(parentExcessBlobGas, parentBlobGasUsed uint64) uint64 {
	target := p.TargetBlobGas()
	if parentExcessBlobGas+parentBlobGasUsed < target {
		return 0
	}
	return parentExcessBlobGas + parentBlobGasUsed - target
}

// CalcBlobFee computes the blob base fee for a block with the given excess
// blob gas.
func (p BlobParams) CalcBlobFee(excessBlobGas uint64) *big.Int {
	return FakeExponential(
		new(big.Int).SetUint64(p.MinBlobFee),
		new(big.Int).SetUint64(excessBlobGas),
		new(big.Int).SetUint64(p.UpdateFraction),
	)
}

// ScheduleItem returns the genesis "blobSchedule" entry for these
// parameters.
func (p BlobParams) ScheduleItem() BlobScheduleItem {
	return BlobScheduleItem{TargetBlobCount: p.TargetBlobCount, MaxBlobCount: p.MaxBlobCount}
}

// BlobScheduleItem is a single entry of the "blobSchedule" genesis field
// defined by EIP-7840.
type BlobScheduleItem struct {
	TargetBlobCount uint64 `json:"target"`
	MaxBlobCount    uint64 `json:"max"`
}
