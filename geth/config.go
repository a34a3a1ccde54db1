package geth

import (
	"github.com/ethereum/go-ethereum/params"

	"github.com/ethaccess/ethaccess/core"
)

// ToGethBlobConfig converts fork blob parameters to go-ethereum's
// representation. The minimum blob fee is a protocol-wide constant in
// go-ethereum and is not carried over.
func ToGethBlobConfig(p core.BlobParams) *params.BlobConfig {
	return &params.BlobConfig{
		Target:         int(p.TargetBlobCount),
		Max:            int(p.MaxBlobCount),
		UpdateFraction: p.UpdateFraction,
	}
}

// FromGethBlobConfig converts a go-ethereum blob config, restoring the
// protocol minimum blob fee. Nil maps to the zero value.
func FromGethBlobConfig(c *params.BlobConfig) core.BlobParams {
	if c == nil {
		return core.BlobParams{}
	}
	return core.BlobParams{
		TargetBlobCount: uint64(c.Target),
		MaxBlobCount:    uint64(c.Max),
		UpdateFraction:  c.UpdateFraction,
		MinBlobFee:      core.MinBlobGasprice,
	}
}

// ToGethBlobSchedule assembles go-ethereum's blob schedule from the fork
// presets.
func ToGethBlobSchedule() *params.BlobScheduleConfig {
	return &params.BlobScheduleConfig{
		Cancun: ToGethBlobConfig(core.CancunBlobParams),
		Prague: ToGethBlobConfig(core.PragueBlobParams),
		Osaka:  ToGethBlobConfig(core.OsakaBlobParams),
		BPO1:   ToGethBlobConfig(core.BPO1BlobParams),
		BPO2:   ToGethBlobConfig(core.BPO2BlobParams),
	}
}
