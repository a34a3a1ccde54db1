package bal

import (
	"github.com/ethaccess/ethaccess/core/types"
	"github.com/ethaccess/ethaccess/crypto"
	"github.com/ethaccess/ethaccess/metrics"
)

// EmptyHash is the commitment of a list with no accounts: the keccak256
// hash of the empty RLP list 0xc0.
var EmptyHash = types.HexToHash("0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347")

// Hash returns the block-level commitment to the access list, the keccak256
// hash of its canonical encoding. Two lists hash equal iff they encode
// equal, so the commitment pins ordering as well as content.
func (l *BlockAccessList) Hash() types.Hash {
	enc := l.Encode()
	metrics.BALHashes.Inc()
	metrics.BALHashedBytes.Add(int64(len(enc)))
	return crypto.Keccak256Hash(enc)
}
