package crypto

// KZG blob commitments for EIP-4844 blob transactions.
//
// Commitments and proofs are computed through crate-crypto/go-eth-kzg
// using the embedded Ethereum KZG ceremony trusted setup. The context
// is expensive to build (it processes the full SRS), so it is created
// lazily on first use and shared afterwards.

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	goethkzg "github.com/crate-crypto/go-eth-kzg"

	"github.com/ethaccess/ethaccess/core/types"
)

const (
	// BlobSize is the number of bytes in a blob: 4096 field elements
	// of 32 bytes each.
	BlobSize = 4096 * 32

	// CommitmentSize is the size of a compressed G1 point.
	CommitmentSize = 48

	// ProofSize is the size of a KZG opening proof.
	ProofSize = 48

	// VersionedHashVersion is the EIP-4844 version byte prefixed to
	// hashed commitments.
	VersionedHashVersion = 0x01
)

type (
	// Blob is the data payload of a blob transaction sidecar.
	Blob [BlobSize]byte

	// Commitment is a KZG commitment to a Blob.
	Commitment [CommitmentSize]byte

	// Proof is the KZG proof showing a Commitment matches its Blob.
	Proof [ProofSize]byte
)

var (
	ErrBlobFieldElement = errors.New("kzg: blob contains non-canonical field element")
	ErrProofMismatch    = errors.New("kzg: proof does not match blob and commitment")
)

var (
	kzgOnce    sync.Once
	kzgContext *goethkzg.Context
	kzgInitErr error
)

// context returns the shared go-eth-kzg context, building it on first call.
func context() (*goethkzg.Context, error) {
	kzgOnce.Do(func() {
		kzgContext, kzgInitErr = goethkzg.NewContext4096Secure()
	})
	if kzgInitErr != nil {
		return nil, fmt.Errorf("kzg: trusted setup init: %w", kzgInitErr)
	}
	return kzgContext, nil
}

// BlobToCommitment computes the KZG commitment for a blob. Every 32-byte
// field element in the blob must be a canonical BLS scalar.
func BlobToCommitment(blob *Blob) (Commitment, error) {
	ctx, err := context()
	if err != nil {
		return Commitment{}, err
	}
	comm, err := ctx.BlobToKZGCommitment((*goethkzg.Blob)(blob), 0)
	if err != nil {
		return Commitment{}, fmt.Errorf("%w: %v", ErrBlobFieldElement, err)
	}
	return Commitment(comm), nil
}

// ComputeBlobProof computes the blob proof used by EIP-4844 sidecar
// verification.
func ComputeBlobProof(blob *Blob, commitment Commitment) (Proof, error) {
	ctx, err := context()
	if err != nil {
		return Proof{}, err
	}
	proof, err := ctx.ComputeBlobKZGProof((*goethkzg.Blob)(blob), goethkzg.KZGCommitment(commitment), 0)
	if err != nil {
		return Proof{}, fmt.Errorf("%w: %v", ErrBlobFieldElement, err)
	}
	return Proof(proof), nil
}

// VerifyBlobProof checks that the proof attests the commitment for the blob.
func VerifyBlobProof(blob *Blob, commitment Commitment, proof Proof) error {
	ctx, err := context()
	if err != nil {
		return err
	}
	if err := ctx.VerifyBlobKZGProof((*goethkzg.Blob)(blob), goethkzg.KZGCommitment(commitment), goethkzg.KZGProof(proof)); err != nil {
		return fmt.Errorf("%w: %v", ErrProofMismatch, err)
	}
	return nil
}

// VerifyBlobProofBatch verifies a batch of blob proofs in one pairing
// computation. All three slices must have equal length.
func VerifyBlobProofBatch(blobs []*Blob, commitments []Commitment, proofs []Proof) error {
	if len(blobs) != len(commitments) || len(blobs) != len(proofs) {
		return errors.New("kzg: batch length mismatch")
	}
	ctx, err := context()
	if err != nil {
		return err
	}
	blobPtrs := make([]*goethkzg.Blob, len(blobs))
	comms := make([]goethkzg.KZGCommitment, len(commitments))
	kzgProofs := make([]goethkzg.KZGProof, len(proofs))
	for i := range blobs {
		blobPtrs[i] = (*goethkzg.Blob)(blobs[i])
		comms[i] = goethkzg.KZGCommitment(commitments[i])
		kzgProofs[i] = goethkzg.KZGProof(proofs[i])
	}
	if err := ctx.VerifyBlobKZGProofBatch(blobPtrs, comms, kzgProofs); err != nil {
		return fmt.Errorf("%w: %v", ErrProofMismatch, err)
	}
	return nil
}

// CommitmentToVersionedHash computes the EIP-4844 versioned hash of a
// commitment: SHA-256 of the commitment with the first byte replaced by
// the version.
func CommitmentToVersionedHash(commitment Commitment) types.Hash {
	h := sha256.Sum256(commitment[:])
	h[0] = VersionedHashVersion
	return types.Hash(h)
}
