// Package blob implements the "simple" byte encoding used to carry payloads
// inside EIP-4844 blobs, and the KZG commitment / versioned hash helpers the
// synchronizer uses to record entry provenance.
//
// Layout: a blob is 4096 field elements of 32 bytes. The first byte of every
// element is zero so the element stays below the scalar field modulus.
// Element 0 carries an 8-byte big-endian payload length; the payload itself
// is packed 31 bytes per element from element 1 on.
package blob

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	goethkzg "github.com/crate-crypto/go-eth-kzg"
)

const (
	fieldElementSize     = 32
	fieldElementsPerBlob = 4096
	// Size is the full blob size in bytes.
	Size = fieldElementSize * fieldElementsPerBlob
	// MaxPayload is the payload capacity of one blob.
	MaxPayload = (fieldElementsPerBlob - 1) * (fieldElementSize - 1)
)

// Encode packs payload into a fresh blob.
func Encode(payload []byte) (*goethkzg.Blob, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("payload of %d bytes exceeds blob capacity %d", len(payload), MaxPayload)
	}
	var blob goethkzg.Blob
	binary.BigEndian.PutUint64(blob[1:9], uint64(len(payload)))
	for i := 0; i < len(payload); i += fieldElementSize - 1 {
		end := i + fieldElementSize - 1
		if end > len(payload) {
			end = len(payload)
		}
		element := 1 + i/(fieldElementSize-1)
		copy(blob[element*fieldElementSize+1:], payload[i:end])
	}
	return &blob, nil
}

// Decode extracts the payload from blob bytes in the simple encoding.
func Decode(blobBytes []byte) ([]byte, error) {
	if len(blobBytes) < fieldElementSize || len(blobBytes)%fieldElementSize != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of %d", len(blobBytes), fieldElementSize)
	}
	dataLen := binary.BigEndian.Uint64(blobBytes[1:9])
	maxDataLen := uint64(len(blobBytes)/fieldElementSize-1) * (fieldElementSize - 1)
	if dataLen > maxDataLen {
		return nil, fmt.Errorf("blob of length %d cannot accommodate %d bytes", len(blobBytes), dataLen)
	}
	out := make([]byte, 0, dataLen)
	for off := fieldElementSize; off < len(blobBytes) && uint64(len(out)) < dataLen; off += fieldElementSize {
		chunk := blobBytes[off+1 : off+fieldElementSize]
		remaining := dataLen - uint64(len(out))
		if remaining < uint64(len(chunk)) {
			chunk = chunk[:remaining]
		}
		out = append(out, chunk...)
	}
	if uint64(len(out)) != dataLen {
		return nil, fmt.Errorf("blob truncated: wanted %d payload bytes, got %d", dataLen, len(out))
	}
	return out, nil
}

// FromBytes reinterprets raw blob bytes as a blob.
func FromBytes(blobBytes []byte) (*goethkzg.Blob, error) {
	if len(blobBytes) != Size {
		return nil, fmt.Errorf("blob length %d, want %d", len(blobBytes), Size)
	}
	var blob goethkzg.Blob
	copy(blob[:], blobBytes)
	return &blob, nil
}

// Committer computes KZG commitments and versioned hashes over blobs.
type Committer struct {
	ctx *goethkzg.Context
}

func NewCommitter() (*Committer, error) {
	ctx, err := goethkzg.NewContext4096Secure()
	if err != nil {
		return nil, fmt.Errorf("failed to load kzg trusted setup: %w", err)
	}
	return &Committer{ctx: ctx}, nil
}

// VersionedHash returns the EIP-4844 versioned hash of the blob:
// 0x01 ++ sha256(kzg_commitment)[1:].
func (c *Committer) VersionedHash(blob *goethkzg.Blob) ([32]byte, error) {
	commitment, err := c.ctx.BlobToKZGCommitment(blob, 0)
	if err != nil {
		return [32]byte{}, fmt.Errorf("kzg commitment failed: %w", err)
	}
	return CommitmentToVersionedHash(commitment[:]), nil
}

// CommitmentToVersionedHash hashes a raw 48-byte KZG commitment into the
// versioned hash format.
func CommitmentToVersionedHash(commitment []byte) [32]byte {
	h := sha256.Sum256(commitment)
	h[0] = 0x01
	return h
}
