package types

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// AdKind selects the state universe and the predicate catalog of an AD. The
// kind is fixed at creation and never changes.
type AdKind byte

const (
	AdKindCounter    AdKind = 1
	AdKindSet        AdKind = 2
	AdKindMembership AdKind = 3
)

func (k AdKind) String() string {
	switch k {
	case AdKindCounter:
		return "counter"
	case AdKindSet:
		return "set"
	case AdKindMembership:
		return "membership_list"
	}
	return fmt.Sprintf("unknown(%d)", byte(k))
}

func AdKindFromString(s string) (AdKind, error) {
	switch s {
	case "counter":
		return AdKindCounter, nil
	case "set":
		return AdKindSet, nil
	case "membership_list":
		return AdKindMembership, nil
	}
	return 0, fmt.Errorf("unknown ad kind %q", s)
}

// AdID is the 32-byte identifier of an anchored datastore.
type AdID [32]byte

// DeriveAdID derives an id from the kind and a caller chosen seed.
func DeriveAdID(kind AdKind, seed string) AdID {
	h := sha3.New256()
	h.Write([]byte{byte(kind)})
	h.Write([]byte(seed))
	var id AdID
	copy(id[:], h.Sum(nil))
	return id
}

func (id AdID) Hex() string {
	return hex.EncodeToString(id[:])
}

func ParseAdID(s string) (AdID, error) {
	var id AdID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid ad id %q: %w", s, err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("invalid ad id length %d", len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// ParseHash32 decodes a 32-byte hex string, with or without a 0x prefix.
func ParseHash32(s string) ([32]byte, error) {
	var h [32]byte
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("invalid hash length %d", len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// Ad is the authoritative record of one anchored datastore as reconstructed
// by the synchronizer. CurrentState always equals the new value of the last
// accepted artifact's final statement, or the kind's EMPTY value if none has
// been accepted yet. LastProcessedSlot is monotonically non-decreasing.
type Ad struct {
	ID                AdID   `json:"id"`
	Kind              AdKind `json:"kind"`
	CurrentState      Value  `json:"current_state"`
	LastProcessedSlot uint64 `json:"last_processed_slot"`
	UpdateNum         uint64 `json:"update_num"`
	CatalogHash       string `json:"catalog_hash"`
}

// AdUpdate is one accepted transition in an AD's linear history.
type AdUpdate struct {
	ID            AdID     `json:"id"`
	Num           uint64   `json:"num"`
	State         Value    `json:"state"`
	Slot          uint64   `json:"slot"`
	VersionedHash [32]byte `json:"versioned_hash"`
}

// BlobRecord is the provenance of one accepted feed entry.
type BlobRecord struct {
	VersionedHash [32]byte `json:"versioned_hash"`
	Slot          uint64   `json:"slot"`
	Block         uint64   `json:"block"`
	BlobIndex     int      `json:"blob_index"`
	Timestamp     int64    `json:"timestamp"`
}
