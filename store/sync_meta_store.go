package store

import (
	"encoding/binary"
	"fmt"

	"adn/db"
)

// SyncMetaStore stores synchronizer progress metadata, most importantly the
// last fully visited feed slot. This is intentionally separate from the AD
// records: AD state is consensus-derived, the cursor is local bookkeeping.
type SyncMetaStore interface {
	SetLastVisitedSlot(slot uint64) error
	GetLastVisitedSlot() (uint64, bool, error)
}

type GenericSyncMetaStore struct {
	provider db.DatabaseProvider
}

func NewGenericSyncMetaStore(provider db.DatabaseProvider) *GenericSyncMetaStore {
	return &GenericSyncMetaStore{provider: provider}
}

func (s *GenericSyncMetaStore) SetLastVisitedSlot(slot uint64) error {
	var value [8]byte
	binary.BigEndian.PutUint64(value[:], slot)
	if err := s.provider.Put(lastVisitedKey(), value[:]); err != nil {
		return fmt.Errorf("failed to store last visited slot %d: %w", slot, err)
	}
	return nil
}

func (s *GenericSyncMetaStore) GetLastVisitedSlot() (uint64, bool, error) {
	value, err := s.provider.Get(lastVisitedKey())
	if err != nil {
		return 0, false, fmt.Errorf("failed to get last visited slot: %w", err)
	}
	if len(value) == 0 {
		return 0, false, nil
	}
	if len(value) != 8 {
		return 0, false, fmt.Errorf("invalid last visited slot length: %d", len(value))
	}
	return binary.BigEndian.Uint64(value), true, nil
}

func lastVisitedKey() []byte {
	return []byte(PrefixSyncMeta + SyncMetaKeyLastVisited)
}
