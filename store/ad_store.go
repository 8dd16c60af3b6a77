package store

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"

	"adn/db"
	"adn/jsonx"
	"adn/logx"
	"adn/types"
)

// AdStore persists AD records, their numbered update history, and blob
// provenance. The ledger is the sole writer.
type AdStore interface {
	Store(ad *types.Ad) error
	Get(id types.AdID) (*types.Ad, error)
	Exists(id types.AdID) (bool, error)
	Count() (int, error)
	// ApplyUpdate commits an accepted artifact atomically: the mutated AD
	// record, the new history entry and the blob provenance land in one
	// batch write.
	ApplyUpdate(ad *types.Ad, update *types.AdUpdate, rec *types.BlobRecord) error
	GetUpdate(id types.AdID, num uint64) (*types.AdUpdate, error)
	MustClose()
}

type GenericAdStore struct {
	mu         sync.RWMutex
	dbProvider db.DatabaseProvider
}

func NewGenericAdStore(dbProvider db.DatabaseProvider) (*GenericAdStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	return &GenericAdStore{dbProvider: dbProvider}, nil
}

func (as *GenericAdStore) Store(ad *types.Ad) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	data, err := jsonx.Marshal(ad)
	if err != nil {
		return fmt.Errorf("failed to marshal ad: %w", err)
	}
	if err := as.dbProvider.Put(adKey(ad.ID), data); err != nil {
		return fmt.Errorf("failed to write ad to db: %w", err)
	}
	return nil
}

// Get returns the AD record from db, both nil if it does not exist
func (as *GenericAdStore) Get(id types.AdID) (*types.Ad, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	data, err := as.dbProvider.Get(adKey(id))
	if err != nil {
		return nil, fmt.Errorf("could not get ad %s from db: %w", id.Hex(), err)
	}
	if data == nil {
		return nil, nil
	}
	var ad types.Ad
	if err := jsonx.Unmarshal(data, &ad); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ad %s: %w", id.Hex(), err)
	}
	return &ad, nil
}

func (as *GenericAdStore) Exists(id types.AdID) (bool, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	return as.dbProvider.Has(adKey(id))
}

func (as *GenericAdStore) Count() (int, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	iterable, ok := as.dbProvider.(db.IterableProvider)
	if !ok {
		return 0, fmt.Errorf("provider does not support iteration")
	}
	count := 0
	err := iterable.IteratePrefix([]byte(PrefixAd), func(_, _ []byte) bool {
		count++
		return true
	})
	return count, err
}

func (as *GenericAdStore) ApplyUpdate(ad *types.Ad, update *types.AdUpdate, rec *types.BlobRecord) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	adData, err := jsonx.Marshal(ad)
	if err != nil {
		return fmt.Errorf("failed to marshal ad: %w", err)
	}
	updateData, err := jsonx.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal ad update: %w", err)
	}

	batch := as.dbProvider.Batch()
	defer batch.Close()
	batch.Put(adKey(ad.ID), adData)
	batch.Put(adUpdateKey(update.ID, update.Num), updateData)
	if rec != nil {
		recData, err := jsonx.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal blob record: %w", err)
		}
		batch.Put(blobKey(rec.VersionedHash), recData)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to commit ad update batch: %w", err)
	}
	return nil
}

func (as *GenericAdStore) GetUpdate(id types.AdID, num uint64) (*types.AdUpdate, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	data, err := as.dbProvider.Get(adUpdateKey(id, num))
	if err != nil {
		return nil, fmt.Errorf("could not get ad update %s/%d from db: %w", id.Hex(), num, err)
	}
	if data == nil {
		return nil, nil
	}
	var update types.AdUpdate
	if err := jsonx.Unmarshal(data, &update); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ad update %s/%d: %w", id.Hex(), num, err)
	}
	return &update, nil
}

func (as *GenericAdStore) MustClose() {
	if err := as.dbProvider.Close(); err != nil {
		logx.Error("AD_STORE", "Failed to close db provider:", err.Error())
	}
}

func adKey(id types.AdID) []byte {
	return []byte(PrefixAd + id.Hex())
}

func adUpdateKey(id types.AdID, num uint64) []byte {
	key := make([]byte, 0, len(PrefixAdUpdate)+64+1+8)
	key = append(key, PrefixAdUpdate...)
	key = append(key, id.Hex()...)
	key = append(key, ':')
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], num)
	return append(key, n[:]...)
}

func blobKey(versionedHash [32]byte) []byte {
	return []byte(PrefixBlob + hex.EncodeToString(versionedHash[:]))
}
