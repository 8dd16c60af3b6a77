package store

import (
	"fmt"
	"sync"

	"adn/db"
	"adn/jsonx"
	"adn/types"
)

// RequestStore persists producer-side requests. The pipeline is the sole
// writer; records are kept until overwritten.
type RequestStore interface {
	Store(req *types.Request) error
	Get(id string) (*types.Request, error)
}

type GenericRequestStore struct {
	mu         sync.RWMutex
	dbProvider db.DatabaseProvider
}

func NewGenericRequestStore(dbProvider db.DatabaseProvider) (*GenericRequestStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	return &GenericRequestStore{dbProvider: dbProvider}, nil
}

func (rs *GenericRequestStore) Store(req *types.Request) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	data, err := jsonx.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := rs.dbProvider.Put(requestKey(req.ID), data); err != nil {
		return fmt.Errorf("failed to write request to db: %w", err)
	}
	return nil
}

// Get returns the request from db, both nil if it does not exist
func (rs *GenericRequestStore) Get(id string) (*types.Request, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	data, err := rs.dbProvider.Get(requestKey(id))
	if err != nil {
		return nil, fmt.Errorf("could not get request %s from db: %w", id, err)
	}
	if data == nil {
		return nil, nil
	}
	var req types.Request
	if err := jsonx.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request %s: %w", id, err)
	}
	return &req, nil
}

func requestKey(id string) []byte {
	return []byte(PrefixRequest + id)
}
