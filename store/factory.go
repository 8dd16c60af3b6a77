package store

import (
	"fmt"
	"path/filepath"

	"adn/db"
)

// StoreType represents the type of store implementation
type StoreType string

const (
	// LevelDBStoreType uses the LevelDB implementation
	LevelDBStoreType StoreType = "leveldb"

	// BoltStoreType uses the bbolt implementation
	BoltStoreType StoreType = "bolt"

	// MemoryStoreType keeps everything in memory, for tests and dev mode
	MemoryStoreType StoreType = "memory"
)

// StoreConfig holds configuration for creating store instances
type StoreConfig struct {
	// Type specifies which store implementation to use
	Type StoreType `json:"type" yaml:"type"`

	// Directory is the database directory path (for file-based databases)
	Directory string `json:"directory" yaml:"directory"`
}

// Validate validates the store configuration
func (sc *StoreConfig) Validate() error {
	if sc.Type == "" {
		return fmt.Errorf("store type cannot be empty")
	}
	if sc.Type != MemoryStoreType && sc.Directory == "" {
		return fmt.Errorf("directory cannot be empty")
	}
	switch sc.Type {
	case LevelDBStoreType, BoltStoreType, MemoryStoreType:
		return nil
	default:
		return fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}

// NewProvider opens the database backend selected by the config.
func NewProvider(cfg *StoreConfig) (db.DatabaseProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case LevelDBStoreType:
		return db.NewLevelDBProvider(cfg.Directory)
	case BoltStoreType:
		return db.NewBoltProvider(filepath.Join(cfg.Directory, "adn.db"))
	case MemoryStoreType:
		return db.NewMemoryProvider(), nil
	}
	return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
}
