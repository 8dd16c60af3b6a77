package interfaces

import (
	"adn/artifact"
	"adn/types"
)

// Ledger interface defines the methods required for datastore state operations
type Ledger interface {
	// AdExists checks if a datastore is registered
	AdExists(id types.AdID) bool
	// GetAd returns the datastore record for the given id
	GetAd(id types.AdID) (*types.Ad, error)
	// RegisterAd registers a datastore from an init entry
	RegisterAd(id types.AdID, kind types.AdKind, catalogHash string, slot uint64) error
	// ApplyArtifact validates an update artifact and advances the state
	ApplyArtifact(art *artifact.Artifact, entry types.FeedEntry) error
	// GetUpdate returns one numbered update record
	GetUpdate(id types.AdID, num uint64) (*types.AdUpdate, error)
}
