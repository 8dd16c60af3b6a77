package config

import "adn/store"

// FeedConfig points at the feed node the synchronizer reads from.
type FeedConfig struct {
	URL string `yaml:"url"`
	// ToAddress filters entries: only blobs addressed here carry AD payloads.
	ToAddress string `yaml:"to_address"`
	// GenesisSlot is the first slot that can carry AD entries.
	GenesisSlot uint64 `yaml:"genesis_slot"`
	// VerifyBlobHashes recomputes KZG versioned hashes per entry.
	VerifyBlobHashes bool `yaml:"verify_blob_hashes"`
}

// ProverConfig points at the external proving service.
type ProverConfig struct {
	URL string `yaml:"url"`
}

// NodeConfig represents a node's configuration
type NodeConfig struct {
	Feed         FeedConfig        `yaml:"feed"`
	Prover       ProverConfig      `yaml:"prover"`
	Store        store.StoreConfig `yaml:"store"`
	RPCAddr      string            `yaml:"rpc_addr"`
	MetricsAddr  string            `yaml:"metrics_addr"`
	VerifyingKey string            `yaml:"verifying_key_path"`
}

// ConfigFile is the top-level structure for adn.yml
type ConfigFile struct {
	Config NodeConfig `yaml:"config"`
}
