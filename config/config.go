package config

import (
	"log"
	"os"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// LoadNodeConfig reads and parses the adn.yml file
func LoadNodeConfig(path string) (*NodeConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		log.Printf("[config] Failed to open file: %v", err)
		return nil, err
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		log.Printf("[config] Failed to decode YAML: %v", err)
		return nil, err
	}
	log.Printf("[config] Successfully loaded config: feed=%s rpc=%s store=%s", cfgFile.Config.Feed.URL, cfgFile.Config.RPCAddr, cfgFile.Config.Store.Type)
	return &cfgFile.Config, nil
}

type SynchronizerConfig struct {
	PollIntervalMs int `ini:"poll_interval_ms"`
	SlotThrottleMs int `ini:"slot_throttle_ms"`
}

type PipelineConfig struct {
	QueueSize          int `ini:"queue_size"`
	Workers            int `ini:"workers"`
	InclusionTimeoutMs int `ini:"inclusion_timeout_ms"`
}

// LoadSynchronizerConfig reads synchronizer tuning from an .ini file
func LoadSynchronizerConfig(path string) (*SynchronizerConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	section := cfg.Section("synchronizer")
	syncCfg := &SynchronizerConfig{}
	if err := section.MapTo(syncCfg); err != nil {
		return nil, err
	}
	return syncCfg, nil
}

// LoadPipelineConfig reads pipeline tuning from an .ini file
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	section := cfg.Section("pipeline")
	pipeCfg := &PipelineConfig{}
	if err := section.MapTo(pipeCfg); err != nil {
		return nil, err
	}
	return pipeCfg, nil
}
