package cmd

import (
	"log"
	"net/http"
	"os"
	"time"

	"adn/config"
	"adn/db"
	"adn/events"
	"adn/exception"
	"adn/feed"
	"adn/ledger"
	"adn/logx"
	"adn/monitoring"
	"adn/store"
	"adn/synchronizer"
	"adn/zkverify"
)

const defaultTuningPath = "config/config.ini"

// node bundles the components shared by the sync and serve commands.
type node struct {
	cfg       *config.NodeConfig
	provider  db.DatabaseProvider
	adStore   store.AdStore
	metaStore store.SyncMetaStore
	reqStore  store.RequestStore
	eventBus  *events.EventBus
	ledger    *ledger.Ledger
	feed      *feed.HTTPClient
	sync      *synchronizer.Synchronizer
}

// buildNode wires storage, ledger and synchronizer from the config file.
func buildNode(configPath string) *node {
	cfg, err := config.LoadNodeConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Store.Type != store.MemoryStoreType {
		if err := os.MkdirAll(cfg.Store.Directory, 0755); err != nil {
			log.Fatalf("Failed to create store directory %s: %v", cfg.Store.Directory, err)
		}
	}
	provider, err := store.NewProvider(&cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	adStore, err := store.NewGenericAdStore(provider)
	if err != nil {
		log.Fatalf("Failed to create ad store: %v", err)
	}
	metaStore := store.NewGenericSyncMetaStore(provider)
	reqStore, err := store.NewGenericRequestStore(provider)
	if err != nil {
		log.Fatalf("Failed to create request store: %v", err)
	}

	verifier := zkverify.NewGroth16Verifier(cfg.VerifyingKey)
	if verifier == nil {
		log.Fatalf("Failed to load verifying key from %s", cfg.VerifyingKey)
	}

	eventBus := events.NewEventBus()
	ld := ledger.NewLedger(adStore, verifier, eventBus)
	feedClient := feed.NewHTTPClient(cfg.Feed.URL)

	syncCfg := synchronizer.Config{
		GenesisSlot:      cfg.Feed.GenesisSlot,
		FeedAddress:      cfg.Feed.ToAddress,
		VerifyBlobHashes: cfg.Feed.VerifyBlobHashes,
	}
	if tuning, err := config.LoadSynchronizerConfig(defaultTuningPath); err == nil {
		syncCfg.PollInterval = time.Duration(tuning.PollIntervalMs) * time.Millisecond
		syncCfg.SlotThrottle = time.Duration(tuning.SlotThrottleMs) * time.Millisecond
	}

	sync, err := synchronizer.NewSynchronizer(syncCfg, feedClient, ld, metaStore, eventBus)
	if err != nil {
		log.Fatalf("Failed to create synchronizer: %v", err)
	}

	return &node{
		cfg:       cfg,
		provider:  provider,
		adStore:   adStore,
		metaStore: metaStore,
		reqStore:  reqStore,
		eventBus:  eventBus,
		ledger:    ld,
		feed:      feedClient,
		sync:      sync,
	}
}

// startMetrics exposes the prometheus registry when an address is configured.
func (n *node) startMetrics() {
	monitoring.InitMetrics()
	if n.cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	monitoring.RegisterMetrics(mux)
	exception.SafeGo("metrics-server", func() {
		if err := http.ListenAndServe(n.cfg.MetricsAddr, mux); err != nil {
			logx.Error("CMD", "Metrics server stopped:", err)
		}
	})
}
