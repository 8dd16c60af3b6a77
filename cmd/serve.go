package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"adn/config"
	"adn/feed"
	"adn/jsonrpc"
	"adn/logx"
	"adn/pipeline"
	"adn/prover"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the synchronizer with the rpc surface and request pipeline",
	Run: func(cmd *cobra.Command, args []string) {
		runServe(serveConfigPath)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "config/adn.yml", "Path to the node config file")
}

func runServe(configPath string) {
	n := buildNode(configPath)
	defer n.adStore.MustClose()

	n.startMetrics()

	broadcaster, err := feed.NewHTTPBroadcaster(n.cfg.Feed.URL, n.cfg.Feed.ToAddress)
	if err != nil {
		log.Fatalf("Failed to create broadcaster: %v", err)
	}
	httpProver := prover.NewHTTPProver(n.cfg.Prover.URL)

	pipeCfg := pipeline.Config{}
	if tuning, err := config.LoadPipelineConfig(defaultTuningPath); err == nil {
		pipeCfg.QueueSize = tuning.QueueSize
		pipeCfg.Workers = tuning.Workers
		pipeCfg.InclusionTimeout = time.Duration(tuning.InclusionTimeoutMs) * time.Millisecond
	}
	pipe := pipeline.NewPipeline(pipeCfg, n.reqStore, n.ledger, httpProver, broadcaster, n.eventBus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n.sync.Start(ctx)
	pipe.Start(ctx)

	rpc := jsonrpc.NewServer(n.cfg.RPCAddr, n.ledger, pipe)
	if corsCfg, ok := jsonrpc.CORSFromEnv(); ok {
		rpc.SetCORSConfig(corsCfg)
	}
	rpc.Start()
	logx.Info("CMD", "RPC listening on "+n.cfg.RPCAddr)

	<-ctx.Done()
	logx.Info("CMD", "Shutting down")
}
