package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"adn/logx"
)

var syncConfigPath string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the feed synchronizer",
	Run: func(cmd *cobra.Command, args []string) {
		runSync(syncConfigPath)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVarP(&syncConfigPath, "config", "c", "config/adn.yml", "Path to the node config file")
}

func runSync(configPath string) {
	n := buildNode(configPath)
	defer n.adStore.MustClose()

	n.startMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n.sync.Start(ctx)
	<-ctx.Done()
	logx.Info("CMD", "Shutting down")
}
