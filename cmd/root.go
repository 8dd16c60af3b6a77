package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"adn/logx"
)

var rootCmd = &cobra.Command{
	Use:   "adn",
	Short: "Anchored datastore node CLI",
	Long:  "Command line interface for running and managing an anchored datastore node.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
