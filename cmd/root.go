package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eventcat/eventcat/cmd/worker"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:   "eventcat",
		Short: "Event catalog with provider sync and outbox relay",
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(worker.NewWorkerCmd())
}
