package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventcat/eventcat/internal/config"
	"github.com/eventcat/eventcat/internal/db"
	"github.com/eventcat/eventcat/internal/logger"
	"github.com/eventcat/eventcat/internal/provider"
	"github.com/eventcat/eventcat/internal/repository"
	"github.com/eventcat/eventcat/internal/syncer"
)

var (
	syncAll         bool
	syncDate        string
	syncProviderURL string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize events from the events provider",
	Long:  "Ad-hoc reconciliation run. Use --all for a full sync or --date to sync from a date; otherwise the last completed run's cursor is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)

		if syncProviderURL != "" {
			cfg.Provider.BaseURL = syncProviderURL
		}
		if err := cfg.Provider.Validate(); err != nil {
			return err
		}

		opts := syncer.Options{Full: syncAll}
		if syncDate != "" {
			since, ok := provider.ParseTime(syncDate)
			if !ok {
				return fmt.Errorf("cannot parse --date %q, use YYYY-MM-DD or ISO datetime", syncDate)
			}
			opts.Since = &since
		}

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		client := provider.New(provider.Config{
			BaseURL:     cfg.Provider.BaseURL,
			Timeout:     cfg.Provider.Timeout,
			MaxRetries:  cfg.Provider.MaxRetries,
			BackoffUnit: cfg.Provider.BackoffUnit,
		}, logger.Log)

		engine := syncer.NewEngine(
			syncer.ClientSource(client),
			repository.NewEventStore(mysqlDB),
			repository.NewSyncRunRepository(mysqlDB),
			logger.Log,
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		start := time.Now()
		run, err := engine.Run(ctx, opts)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		fmt.Printf(">> Sync finished in %s: added=%d updated=%d\n",
			time.Since(start).Round(time.Millisecond), run.Added, run.Updated)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "full sync: fetch all events from provider")
	syncCmd.Flags().StringVar(&syncDate, "date", "", "start changed_at date (YYYY-MM-DD or ISO) to sync from (inclusive)")
	syncCmd.Flags().StringVar(&syncProviderURL, "provider-url", "", "override provider URL for this run")
}
