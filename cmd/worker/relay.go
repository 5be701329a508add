package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/eventcat/eventcat/internal/config"
	"github.com/eventcat/eventcat/internal/db"
	"github.com/eventcat/eventcat/internal/kafka"
	"github.com/eventcat/eventcat/internal/logger"
	"github.com/eventcat/eventcat/internal/metrics"
	"github.com/eventcat/eventcat/internal/repository"
	"github.com/eventcat/eventcat/internal/worker"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the outbox relay (claims unsent messages and publishes them)",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)

		metrics.MustRegister(prometheus.DefaultRegisterer)

		// 2) DB connection (MySQL)
		dbx, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer dbx.Close()

		// 3) delivery sink (Kafka)
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()

		relay := worker.NewRelay(repository.NewOutboxRepository(dbx), producer, logger.Log)
		if cfg.Relay.BatchSize > 0 {
			relay.BatchSize = cfg.Relay.BatchSize
		}
		if cfg.Relay.PollInterval > 0 {
			relay.PollInterval = cfg.Relay.PollInterval
		}

		// 4) graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> relay started batchSize=%d pollInterval=%s",
			relay.BatchSize, relay.PollInterval)

		if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}
