package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventcat/eventcat/internal/config"
	"github.com/eventcat/eventcat/internal/db"
	"github.com/eventcat/eventcat/internal/kafka"
	"github.com/eventcat/eventcat/internal/logger"
	"github.com/eventcat/eventcat/internal/repository"
	"github.com/eventcat/eventcat/internal/service/registry"
	"github.com/eventcat/eventcat/internal/worker"
)

var auditorTopic string

var auditorCmd = &cobra.Command{
	Use:   "auditor",
	Short: "Consume relayed messages and record them in ClickHouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)

		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()

		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "eventcat-auditor"
		}

		consumer := kafka.NewConsumerFromConfig(kafka.Config{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          auditorTopic,
			GroupID:        groupID,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		})
		defer consumer.Close()

		auditor := worker.NewAuditor(consumer, repository.NewDeliveriesRepository(chDB), logger.Log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> auditor started topic=%s group=%s", auditorTopic, groupID)

		if err := auditor.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	auditorCmd.Flags().StringVar(&auditorTopic, "topic", registry.TopicRegistrationCreated, "kafka topic to audit")
}
