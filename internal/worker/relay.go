package worker

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/eventcat/eventcat/internal/metrics"
	"github.com/eventcat/eventcat/internal/model"
	"github.com/eventcat/eventcat/internal/repository"
)

// Sink delivers one outbox message downstream. A failure is observed, never
// raised past the relay: the message stays unsent and is retried on a later
// cycle.
type Sink interface {
	Send(ctx context.Context, topic, key string, payload []byte) error
}

// Relay drains the outbox: each iteration claims a batch of unsent messages
// inside one transaction (skip-locked, so instances can run side by side),
// delivers them, marks delivered ones sent, and commits. Delivery failures
// are per-message and non-fatal; no backoff is applied here since sink
// outages degrade to "no progress" and retries are cheap.
type Relay struct {
	Outbox repository.OutboxRepository
	Sink   Sink
	Log    *zap.Logger

	BatchSize    int           // claimed per iteration
	PollInterval time.Duration // fixed sleep between iterations
}

func NewRelay(outbox repository.OutboxRepository, sink Sink, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}

	return &Relay{
		Outbox:       outbox,
		Sink:         sink,
		Log:          log,
		BatchSize:    100,
		PollInterval: time.Second,
	}
}

// Run blocks until ctx is cancelled. Stopping mid-batch loses no committed
// work: the open transaction either commits or rolls back whole.
func (r *Relay) Run(ctx context.Context) error {
	if r.BatchSize <= 0 {
		r.BatchSize = 100
	}
	if r.PollInterval <= 0 {
		r.PollInterval = time.Second
	}

	r.Log.Info("outbox relay starting",
		zap.Int("batch_size", r.BatchSize),
		zap.Duration("poll_interval", r.PollInterval),
	)

	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	for {
		if err := r.ProcessBatch(ctx); err != nil {
			r.Log.Warn("outbox batch failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			r.Log.Info("outbox relay shutting down")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessBatch runs one claim-deliver-mark cycle in a single transaction.
func (r *Relay) ProcessBatch(ctx context.Context) error {
	return r.Outbox.WithTx(ctx, func(tx *sqlx.Tx) error {
		msgs, err := r.Outbox.ClaimUnsent(ctx, tx, r.BatchSize)
		if err != nil {
			return err
		}

		for _, msg := range msgs {
			if err := r.deliver(ctx, tx, msg); err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *Relay) deliver(ctx context.Context, tx *sqlx.Tx, msg model.OutboxMessage) error {
	if err := r.Sink.Send(ctx, msg.Topic, msg.ID, msg.Payload); err != nil {
		// left unsent, retried next cycle
		metrics.OutboxDeliveries.WithLabelValues("failed").Inc()
		r.Log.Warn("delivery failed, message stays unsent",
			zap.String("id", msg.ID),
			zap.String("topic", msg.Topic),
			zap.Error(err),
		)
		return nil
	}

	if err := r.Outbox.MarkSent(ctx, tx, msg.ID, time.Now().UTC()); err != nil {
		return err
	}
	metrics.OutboxDeliveries.WithLabelValues("sent").Inc()

	return nil
}
