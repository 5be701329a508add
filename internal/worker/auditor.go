package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eventcat/eventcat/internal/kafka"
	"github.com/eventcat/eventcat/internal/model"
	"github.com/eventcat/eventcat/internal/repository"
)

// Auditor consumes relayed messages from Kafka and records them in the
// ClickHouse delivery-audit table. Offsets are committed only after a batch
// lands, so the audit trail is at-least-once like the relay itself.
type Auditor struct {
	Consumer   *kafka.Consumer
	Deliveries repository.DeliveriesRepository
	Log        *zap.Logger

	BatchSize int
	FlushWait time.Duration
}

func NewAuditor(consumer *kafka.Consumer, deliveries repository.DeliveriesRepository, log *zap.Logger) *Auditor {
	if log == nil {
		log = zap.NewNop()
	}

	return &Auditor{
		Consumer:   consumer,
		Deliveries: deliveries,
		Log:        log,
		BatchSize:  200,
		FlushWait:  time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (a *Auditor) Run(ctx context.Context) error {
	if a.BatchSize <= 0 {
		a.BatchSize = 200
	}
	if a.FlushWait <= 0 {
		a.FlushWait = time.Second
	}

	msgCh := make(chan kafka.Message, a.BatchSize)

	go func() {
		defer close(msgCh)
		for {
			m, err := a.Consumer.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				a.Log.Warn("kafka fetch failed", zap.Error(err))
				time.Sleep(200 * time.Millisecond)
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	tick := time.NewTicker(a.FlushWait)
	defer tick.Stop()

	var buf []kafka.Message

	flush := func() {
		if len(buf) == 0 {
			return
		}

		rows := make([]model.Delivery, 0, len(buf))
		for _, m := range buf {
			rows = append(rows, model.Delivery{
				MessageID:   string(m.Key),
				Topic:       m.Topic,
				Payload:     string(m.Value),
				DeliveredAt: m.Time,
			})
		}

		if err := a.Deliveries.InsertBatch(ctx, rows); err != nil {
			// keep the buffer, offsets stay uncommitted
			a.Log.Warn("audit flush failed, retrying next flush", zap.Error(err))
			return
		}

		if err := a.Consumer.Commit(ctx, buf...); err != nil {
			a.Log.Warn("kafka commit failed", zap.Error(err))
		}

		a.Log.Info("audit flushed", zap.Int("rows", len(rows)))
		buf = buf[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()

		case m, ok := <-msgCh:
			if !ok {
				flush()
				return ctx.Err()
			}
			buf = append(buf, m)
			if len(buf) >= a.BatchSize {
				flush()
			}

		case <-tick.C:
			flush()
		}
	}
}
