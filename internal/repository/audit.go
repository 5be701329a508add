package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/eventcat/eventcat/internal/model"
)

// DeliveriesRepository records and lists relayed outbox messages in
// ClickHouse (operational audit trail).
type DeliveriesRepository interface {
	InsertBatch(ctx context.Context, rows []model.Delivery) error
	List(ctx context.Context, topic string, limit, offset int) ([]model.Delivery, error)
}

type deliveriesRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewDeliveriesRepository(ch *sqlx.DB) DeliveriesRepository {
	return &deliveriesRepository{ch: ch}
}

func (r *deliveriesRepository) InsertBatch(ctx context.Context, rows []model.Delivery) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO eventcat.deliveries (message_id, topic, payload, delivered_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range rows {
		if _, err := stmt.ExecContext(ctx, d.MessageID, d.Topic, d.Payload, d.DeliveredAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *deliveriesRepository) List(ctx context.Context, topic string, limit, offset int) ([]model.Delivery, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT message_id, topic, payload, delivered_at
		FROM eventcat.deliveries
	`
	args := []any{}

	if topic != "" {
		q += " WHERE topic = ?"
		args = append(args, topic)
	}

	q += " ORDER BY delivered_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.Delivery
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}

	return rows, nil
}
