package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/eventcat/eventcat/internal/model"
	"github.com/eventcat/eventcat/internal/util"
)

// OutboxRepository defines persistence for the outbox_messages table.
type OutboxRepository interface {
	// Enqueue appends a message. If tx is nil, it opens/commits an internal
	// transaction; the producer boundary passes its own tx so the message
	// commits or rolls back together with the domain write.
	Enqueue(ctx context.Context, tx *sqlx.Tx, topic string, payload []byte) (string, error)

	// WithTx runs fn inside a single transaction; the relay worker scopes
	// each claim-deliver-mark batch with it.
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error

	// ClaimUnsent locks up to limit unsent messages ordered by creation
	// time, skipping rows already locked by another claimant, so several
	// relay instances can run concurrently without double-sending.
	ClaimUnsent(ctx context.Context, tx *sqlx.Tx, limit int) ([]model.OutboxMessage, error)

	// MarkSent flips sent=false -> true and stamps sent_at. The transition
	// is monotonic: an already-sent row is left untouched.
	MarkSent(ctx context.Context, tx *sqlx.Tx, id string, at time.Time) error
}

// OutboxRepositoryImpl is a sqlx-backed implementation.
type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs an OutboxRepositoryImpl.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)

// WithTx runs fn in a new transaction, rolling back unless fn succeeds.
func (r *OutboxRepositoryImpl) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}

	return t.Commit()
}

func (r *OutboxRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}

	return r.WithTx(ctx, fn)
}

func (r *OutboxRepositoryImpl) Enqueue(ctx context.Context, tx *sqlx.Tx, topic string, payload []byte) (string, error) {
	const q = `
		INSERT INTO outbox_messages (id, topic, payload, created_at, sent)
		VALUES (?, ?, ?, NOW(6), FALSE)
	`
	id := util.New()
	err := r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, id, topic, payload)

		return err
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

func (r *OutboxRepositoryImpl) ClaimUnsent(ctx context.Context, tx *sqlx.Tx, limit int) ([]model.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT id, topic, payload, created_at, sent, sent_at
		  FROM outbox_messages
		 WHERE sent = FALSE
		 ORDER BY created_at
		 LIMIT ?
		 FOR UPDATE SKIP LOCKED
	`
	var msgs []model.OutboxMessage
	if err := tx.SelectContext(ctx, &msgs, q, limit); err != nil {
		return nil, err
	}

	return msgs, nil
}

func (r *OutboxRepositoryImpl) MarkSent(ctx context.Context, tx *sqlx.Tx, id string, at time.Time) error {
	const q = `
		UPDATE outbox_messages
		   SET sent = TRUE, sent_at = ?
		 WHERE id = ? AND sent = FALSE
	`
	_, err := tx.ExecContext(ctx, q, at, id)

	return err
}
