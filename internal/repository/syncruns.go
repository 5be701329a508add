package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/eventcat/eventcat/internal/model"
)

// SyncRunRepository is the append-only run history of the sync engine.
type SyncRunRepository interface {
	// Create persists the run row immediately (own transaction) so the
	// attempt survives even when the merge rolls back. Sets run.ID and
	// run.StartedAt.
	Create(ctx context.Context, run *model.SyncRun) error

	// Finish stamps the run exactly once, on success or failure. Finished
	// runs are never mutated again.
	Finish(ctx context.Context, id int64, finishedAt time.Time, added, updated int, changedTo *time.Time, summary string) error

	// LastChangedTo returns the cursor of the most recent completed run
	// with a non-null changed_to. Unfinished runs (finished_at NULL)
	// provide no cursor.
	LastChangedTo(ctx context.Context) (*time.Time, error)
}

type SyncRunRepositoryImpl struct {
	db *sqlx.DB
}

func NewSyncRunRepository(db *sqlx.DB) *SyncRunRepositoryImpl {
	return &SyncRunRepositoryImpl{db: db}
}

var _ SyncRunRepository = (*SyncRunRepositoryImpl)(nil)

func (r *SyncRunRepositoryImpl) Create(ctx context.Context, run *model.SyncRun) error {
	const q = `
		INSERT INTO sync_runs (started_at, full_sync, changed_from, added, updated, summary)
		VALUES (?, ?, ?, 0, 0, '')
	`
	run.StartedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, q, run.StartedAt, run.FullSync, run.ChangedFrom)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id

	return nil
}

func (r *SyncRunRepositoryImpl) Finish(ctx context.Context, id int64, finishedAt time.Time, added, updated int, changedTo *time.Time, summary string) error {
	const q = `
		UPDATE sync_runs
		   SET finished_at = ?, added = ?, updated = ?, changed_to = ?, summary = ?
		 WHERE id = ? AND finished_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, q, finishedAt, added, updated, changedTo, summary, id)

	return err
}

func (r *SyncRunRepositoryImpl) LastChangedTo(ctx context.Context) (*time.Time, error) {
	var cursor time.Time
	err := r.db.GetContext(ctx, &cursor, `
		SELECT changed_to
		  FROM sync_runs
		 WHERE finished_at IS NOT NULL AND changed_to IS NOT NULL
		 ORDER BY finished_at DESC
		 LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &cursor, nil
}
