package model

import "time"

// SyncRun is one attempt of the provider sync engine. The row is committed
// before the merge transaction starts so the attempt is on record even when
// the merge rolls back. finished_at stays NULL for runs killed mid-flight;
// such runs contribute no cursor to window selection.
type SyncRun struct {
	ID          int64      `db:"id"`
	StartedAt   time.Time  `db:"started_at"`
	FinishedAt  *time.Time `db:"finished_at"`
	FullSync    bool       `db:"full_sync"`
	ChangedFrom *time.Time `db:"changed_from"`
	ChangedTo   *time.Time `db:"changed_to"`
	Added       int        `db:"added"`
	Updated     int        `db:"updated"`
	Summary     string     `db:"summary"`
}
