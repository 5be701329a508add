package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/eventcat/eventcat/internal/metrics"
	"github.com/eventcat/eventcat/internal/model"
	"github.com/eventcat/eventcat/internal/provider"
	"github.com/eventcat/eventcat/internal/repository"
)

// Options selects the window of one sync run.
type Options struct {
	Full        bool       // ignore history, sync everything
	Since       *time.Time // explicit lower bound, overrides history
	ProviderURL string     // optional start-URL override for this run
}

// RecordIter is the pull-based record stream the engine consumes.
type RecordIter interface {
	Next() bool
	Record() json.RawMessage
	Err() error
}

// RecordSource produces record streams; satisfied by the provider client
// through ClientSource.
type RecordSource interface {
	Records(ctx context.Context, startURL string, params url.Values) RecordIter
}

type clientSource struct {
	c *provider.Client
}

func (s clientSource) Records(ctx context.Context, startURL string, params url.Values) RecordIter {
	return s.c.Records(ctx, startURL, params)
}

// ClientSource adapts a provider client to the engine's source seam.
func ClientSource(c *provider.Client) RecordSource {
	return clientSource{c: c}
}

// Engine reconciles remote provider data into the local event/venue store.
// One run: determine-window -> persist run row -> fetch-and-merge in a
// single transaction -> finalize success or failure. Runs must not overlap;
// scheduling a single instance at a time is the operator's job.
type Engine struct {
	source RecordSource
	store  repository.EventStore
	runs   repository.SyncRunRepository
	log    *zap.Logger
}

func NewEngine(source RecordSource, store repository.EventStore, runs repository.SyncRunRepository, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{source: source, store: store, runs: runs, log: log}
}

// Run executes one sync attempt. The returned SyncRun reflects what was
// persisted to run history; on failure the store is untouched, the run row
// carries the failure summary, and the error is surfaced as fatal for this
// invocation.
func (e *Engine) Run(ctx context.Context, opts Options) (*model.SyncRun, error) {
	from, err := e.determineWindow(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("determine window: %w", err)
	}

	run := &model.SyncRun{FullSync: opts.Full, ChangedFrom: from}
	if err := e.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}

	e.log.Info("sync starting",
		zap.Int64("run_id", run.ID),
		zap.Bool("full", opts.Full),
		zap.Timep("changed_from", from),
	)

	params := url.Values{}
	if from != nil {
		params.Set("changed_at", from.Format("2006-01-02"))
	}

	st := &mergeState{}
	mergeErr := e.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		it := e.source.Records(ctx, opts.ProviderURL, params)
		for it.Next() {
			if err := e.mergeRecord(ctx, tx, it.Record(), st); err != nil {
				return err
			}
		}
		return it.Err()
	})

	finishedAt := time.Now().UTC()
	run.FinishedAt = &finishedAt

	if mergeErr != nil {
		// The merge tx rolled back; the run row outlives it with the
		// failure on record.
		run.Summary = fmt.Sprintf("failed: %v", mergeErr)
		if err := e.runs.Finish(ctx, run.ID, finishedAt, 0, 0, nil, run.Summary); err != nil {
			e.log.Error("recording sync failure failed", zap.Int64("run_id", run.ID), zap.Error(err))
		}
		e.log.Error("sync failed", zap.Int64("run_id", run.ID), zap.Error(mergeErr))

		return run, mergeErr
	}

	run.Added = st.added
	run.Updated = st.updated
	run.ChangedTo = st.maxChanged
	run.Summary = fmt.Sprintf("processed_items=%d", st.processed)
	if err := e.runs.Finish(ctx, run.ID, finishedAt, st.added, st.updated, st.maxChanged, run.Summary); err != nil {
		return run, fmt.Errorf("record run finish: %w", err)
	}

	e.log.Info("sync finished",
		zap.Int64("run_id", run.ID),
		zap.Int("added", st.added),
		zap.Int("updated", st.updated),
		zap.Int("skipped", st.skipped),
		zap.Timep("changed_to", st.maxChanged),
	)

	return run, nil
}

// determineWindow picks the lower bound: full -> none, explicit since -> as
// given, otherwise the last completed run's cursor (none -> full sync).
func (e *Engine) determineWindow(ctx context.Context, opts Options) (*time.Time, error) {
	if opts.Full {
		return nil, nil
	}
	if opts.Since != nil {
		return opts.Since, nil
	}

	return e.runs.LastChangedTo(ctx)
}

type mergeState struct {
	added      int
	updated    int
	skipped    int
	processed  int
	maxChanged *time.Time
}

func (st *mergeState) observeChanged(ts *time.Time) {
	if ts == nil {
		return
	}
	if st.maxChanged == nil || ts.After(*st.maxChanged) {
		st.maxChanged = ts
	}
}

func (e *Engine) mergeRecord(ctx context.Context, tx *sqlx.Tx, raw json.RawMessage, st *mergeState) error {
	rec := provider.Normalize(raw)
	st.observeChanged(provider.ChangedAt(rec.Raw))

	var venueID *string
	if rec.Venue != nil {
		res, err := e.store.ResolveVenue(ctx, tx, rec.Venue.ID, rec.Venue.Name)
		if err != nil {
			return fmt.Errorf("resolve venue: %w", err)
		}
		venueID = &res.Venue.ID
	}

	// Identity: provider UUID first, else the (name, event_time) natural
	// key. A non-UUID provider id is treated as absent.
	id := rec.ID
	if id != "" {
		if _, err := uuid.Parse(id); err != nil {
			id = ""
		}
	}

	var existing *model.Event
	var err error
	switch {
	case id != "":
		existing, err = e.store.GetEventByID(ctx, tx, id)
	case rec.Name != "" && rec.EventTime != nil:
		existing, err = e.store.GetEventByNaturalKey(ctx, tx, rec.Name, *rec.EventTime)
	default:
		st.skipped++
		metrics.SyncRecords.WithLabelValues("skipped").Inc()
		e.log.Warn("skipping malformed record: no id and no (name, event_time)",
			zap.ByteString("payload", raw),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup event: %w", err)
	}

	st.processed++
	status := model.EventStatus(rec.Status)

	if existing == nil {
		if id == "" {
			id = uuid.NewString()
		}
		ev := model.Event{
			ID:        id,
			Name:      rec.Name,
			EventTime: rec.EventTime,
			Status:    status,
			VenueID:   venueID,
		}
		if err := e.store.InsertEvent(ctx, tx, ev); err != nil {
			return fmt.Errorf("insert event %s: %w", id, err)
		}
		st.added++
		metrics.SyncRecords.WithLabelValues("added").Inc()
		return nil
	}

	changed := false
	if existing.Name != rec.Name {
		existing.Name = rec.Name
		changed = true
	}
	if !timesEqual(existing.EventTime, rec.EventTime) {
		existing.EventTime = rec.EventTime
		changed = true
	}
	if existing.Status != status {
		existing.Status = status
		changed = true
	}
	if !stringsEqual(existing.VenueID, venueID) {
		existing.VenueID = venueID
		changed = true
	}

	if !changed {
		metrics.SyncRecords.WithLabelValues("unchanged").Inc()
		return nil
	}

	if err := e.store.UpdateEvent(ctx, tx, *existing); err != nil {
		return fmt.Errorf("update event %s: %w", existing.ID, err)
	}
	st.updated++
	metrics.SyncRecords.WithLabelValues("updated").Inc()

	return nil
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.Equal(*b)
}

func stringsEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}
