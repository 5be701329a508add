package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/eventcat/eventcat/internal/model"
)

// VenueOutcome tags how a venue reference was resolved.
type VenueOutcome string

const (
	VenueFoundByID   VenueOutcome = "found_by_id"
	VenueFoundByName VenueOutcome = "found_by_name"
	VenueCreated     VenueOutcome = "created"
)

// VenueResolution is the result of a get-or-create lookup.
type VenueResolution struct {
	Venue   model.Venue
	Outcome VenueOutcome
}

// EventWithVenue is the API read shape for catalog listings.
type EventWithVenue struct {
	model.Event
	VenueName *string `db:"venue_name"`
}

// EventStore is the reconciliation target for the sync engine plus the
// catalog read path.
type EventStore interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error

	// ResolveVenue gets or creates a venue. A well-formed UUID id is
	// resolved by id (correcting name drift in place); a malformed or
	// missing id falls back to get-or-create by name.
	ResolveVenue(ctx context.Context, tx *sqlx.Tx, id, name string) (VenueResolution, error)

	GetEventByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.Event, error)
	GetEventByNaturalKey(ctx context.Context, tx *sqlx.Tx, name string, eventTime time.Time) (*model.Event, error)
	InsertEvent(ctx context.Context, tx *sqlx.Tx, e model.Event) error
	UpdateEvent(ctx context.Context, tx *sqlx.Tx, e model.Event) error

	ListOpenEvents(ctx context.Context, search string, limit, offset int) ([]EventWithVenue, error)
}

type EventStoreImpl struct {
	db *sqlx.DB
}

func NewEventStore(db *sqlx.DB) *EventStoreImpl {
	return &EventStoreImpl{db: db}
}

var _ EventStore = (*EventStoreImpl)(nil)

func (r *EventStoreImpl) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
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

func (r *EventStoreImpl) ResolveVenue(ctx context.Context, tx *sqlx.Tx, id, name string) (VenueResolution, error) {
	if _, err := uuid.Parse(id); err == nil {
		return r.resolveVenueByID(ctx, tx, id, name)
	}

	return r.resolveVenueByName(ctx, tx, name)
}

func (r *EventStoreImpl) resolveVenueByID(ctx context.Context, tx *sqlx.Tx, id, name string) (VenueResolution, error) {
	var v model.Venue
	err := tx.GetContext(ctx, &v, `SELECT id, name FROM venues WHERE id = ? LIMIT 1`, id)
	switch {
	case err == nil:
		if name != "" && v.Name != name {
			if _, err := tx.ExecContext(ctx, `UPDATE venues SET name = ? WHERE id = ?`, name, id); err != nil {
				return VenueResolution{}, err
			}
			v.Name = name
		}
		return VenueResolution{Venue: v, Outcome: VenueFoundByID}, nil

	case errors.Is(err, sql.ErrNoRows):
		v = model.Venue{ID: id, Name: name}
		if _, err := tx.ExecContext(ctx, `INSERT INTO venues (id, name) VALUES (?, ?)`, v.ID, v.Name); err != nil {
			return VenueResolution{}, err
		}
		return VenueResolution{Venue: v, Outcome: VenueCreated}, nil

	default:
		return VenueResolution{}, err
	}
}

func (r *EventStoreImpl) resolveVenueByName(ctx context.Context, tx *sqlx.Tx, name string) (VenueResolution, error) {
	var v model.Venue
	err := tx.GetContext(ctx, &v, `SELECT id, name FROM venues WHERE name = ? LIMIT 1`, name)
	switch {
	case err == nil:
		return VenueResolution{Venue: v, Outcome: VenueFoundByName}, nil

	case errors.Is(err, sql.ErrNoRows):
		v = model.Venue{ID: uuid.NewString(), Name: name}
		if _, err := tx.ExecContext(ctx, `INSERT INTO venues (id, name) VALUES (?, ?)`, v.ID, v.Name); err != nil {
			return VenueResolution{}, err
		}
		return VenueResolution{Venue: v, Outcome: VenueCreated}, nil

	default:
		return VenueResolution{}, err
	}
}

const eventCols = `id, name, event_time, status, venue_id, created_at, updated_at`

func (r *EventStoreImpl) GetEventByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.Event, error) {
	var e model.Event
	err := tx.GetContext(ctx, &e, `SELECT `+eventCols+` FROM events WHERE id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &e, nil
}

func (r *EventStoreImpl) GetEventByNaturalKey(ctx context.Context, tx *sqlx.Tx, name string, eventTime time.Time) (*model.Event, error) {
	var e model.Event
	err := tx.GetContext(ctx, &e, `SELECT `+eventCols+` FROM events WHERE name = ? AND event_time = ? LIMIT 1`, name, eventTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &e, nil
}

func (r *EventStoreImpl) InsertEvent(ctx context.Context, tx *sqlx.Tx, e model.Event) error {
	const q = `
		INSERT INTO events (id, name, event_time, status, venue_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NOW(6), NOW(6))
	`
	_, err := tx.ExecContext(ctx, q, e.ID, e.Name, e.EventTime, e.Status, e.VenueID)

	return err
}

func (r *EventStoreImpl) UpdateEvent(ctx context.Context, tx *sqlx.Tx, e model.Event) error {
	const q = `
		UPDATE events
		   SET name = ?, event_time = ?, status = ?, venue_id = ?, updated_at = NOW(6)
		 WHERE id = ?
	`
	_, err := tx.ExecContext(ctx, q, e.Name, e.EventTime, e.Status, e.VenueID, e.ID)

	return err
}

// ListOpenEvents returns open events ordered by event_time, optionally
// filtered by a name substring.
func (r *EventStoreImpl) ListOpenEvents(ctx context.Context, search string, limit, offset int) ([]EventWithVenue, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT e.id, e.name, e.event_time, e.status, e.venue_id, e.created_at, e.updated_at,
		       v.name AS venue_name
		  FROM events e
		  LEFT JOIN venues v ON v.id = e.venue_id
		 WHERE e.status = 'open'
	`
	args := []any{}

	if search != "" {
		q += " AND e.name LIKE ?"
		args = append(args, "%"+search+"%")
	}

	q += " ORDER BY e.event_time LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []EventWithVenue
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}

	return rows, nil
}
