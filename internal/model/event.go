package model

import "time"

type EventStatus string

const (
	EventStatusOpen   EventStatus = "open"
	EventStatusClosed EventStatus = "closed"
)

func (s EventStatus) String() string {
	return string(s)
}

func (s EventStatus) Valid() bool {
	return s == EventStatusOpen || s == EventStatusClosed
}

// Venue is a place where events happen. The id usually comes from the
// provider; venues first seen without an id get a locally generated one and
// are matched by name afterwards.
type Venue struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

// Event is the DB entity persisted in the events table.
type Event struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	EventTime *time.Time  `db:"event_time"`
	Status    EventStatus `db:"status"`
	VenueID   *string     `db:"venue_id"` // nullable
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}
