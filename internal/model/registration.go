package model

import "time"

// Registration is a signup for an event, unique per (event_id, email).
type Registration struct {
	ID               string    `db:"id"` // ULID
	EventID          string    `db:"event_id"`
	FullName         string    `db:"full_name"`
	Email            string    `db:"email"`
	ConfirmationCode string    `db:"confirmation_code"`
	Confirmed        bool      `db:"confirmed"`
	CreatedAt        time.Time `db:"created_at"`
}

// RegistrationEnvelope is the outbox payload published when a registration is
// created. Consumers (e.g. the notification service) deduplicate by ID.
type RegistrationEnvelope struct {
	ID               string `json:"id"` // registration ULID
	EventID          string `json:"event_id"`
	EventName        string `json:"event_name"`
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	ConfirmationCode string `json:"confirmation_code"`
}
