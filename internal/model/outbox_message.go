package model

import "time"

// OutboxMessage is an outbound event awaiting delivery. Rows are written in
// the same transaction as the domain change they announce and are mutated
// only by the relay worker (sent=false -> true, exactly once).
type OutboxMessage struct {
	ID        string     `db:"id"` // ULID
	Topic     string     `db:"topic"`
	Payload   []byte     `db:"payload"`
	CreatedAt time.Time  `db:"created_at"`
	Sent      bool       `db:"sent"`
	SentAt    *time.Time `db:"sent_at"`
}
