package model

import "time"

// Delivery is one relayed outbox message as recorded in the ClickHouse audit
// table by the auditor worker.
type Delivery struct {
	MessageID   string    `db:"message_id" json:"message_id"`
	Topic       string    `db:"topic" json:"topic"`
	Payload     string    `db:"payload" json:"payload"`
	DeliveredAt time.Time `db:"delivered_at" json:"delivered_at"`
}
