package domain

import "time"

// DeliveryLog records one notification delivery attempt.
type DeliveryLog struct {
	ID          int64     `db:"id"          json:"id"`
	Destination string    `db:"destination" json:"destination"`
	EventType   EventType `db:"event_type"  json:"event_type"`
	Attempt     int       `db:"attempt"     json:"attempt"`
	Success     bool      `db:"success"     json:"success"`
	StatusCode  int       `db:"status_code" json:"status_code,omitempty"`
	Error       *string   `db:"error"       json:"error,omitempty"`
	CreatedAt   time.Time `db:"created_at"  json:"created_at"`
}
