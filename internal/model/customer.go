package model

import "time"

// SessionStatus is the lifecycle status of a session.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionInactive SessionStatus = "inactive"
)

// Session is one bounded period of customer activity tied to a thread.
type Session struct {
	ID           int64         `json:"id"`
	CustomerID   int64         `json:"customer_id"`
	ThreadID     string        `json:"thread_id"`
	StartedAt    time.Time     `json:"started_at"`
	LastActiveAt time.Time     `json:"last_active_at"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	Status       SessionStatus `json:"status"`
}

// Customer is the external customer identity row.
type Customer struct {
	ID     int64   `json:"id"`
	ChatID string  `json:"chat_id"`
	Name   *string `json:"name,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Email  *string `json:"email,omitempty"`

	// Address is the default shipping address for the retail variant.
	Address *string `json:"address,omitempty"`
}
