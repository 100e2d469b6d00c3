package model

import "time"

// EventType represents the type of a lifecycle event.
type EventType string

const (
	EventNewCustomer        EventType = "new_customer"
	EventReturningCustomer  EventType = "returning_customer"
	EventBotResponseSuccess EventType = "bot_response_success"
)

// Event is one append-only audit log entry. Events are never updated
// or deleted.
type Event struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	SessionID  int64     `json:"session_id"`
	Type       EventType `json:"event_type"`
	Timestamp  time.Time `json:"timestamp"`
}

// ValidEventType reports whether t is a known event type.
func ValidEventType(t EventType) bool {
	switch t {
	case EventNewCustomer, EventReturningCustomer, EventBotResponseSuccess:
		return true
	}
	return false
}
