// Package repository defines the injected persistence ports and an
// in-memory implementation of each.
//
// Every lookup returns (nil, nil) when no row matched: callers treat
// that as a business no-result and answer the customer accordingly.
// A non-nil error always means infrastructure failure and aborts the
// turn.
package repository

import (
	"context"
	"time"

	"github.com/anvie-labs/chat-orchestrator/internal/model"
)

// CustomerRepo manages customer identity rows.
type CustomerRepo interface {
	FindByChatID(ctx context.Context, chatID string) (*model.Customer, error)
	Create(ctx context.Context, chatID string) (*model.Customer, error)

	// UpdateContact overwrites the non-nil contact fields.
	UpdateContact(ctx context.Context, customerID int64, name, phone, email, address *string) (*model.Customer, error)

	// Delete removes the customer and cascades to sessions, events and
	// checkpoints. Returns false when no such customer exists.
	Delete(ctx context.Context, chatID string) (bool, error)
}

// SessionRepo manages session rows.
type SessionRepo interface {
	ActiveByCustomer(ctx context.Context, customerID int64) (*model.Session, error)
	Create(ctx context.Context, customerID int64, threadID string, now time.Time) (*model.Session, error)

	// End marks the session inactive with ended_at=now.
	End(ctx context.Context, sessionID int64, now time.Time) (*model.Session, error)

	// Touch updates last_active_at, sliding the expiry window.
	Touch(ctx context.Context, sessionID int64, now time.Time) (*model.Session, error)
}

// EventRepo is the append-only audit log.
type EventRepo interface {
	Append(ctx context.Context, event model.Event) (*model.Event, error)
}

// StateStore persists conversation-state blobs keyed by thread id.
// It backs the durable tier of the checkpoint store.
type StateStore interface {
	Load(ctx context.Context, threadID string) ([]byte, error)
	Save(ctx context.Context, threadID string, blob []byte) error

	// Delete is a no-op when the key is absent.
	Delete(ctx context.Context, threadID string) error
}

// ProductRepo serves the retail catalog.
type ProductRepo interface {
	SearchByKeyword(ctx context.Context, keyword string, limit int) ([]model.SeenProduct, error)
}

// ServiceRepo serves the spa service catalog.
type ServiceRepo interface {
	All(ctx context.Context) ([]model.Service, error)
}

// OrderDraft is the payload for creating an order row.
type OrderDraft struct {
	CustomerID      int64
	ShippingFee     int64
	ReceiverName    string
	ReceiverPhone   string
	ReceiverAddress string
	Status          string
}

// ItemDraft is the payload for one order item row.
type ItemDraft struct {
	ProductDesID int64
	Quantity     int64
	Price        int64
	Subtotal     int64
}

// ReceiverPatch overwrites the non-nil receiver fields of an order.
type ReceiverPatch struct {
	Name    *string
	Phone   *string
	Address *string
}

// OrderRepo manages orders and their items.
type OrderRepo interface {
	Create(ctx context.Context, draft OrderDraft) (*model.Order, error)
	AddItems(ctx context.Context, orderID int64, items []ItemDraft) ([]model.OrderItem, error)

	// Details re-reads the canonical order including its items.
	Details(ctx context.Context, orderID int64) (*model.Order, error)

	// Editable lists the customer's most recent orders that are still
	// in a modifiable status.
	Editable(ctx context.Context, customerID int64, limit int) ([]model.Order, error)

	UpdateReceiver(ctx context.Context, orderID int64, patch ReceiverPatch) (*model.Order, error)
	Cancel(ctx context.Context, orderID int64) (*model.Order, error)
}

// BookingDraft is the payload for creating an appointment row.
type BookingDraft struct {
	CustomerID  int64
	ServiceID   int64
	ServiceName string
	RoomID      int64
	StaffID     int64
	StaffName   string
	BookingDate string
	StartTime   string
	EndTime     string
}

// AppointmentRepo manages spa appointments.
type AppointmentRepo interface {
	// Overlapping returns booked or completed appointments on the given
	// date whose time range intersects [start-buffer, end+buffer).
	Overlapping(ctx context.Context, bookingDate, startTime, endTime string, buffer time.Duration) ([]model.Booking, error)

	Create(ctx context.Context, draft BookingDraft) (*model.Booking, error)
	Details(ctx context.Context, bookingID int64) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID int64) (*model.Booking, error)
}

// RoomRepo lists bookable rooms.
type RoomRepo interface {
	All(ctx context.Context) ([]model.Room, error)
}

// StaffRepo lists assignable staff.
type StaffRepo interface {
	All(ctx context.Context) ([]model.Staff, error)
}
