package service

import (
	"context"
	"time"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
)

// EventStore persists events.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context, ownerID string) ([]model.Event, error)
	UpdateStatus(ctx context.Context, id string, status model.EventStatus) error
}

// RegistrationStore persists registrations. Create and Confirm write the ticket, when
// given, in the same transaction as the registration.
type RegistrationStore interface {
	Create(ctx context.Context, reg *model.Registration, ticket *model.Ticket) error
	FindActiveByEmail(ctx context.Context, eventID, email string) (*model.Registration, error)
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
	Confirm(ctx context.Context, id string, ticket *model.Ticket, at time.Time) error
	Cancel(ctx context.Context, id string, at time.Time) (bool, error)
}

// TicketStore persists tickets.
type TicketStore interface {
	CodeExists(ctx context.Context, code string) (bool, error)
	GetByRegistration(ctx context.Context, registrationID string) (*model.Ticket, error)
	GetByCode(ctx context.Context, code string) (*model.TicketWithRegistration, error)
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
}

// BlockStore persists booking blocks.
type BlockStore interface {
	Create(ctx context.Context, b *model.BookingBlock) error
	GetByID(ctx context.Context, id string) (*model.BookingBlock, error)
}

// BookingStore persists slot bookings.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListActiveByDate(ctx context.Context, blockID, date string) ([]model.Booking, error)
	Cancel(ctx context.Context, id string) (bool, error)
}

// DraftCache keeps unsubmitted form answers.
type DraftCache interface {
	Load(ctx context.Context, eventID, visitorID string) (map[string]any, bool, error)
	Save(ctx context.Context, eventID, visitorID string, answers map[string]any) error
	Discard(ctx context.Context, eventID, visitorID string) error
}

// Notifier delivers owner and attendee notifications. Delivery is best effort.
type Notifier interface {
	RegistrationCreated(ctx context.Context, e *model.Event, r *model.Registration) error
	RegistrationConfirmed(ctx context.Context, e *model.Event, r *model.Registration, t *model.Ticket) error
	RegistrationCancelled(ctx context.Context, e *model.Event, r *model.Registration) error
	BookingCreated(ctx context.Context, block *model.BookingBlock, b *model.Booking) error
}
