// Package model defines the core domain types for the reservation and ticketing engine.
package model

import (
	"encoding/json"
	"time"
)

// EventStatus is the owner-driven lifecycle state of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventClosed    EventStatus = "closed"
)

// Valid reports whether s is one of the known statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventPublished, EventClosed:
		return true
	}
	return false
}

// CanTransition reports whether an owner may move an event from s to next.
// Closed is terminal.
func (s EventStatus) CanTransition(next EventStatus) bool {
	if !next.Valid() || s == EventClosed {
		return false
	}
	return s != next
}

// Event represents a ticketed event published on an owner's page.
type Event struct {
	ID                   string          `json:"id"`
	OwnerID              string          `json:"owner_id"`
	PageID               string          `json:"page_id"`
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	StartsAt             time.Time       `json:"starts_at"`
	EndsAt               *time.Time      `json:"ends_at,omitempty"`
	Capacity             *int            `json:"capacity"` // nil means unlimited
	ConfirmedCount       int             `json:"confirmed_count"`
	FormSchema           json.RawMessage `json:"form_schema"`
	Status               EventStatus     `json:"status"`
	RegistrationClosesAt *time.Time      `json:"registration_closes_at,omitempty"`
	AllowDuplicateEmails bool            `json:"allow_duplicate_emails"`
	RequiresApproval     bool            `json:"requires_approval"`
	RequiresPayment      bool            `json:"requires_payment"`
	CreatedAt            time.Time       `json:"created_at"`
}

// Remaining returns the number of available seats, or -1 when unlimited.
func (e *Event) Remaining() int {
	if e.Capacity == nil {
		return -1
	}
	if n := *e.Capacity - e.ConfirmedCount; n > 0 {
		return n
	}
	return 0
}

// RegistrationStatus is the state of a visitor's registration.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// PaymentStatus tracks payment for a registration. Processing itself happens elsewhere.
type PaymentStatus string

const (
	PaymentNotRequired PaymentStatus = "not_required"
	PaymentPending     PaymentStatus = "pending"
	PaymentPaid        PaymentStatus = "paid"
)

// Registration represents a visitor's registration for an event.
type Registration struct {
	ID            string             `json:"id"`
	EventID       string             `json:"event_id"`
	OwnerID       string             `json:"owner_id"`
	AttendeeName  string             `json:"attendee_name"`
	AttendeeEmail string             `json:"attendee_email"`
	AttendeePhone string             `json:"attendee_phone,omitempty"`
	Answers       map[string]any     `json:"answers"`
	Status        RegistrationStatus `json:"status"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	TicketValid     TicketStatus = "valid"
	TicketUsed      TicketStatus = "used"
	TicketCancelled TicketStatus = "cancelled"
)

// CanTransition reports whether a ticket may move from s to next.
// Only valid tickets move; used and cancelled are terminal.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	return s == TicketValid && (next == TicketUsed || next == TicketCancelled)
}

// Ticket is the proof of a confirmed registration.
type Ticket struct {
	ID             string       `json:"id"`
	RegistrationID string       `json:"registration_id"`
	EventID        string       `json:"event_id"`
	Code           string       `json:"code"`
	Status         TicketStatus `json:"status"`
	CheckedInAt    *time.Time   `json:"checked_in_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// TicketWithRegistration joins a ticket to the registration it belongs to.
// Check-in needs both to decide the outcome.
type TicketWithRegistration struct {
	Ticket       Ticket
	Registration Registration
}

// BookingStatus is the state of a slot booking.
type BookingStatus string

const (
	BookingActive    BookingStatus = "active"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a committed reservation of one slot instance on one date.
type Booking struct {
	ID          string        `json:"id"`
	BlockID     string        `json:"block_id"`
	OwnerID     string        `json:"owner_id"`
	Date        string        `json:"date"`       // YYYY-MM-DD
	StartTime   string        `json:"start_time"` // HH:MM
	EndTime     string        `json:"end_time"`   // HH:MM
	ClientName  string        `json:"client_name"`
	ClientEmail string        `json:"client_email"`
	ClientPhone string        `json:"client_phone,omitempty"`
	Status      BookingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// SlotTemplate is a recurring (weekday) or one-off (specific date) slot definition.
// Exactly one of DayOfWeek and Date is set.
type SlotTemplate struct {
	DayOfWeek *time.Weekday `json:"day_of_week,omitempty" validate:"omitempty,min=0,max=6"`
	Date      string        `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	StartTime string        `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string        `json:"end_time" validate:"required,datetime=15:04"`
}

// ExplicitSlot is a slot listed directly on a block. When any are configured they are the
// only source of slots for every date.
type ExplicitSlot struct {
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
}

// SlotDefaults parameterises default slot generation.
type SlotDefaults struct {
	StartHour   int `json:"start_hour" validate:"min=0,max=24"`
	EndHour     int `json:"end_hour" validate:"min=0,max=24"`
	DurationMin int `json:"duration_min" validate:"min=0,max=1440"`
}

// BookingBlock is an appointment-booking block on an owner's page.
type BookingBlock struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"owner_id"`
	Title     string         `json:"title"`
	Slots     []ExplicitSlot `json:"slots,omitempty"`
	Templates []SlotTemplate `json:"templates,omitempty"`
	Defaults  SlotDefaults   `json:"defaults"`
	CreatedAt time.Time      `json:"created_at"`
}

// SlotInstance is a concrete bookable range on one date. It is always derived, never stored.
type SlotInstance struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
}

// ─── Requests ────────────────────────────────────────────────────────────────

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	PageID               string          `json:"page_id" validate:"required"`
	Name                 string          `json:"name" validate:"required,max=200"`
	Description          string          `json:"description" validate:"max=5000"`
	StartsAt             time.Time       `json:"starts_at" validate:"required"`
	EndsAt               *time.Time      `json:"ends_at"`
	Capacity             *int            `json:"capacity" validate:"omitempty,min=1,max=100000"`
	FormSchema           json.RawMessage `json:"form_schema"`
	RegistrationClosesAt *time.Time      `json:"registration_closes_at"`
	AllowDuplicateEmails bool            `json:"allow_duplicate_emails"`
	RequiresApproval     bool            `json:"requires_approval"`
	RequiresPayment      bool            `json:"requires_payment"`
}

// UpdateEventStatusRequest moves an event through its lifecycle.
type UpdateEventStatusRequest struct {
	Status EventStatus `json:"status" validate:"required,oneof=draft published closed"`
}

// RegisterRequest is the payload a visitor submits from the registration form.
type RegisterRequest struct {
	AttendeeName  string         `json:"attendee_name"`
	AttendeeEmail string         `json:"attendee_email"`
	AttendeePhone string         `json:"attendee_phone"`
	Answers       map[string]any `json:"answers"`
}

// SaveDraftRequest stores in-progress answers for the registration form.
type SaveDraftRequest struct {
	Answers map[string]any `json:"answers"`
}

// CheckInRequest carries a camera-decoded or typed ticket code.
type CheckInRequest struct {
	Code string `json:"code"`
}

// CreateBlockRequest configures an appointment-booking block.
type CreateBlockRequest struct {
	Title     string         `json:"title" validate:"required,max=200"`
	Slots     []ExplicitSlot `json:"slots" validate:"dive"`
	Templates []SlotTemplate `json:"templates" validate:"dive"`
	Defaults  SlotDefaults   `json:"defaults"`
}

// CreateBookingRequest is a visitor's appointment request.
type CreateBookingRequest struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time" validate:"required,datetime=15:04"`
	ClientName  string `json:"client_name" validate:"required,max=200"`
	ClientEmail string `json:"client_email" validate:"required,email"`
	ClientPhone string `json:"client_phone" validate:"max=50"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}
