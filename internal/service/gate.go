package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/ElazAzel/inkmax-sub002/internal/repository"
	"golang.org/x/text/unicode/norm"
)

// IsFull reports whether confirmed registrations have reached capacity.
// An event without a capacity is never full.
func IsFull(e *model.Event) bool {
	return e.Capacity != nil && e.ConfirmedCount >= *e.Capacity
}

// IsRegistrationClosed reports whether an event currently refuses registrations.
func IsRegistrationClosed(e *model.Event, now time.Time) bool {
	return e.Status != model.EventPublished || IsFull(e) || deadlinePassed(e, now)
}

func deadlinePassed(e *model.Event, now time.Time) bool {
	return e.RegistrationClosesAt != nil && !now.Before(*e.RegistrationClosesAt)
}

// NormalizeEmail is the form under which attendee emails are compared and stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}

// GateStatus is a freshly computed admission view of an event. The confirmed count it is
// derived from is the event's own ConfirmedCount.
type GateStatus struct {
	Remaining            int  `json:"remaining"`
	IsFull               bool `json:"is_full"`
	IsRegistrationClosed bool `json:"is_registration_closed"`
}

// CapacityGate decides whether a registration may be committed.
//
// It reads the event afresh on every call, so the render-time status and the commit-time
// check never share a snapshot. Its checks are advisory for concurrent submissions: the
// store's capacity lock and email uniqueness constraint are authoritative, and their
// rejections are mapped back into the same outcomes by CommitError.
type CapacityGate struct {
	events        EventStore
	registrations RegistrationStore
	now           func() time.Time
}

// NewCapacityGate constructs a CapacityGate.
func NewCapacityGate(events EventStore, registrations RegistrationStore, now func() time.Time) *CapacityGate {
	if now == nil {
		now = time.Now
	}
	return &CapacityGate{events: events, registrations: registrations, now: now}
}

// Status evaluates the event for display.
func (g *CapacityGate) Status(ctx context.Context, eventID string) (*model.Event, GateStatus, error) {
	e, err := g.load(ctx, eventID)
	if err != nil {
		return nil, GateStatus{}, err
	}
	return e, g.statusOf(e), nil
}

func (g *CapacityGate) statusOf(e *model.Event) GateStatus {
	return GateStatus{
		Remaining:            e.Remaining(),
		IsFull:               IsFull(e),
		IsRegistrationClosed: IsRegistrationClosed(e, g.now()),
	}
}

// Admit runs the commit-time checks for a normalised attendee email and returns the
// event as read for this decision.
func (g *CapacityGate) Admit(ctx context.Context, eventID, email string) (*model.Event, error) {
	e, err := g.load(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if e.Status != model.EventPublished || deadlinePassed(e, g.now()) {
		return nil, model.ErrRegistrationClosed
	}

	// An attendee already on the list hears that first, even when the event has filled up.
	if !e.AllowDuplicateEmails {
		_, err := g.registrations.FindActiveByEmail(ctx, eventID, email)
		switch {
		case err == nil:
			return nil, model.ErrDuplicateRegistration
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("check duplicate: %w", err)
		}
	}

	if IsFull(e) {
		return nil, model.ErrCapacityExceeded
	}
	return e, nil
}

// CommitError maps a store rejection of a registration write into the gate's outcomes.
// A uniqueness violation on the attendee email is the same DuplicateRegistration the
// pre-check reports.
func (g *CapacityGate) CommitError(err error) error {
	switch {
	case err == nil:
		return nil
	case repository.IsUniqueViolation(err, repository.ConstraintRegistrationEmail):
		return model.ErrDuplicateRegistration
	case errors.Is(err, repository.ErrEventFull):
		return model.ErrCapacityExceeded
	case errors.Is(err, repository.ErrNotFound):
		return model.ErrEventNotFound
	}
	return fmt.Errorf("commit registration: %w", err)
}

func (g *CapacityGate) load(ctx context.Context, eventID string) (*model.Event, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, fmt.Errorf("%w: event id is required", model.ErrConfiguration)
	}
	e, err := g.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}
