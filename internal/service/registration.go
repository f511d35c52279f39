package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ElazAzel/inkmax-sub002/internal/formschema"
	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/ElazAzel/inkmax-sub002/internal/repository"
	"github.com/google/uuid"
)

// RegistrationResult is the outcome of a successful submission.
type RegistrationResult struct {
	Registration *model.Registration `json:"registration"`
	Ticket       *model.Ticket       `json:"ticket,omitempty"`
	// TicketPending is set when the registration is confirmed but its ticket was not
	// visible after the wait.
	TicketPending bool `json:"ticket_pending"`
}

// TicketLookup is the ticket state of a registration.
type TicketLookup struct {
	Ticket  *model.Ticket `json:"ticket,omitempty"`
	Pending bool          `json:"pending"`
}

// RegistrationService runs the registration commit path and the owner's moderation actions.
type RegistrationService struct {
	events        EventStore
	registrations RegistrationStore
	gate          *CapacityGate
	issuer        *TicketIssuer
	drafts        DraftCache
	notify        *Dispatcher
	log           *slog.Logger
	now           func() time.Time
}

// NewRegistrationService wires a RegistrationService. drafts and notify may be nil.
func NewRegistrationService(
	events EventStore,
	registrations RegistrationStore,
	gate *CapacityGate,
	issuer *TicketIssuer,
	drafts DraftCache,
	notify *Dispatcher,
	log *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		events:        events,
		registrations: registrations,
		gate:          gate,
		issuer:        issuer,
		drafts:        drafts,
		notify:        notify,
		log:           log,
		now:           time.Now,
	}
}

// Register validates a submission against the event's form, admits it through the gate
// and commits the registration, with its ticket when no approval is required.
//
// Form validation runs before any write; a ValidationError leaves the store untouched.
func (s *RegistrationService) Register(ctx context.Context, eventID, visitorID string, req model.RegisterRequest) (*RegistrationResult, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, fmt.Errorf("%w: event id is required", model.ErrConfiguration)
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	schema, err := formschema.Parse(event.FormSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: event form: %v", model.ErrConfiguration, err)
	}
	email := NormalizeEmail(req.AttendeeEmail)
	if err := formschema.Validate(schema, email, req.Answers); err != nil {
		return nil, err
	}

	// Fresh read for the commit-time decision.
	event, err = s.gate.Admit(ctx, eventID, email)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	reg := &model.Registration{
		ID:            uuid.New().String(),
		EventID:       event.ID,
		OwnerID:       event.OwnerID,
		AttendeeName:  strings.TrimSpace(req.AttendeeName),
		AttendeeEmail: email,
		AttendeePhone: strings.TrimSpace(req.AttendeePhone),
		Answers:       req.Answers,
		Status:        model.RegistrationConfirmed,
		PaymentStatus: model.PaymentNotRequired,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if event.RequiresApproval {
		reg.Status = model.RegistrationPending
	}
	if event.RequiresPayment {
		reg.PaymentStatus = model.PaymentPending
	}

	if err := s.commit(ctx, reg); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "registration created",
		slog.String("event_id", event.ID),
		slog.String("registration_id", reg.ID),
		slog.String("status", string(reg.Status)),
	)

	if s.drafts != nil && strings.TrimSpace(visitorID) != "" {
		if err := s.drafts.Discard(ctx, eventID, visitorID); err != nil {
			s.log.WarnContext(ctx, "discard draft", slog.String("event_id", eventID), slog.Any("error", err))
		}
	}
	s.notify.Go(ctx, "registration_created", func(ctx context.Context, n Notifier) error {
		return n.RegistrationCreated(ctx, event, reg)
	})

	result := &RegistrationResult{Registration: reg}
	if reg.Status != model.RegistrationConfirmed {
		return result, nil
	}

	ticket, ok, err := s.issuer.Await(ctx, reg.ID)
	if err != nil {
		return nil, err
	}
	result.Ticket = ticket
	result.TicketPending = !ok
	if ok {
		s.notify.Go(ctx, "registration_confirmed", func(ctx context.Context, n Notifier) error {
			return n.RegistrationConfirmed(ctx, event, reg, ticket)
		})
	}
	return result, nil
}

// commit writes reg, and a fresh ticket when it is confirmed, in one store transaction.
// A ticket code taken between the existence check and the insert costs one more attempt.
func (s *RegistrationService) commit(ctx context.Context, reg *model.Registration) error {
	for attempt := 0; attempt < s.issuer.Attempts(); attempt++ {
		var ticket *model.Ticket
		if reg.Status == model.RegistrationConfirmed {
			t, err := s.issuer.NewTicket(ctx, reg)
			if err != nil {
				return err
			}
			ticket = t
		}
		err := s.registrations.Create(ctx, reg, ticket)
		if ticket != nil && repository.IsUniqueViolation(err, repository.ConstraintTicketCode) {
			continue
		}
		return s.gate.CommitError(err)
	}
	return ErrTicketCodeExhausted
}

// Approve confirms a pending registration and issues its ticket.
func (s *RegistrationService) Approve(ctx context.Context, operatorID, registrationID string) (*RegistrationResult, error) {
	reg, event, err := s.owned(ctx, operatorID, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.Status != model.RegistrationPending {
		return nil, fmt.Errorf("%w: registration is %s", model.ErrInvalidTransition, reg.Status)
	}

	var ticket *model.Ticket
	for attempt := 0; ; attempt++ {
		if attempt == s.issuer.Attempts() {
			return nil, ErrTicketCodeExhausted
		}
		ticket, err = s.issuer.NewTicket(ctx, reg)
		if err != nil {
			return nil, err
		}
		err = s.registrations.Confirm(ctx, reg.ID, ticket, s.now().UTC())
		if repository.IsUniqueViolation(err, repository.ConstraintTicketCode) {
			continue
		}
		break
	}
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrStatusConflict):
		return nil, fmt.Errorf("%w: registration is no longer pending", model.ErrInvalidTransition)
	default:
		return nil, s.gate.CommitError(err)
	}

	reg, err = s.registrations.GetByID(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("reload registration: %w", err)
	}
	s.log.InfoContext(ctx, "registration approved", slog.String("registration_id", reg.ID))
	s.notify.Go(ctx, "registration_confirmed", func(ctx context.Context, n Notifier) error {
		return n.RegistrationConfirmed(ctx, event, reg, ticket)
	})
	return &RegistrationResult{Registration: reg, Ticket: ticket}, nil
}

// Reject cancels a registration that is still awaiting approval. Rejecting an already
// cancelled registration is a no-op.
func (s *RegistrationService) Reject(ctx context.Context, operatorID, registrationID string) (*model.Registration, error) {
	reg, _, err := s.owned(ctx, operatorID, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.Status == model.RegistrationConfirmed {
		return nil, fmt.Errorf("%w: confirmed registrations are cancelled, not rejected", model.ErrInvalidTransition)
	}
	return s.cancel(ctx, registrationID)
}

// Cancel cancels a registration in any state, releasing its seat and ticket. Repeated
// calls are no-ops.
func (s *RegistrationService) Cancel(ctx context.Context, operatorID, registrationID string) (*model.Registration, error) {
	if _, _, err := s.owned(ctx, operatorID, registrationID); err != nil {
		return nil, err
	}
	return s.cancel(ctx, registrationID)
}

func (s *RegistrationService) cancel(ctx context.Context, registrationID string) (*model.Registration, error) {
	changed, err := s.registrations.Cancel(ctx, registrationID, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("cancel registration: %w", err)
	}
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("reload registration: %w", err)
	}
	if changed {
		s.log.InfoContext(ctx, "registration cancelled", slog.String("registration_id", reg.ID))
		if event, err := s.events.GetByID(ctx, reg.EventID); err == nil {
			s.notify.Go(ctx, "registration_cancelled", func(ctx context.Context, n Notifier) error {
				return n.RegistrationCancelled(ctx, event, reg)
			})
		}
	}
	return reg, nil
}

// ListRegistrations returns an event's registrations to its owner.
func (s *RegistrationService) ListRegistrations(ctx context.Context, operatorID, eventID string) ([]model.Registration, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.OwnerID != operatorID {
		return nil, model.ErrAuthorization
	}
	regs, err := s.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// Ticket looks up the ticket of a registration, waiting once if it is not yet visible.
func (s *RegistrationService) Ticket(ctx context.Context, registrationID string) (*TicketLookup, error) {
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	switch reg.Status {
	case model.RegistrationPending:
		return &TicketLookup{Pending: true}, nil
	case model.RegistrationCancelled:
		// A cancelled registration never gains a ticket later.
		t, ok, err := s.issuer.Lookup(ctx, reg.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.ErrTicketNotFound
		}
		return &TicketLookup{Ticket: t}, nil
	}
	t, ok, err := s.issuer.Await(ctx, reg.ID)
	if err != nil {
		return nil, err
	}
	return &TicketLookup{Ticket: t, Pending: !ok}, nil
}

func (s *RegistrationService) owned(ctx context.Context, operatorID, registrationID string) (*model.Registration, *model.Event, error) {
	if operatorID == "" {
		return nil, nil, model.ErrAuthorization
	}
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, model.ErrRegistrationNotFound
		}
		return nil, nil, fmt.Errorf("get registration: %w", err)
	}
	if reg.OwnerID != operatorID {
		return nil, nil, model.ErrAuthorization
	}
	event, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, nil, fmt.Errorf("get event: %w", err)
	}
	return reg, event, nil
}
