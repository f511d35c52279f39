// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
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

// EventView is an event with its admission status computed at read time.
type EventView struct {
	*model.Event
	GateStatus
}

// FormView is what a visitor needs to render the registration form.
type FormView struct {
	Event  EventView              `json:"event"`
	Fields []formschema.FieldView `json:"fields"`
	Draft  map[string]any         `json:"draft,omitempty"`
}

// EventService orchestrates event-related business operations.
type EventService struct {
	events EventStore
	gate   *CapacityGate
	drafts DraftCache
	log    *slog.Logger
	now    func() time.Time
}

// NewEventService constructs an EventService with its dependencies. drafts may be nil.
func NewEventService(events EventStore, gate *CapacityGate, drafts DraftCache, log *slog.Logger) *EventService {
	return &EventService{events: events, gate: gate, drafts: drafts, log: log, now: time.Now}
}

// CreateEvent validates the request and stores a draft event for ownerID.
func (s *EventService) CreateEvent(ctx context.Context, ownerID string, req model.CreateEventRequest) (*model.Event, error) {
	if ownerID == "" {
		return nil, model.ErrAuthorization
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.EndsAt != nil && req.EndsAt.Before(req.StartsAt) {
		return nil, model.NewValidationError("ends_at", "", "must not be before starts_at")
	}
	if _, err := formschema.Parse(req.FormSchema); err != nil {
		return nil, err
	}

	e := &model.Event{
		ID:                   uuid.New().String(),
		OwnerID:              ownerID,
		PageID:               req.PageID,
		Name:                 req.Name,
		Description:          strings.TrimSpace(req.Description),
		StartsAt:             req.StartsAt.UTC(),
		EndsAt:               req.EndsAt,
		Capacity:             req.Capacity,
		FormSchema:           req.FormSchema,
		Status:               model.EventDraft,
		RegistrationClosesAt: req.RegistrationClosesAt,
		AllowDuplicateEmails: req.AllowDuplicateEmails,
		RequiresApproval:     req.RequiresApproval,
		RequiresPayment:      req.RequiresPayment,
		CreatedAt:            s.now().UTC(),
	}
	if err := s.events.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.log.InfoContext(ctx, "event created", slog.String("event_id", e.ID), slog.String("owner_id", ownerID))
	return e, nil
}

// ListEvents returns the events of ownerID, newest first.
func (s *EventService) ListEvents(ctx context.Context, ownerID string) ([]model.Event, error) {
	if ownerID == "" {
		return nil, model.ErrAuthorization
	}
	return s.events.List(ctx, ownerID)
}

// GetEvent returns a single event with its current admission status.
func (s *EventService) GetEvent(ctx context.Context, id string) (*EventView, error) {
	e, status, err := s.gate.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	return &EventView{Event: e, GateStatus: status}, nil
}

// UpdateStatus moves an event through draft, published and closed.
func (s *EventService) UpdateStatus(ctx context.Context, ownerID, id string, req model.UpdateEventStatusRequest) (*EventView, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if ownerID == "" || e.OwnerID != ownerID {
		return nil, model.ErrAuthorization
	}
	if !e.Status.CanTransition(req.Status) {
		return nil, fmt.Errorf("%w: event cannot move from %s to %s", model.ErrInvalidTransition, e.Status, req.Status)
	}
	if err := s.events.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, fmt.Errorf("update event status: %w", err)
	}
	s.log.InfoContext(ctx, "event status changed",
		slog.String("event_id", id),
		slog.String("from", string(e.Status)),
		slog.String("to", string(req.Status)),
	)
	return s.GetEvent(ctx, id)
}

// Form returns the render view of an event's registration form, with the visitor's
// saved draft when one is still fresh. Anonymous visitors never see a draft.
func (s *EventService) Form(ctx context.Context, eventID, visitorID string) (*FormView, error) {
	view, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	schema, err := formschema.Parse(view.FormSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: event form: %v", model.ErrConfiguration, err)
	}
	form := &FormView{Event: *view, Fields: formschema.Describe(schema)}
	if s.drafts != nil && strings.TrimSpace(visitorID) != "" {
		answers, ok, err := s.drafts.Load(ctx, eventID, visitorID)
		if err != nil {
			s.log.WarnContext(ctx, "load draft", slog.String("event_id", eventID), slog.Any("error", err))
		} else if ok {
			form.Draft = answers
		}
	}
	return form, nil
}

// SaveDraft stores a visitor's in-progress answers.
func (s *EventService) SaveDraft(ctx context.Context, eventID, visitorID string, req model.SaveDraftRequest) error {
	if err := requireVisitor(visitorID); err != nil {
		return err
	}
	if s.drafts == nil {
		return nil
	}
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return err
	}
	return s.drafts.Save(ctx, eventID, visitorID, req.Answers)
}

// DiscardDraft forgets a visitor's in-progress answers.
func (s *EventService) DiscardDraft(ctx context.Context, eventID, visitorID string) error {
	if err := requireVisitor(visitorID); err != nil {
		return err
	}
	if s.drafts == nil {
		return nil
	}
	return s.drafts.Discard(ctx, eventID, visitorID)
}

func requireVisitor(visitorID string) error {
	if strings.TrimSpace(visitorID) == "" {
		return fmt.Errorf("%w: visitor id is required for drafts", model.ErrConfiguration)
	}
	return nil
}
