// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/ElazAzel/inkmax-sub002/internal/service"
	"github.com/go-chi/chi/v5"
)

// Identity headers. Authentication happens upstream; these carry its result.
const (
	HeaderOperatorID = "X-Operator-ID"
	HeaderVisitorID  = "X-Visitor-ID"
)

// Handler holds all HTTP handlers for the reservation and ticketing API.
type Handler struct {
	events        *service.EventService
	registrations *service.RegistrationService
	checkin       *service.CheckInProcessor
	bookings      *service.BookingService
	log           *slog.Logger
}

// New constructs a Handler.
func New(
	events *service.EventService,
	registrations *service.RegistrationService,
	checkin *service.CheckInProcessor,
	bookings *service.BookingService,
	log *slog.Logger,
) *Handler {
	return &Handler{
		events:        events,
		registrations: registrations,
		checkin:       checkin,
		bookings:      bookings,
		log:           log,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Code: code})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func operatorID(r *http.Request) string { return r.Header.Get(HeaderOperatorID) }
func visitorID(r *http.Request) string  { return r.Header.Get(HeaderVisitorID) }

// writeServiceError maps the error taxonomy onto HTTP statuses. Each kind keeps its own
// code so clients can tell a full event from a generic failure.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
			Error: verr.Error(),
			Code:  "validation_error",
			Field: verr.Field,
		})
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, model.ErrConfiguration):
		writeError(w, http.StatusBadRequest, "configuration_error", err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, model.ErrAuthorization):
		writeError(w, http.StatusForbidden, "authorization_error", err.Error())
	case errors.Is(err, model.ErrDuplicateRegistration):
		writeError(w, http.StatusConflict, "duplicate_registration", err.Error())
	case errors.Is(err, model.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, "capacity_exceeded", err.Error())
	case errors.Is(err, model.ErrRegistrationClosed):
		writeError(w, http.StatusConflict, "registration_closed", err.Error())
	case errors.Is(err, model.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, model.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, service.ErrTicketCodeExhausted):
		h.log.ErrorContext(r.Context(), "ticket code space exhausted", slog.String("path", r.URL.Path))
		writeError(w, http.StatusServiceUnavailable, "ticket_unavailable", "could not issue a ticket, try again")
	default:
		h.log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func badBody(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body: "+err.Error())
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, err)
		return
	}

	event, err := h.events.CreateEvent(r.Context(), operatorID(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
// Returns the operator's events, newest first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListEvents(r.Context(), operatorID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
// The response carries confirmed_count, is_full and is_registration_closed as of this read.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	view, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateEventStatus handles POST /events/{id}/status
func (h *Handler) UpdateEventStatus(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, err)
		return
	}
	view, err := h.events.UpdateStatus(r.Context(), operatorID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetForm handles GET /events/{id}/form
func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.events.Form(r.Context(), chi.URLParam(r, "id"), visitorID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// SaveDraft handles PUT /events/{id}/draft
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var req model.SaveDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, err)
		return
	}
	if err := h.events.SaveDraft(r.Context(), chi.URLParam(r, "id"), visitorID(r), req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DiscardDraft handles DELETE /events/{id}/draft
func (h *Handler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.events.DiscardDraft(r.Context(), chi.URLParam(r, "id"), visitorID(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
