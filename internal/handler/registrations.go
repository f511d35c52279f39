package handler

import (
	"net/http"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/go-chi/chi/v5"
)

// Register handles POST /events/{id}/register
// Confirmed registrations come back with their ticket; ticket_pending is set when the
// ticket was not yet visible.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, err)
		return
	}

	res, err := h.registrations.Register(r.Context(), chi.URLParam(r, "id"), visitorID(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// ListRegistrations handles GET /events/{id}/registrations
func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.registrations.ListRegistrations(r.Context(), operatorID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if regs == nil {
		regs = []model.Registration{}
	}

	writeJSON(w, http.StatusOK, regs)
}

// ApproveRegistration handles POST /registrations/{id}/approve
func (h *Handler) ApproveRegistration(w http.ResponseWriter, r *http.Request) {
	res, err := h.registrations.Approve(r.Context(), operatorID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RejectRegistration handles POST /registrations/{id}/reject
func (h *Handler) RejectRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := h.registrations.Reject(r.Context(), operatorID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// CancelRegistration handles POST /registrations/{id}/cancel
func (h *Handler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := h.registrations.Cancel(r.Context(), operatorID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// GetTicket handles GET /registrations/{id}/ticket
// Responds 202 while the ticket is not yet visible or the registration awaits approval.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	lookup, err := h.registrations.Ticket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if lookup.Pending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, lookup)
}

// CheckIn handles POST /events/{id}/checkin
// Every named outcome is a 200; the outcome field carries the verdict.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req model.CheckInRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, err)
		return
	}
	res, err := h.checkin.CheckIn(r.Context(), chi.URLParam(r, "id"), operatorID(r), req.Code)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
