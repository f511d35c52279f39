package handler

import (
	"net/http"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/go-chi/chi/v5"
)

// CreateBlock handles POST /blocks
func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBlockRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, err)
		return
	}
	block, err := h.bookings.CreateBlock(r.Context(), operatorID(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

// GetSlots handles GET /blocks/{id}/slots?date=YYYY-MM-DD
func (h *Handler) GetSlots(w http.ResponseWriter, r *http.Request) {
	avail, err := h.bookings.Availability(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("date"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, avail)
}

// CreateBooking handles POST /blocks/{id}/bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, err)
		return
	}
	booking, err := h.bookings.Book(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// CancelBooking handles POST /bookings/{id}/cancel
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.Cancel(r.Context(), operatorID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}
