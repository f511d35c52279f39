package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Router builds the API router with the global middleware stack.
func Router(h *Handler, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(log))
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Post("/{id}/status", h.UpdateEventStatus)
		r.Get("/{id}/form", h.GetForm)
		r.Put("/{id}/draft", h.SaveDraft)
		r.Delete("/{id}/draft", h.DiscardDraft)
		r.Post("/{id}/register", h.Register)
		r.Get("/{id}/registrations", h.ListRegistrations)
		r.Post("/{id}/checkin", h.CheckIn)
	})

	r.Route("/registrations/{id}", func(r chi.Router) {
		r.Post("/approve", h.ApproveRegistration)
		r.Post("/reject", h.RejectRegistration)
		r.Post("/cancel", h.CancelRegistration)
		r.Get("/ticket", h.GetTicket)
	})

	r.Route("/blocks", func(r chi.Router) {
		r.Post("/", h.CreateBlock)
		r.Get("/{id}/slots", h.GetSlots)
		r.Post("/{id}/bookings", h.CreateBooking)
	})
	r.Post("/bookings/{id}/cancel", h.CancelBooking)

	return r
}
