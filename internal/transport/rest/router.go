package rest

import (
	"net/http"

	"calzados-be/internal/logger"
	"calzados-be/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// NewRouter wires the HTTP surface. Auth is optional everywhere: guests
// check out by order code alone, a bearer token only attaches ownership.
func NewRouter(h *Handler, jwtSecret []byte) http.Handler {
	r := chi.NewRouter()

	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.Auth(jwtSecret))
	r.Use(middleware.RateLimit)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/", h.StartCheckout)
		r.Post("/{code}/contact", h.SubmitContact)
		r.Post("/{code}/shipping", h.SubmitShipping)
		r.Post("/{code}/billing", h.SubmitBilling)
		r.Post("/{code}/payment", h.SelectPayment)

		r.Get("/stripe/return", h.StripeReturn)
		r.Get("/stripe/cancel", h.StripeCancel)
		r.Post("/stripe/webhook", h.StripeWebhook)
	})

	r.Get("/orders/{code}", h.GetOrder)

	r.Post("/admin/sweep", h.Sweep)

	return r
}
