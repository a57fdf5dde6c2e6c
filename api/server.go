/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard

ROUTE GROUPS:
  /api/loyalty/transactions           Manual/explicit earn entries
  /api/loyalty/bookings/complete      Booking-completion accrual
  /api/loyalty/guests/*               Guest summary, ledger, redeem, reconcile
  /api/loyalty/redemption-requests/*  Manual redemption workflow
  /api/loyalty/tiers                  Tier table (display)
  /api/health                         Liveness

SECURITY NOTE:
  Authentication/session handling is owned by the surrounding platform and
  applied in front of this service.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all loyalty routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/loyalty", func(r chi.Router) {
			r.Post("/transactions", h.CreateTransaction)
			r.Post("/bookings/complete", h.BookingCompleted)
			r.Get("/tiers", h.ListTiers)

			r.Route("/guests/{id}", func(r chi.Router) {
				r.Get("/summary", h.GetSummary)
				r.Get("/transactions", h.GetTransactions)
				r.Post("/signup-bonus", h.SignupBonus)
				r.Post("/redeem", h.Redeem)
				r.Post("/reconcile", h.Reconcile)
			})

			r.Route("/redemption-requests", func(r chi.Router) {
				r.Post("/", h.CreateRedemptionRequest)
				r.Get("/", h.ListRedemptionRequests)
				r.Post("/{id}/approve", h.ApproveRequest)
				r.Post("/{id}/reject", h.RejectRequest)
			})
		})
	})

	return r
}
