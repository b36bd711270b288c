/**
 * @description
 * This file sets up the HTTP router for the booking-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the booking-service routes.
func NewRouter(bookings *BookingHandlers, plans *PlanHandlers, pricing *PricingHandlers, auth AuthConfig, internalKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Operator pricing-rule surface, server-to-server only.
	r.Route("/internal/pricing-rules", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))
		r.Post("/", pricing.CreatePricingRuleHandler)
		r.Get("/", pricing.ListPricingRulesHandler)
		r.Get("/resolve", pricing.ResolvePricingHandler)
		r.Delete("/{ruleID}", pricing.DeactivatePricingRuleHandler)
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(auth))

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", bookings.CreateBookingHandler)
			r.Get("/", bookings.ListBookingsHandler)
			r.Get("/{bookingID}", bookings.GetBookingHandler)
			r.Post("/{bookingID}/payment-intent", bookings.CreatePaymentIntentHandler)
			r.Post("/{bookingID}/authorize", bookings.AuthorizeBookingHandler)
			r.Post("/{bookingID}/confirm", bookings.ConfirmBookingHandler)
			r.Post("/{bookingID}/start", bookings.StartBookingHandler)
			r.Post("/{bookingID}/capture", bookings.CaptureBookingHandler)
			r.Post("/{bookingID}/cancel", bookings.CancelBookingHandler)
			r.Post("/{bookingID}/decline", bookings.DeclineBookingHandler)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Post("/", plans.CreatePlanHandler)
			r.Get("/", plans.ListPlansHandler)
			r.Get("/{planID}", plans.GetPlanHandler)
			r.Post("/{planID}/pause", plans.PausePlanHandler)
			r.Post("/{planID}/resume", plans.ResumePlanHandler)
			r.Post("/{planID}/cancel", plans.CancelPlanHandler)
		})

		r.Get("/credits/{professionalID}", bookings.CreditStatusHandler)
	})

	return r
}
