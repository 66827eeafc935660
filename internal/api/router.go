/**
 * @description
 * This file sets up the HTTP router for the payment-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies middleware for logging, panic recovery, timeouts and CORS (the
 * mobile client and the consent-flow browser both originate cross-origin
 * requests).
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

// PaymentRoutes creates and returns the router for the payment service.
func PaymentRoutes(h *PaymentHandlers) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/health", h.HealthHandler)

	// Consent-flow browser redirect target; must stay outside /api.
	r.Get("/payment/complete", h.AuthorizationCallbackHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/server/info", h.ServerInfoHandler)
		r.Get("/wallet/{address}", h.WalletHandler)

		r.Route("/payment", func(r chi.Router) {
			r.Post("/incoming", h.IncomingPaymentHandler)
			r.Post("/quote", h.QuoteHandler)
			r.Post("/send", h.SendHandler)
			r.Post("/complete", h.CompleteHandler)
		})

		r.Post("/qr/generate", h.GenerateQRHandler)
	})

	return r
}
