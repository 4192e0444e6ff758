/**
 * @description
 * This file sets up the HTTP router for the payment-relay-service. The
 * webhook route is mounted outside the session-auth group: it receives raw
 * provider traffic authenticated by signature alone. Client-facing routes sit
 * behind CORS and the session-token middleware; leaving the secret unset
 * keeps those routes open for local development.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RelayRoutes creates and returns the router for the relay service.
func RelayRoutes(h *RelayHandlers, wh *WebhookHandler, authJWTSecret string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Payment relay service is healthy"))
	})

	// Provider-facing; authenticated by payload signature, never by session.
	r.Post("/xsolla/webhook", wh.ServeHTTP)

	// Client-facing. The webhook route stays outside this group: Xsolla
	// calls it server to server, so CORS does not apply there.
	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*", "http://*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
		if authJWTSecret != "" {
			r.Use(SessionAuthMiddleware(authJWTSecret))
		}

		r.Post("/xsolla/token", h.CreateTokenHandler)
		r.Get("/xsolla/invoice/{invoiceID}", h.InvoiceHandler)
		r.Get("/xsolla/orders/{externalUserID}", h.RecentOrdersHandler)
	})

	return r
}
