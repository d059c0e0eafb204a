package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows browser clients from origins. Ledger clients send the actor
// and idempotency headers, and read the export headers on downloads.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", idempotencyHeader, actorIDHeader, requestIDHeader},
		ExposedHeaders: []string{
			requestIDHeader,
			replayedHeader,
			"Retry-After",
			"Content-Disposition",
			"X-Export-Rows",
			"X-Export-Truncated",
		},
		MaxAge: 600,
	})
}
