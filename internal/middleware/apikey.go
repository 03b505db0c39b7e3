package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/thevalentinedev/altreach/internal/config"
)

// APIKey returns middleware that validates API key authentication.
// If API key authentication is disabled in config, requests pass through unchanged.
// Health and metrics endpoints are always allowed without authentication.
func APIKey(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.APIKeyEnabled {
				next.ServeHTTP(w, r)
				return
			}

			// Monitoring and load balancer probes must stay reachable.
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				apiKey = r.URL.Query().Get("api_key")
			}

			// Constant-time comparison to prevent timing attacks.
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(cfg.APIKey)) != 1 {
				writeErrorResponse(w, http.StatusUnauthorized, "Invalid or missing API key", time.Now())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
