package handlers

import (
	"net/http"

	"github.com/thevalentinedev/altreach/internal/config"
	"github.com/thevalentinedev/altreach/internal/metrics"
)

// NewRouter wires the handler's endpoints into a ServeMux. The command
// API lives on / and /v1, health on /health, and the Prometheus
// endpoint on /metrics when enabled.
func NewRouter(h *Handler, cfg *config.Config) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/v1" {
			h.HandleNotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			h.HandleMethodNotAllowed(w, r)
			return
		}
		h.HandleAPI(w, r)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			h.HandleMethodNotAllowed(w, r)
			return
		}
		h.HandleStats(w, r)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			h.HandleMethodNotAllowed(w, r)
			return
		}
		h.HandleHealth(w, r)
	})

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", metrics.Handler())
	}

	return mux
}
