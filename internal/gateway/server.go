package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public: no auth required.
	r.Get("/health", g.handleHealth())
	if g.metrics != nil && *g.config.Metrics {
		r.Method(http.MethodGet, "/metrics", g.metrics.Handler())
	}

	// Admin endpoints: auth required. Not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.logger))
			r.Get("/status", g.handleStatus())
			r.Route("/api/history", func(r chi.Router) {
				r.Get("/", g.handleListContexts())
				r.Get("/{key}", g.handleGetContext())
				r.Delete("/{key}", g.handleDeleteContext())
			})
		})
	}

	return r
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
