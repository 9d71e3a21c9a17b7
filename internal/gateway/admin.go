package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/llamacord/internal/history"
	"github.com/flemzord/llamacord/internal/provider"
)

// contextJSON is a serializable conversation context.
type contextJSON struct {
	Key   history.Key     `json:"key"`
	Turns []provider.Turn `json:"turns"`
}

// handleListContexts returns every live conversation context with its size.
func (g *Gateway) handleListContexts() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.admin == nil {
			writeJSON(w, http.StatusOK, []history.KeyInfo{})
			return
		}

		keys, err := g.admin.Contexts()
		if err != nil {
			g.logger.Error("gateway: listing contexts failed", "error", err)
			http.Error(w, "listing contexts failed", http.StatusInternalServerError)
			return
		}
		if keys == nil {
			keys = []history.KeyInfo{}
		}
		writeJSON(w, http.StatusOK, keys)
	}
}

// handleGetContext returns the turns stored under {key}.
func (g *Gateway) handleGetContext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := history.Key(chi.URLParam(r, "key"))
		if key == "" {
			http.Error(w, "missing context key", http.StatusBadRequest)
			return
		}
		if g.admin == nil {
			http.Error(w, "context not found", http.StatusNotFound)
			return
		}

		turns, err := g.admin.Snapshot(key)
		if err != nil {
			g.logger.Error("gateway: reading context failed", "key", string(key), "error", err)
			http.Error(w, "reading context failed", http.StatusInternalServerError)
			return
		}
		if len(turns) == 0 {
			http.Error(w, "context not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, contextJSON{Key: key, Turns: turns})
	}
}

// handleDeleteContext clears the context stored under {key}. Clearing an
// absent context succeeds.
func (g *Gateway) handleDeleteContext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := history.Key(chi.URLParam(r, "key"))
		if key == "" {
			http.Error(w, "missing context key", http.StatusBadRequest)
			return
		}
		if g.admin == nil {
			http.Error(w, "history unavailable", http.StatusServiceUnavailable)
			return
		}

		if err := g.admin.Reset(key); err != nil {
			g.logger.Error("gateway: clearing context failed", "key", string(key), "error", err)
			http.Error(w, "clearing context failed", http.StatusInternalServerError)
			return
		}
		g.logger.Info("gateway: context cleared", "key", string(key))
		w.WriteHeader(http.StatusNoContent)
	}
}
