package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/llamacord/internal/cron"
	"github.com/flemzord/llamacord/internal/history"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime   int64               `json:"uptime_seconds"`
	Mode     history.Mode        `json:"history_mode,omitempty"`
	Contexts []history.KeyInfo   `json:"contexts"`
	Backend  *cron.BackendHealth `json:"backend,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:   int64(time.Since(g.startedAt) / time.Second),
			Contexts: []history.KeyInfo{},
		}

		if g.admin != nil {
			resp.Mode = g.admin.Mode()
			if keys, err := g.admin.Contexts(); err == nil && keys != nil {
				resp.Contexts = keys
			}
		}

		if g.backend != nil {
			bh := g.backend.BackendHealth()
			resp.Backend = &bh
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
