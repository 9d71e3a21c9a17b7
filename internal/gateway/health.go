package gateway

import (
	"net/http"

	"github.com/flemzord/llamacord/internal/cron"
)

// Health status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string              `json:"status"`
	Contexts int                 `json:"contexts"`
	Backend  *cron.BackendHealth `json:"backend,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 503 when the last backend probe failed, 200 otherwise.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: StatusOK}

		if g.admin != nil {
			if keys, err := g.admin.Contexts(); err == nil {
				resp.Contexts = len(keys)
			}
		}

		if g.backend != nil {
			bh := g.backend.BackendHealth()
			resp.Backend = &bh
			if bh.Checked && !bh.Up {
				resp.Status = StatusDegraded
			}
		}

		status := http.StatusOK
		if resp.Status == StatusDegraded {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
