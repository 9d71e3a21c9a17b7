package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// BackendHealthService is the AppContext service name of the BackendHealthJob.
const BackendHealthService = "cron.backend_health"

// DefaultProbeTimeout bounds a single backend probe.
const DefaultProbeTimeout = 10 * time.Second

// HealthChecker is the subset of provider.HealthChecker needed by the probe.
// Defined here to keep the cron package free of provider imports.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BackendGauge receives probe results. *metrics.Recorder implements it.
type BackendGauge interface {
	SetBackendUp(up bool)
}

// BackendHealth is the last known state of the inference backend.
type BackendHealth struct {
	// Checked is false until the first probe completes.
	Checked   bool      `json:"checked"`
	Up        bool      `json:"up"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitzero"`
}

// BackendHealthJob probes the inference backend and records the result.
type BackendHealthJob struct {
	Checker      HealthChecker
	Gauge        BackendGauge
	Logger       *slog.Logger
	Timeout      time.Duration // zero = DefaultProbeTimeout
	ScheduleExpr string        // empty = default "*/5 * * * *"

	mu   sync.RWMutex
	last BackendHealth
}

// Compile-time interface check.
var _ Job = (*BackendHealthJob)(nil)

// Name implements Job.
func (j *BackendHealthJob) Name() string {
	return "backend_health"
}

// Schedule implements Job.
func (j *BackendHealthJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run probes the backend once. A failed probe is recorded, not returned,
// so the scheduler does not log it twice.
func (j *BackendHealthJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: backend probe cancelled: %w", ctx.Err())
	}

	timeout := j.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := j.Checker.HealthCheck(probeCtx)
	state := BackendHealth{Checked: true, Up: err == nil, CheckedAt: time.Now()}
	if err != nil {
		state.Error = err.Error()
	}

	j.mu.Lock()
	wasUp := j.last.Up || !j.last.Checked
	j.last = state
	j.mu.Unlock()

	if j.Gauge != nil {
		j.Gauge.SetBackendUp(state.Up)
	}

	switch {
	case err != nil && wasUp:
		j.logger().Warn("cron: inference backend unreachable", "error", err)
	case err == nil && !wasUp:
		j.logger().Info("cron: inference backend recovered")
	}
	return nil
}

// BackendHealth returns the result of the last probe.
func (j *BackendHealthJob) BackendHealth() BackendHealth {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}

func (j *BackendHealthJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
