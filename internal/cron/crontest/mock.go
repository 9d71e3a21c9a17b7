// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/llamacord/internal/cron"
)

// MockJob is a configurable test double for cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu       sync.Mutex
	calls    int
	lastCall time.Time
}

// Compile-time interface check.
var _ cron.Job = (*MockJob)(nil)

// Name implements cron.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements cron.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements cron.Job and increments the call counter.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.lastCall = time.Now()
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastCall returns the time of the last Run call.
func (m *MockJob) LastCall() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCall
}

// MockHealthChecker is a test double for cron.HealthChecker.
type MockHealthChecker struct {
	CheckFunc func(ctx context.Context) error
	Calls     atomic.Int32
}

// HealthCheck implements cron.HealthChecker.
func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	m.Calls.Add(1)
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx)
	}
	return nil
}

// MockGauge records the last value passed to SetBackendUp.
type MockGauge struct {
	up  atomic.Bool
	set atomic.Int32
}

// SetBackendUp implements cron.BackendGauge.
func (m *MockGauge) SetBackendUp(up bool) {
	m.up.Store(up)
	m.set.Add(1)
}

// Up returns the last recorded value.
func (m *MockGauge) Up() bool { return m.up.Load() }

// Sets returns how many times SetBackendUp was called.
func (m *MockGauge) Sets() int { return int(m.set.Load()) }
