// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/flemzord/llamacord/internal/provider"
)

// MockProvider is a configurable test double for provider.Provider.
// Set the Func fields to control behavior. Unset funcs panic on call,
// except ModelNameFunc which defaults to "mock".
// All methods are safe for concurrent use.
type MockProvider struct {
	CompleteFunc    func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
	ModelNameFunc   func() string
	EnsureModelFunc func(ctx context.Context) error
	HealthCheckFunc func(ctx context.Context) error

	mu            sync.Mutex
	CompleteCalls int
	EnsureCalls   int
	HealthCalls   int
	Requests      []provider.CompletionRequest
}

// Complete delegates to CompleteFunc and records the request.
func (m *MockProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	m.mu.Lock()
	m.CompleteCalls++
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	return m.CompleteFunc(ctx, req)
}

// ModelName delegates to ModelNameFunc.
func (m *MockProvider) ModelName() string {
	if m.ModelNameFunc == nil {
		return "mock"
	}
	return m.ModelNameFunc()
}

// EnsureModel delegates to EnsureModelFunc and tracks call count.
func (m *MockProvider) EnsureModel(ctx context.Context) error {
	m.mu.Lock()
	m.EnsureCalls++
	m.mu.Unlock()
	return m.EnsureModelFunc(ctx)
}

// HealthCheck delegates to HealthCheckFunc and tracks call count.
func (m *MockProvider) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.HealthCalls++
	m.mu.Unlock()
	return m.HealthCheckFunc(ctx)
}

// Calls returns the number of Complete calls so far.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CompleteCalls
}

// LastRequest returns the most recent request passed to Complete.
func (m *MockProvider) LastRequest() provider.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return provider.CompletionRequest{}
	}
	return m.Requests[len(m.Requests)-1]
}

// Reply returns a CompleteFunc that always answers with content.
func Reply(content string) func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
	return func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{Turn: provider.AssistantTurn(content)}, nil
	}
}

// Interface guards.
var (
	_ provider.Provider         = (*MockProvider)(nil)
	_ provider.ModelProvisioner = (*MockProvider)(nil)
	_ provider.HealthChecker    = (*MockProvider)(nil)
)
