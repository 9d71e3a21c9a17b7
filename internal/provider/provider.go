// Package provider defines the inference backend abstraction used by the
// message router.
package provider

import "context"

// Service is the AppContext service name of the configured Provider.
const Service = "provider"

// Provider sends a conversation context to an inference backend and returns
// the generated assistant turn. Implementations are stateless with respect to
// conversation history.
type Provider interface {
	// Complete requests a single, non-streamed completion. Any failure is
	// reported as an error wrapping ErrBackend.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the model identifier used for chat requests.
	ModelName() string
}

// Named is optionally implemented by providers with a human-readable backend
// name, used in failure replies ("Error talking to Ollama: ...").
type Named interface {
	BackendName() string
}

// ModelProvisioner is optionally implemented by providers that need to
// prepare a model before serving (e.g. creating an alias with a baked-in
// system prompt). Provisioning failures are not fatal.
type ModelProvisioner interface {
	EnsureModel(ctx context.Context) error
}

// HealthChecker is optionally implemented by providers that support
// active health probing.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
