// Package ollama provides the Ollama inference provider module. It talks
// to the Ollama HTTP API: /api/chat for completions, /api/create to build
// the alias model at startup and /api/tags for health probes.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/llamacord/internal/core"
	"github.com/flemzord/llamacord/internal/provider"
	"github.com/flemzord/llamacord/internal/telemetry"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Provider is the Ollama inference provider.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a Provider outside the module lifecycle. cfg is completed
// with defaults.
func New(cfg Config, logger *slog.Logger) *Provider {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{config: cfg, client: newHTTPClient(cfg.Timeout), logger: logger}
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.ollama",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger
	p.client = newHTTPClient(p.config.Timeout)
	ctx.RegisterService(provider.Service, p)
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// newHTTPClient bounds the wait for response headers instead of the whole
// exchange. Non-streamed completions only send headers once generation ends.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: timeout,
		},
	}
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	body := buildChatRequest(&p.config, req)

	ctx, span := telemetry.Tracer().Start(ctx, "ollama.chat",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.system", "ollama"),
			attribute.String("gen_ai.request.model", body.Model),
			attribute.Int("llamacord.turns", len(req.Messages)),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := p.complete(ctx, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return provider.CompletionResponse{}, err
	}
	resp.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("gen_ai.usage.input_tokens", resp.Usage.PromptTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.Usage.CompletionTokens),
	)
	return resp, nil
}

func (p *Provider) complete(ctx context.Context, body chatRequest) (provider.CompletionResponse, error) {
	httpResp, err := p.post(ctx, "/api/chat", body)
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	defer httpResp.Body.Close() //nolint:errcheck // best-effort close

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return provider.CompletionResponse{}, handleErrorResponse(httpResp)
	}

	var decoded chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		if ctx.Err() != nil {
			return provider.CompletionResponse{}, ctx.Err()
		}
		return provider.CompletionResponse{}, provider.BackendError(provider.ErrMalformedResponse, err.Error())
	}
	return parseChatResponse(decoded)
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.chatModel()
}

// BackendName implements provider.Named.
func (p *Provider) BackendName() string {
	return "Ollama"
}

// EnsureModel implements provider.ModelProvisioner. It creates the alias
// model from the base model with the system prompt baked in. It is a no-op
// when provisioning is disabled.
func (p *Provider) EnsureModel(ctx context.Context) error {
	if !p.config.provisioning() {
		return nil
	}
	p.logger.Info("provider.ollama: provisioning model", "alias", p.config.Alias, "from", p.config.Model)

	resp, err := p.post(ctx, "/api/create", createRequest{
		Model:  p.config.Alias,
		From:   p.config.Model,
		System: p.config.System,
		Stream: false,
	})
	if err != nil {
		return fmt.Errorf("provider.ollama: create %s: %w", p.config.Alias, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("provider.ollama: create %s: %w", p.config.Alias, handleErrorResponse(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	p.logger.Info("provider.ollama: model ready", "alias", p.config.Alias)
	return nil
}

// HealthCheck implements provider.HealthChecker.
// It probes the /api/tags endpoint to check backend availability.
func (p *Provider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return provider.BackendError(provider.ErrUnavailable, "health check: "+err.Error())
	}
	defer resp.Body.Close()               //nolint:errcheck // best-effort close
	_, _ = io.Copy(io.Discard, resp.Body) // drain body

	if resp.StatusCode >= 400 {
		return provider.BackendError(provider.ErrBadStatus, fmt.Sprintf("health check returned HTTP %d", resp.StatusCode))
	}
	return nil
}

// Compile-time interface assertions.
var (
	_ core.Module               = (*Provider)(nil)
	_ core.Configurable         = (*Provider)(nil)
	_ core.Provisioner          = (*Provider)(nil)
	_ core.Validator            = (*Provider)(nil)
	_ provider.Provider         = (*Provider)(nil)
	_ provider.ModelProvisioner = (*Provider)(nil)
	_ provider.HealthChecker    = (*Provider)(nil)
	_ provider.Named            = (*Provider)(nil)
)
