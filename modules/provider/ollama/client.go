package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/flemzord/llamacord/internal/provider"
)

// Ollama wire types for JSON serialization.

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream"`
	KeepAlive any           `json:"keep_alive,omitempty"`
	Options   *chatOptions  `json:"options,omitempty"`
}

type chatOptions struct {
	NumCtx      int      `json:"num_ctx,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model           string       `json:"model"`
	Message         *chatMessage `json:"message"`
	Done            bool         `json:"done"`
	TotalDuration   int64        `json:"total_duration"`
	PromptEvalCount int          `json:"prompt_eval_count"`
	EvalCount       int          `json:"eval_count"`
}

type createRequest struct {
	Model  string `json:"model"`
	From   string `json:"from"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// buildChatRequest converts a provider.CompletionRequest into a chatRequest.
func buildChatRequest(cfg *Config, req provider.CompletionRequest) chatRequest {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if !cfg.provisioning() && cfg.System != "" {
		messages = append(messages, chatMessage{Role: string(provider.RoleSystem), Content: cfg.System})
	}
	for _, t := range req.Messages {
		messages = append(messages, chatMessage{Role: string(t.Role), Content: t.Content})
	}

	temperature := req.Temperature
	if temperature == nil {
		temperature = cfg.Temperature
	}
	return chatRequest{
		Model:     cfg.chatModel(),
		Messages:  messages,
		Stream:    false,
		KeepAlive: cfg.KeepAlive,
		Options: &chatOptions{
			NumCtx:      cfg.NumCtx,
			Temperature: temperature,
		},
	}
}

// parseChatResponse validates a decoded chat response.
func parseChatResponse(resp chatResponse) (provider.CompletionResponse, error) {
	if resp.Message == nil {
		return provider.CompletionResponse{}, provider.BackendError(provider.ErrMalformedResponse, "response has no message")
	}
	role := provider.Role(resp.Message.Role)
	if role == "" {
		role = provider.RoleAssistant
	}
	if role != provider.RoleAssistant {
		return provider.CompletionResponse{}, provider.BackendError(provider.ErrMalformedResponse,
			fmt.Sprintf("unexpected message role %q", resp.Message.Role))
	}
	return provider.CompletionResponse{
		Turn: provider.AssistantTurn(resp.Message.Content),
		Usage: provider.TokenUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
		},
	}, nil
}

// post sends body as JSON to path and returns the response. Transport
// failures are reported as provider.ErrUnavailable; caller cancellation is
// returned unchanged.
func (p *Provider) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, provider.BackendError(provider.ErrUnavailable, err.Error())
	}
	return resp, nil
}

// maxErrorBodySize caps how much of an error response body is read.
const maxErrorBodySize = 4096

// handleErrorResponse turns a non-2xx response into a backend error whose
// diagnostic carries the status code and the backend's message.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	detail := strings.TrimSpace(string(body))
	var e errorResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		detail = e.Error
	}
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	return provider.BackendError(provider.ErrBadStatus, fmt.Sprintf("[%d] %s", resp.StatusCode, detail))
}
