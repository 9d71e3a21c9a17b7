package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	maxRetries       = 3
	initialBackoff   = time.Second
	maxResponseBytes = 10 << 20 // 10 MiB
	userAgent        = "DiscordBot (https://github.com/flemzord/llamacord, 1.0)"
)

// Client is a thin HTTP wrapper around the Discord REST API.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Discord REST client.
func NewClient(token, baseURL string) *Client {
	return &Client{
		token:   token,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do sends a JSON request to path and decodes the response into out when
// non-nil. It retries 429 responses after the advertised delay (max 3
// attempts, exponential backoff otherwise).
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("discord: marshal %s %s: %w", method, path, err)
		}
	}

	backoff := initialBackoff

	for attempt := range maxRetries {
		var body io.Reader
		if data != nil {
			body = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("discord: create %s %s request: %w", method, path, err)
		}
		req.Header.Set("Authorization", "Bot "+c.token)
		req.Header.Set("User-Agent", userAgent)
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("discord: %s %s failed: %w", method, path, err)
		}

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("discord: read %s %s response: %w", method, path, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRetries-1 {
			if wait := retryAfter(resp, respBody); wait > 0 {
				backoff = wait
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{Status: resp.StatusCode}
			if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
			return apiErr
		}

		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("discord: decode %s %s response: %w", method, path, err)
		}
		return nil
	}

	return fmt.Errorf("discord: %s %s: max retries exceeded", method, path)
}

// retryAfter reads the rate-limit delay from the JSON body or the
// Retry-After header.
func retryAfter(resp *http.Response, body []byte) time.Duration {
	var apiErr APIError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter * float64(time.Second))
	}
	if secs, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}

// GetCurrentUser returns the bot's own user. Used to check the token.
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/@me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateMessage posts a message to a channel.
func (c *Client) CreateMessage(ctx context.Context, channelID string, req CreateMessageRequest) (*Message, error) {
	var m Message
	if err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// TriggerTyping shows the typing indicator in a channel for ~10 seconds.
func (c *Client) TriggerTyping(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/typing", nil, nil)
}
