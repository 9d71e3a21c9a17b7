package ollama

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Defaults.
const (
	DefaultBaseURL   = "http://localhost:11434"
	DefaultModel     = "llama2"
	DefaultAlias     = "llamacord"
	DefaultSystem    = "You are a helpful assistant"
	DefaultKeepAlive = -1
	DefaultNumCtx    = 4096
	DefaultTimeout   = 5 * time.Minute
)

// Config holds the configuration for the Ollama provider.
type Config struct {
	BaseURL string `yaml:"base_url"`
	// Model is the base model pulled into Ollama.
	Model string `yaml:"model"`
	// Alias names the model created at startup from Model with System baked in.
	Alias  string `yaml:"alias"`
	System string `yaml:"system"`
	// Provision creates Alias at startup and chats with it. When false, chat
	// uses Model directly and System is sent as a leading system turn.
	Provision *bool `yaml:"provision"`
	// KeepAlive is passed as-is to Ollama: seconds, a duration string such
	// as "10m", or -1 to keep the model loaded.
	KeepAlive   any           `yaml:"keep_alive"`
	NumCtx      int           `yaml:"num_ctx"`
	Temperature *float64      `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// defaults sets default values for unset fields.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Alias == "" {
		c.Alias = DefaultAlias
	}
	if c.System == "" {
		c.System = DefaultSystem
	}
	if c.Provision == nil {
		enabled := true
		c.Provision = &enabled
	}
	if c.KeepAlive == nil {
		c.KeepAlive = DefaultKeepAlive
	}
	if c.NumCtx == 0 {
		c.NumCtx = DefaultNumCtx
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// validate returns an error if a field is unusable.
func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("provider.ollama: base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider.ollama: base_url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("provider.ollama: base_url has no host")
	}
	if c.NumCtx < 0 {
		return fmt.Errorf("provider.ollama: num_ctx must not be negative")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("provider.ollama: temperature must be between 0 and 2")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("provider.ollama: timeout must not be negative")
	}
	switch v := c.KeepAlive.(type) {
	case int, float64:
	case string:
		if _, err := time.ParseDuration(v); err != nil && v != "-1" {
			return fmt.Errorf("provider.ollama: keep_alive %q is not a duration", v)
		}
	default:
		return fmt.Errorf("provider.ollama: keep_alive must be a number or duration string")
	}
	return nil
}

// provisioning reports whether the alias model is created and used.
func (c *Config) provisioning() bool {
	return c.Provision == nil || *c.Provision
}

// chatModel returns the model name used for chat requests.
func (c *Config) chatModel() string {
	if c.provisioning() {
		return c.Alias
	}
	return c.Model
}
