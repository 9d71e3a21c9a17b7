// Package config handles YAML configuration loading, environment variable
// expansion, defaults, and structural validation for llamacord.
package config

import "gopkg.in/yaml.v3"

// Defaults applied by ApplyDefaults.
const (
	DefaultHistoryMax    = 20
	DefaultHistoryMode   = "per_identity"
	DefaultCommandPrefix = "!"
	DefaultGroupPolicy   = "require_mention"
	DefaultMaxInFlight   = 64
	DefaultHealthCheck   = "*/5 * * * *"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultServiceName   = "llamacord"
)

// HealthCheckOff disables the backend probe.
const HealthCheckOff = "off"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Bot holds conversation and routing settings.
	Bot BotConfig `yaml:"bot"`

	// Log controls the root logger.
	Log LogConfig `yaml:"log"`

	// Telemetry controls tracing export.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.discord").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// BotConfig holds the message router settings.
type BotConfig struct {
	History HistoryConfig `yaml:"history"`

	// CommandPrefix starts control commands ("!reset", "!history").
	CommandPrefix string `yaml:"command_prefix"`

	// GroupPolicy is "require_mention" (answer channel messages only when
	// mentioned or replied to) or "allow_all".
	GroupPolicy string `yaml:"group_policy"`

	// MaxInFlight bounds concurrently processed messages.
	MaxInFlight int `yaml:"max_in_flight"`

	// HealthCheck is the cron schedule of the backend probe. "off" disables it.
	HealthCheck string `yaml:"health_check"`

	// Typing shows a typing indicator while a reply is generated.
	Typing *bool `yaml:"typing"`
}

// HistoryConfig bounds and keys the conversation contexts.
type HistoryConfig struct {
	// Max is the maximum number of turns per context. Zero keeps no context.
	Max *int `yaml:"max"`

	// Mode is "per_identity" or "shared".
	Mode string `yaml:"mode"`
}

// LogConfig controls the root logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig groups observability exporters.
type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig configures OTLP/HTTP span export. An empty Endpoint
// disables export.
type TracingConfig struct {
	Endpoint    string   `yaml:"endpoint"`
	Insecure    bool     `yaml:"insecure"`
	ServiceName string   `yaml:"service_name"`
	SampleRatio *float64 `yaml:"sample_ratio"`
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Bot.History.Max == nil {
		n := DefaultHistoryMax
		c.Bot.History.Max = &n
	}
	if c.Bot.History.Mode == "" {
		c.Bot.History.Mode = DefaultHistoryMode
	}
	if c.Bot.CommandPrefix == "" {
		c.Bot.CommandPrefix = DefaultCommandPrefix
	}
	if c.Bot.GroupPolicy == "" {
		c.Bot.GroupPolicy = DefaultGroupPolicy
	}
	if c.Bot.MaxInFlight == 0 {
		c.Bot.MaxInFlight = DefaultMaxInFlight
	}
	if c.Bot.HealthCheck == "" {
		c.Bot.HealthCheck = DefaultHealthCheck
	}
	if c.Bot.Typing == nil {
		t := true
		c.Bot.Typing = &t
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Telemetry.Tracing.ServiceName == "" {
		c.Telemetry.Tracing.ServiceName = DefaultServiceName
	}
	if c.Telemetry.Tracing.SampleRatio == nil {
		r := 1.0
		c.Telemetry.Tracing.SampleRatio = &r
	}
}

// HistoryMax returns the configured context bound.
func (c *Config) HistoryMax() int {
	if c.Bot.History.Max == nil {
		return DefaultHistoryMax
	}
	return *c.Bot.History.Max
}

// TypingEnabled reports whether typing indicators are enabled.
func (c *Config) TypingEnabled() bool {
	return c.Bot.Typing == nil || *c.Bot.Typing
}
