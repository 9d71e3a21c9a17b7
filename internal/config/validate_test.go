package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/flemzord/llamacord/internal/core"
	"gopkg.in/yaml.v3"
)

// stubModule is a basic module for testing.
type stubModule struct {
	id string
}

func (m *stubModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID(m.id),
		New: func() core.Module { return &stubModule{id: m.id} },
	}
}

// validConfig registers uniquely named stub modules for t and returns a
// config that passes validation.
func validConfig(t *testing.T) *Config {
	t.Helper()
	providerID := "provider." + t.Name()
	channelID := "channel." + t.Name()
	core.RegisterModule(&stubModule{id: providerID})
	core.RegisterModule(&stubModule{id: channelID})

	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{providerID: {}, channelID: {}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(validConfig(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"missing version", func(c *Config) { c.Version = "" }, "version"},
		{"unsupported version", func(c *Config) { c.Version = "99" }, "unsupported version"},
		{"no modules", func(c *Config) { c.Modules = nil }, "at least one module"},
		{"unknown module", func(c *Config) { c.Modules["channel.nope"] = yaml.Node{} }, `unknown module "channel.nope"`},
		{"negative history", func(c *Config) { n := -1; c.Bot.History.Max = &n }, "bot.history.max"},
		{"bad mode", func(c *Config) { c.Bot.History.Mode = "per_guild" }, "bot.history.mode"},
		{"bad policy", func(c *Config) { c.Bot.GroupPolicy = "everyone" }, "bot.group_policy"},
		{"padded prefix", func(c *Config) { c.Bot.CommandPrefix = " !" }, "bot.command_prefix"},
		{"bad health check", func(c *Config) { c.Bot.HealthCheck = "every minute" }, "bot.health_check"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad ratio", func(c *Config) { r := 2.0; c.Telemetry.Tracing.SampleRatio = &r }, "sample_ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error should wrap ErrInvalid: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_HealthCheckOff(t *testing.T) {
	cfg := validConfig(t)
	cfg.Bot.HealthCheck = HealthCheckOff
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_MissingProvider(t *testing.T) {
	cfg := validConfig(t)
	delete(cfg.Modules, "provider."+t.Name())

	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "provider module") {
		t.Errorf("expected missing provider error, got %v", err)
	}
}

func TestValidate_TooManyProviders(t *testing.T) {
	cfg := validConfig(t)
	extra := "provider." + t.Name() + "_extra"
	core.RegisterModule(&stubModule{id: extra})
	cfg.Modules[extra] = yaml.Node{}

	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "exactly one provider") {
		t.Errorf("expected provider count error, got %v", err)
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Version = ""
	cfg.Bot.GroupPolicy = "nope"
	cfg.Log.Format = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, sub := range []string{"version", "group_policy", "log.format"} {
		if !strings.Contains(err.Error(), sub) {
			t.Errorf("error should mention %q: %v", sub, err)
		}
	}
}
