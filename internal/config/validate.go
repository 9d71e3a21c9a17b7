package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/flemzord/llamacord/internal/core"
	"github.com/flemzord/llamacord/internal/cron"
	"github.com/flemzord/llamacord/internal/history"
)

var (
	groupPolicies = []string{"require_mention", "allow_all"}
	logLevels     = []string{"debug", "info", "warn", "error"}
	logFormats    = []string{"text", "json"}
)

// Validate checks the structural validity of a Config after defaults are
// applied. Every problem found is reported, joined under ErrInvalid.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Version {
	case "":
		errs = append(errs, errors.New("version field is required"))
	case "1":
	default:
		errs = append(errs, fmt.Errorf("unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateModules(cfg)...)
	errs = append(errs, validateBot(&cfg.Bot)...)

	if !slices.Contains(logLevels, cfg.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", cfg.Log.Level))
	}
	if !slices.Contains(logFormats, cfg.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", cfg.Log.Format))
	}
	if r := cfg.Telemetry.Tracing.SampleRatio; r != nil && (*r < 0 || *r > 1) {
		errs = append(errs, fmt.Errorf("telemetry.tracing.sample_ratio must be within [0, 1], got %g", *r))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func validateModules(cfg *Config) []error {
	if len(cfg.Modules) == 0 {
		return []error{errors.New("at least one module must be configured")}
	}

	var errs []error
	providers := 0
	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("unknown module %q", id))
		}
		if core.ModuleID(id).Namespace() == "provider" {
			providers++
		}
	}

	switch {
	case providers == 0:
		errs = append(errs, errors.New("an inference provider module (provider.*) is required"))
	case providers > 1:
		errs = append(errs, fmt.Errorf("exactly one provider module is supported, got %d", providers))
	}
	return errs
}

func validateBot(bot *BotConfig) []error {
	var errs []error
	if bot.History.Max != nil && *bot.History.Max < 0 {
		errs = append(errs, fmt.Errorf("bot.history.max must be non-negative, got %d", *bot.History.Max))
	}
	if err := history.Mode(bot.History.Mode).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot.history.mode: %w", err))
	}
	if !slices.Contains(groupPolicies, bot.GroupPolicy) {
		errs = append(errs, fmt.Errorf("bot.group_policy: unknown policy %q (want one of %s)",
			bot.GroupPolicy, strings.Join(groupPolicies, ", ")))
	}
	if strings.TrimSpace(bot.CommandPrefix) != bot.CommandPrefix {
		errs = append(errs, fmt.Errorf("bot.command_prefix must not contain surrounding whitespace, got %q", bot.CommandPrefix))
	}
	if bot.HealthCheck != HealthCheckOff {
		if err := cron.ValidateSchedule(bot.HealthCheck); err != nil {
			errs = append(errs, fmt.Errorf("bot.health_check: %w", err))
		}
	}
	if bot.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("bot.max_in_flight must be positive, got %d", bot.MaxInFlight))
	}
	return errs
}
