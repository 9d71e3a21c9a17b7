// Package app provides the shared entry point of the llamacord commands:
// config discovery, logger setup, module wiring, and the serve loop.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/flemzord/llamacord/internal/config"
	"github.com/flemzord/llamacord/internal/security"
	"github.com/flemzord/llamacord/internal/telemetry"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default data directory.
	DataDir string

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Run loads configuration, starts all modules, and blocks until ctx is
// done or a shutdown signal is received.
func Run(ctx context.Context, params RunParams) error {
	cfg, _, err := LoadConfig(params.ConfigPath)
	if err != nil {
		return err
	}

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	redactor := security.NewRedactor()
	logger, err := NewLogger(cfg.Log, out, redactor)
	if err != nil {
		return err
	}
	logger.Info("app: starting llamacord", "version", params.Version, "commit", params.Commit, "date", params.Date)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.Tracing.Endpoint,
		Insecure:    cfg.Telemetry.Tracing.Insecure,
		ServiceName: cfg.Telemetry.Tracing.ServiceName,
		Version:     params.Version,
		SampleRatio: *cfg.Telemetry.Tracing.SampleRatio,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("app: tracing shutdown failed", "error", err)
		}
	}()

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	inst, err := Build(cfg, BuildOptions{Logger: logger, Redactor: redactor, DataDir: dataDir})
	if err != nil {
		return err
	}
	inst.Provision(ctx)

	return inst.App.Run(ctx)
}

// LoadConfig resolves, loads, and validates the configuration. It returns
// the path actually used.
func LoadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = resolved
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/llamacord/llamacord.yaml → ~/.config/llamacord/llamacord.yaml → ./llamacord.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "llamacord", "llamacord.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "llamacord", "llamacord.yaml"))
	}

	candidates = append(candidates, "llamacord.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultConfigPath is where init writes a new configuration.
func DefaultConfigPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		return filepath.Join(xdg, "llamacord", "llamacord.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "llamacord", "llamacord.yaml")
	}
	return "llamacord.yaml"
}

// DefaultDataDir returns the default data directory.
// Uses $XDG_DATA_HOME/llamacord if set, otherwise ~/.local/share/llamacord.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "llamacord")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "llamacord")
}
