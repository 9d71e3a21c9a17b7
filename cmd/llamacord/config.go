package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/flemzord/llamacord/internal/config"
	"github.com/flemzord/llamacord/internal/security"
	"github.com/flemzord/llamacord/pkg/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var printResolved bool
	check := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and load every configured module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return checkConfig(cmd.OutOrStdout(), path, printResolved)
		},
	}
	check.Flags().BoolVar(&printResolved, "print", false, "Print the resolved configuration with secrets redacted")
	cmd.AddCommand(check)
	return cmd
}

// checkConfig validates the configuration at path and runs every module
// through Configure, Provision and Validate without starting anything.
func checkConfig(out io.Writer, path string, printResolved bool) error {
	cfg, path, err := app.LoadConfig(path)
	if err != nil {
		return err
	}

	redactor := security.NewRedactor()
	logger := slog.New(slog.DiscardHandler)
	inst, err := app.Build(cfg, app.BuildOptions{Logger: logger, Redactor: redactor, DataDir: app.DefaultDataDir()})
	if err != nil {
		return err
	}
	defer inst.App.Close()

	ids := config.Resolve(cfg)
	fmt.Fprintf(out, "Configuration OK: %s (%d modules)\n", path, len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}

	if !printResolved {
		return nil
	}
	resolved, err := redactedYAML(cfg, redactor)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s", resolved)
	return nil
}

// redactedYAML renders cfg, defaults applied, with secret values masked.
func redactedYAML(cfg *config.Config, redactor *security.Redactor) ([]byte, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	redactor.RedactMap(m)
	return yaml.Marshal(m)
}
