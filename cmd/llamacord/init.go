package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/llamacord/internal/config"
	"github.com/flemzord/llamacord/pkg/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// tokenFromEnv is written instead of an inline token when none is given.
const tokenFromEnv = "${DISCORD_TOKEN}"

// initAnswers holds the wizard answers.
type initAnswers struct {
	Token        string
	BaseURL      string
	Model        string
	System       string
	HistoryMode  string
	GroupPolicy  string
	Channels     string
	StatusServer bool
	StatusToken  string
}

func defaultAnswers() initAnswers {
	return initAnswers{
		BaseURL:     "http://localhost:11434",
		Model:       "llama3.2",
		System:      "You are a helpful assistant in a Discord server. Keep answers short.",
		HistoryMode: config.DefaultHistoryMode,
		GroupPolicy: config.DefaultGroupPolicy,
	}
}

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = app.DefaultConfigPath()
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			answers := defaultAnswers()
			if err := runWizard(&answers); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return err
			}

			data, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := writeConfig(output, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nRun `llamacord config check %s` to verify it.\n", output, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the configuration (default $XDG_CONFIG_HOME/llamacord/llamacord.yaml)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func runWizard(a *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Discord bot token").
				Description("Leave empty to read it from $DISCORD_TOKEN at startup.").
				EchoMode(huh.EchoModePassword).
				Value(&a.Token),
			huh.NewInput().
				Title("Allowed channel IDs").
				Description("Comma separated. Leave empty to answer direct messages only; * allows every channel.").
				Value(&a.Channels),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Ollama URL").
				Value(&a.BaseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Base model").
				Value(&a.Model).
				Validate(requireValue("model")),
			huh.NewText().
				Title("System prompt").
				Value(&a.System),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Conversation history").
				Options(
					huh.NewOption("One history per user", "per_identity"),
					huh.NewOption("One history shared by everyone", "shared"),
				).
				Value(&a.HistoryMode),
			huh.NewSelect[string]().
				Title("In server channels, answer").
				Options(
					huh.NewOption("Only when mentioned or replied to", "require_mention"),
					huh.NewOption("Every message", "allow_all"),
				).
				Value(&a.GroupPolicy),
			huh.NewConfirm().
				Title("Enable the HTTP status server on 127.0.0.1:8080?").
				Value(&a.StatusServer),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	if a.StatusServer {
		return huh.NewInput().
			Title("Bearer token for the admin API").
			Description("Leave empty to leave the admin API unauthenticated.").
			EchoMode(huh.EchoModePassword).
			Value(&a.StatusToken).
			Run()
	}
	return nil
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("enter an absolute URL such as http://localhost:11434")
	}
	return nil
}

func requireValue(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// renderConfig turns wizard answers into a configuration file.
func renderConfig(a initAnswers) ([]byte, error) {
	token := strings.TrimSpace(a.Token)
	if token == "" {
		token = tokenFromEnv
	}

	discord := map[string]any{"token": token}
	if channels := splitList(a.Channels); len(channels) > 0 {
		discord["allow_channels"] = channels
	}

	modules := map[string]any{
		"channel.discord": discord,
		"provider.ollama": map[string]any{
			"base_url": strings.TrimSpace(a.BaseURL),
			"model":    strings.TrimSpace(a.Model),
			"system":   strings.TrimSpace(a.System),
		},
	}
	if a.StatusServer {
		gw := map[string]any{"bind": "127.0.0.1:8080"}
		if t := strings.TrimSpace(a.StatusToken); t != "" {
			gw["auth"] = map[string]any{"bearer_token": t}
		}
		modules["gateway.http"] = gw
	}

	doc := map[string]any{
		"version": "1",
		"bot": map[string]any{
			"history":      map[string]any{"mode": a.HistoryMode},
			"group_policy": a.GroupPolicy,
		},
		"modules": modules,
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// writeConfig writes data to path, owner-readable only since it may hold
// the bot token.
func writeConfig(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
