// Package main is the entry point for the llamacord CLI.
package main

import (
	"fmt"
	"os"

	"github.com/flemzord/llamacord/internal/core"
	"github.com/flemzord/llamacord/pkg/app"
	"github.com/spf13/cobra"

	// Compiled modules.
	_ "github.com/flemzord/llamacord/internal/gateway"
	_ "github.com/flemzord/llamacord/modules/channel/discord"
	_ "github.com/flemzord/llamacord/modules/history/sqlite"
	_ "github.com/flemzord/llamacord/modules/provider/ollama"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "llamacord",
		Short:         "A Discord bot answering with a local Ollama model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), initCmd(), serviceCmd(), mcpCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "llamacord %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Connect to Discord and serve replies until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			return app.Run(cmd.Context(), runParams(cfgPath, dataDir))
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().String("data-dir", "", "Data directory (default $XDG_DATA_HOME/llamacord)")
	return cmd
}

func runParams(cfgPath, dataDir string) app.RunParams {
	return app.RunParams{
		ConfigPath: cfgPath,
		DataDir:    dataDir,
		Version:    version,
		Commit:     commit,
		Date:       date,
	}
}
