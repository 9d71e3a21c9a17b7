package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/flemzord/llamacord/internal/security"
	"github.com/flemzord/llamacord/internal/toolserver"
	"github.com/flemzord/llamacord/pkg/app"
	"github.com/spf13/cobra"
)

func mcpCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the conversation pipeline as MCP tools over stdio",
		Long: `Serve the chat, reset and history tools over the Model Context Protocol
on stdin/stdout. Chat channels are not connected; every other configured
module is started. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveMCP(ctx, cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	return cmd
}

func serveMCP(ctx context.Context, cfgPath string) error {
	cfg, _, err := app.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	redactor := security.NewRedactor()
	logger, err := app.NewLogger(cfg.Log, os.Stderr, redactor)
	if err != nil {
		return err
	}

	inst, err := app.Build(cfg, app.BuildOptions{
		Logger:       logger,
		Redactor:     redactor,
		DataDir:      app.DefaultDataDir(),
		SkipChannels: true,
	})
	if err != nil {
		return err
	}
	inst.Provision(ctx)
	if err := inst.App.Start(); err != nil {
		return err
	}
	defer inst.App.Stop()

	srv, err := toolserver.New(toolserver.Config{
		Pipeline: inst.Pipeline,
		Name:     "llamacord",
		Version:  version,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	return srv.Serve(ctx, os.Stdin, os.Stdout)
}
