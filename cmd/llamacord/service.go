package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/flemzord/llamacord/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program runs llamacord under the system service manager.
type program struct {
	params app.RunParams
	cancel context.CancelFunc
	done   chan error
}

// Start implements service.Interface. It must not block.
func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		p.done <- app.Run(ctx, p.params)
	}()
	return nil
}

// Stop implements service.Interface.
func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return <-p.done
}

func serviceConfig(cfgPath string, user bool) (*service.Config, error) {
	args := []string{"service", "run"}
	if cfgPath != "" {
		abs, err := filepath.Abs(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("resolving config path: %w", err)
		}
		args = append(args, "--config", abs)
	}
	return &service.Config{
		Name:        "llamacord",
		DisplayName: "llamacord",
		Description: "Discord bot answering with a local Ollama model",
		Arguments:   args,
		Option:      service.KeyValue{"UserService": user},
	}, nil
}

func serviceCmd() *cobra.Command {
	var (
		cfgPath string
		user    bool
	)
	newService := func() (service.Service, error) {
		svcCfg, err := serviceConfig(cfgPath, user)
		if err != nil {
			return nil, err
		}
		s, err := service.New(&program{params: runParams(cfgPath, "")}, svcCfg)
		if err != nil {
			return nil, fmt.Errorf("service: %w", err)
		}
		return s, nil
	}

	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage llamacord as a system service",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	cmd.PersistentFlags().BoolVar(&user, "user", false, "Install as a per-user service")

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the llamacord service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newService()
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newService()
			if err != nil {
				return err
			}
			status, err := s.Status()
			if err != nil && !errors.Is(err, service.ErrNotInstalled) {
				return fmt.Errorf("service status: %w", err)
			}
			if errors.Is(err, service.ErrNotInstalled) {
				fmt.Fprintln(cmd.OutOrStdout(), "not installed")
				return nil
			}
			writeStatus(cmd.OutOrStdout(), status)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := newService()
			if err != nil {
				return err
			}
			return s.Run()
		},
	})
	return cmd
}

func writeStatus(w io.Writer, status service.Status) {
	switch status {
	case service.StatusRunning:
		fmt.Fprintln(w, "running")
	case service.StatusStopped:
		fmt.Fprintln(w, "stopped")
	default:
		fmt.Fprintln(w, "unknown")
	}
}
