// Package sqlite provides the "history.sqlite" module: conversation history
// kept in an in-memory SQLite database through modernc.org/sqlite (pure Go,
// no CGO). The database is never written to disk.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/llamacord/internal/core"
	"github.com/flemzord/llamacord/internal/history"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ history.Backend   = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module builds SQLite-backed history stores.
type Module struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	stores []*Store
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "history.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("history.sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	ctx.RegisterService(history.BackendService, m)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// NewStore implements history.Backend.
func (m *Module) NewStore(maxTurns int) (history.Store, error) {
	s, err := Open(maxTurns, m.config.BusyTimeout)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.stores = append(m.stores, s)
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("history.sqlite: store opened", "max_turns", maxTurns)
	}
	return s, nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, s := range m.stores {
		errs = append(errs, s.Close())
	}
	m.stores = nil
	return errors.Join(errs...)
}
