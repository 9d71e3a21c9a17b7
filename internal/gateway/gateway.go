// Package gateway provides the "gateway.http" module: an HTTP server for
// health, Prometheus metrics and conversation history administration. It
// binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/llamacord/internal/core"
	"github.com/flemzord/llamacord/internal/cron"
	"github.com/flemzord/llamacord/internal/history"
	"github.com/flemzord/llamacord/internal/metrics"
	"github.com/flemzord/llamacord/internal/provider"
	"github.com/flemzord/llamacord/internal/router"
	"github.com/flemzord/llamacord/internal/security"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// HistoryAdmin is the part of the message pipeline the admin API drives.
// Snapshot and Reset take the same per-conversation lock as chat turns.
type HistoryAdmin interface {
	Contexts() ([]history.KeyInfo, error)
	Snapshot(key history.Key) ([]provider.Turn, error)
	Reset(key history.Key) error
	Mode() history.Mode
}

// BackendReporter exposes the last inference backend probe.
type BackendReporter interface {
	BackendHealth() cron.BackendHealth
}

// MetricsExporter serves metrics in the Prometheus exposition format.
type MetricsExporter interface {
	Handler() http.Handler
}

// Compile-time interface guards.
var (
	_ HistoryAdmin    = (*router.Pipeline)(nil)
	_ BackendReporter = (*cron.BackendHealthJob)(nil)
	_ MetricsExporter = (*metrics.Recorder)(nil)
)

// Gateway is the HTTP gateway module. It is a leaf module: nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	addr      net.Addr
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	admin   HistoryAdmin
	backend BackendReporter
	metrics MetricsExporter
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger

	if r, ok := core.Service[*security.Redactor](ctx, security.RedactorService); ok {
		r.AddLiteral(g.config.Auth.BearerToken)
		r.AddLiteral(g.config.Auth.BasicPass)
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	if !g.config.Auth.IsConfigured() && g.logger != nil {
		g.logger.Warn("gateway: no auth configured, admin endpoints are disabled")
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	// Optional services: missing ones degrade the matching endpoints.
	if svc, ok := core.Service[HistoryAdmin](g.appCtx, router.PipelineService); ok {
		g.admin = svc
	}
	if svc, ok := core.Service[BackendReporter](g.appCtx, cron.BackendHealthService); ok {
		g.backend = svc
	}
	if svc, ok := core.Service[MetricsExporter](g.appCtx, metrics.Service); ok {
		g.metrics = svc
	}

	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}
	g.addr = ln.Addr()

	go func() {
		g.logger.Info("gateway: listening", "addr", g.addr.String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway: serve error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	return g.addr
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway: shutting down")
	return g.server.Shutdown(shutdownCtx)
}
