package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/flemzord/llamacord/internal/channel"
	"github.com/flemzord/llamacord/internal/config"
	"github.com/flemzord/llamacord/internal/core"
	"github.com/flemzord/llamacord/internal/cron"
	"github.com/flemzord/llamacord/internal/history"
	"github.com/flemzord/llamacord/internal/metrics"
	"github.com/flemzord/llamacord/internal/provider"
	"github.com/flemzord/llamacord/internal/router"
	"github.com/flemzord/llamacord/internal/security"
)

// provisionTimeout bounds model provisioning at startup. Creating a model
// can take a while when the base model has to be loaded first.
const provisionTimeout = 2 * time.Minute

// ErrNoProvider is returned by Build when no loaded module provides inference.
var ErrNoProvider = errors.New("app: an inference provider module is required")

// BuildOptions configures Build.
type BuildOptions struct {
	Logger   *slog.Logger
	Redactor *security.Redactor
	DataDir  string

	// SkipChannels loads every configured module except chat channels.
	// Used by the MCP server, which drives the pipeline directly.
	SkipChannels bool
}

// Instance is a fully wired, not yet started application.
type Instance struct {
	App      *core.App
	Pipeline *router.Pipeline
	Provider provider.Provider
	Metrics  *metrics.Recorder
	Logger   *slog.Logger

	health *cron.BackendHealthJob
}

// routerModule wraps a *router.Router to satisfy core.Module, core.Starter,
// and core.Stopper, so the router participates in the App lifecycle.
type routerModule struct {
	router *router.Router
	ctx    context.Context
}

func (m *routerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "router"}
}

func (m *routerModule) Start() error {
	m.router.Start(m.ctx)
	return nil
}

func (m *routerModule) Stop(ctx context.Context) error {
	return m.router.Stop(ctx)
}

// Build loads the modules configured in cfg and wires the message pipeline
// between them. cfg must be validated.
func Build(cfg *config.Config, opts BuildOptions) (*Instance, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	redactor := opts.Redactor
	if redactor == nil {
		redactor = security.NewRedactor()
	}

	appCtx := core.NewAppContext(logger, opts.DataDir).WithModuleConfigs(cfg.Modules)
	recorder := metrics.New()
	appCtx.RegisterService(security.RedactorService, redactor)
	appCtx.RegisterService(metrics.Service, recorder)

	ids := config.Resolve(cfg)
	if opts.SkipChannels {
		ids = slices.DeleteFunc(ids, func(id string) bool {
			return core.ModuleID(id).Namespace() == "channel"
		})
	}

	application := core.NewApp(appCtx)
	if err := application.LoadModules(ids); err != nil {
		return nil, err
	}

	inst := &Instance{App: application, Metrics: recorder, Logger: logger}
	if err := inst.wire(cfg, appCtx); err != nil {
		application.Close()
		return nil, err
	}
	return inst, nil
}

// wire creates the history store, pipeline, router and health probe, hooks
// every channel's inbox to the router, and appends the router and the
// scheduler to the app lifecycle. Must be called after LoadModules and
// before Start.
func (inst *Instance) wire(cfg *config.Config, appCtx *core.AppContext) error {
	logger := inst.Logger

	// Discover channels and the provider from loaded modules.
	dispatcher := channel.NewDispatcher()
	var channels []channel.Channel
	p, _ := core.Service[provider.Provider](appCtx, provider.Service)

	for _, mod := range inst.App.Modules() {
		id := string(mod.ModuleInfo().ID)
		if ch, ok := mod.(channel.Channel); ok {
			// Register under the full module ID (e.g. "channel.discord") because
			// that is what the channel sets as msg.Channel in inbound messages.
			if err := dispatcher.Register(id, ch); err != nil {
				return fmt.Errorf("registering channel %s: %w", id, err)
			}
			channels = append(channels, ch)
			logger.Info("app: registered channel", "channel", id)
		}
		if mp, ok := mod.(provider.Provider); ok && p == nil {
			p = mp
		}
	}
	if p == nil {
		return ErrNoProvider
	}
	inst.Provider = p
	logger.Info("app: using provider", "model", p.ModelName())

	store, err := newStore(appCtx, cfg.HistoryMax())
	if err != nil {
		return err
	}
	inst.Metrics.RegisterContextGauge(func() float64 {
		keys, err := store.Keys()
		if err != nil {
			return 0
		}
		return float64(len(keys))
	})

	backendName := ""
	if n, ok := p.(provider.Named); ok {
		backendName = n.BackendName()
	}

	pipeline, err := router.NewPipeline(router.PipelineConfig{
		History:  store,
		Mode:     history.Mode(cfg.Bot.History.Mode),
		Provider: p,
		Sender:   dispatcher,
		Policy: router.Policy{
			Mode:       router.GroupPolicyMode(cfg.Bot.GroupPolicy),
			AllowLists: dispatcher.AllowLists(),
		},
		Commands:    router.Commands{Prefix: cfg.Bot.CommandPrefix},
		Channels:    dispatcher,
		Typing:      cfg.TypingEnabled(),
		BackendName: backendName,
		Metrics:     inst.Metrics,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}
	inst.Pipeline = pipeline
	appCtx.RegisterService(router.PipelineService, pipeline)

	if len(channels) > 0 {
		r, err := router.NewRouter(router.Config{
			Pipeline:    pipeline,
			MaxInFlight: cfg.Bot.MaxInFlight,
			Metrics:     inst.Metrics,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("creating router: %w", err)
		}
		for _, ch := range channels {
			ch.SetInbox(r.Submit)
		}
		inst.App.AppendModule("router", &routerModule{router: r, ctx: context.Background()})
		logger.Info("app: router wired", "channels", len(channels))
	}

	return inst.wireHealth(cfg, appCtx, p)
}

// wireHealth schedules the backend probe when the provider supports it.
func (inst *Instance) wireHealth(cfg *config.Config, appCtx *core.AppContext, p provider.Provider) error {
	hc, ok := p.(provider.HealthChecker)
	if !ok || cfg.Bot.HealthCheck == config.HealthCheckOff {
		return nil
	}

	job := &cron.BackendHealthJob{
		Checker:      hc,
		Gauge:        inst.Metrics,
		Logger:       inst.Logger,
		ScheduleExpr: cfg.Bot.HealthCheck,
	}
	sched := cron.NewScheduler(inst.Logger)
	if err := sched.RegisterJob(job); err != nil {
		return err
	}
	inst.App.AppendModule(sched.ModuleInfo().ID, sched)
	appCtx.RegisterService(cron.BackendHealthService, job)
	inst.health = job
	return nil
}

// newStore builds the history store from the registered backend, falling
// back to the in-process MemoryStore.
func newStore(appCtx *core.AppContext, maxTurns int) (history.Store, error) {
	if backend, ok := core.Service[history.Backend](appCtx, history.BackendService); ok {
		store, err := backend.NewStore(maxTurns)
		if err != nil {
			return nil, fmt.Errorf("creating history store: %w", err)
		}
		return store, nil
	}
	return history.NewMemoryStore(maxTurns)
}

// Provision prepares the inference backend before serving: it creates the
// model alias and runs a first health probe. Failures are logged only.
func (inst *Instance) Provision(ctx context.Context) {
	if mp, ok := inst.Provider.(provider.ModelProvisioner); ok {
		pctx, cancel := context.WithTimeout(ctx, provisionTimeout)
		if err := mp.EnsureModel(pctx); err != nil {
			inst.Logger.Error("app: model provisioning failed, continuing", "error", err)
		}
		cancel()
	}
	if inst.health != nil {
		_ = inst.health.Run(ctx)
	}
}
