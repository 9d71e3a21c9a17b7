package router

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/flemzord/llamacord/internal/metrics"
	"github.com/flemzord/llamacord/pkg/message"
)

// DefaultMaxInFlight caps the number of messages processed at once.
const DefaultMaxInFlight = 64

// Config holds the configuration for a Router.
type Config struct {
	Pipeline *Pipeline

	// MaxInFlight caps concurrent message tasks. Messages arriving while
	// the cap is reached are dropped.
	MaxInFlight int

	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// withDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Router runs every inbound message as its own task through the pipeline.
// Tasks on the same conversation key are serialized by the pipeline's lane
// lock; everything else runs concurrently.
type Router struct {
	config   Config
	pipeline *Pipeline
	logger   *slog.Logger

	group *errgroup.Group

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool

	stopOnce sync.Once
}

// NewRouter creates a new Router with the given configuration.
func NewRouter(cfg Config) (*Router, error) {
	cfg = cfg.withDefaults()
	if cfg.Pipeline == nil {
		return nil, ErrNoPipeline
	}

	g := new(errgroup.Group)
	g.SetLimit(cfg.MaxInFlight)

	return &Router{
		config:   cfg,
		pipeline: cfg.Pipeline,
		logger:   cfg.Logger,
		group:    g,
		ctx:      context.Background(),
		cancel:   func() {},
	}, nil
}

// Start binds message tasks to ctx. Cancelling ctx aborts in-flight
// inference requests.
func (r *Router) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		r.logger.Warn("router: start ignored, router already stopped")
		return
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.started = true
	r.logger.Info("router: started", "max_in_flight", r.config.MaxInFlight)
}

// Submit schedules msg for processing and returns immediately. It returns
// ErrAtCapacity when the message was dropped and ErrRouterStopped after Stop.
func (r *Router) Submit(msg message.InboundMessage) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		return ErrRouterStopped
	}

	ctx := r.ctx
	ok := r.group.TryGo(func() error {
		done := r.config.Metrics.TrackInFlight()
		defer done()
		r.pipeline.Execute(ctx, msg)
		return nil
	})
	if !ok {
		r.config.Metrics.RecordMessage(metrics.OutcomeDropped)
		r.logger.Warn("router: at capacity, message dropped",
			"channel", msg.Channel,
			"chat_id", msg.Chat.ID,
			"sender", msg.Sender.ID,
		)
		return ErrAtCapacity
	}
	return nil
}

// Stop rejects new messages and waits for in-flight tasks. When ctx ends
// first, in-flight tasks are cancelled and ctx's error is returned.
func (r *Router) Stop(ctx context.Context) error {
	var err error
	r.stopOnce.Do(func() {
		r.logger.Info("router: stopping")

		r.mu.Lock()
		r.stopped = true
		cancel := r.cancel
		r.mu.Unlock()

		done := make(chan struct{})
		go func() {
			_ = r.group.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			cancel()
			<-done
			err = ctx.Err()
		}
		cancel()
		r.logger.Info("router: stopped")
	})
	return err
}

// Pipeline returns the pipeline messages run through.
func (r *Router) Pipeline() *Pipeline {
	return r.pipeline
}
