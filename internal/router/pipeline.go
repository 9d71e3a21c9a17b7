package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/llamacord/internal/channel"
	"github.com/flemzord/llamacord/internal/history"
	"github.com/flemzord/llamacord/internal/metrics"
	"github.com/flemzord/llamacord/internal/provider"
	"github.com/flemzord/llamacord/internal/telemetry"
	"github.com/flemzord/llamacord/pkg/message"
)

// Fixed replies.
const (
	ReplyCleared      = "History cleared!"
	ReplyEmptyHistory = "History is empty."
)

const defaultBackendName = "the model backend"

// PipelineService is the AppContext service name of the running Pipeline.
const PipelineService = "router.pipeline"

// ResponseSender delivers outbound messages to their channel.
type ResponseSender interface {
	Send(ctx context.Context, msg message.OutboundMessage) error
}

// ChannelLookup resolves channels by name. Used for size limits and typing
// indicators.
type ChannelLookup interface {
	Get(name string) (channel.Channel, bool)
}

// Outcome classifies how a message was handled.
type Outcome int

// Pipeline outcomes.
const (
	OutcomeFiltered Outcome = iota
	OutcomeChat
	OutcomeReset
	OutcomeHistory
	// OutcomeFailed means the message was accepted but could not be served.
	// A diagnostic reply is still emitted when possible.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFiltered:
		return metrics.OutcomeFiltered
	case OutcomeChat:
		return metrics.OutcomeChat
	case OutcomeReset:
		return metrics.OutcomeReset
	case OutcomeHistory:
		return metrics.OutcomeHistory
	default:
		return metrics.OutcomeFailed
	}
}

// PipelineConfig groups the dependencies of a Pipeline.
type PipelineConfig struct {
	History  history.Store
	Mode     history.Mode
	Provider provider.Provider
	Sender   ResponseSender
	Policy   Policy
	Commands Commands

	// LaneLock serializes work per conversation key. Nil creates a private one.
	LaneLock *LaneLock

	// Channels resolves channels for size limits and typing. Nil means the
	// default size limit and no typing indicator.
	Channels ChannelLookup

	// Typing enables the typing indicator while waiting on inference.
	Typing         bool
	TypingInterval time.Duration

	// BackendName names the inference backend in failure replies.
	BackendName string

	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// Result is the outcome of one message.
type Result struct {
	Outcome Outcome
	// Reason is set when Outcome is OutcomeFiltered.
	Reason FilterReason
	Key    history.Key
	// Fragments lists the texts delivered, in order.
	Fragments []string
	Err       error
}

// Pipeline processes one inbound message: filter, classify, dispatch.
type Pipeline struct {
	cfg PipelineConfig
}

// NewPipeline validates cfg and creates a Pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.History == nil {
		return nil, ErrNoHistory
	}
	if cfg.Provider == nil {
		return nil, ErrNoProvider
	}
	if cfg.Sender == nil {
		return nil, ErrNoResponseSender
	}
	if cfg.Mode == "" {
		cfg.Mode = history.ModePerIdentity
	}
	if err := cfg.Mode.Validate(); err != nil {
		return nil, err
	}
	if cfg.LaneLock == nil {
		cfg.LaneLock = NewLaneLock()
	}
	if cfg.BackendName == "" {
		cfg.BackendName = defaultBackendName
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{cfg: cfg}, nil
}

// WithSender returns a Pipeline that shares p's history and lanes but
// delivers replies through s.
func (p *Pipeline) WithSender(s ResponseSender) *Pipeline {
	cfg := p.cfg
	cfg.Sender = s
	return &Pipeline{cfg: cfg}
}

// Execute runs the pipeline for a single message.
func (p *Pipeline) Execute(ctx context.Context, msg message.InboundMessage) Result {
	requestID := uuid.NewString()
	logger := p.cfg.Logger.With(
		"request_id", requestID,
		"channel", msg.Channel,
		"chat_id", msg.Chat.ID,
		"sender", msg.Sender.ID,
	)

	ctx, span := telemetry.Tracer().Start(ctx, "router.execute",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("llamacord.request_id", requestID),
			attribute.String("llamacord.channel", msg.Channel),
			attribute.String("llamacord.chat_id", msg.Chat.ID),
		),
	)
	defer span.End()

	res := p.execute(ctx, msg, logger)

	span.SetAttributes(
		attribute.String("llamacord.outcome", res.Outcome.String()),
		attribute.Int("llamacord.fragments", len(res.Fragments)),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	p.cfg.Metrics.RecordMessage(res.Outcome.String())
	return res
}

func (p *Pipeline) execute(ctx context.Context, msg message.InboundMessage, logger *slog.Logger) Result {
	// Step 1: filter.
	if reason := p.cfg.Policy.Check(msg); reason != "" {
		logger.Debug("router: message filtered", "reason", reason)
		return Result{Outcome: OutcomeFiltered, Reason: reason}
	}
	text := CleanContent(msg.Content)
	if text == "" {
		logger.Debug("router: message filtered", "reason", FilterEmptyContent)
		return Result{Outcome: OutcomeFiltered, Reason: FilterEmptyContent}
	}

	// Step 2: classify.
	key := p.cfg.Mode.KeyFor(msg.Sender.ID)
	cmd := p.cfg.Commands.Classify(text)
	logger = logger.With("key", string(key), "command", cmd.Kind.String())

	// Step 3: dispatch under the conversation lane.
	p.cfg.LaneLock.Acquire(key)
	defer p.cfg.LaneLock.Release(key)

	var res Result
	switch cmd.Kind {
	case CommandReset:
		res = p.reset(ctx, msg, key, logger)
	case CommandHistory:
		res = p.history(ctx, msg, key, logger)
	default:
		res = p.chat(ctx, msg, key, cmd.Text, logger)
	}
	res.Key = key
	return res
}

func (p *Pipeline) reset(ctx context.Context, msg message.InboundMessage, key history.Key, logger *slog.Logger) Result {
	if err := p.cfg.History.Clear(key); err != nil {
		logger.Error("router: clearing history failed", "error", err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	logger.Info("router: history cleared")
	sent, err := p.emit(ctx, msg, []string{ReplyCleared}, logger)
	return Result{Outcome: OutcomeReset, Fragments: sent, Err: err}
}

func (p *Pipeline) history(ctx context.Context, msg message.InboundMessage, key history.Key, logger *slog.Logger) Result {
	turns, err := p.cfg.History.Get(key)
	if err != nil {
		logger.Error("router: reading history failed", "error", err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	text := RenderHistory(turns)
	if text == "" {
		text = ReplyEmptyHistory
	}
	sent, err := p.emit(ctx, msg, channel.Split(text, p.maxLength(msg.Channel)), logger)
	return Result{Outcome: OutcomeHistory, Fragments: sent, Err: err}
}

func (p *Pipeline) chat(ctx context.Context, msg message.InboundMessage, key history.Key, text string, logger *slog.Logger) Result {
	if err := p.cfg.History.Append(key, provider.UserTurn(text)); err != nil {
		logger.Error("router: appending user turn failed", "error", err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	turns, err := p.cfg.History.Get(key)
	if err != nil {
		logger.Error("router: reading history failed", "error", err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	stopTyping := p.startTyping(ctx, msg)
	start := time.Now()
	resp, err := p.cfg.Provider.Complete(ctx, provider.CompletionRequest{Messages: turns})
	stopTyping()
	p.cfg.Metrics.RecordCompletion(time.Since(start), resp.Usage.PromptTokens, resp.Usage.CompletionTokens, err)

	limit := p.maxLength(msg.Channel)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("router: inference cancelled", "error", err)
			return Result{Outcome: OutcomeFailed, Err: err}
		}
		logger.Error("router: inference failed", "error", err, "turns", len(turns))
		diag := truncate(fmt.Sprintf("Error talking to %s: %v", p.cfg.BackendName, err), limit)
		sent, sendErr := p.emit(ctx, msg, []string{diag}, logger)
		if sendErr != nil {
			logger.Warn("router: diagnostic not delivered", "error", sendErr)
		}
		return Result{Outcome: OutcomeFailed, Fragments: sent, Err: err}
	}

	if err := p.cfg.History.Append(key, resp.Turn); err != nil {
		logger.Error("router: appending assistant turn failed", "error", err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	fragments := channel.Split(resp.Turn.Content, limit)
	if len(fragments) == 0 {
		logger.Warn("router: empty completion, nothing to send")
	}
	logger.Info("router: completion received",
		"duration", resp.Duration,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"fragments", len(fragments),
	)
	sent, err := p.emit(ctx, msg, fragments, logger)
	return Result{Outcome: OutcomeChat, Fragments: sent, Err: err}
}

// emit sends fragments in order as replies to msg and returns those that
// were delivered. Whitespace-only fragments are skipped. Delivery stops at
// the first failure.
func (p *Pipeline) emit(ctx context.Context, msg message.InboundMessage, fragments []string, logger *slog.Logger) ([]string, error) {
	sent := make([]string, 0, len(fragments))
	for _, frag := range fragments {
		if strings.TrimSpace(frag) == "" {
			continue
		}
		err := p.cfg.Sender.Send(ctx, message.ReplyTo(msg, frag))
		p.cfg.Metrics.RecordFragment(err)
		if err != nil {
			logger.Error("router: sending reply failed", "error", err, "sent", len(sent))
			return sent, fmt.Errorf("sending reply fragment: %w", err)
		}
		sent = append(sent, frag)
	}
	return sent, nil
}

func (p *Pipeline) maxLength(name string) int {
	if p.cfg.Channels != nil {
		if ch, ok := p.cfg.Channels.Get(name); ok {
			return channel.MaxLength(ch)
		}
	}
	return channel.DefaultMaxLength
}

func (p *Pipeline) startTyping(ctx context.Context, msg message.InboundMessage) context.CancelFunc {
	if !p.cfg.Typing || p.cfg.Channels == nil {
		return func() {}
	}
	ch, ok := p.cfg.Channels.Get(msg.Channel)
	if !ok {
		return func() {}
	}
	tc, ok := ch.(channel.TypingChannel)
	if !ok {
		return func() {}
	}
	typingCtx, cancel := context.WithCancel(ctx)
	channel.StartTypingLoop(typingCtx, tc, msg.Chat, p.cfg.TypingInterval)
	return cancel
}

// Contexts lists the live conversation contexts.
func (p *Pipeline) Contexts() ([]history.KeyInfo, error) {
	return p.cfg.History.Keys()
}

// Snapshot returns a copy of the context stored under key.
func (p *Pipeline) Snapshot(key history.Key) ([]provider.Turn, error) {
	p.cfg.LaneLock.Acquire(key)
	defer p.cfg.LaneLock.Release(key)
	return p.cfg.History.Get(key)
}

// Reset clears the context stored under key, waiting for any turn in
// progress on that key.
func (p *Pipeline) Reset(key history.Key) error {
	p.cfg.LaneLock.Acquire(key)
	defer p.cfg.LaneLock.Release(key)
	return p.cfg.History.Clear(key)
}

// Mode returns the history key mode.
func (p *Pipeline) Mode() history.Mode {
	return p.cfg.Mode
}

// RenderHistory formats turns as "role: content" lines. Empty input renders
// as the empty string.
func RenderHistory(turns []provider.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}

// truncate cuts s to at most limit characters.
func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
