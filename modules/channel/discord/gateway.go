package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	neturl "net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

const (
	gatewayReadLimit  = 4 << 20 // READY can be large for bots in many guilds.
	helloTimeout      = 20 * time.Second
	minReconnectDelay = time.Second
	maxReconnectDelay = 2 * time.Minute
)

// Sentinel errors for gateway sessions.
var (
	errReconnect      = errors.New("discord: gateway requested reconnect")
	errInvalidSession = errors.New("discord: gateway invalidated session")
	errZombie         = errors.New("discord: heartbeat not acknowledged")
)

// fatalCloseCodes are gateway close codes after which reconnecting is pointless.
var fatalCloseCodes = map[websocket.StatusCode]string{
	4004: "authentication failed",
	4010: "invalid shard",
	4011: "sharding required",
	4012: "invalid API version",
	4013: "invalid intents",
	4014: "disallowed intents",
}

// EventHandler receives dispatch events.
type EventHandler func(event string, data json.RawMessage)

// Gateway keeps a websocket session to the Discord gateway alive: it
// identifies, heartbeats, resumes after drops and forwards dispatch events.
type Gateway struct {
	url     string
	token   string
	intents int
	handler EventHandler
	logger  *slog.Logger

	// reconnectDelay is the initial wait between connection attempts.
	reconnectDelay time.Duration
	// jitter returns the fraction of the interval to wait before the first beat.
	jitter func() float64

	mu        sync.Mutex
	sessionID string
	resumeURL string
	selfID    string
	seq       atomic.Int64
	ready     atomic.Bool

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewGateway creates a Gateway. Call Start to connect.
func NewGateway(url, token string, intents int, handler EventHandler, logger *slog.Logger) *Gateway {
	return &Gateway{
		url:            url,
		token:          token,
		intents:        intents,
		handler:        handler,
		logger:         logger,
		reconnectDelay: minReconnectDelay,
		jitter:         rand.Float64,
		done:           make(chan struct{}),
	}
}

// Start launches the connection loop in a goroutine.
func (g *Gateway) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	go g.loop(ctx)
}

// Stop closes the session and waits for the loop to exit.
// It is safe to call Stop multiple times.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		if g.cancel != nil {
			g.cancel()
			<-g.done
		}
	})
}

// SelfID returns the bot user ID announced in READY.
func (g *Gateway) SelfID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selfID
}

func (g *Gateway) loop(ctx context.Context) {
	defer close(g.done)

	delay := g.reconnectDelay
	for {
		err := g.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if g.ready.Swap(false) {
			delay = g.reconnectDelay
		}

		if reason, fatal := fatalCloseCodes[websocket.CloseStatus(err)]; fatal {
			g.logger.Error("discord: gateway closed permanently", "reason", reason, "error", err)
			return
		}

		switch {
		case errors.Is(err, errReconnect), errors.Is(err, errInvalidSession):
			g.logger.Info("discord: gateway reconnecting", "reason", err)
		default:
			g.logger.Warn("discord: gateway connection lost", "error", err, "retry_in", delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

// connect runs one websocket session until it ends.
func (g *Gateway) connect(ctx context.Context) error {
	g.mu.Lock()
	url, resuming := g.url, g.sessionID != ""
	if resuming && g.resumeURL != "" {
		url = withQuery(g.resumeURL, g.url)
	}
	g.mu.Unlock()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("discord: dial gateway: %w", err)
	}
	defer conn.CloseNow() //nolint:errcheck // best-effort close
	conn.SetReadLimit(gatewayReadLimit)

	helloCtx, cancel := context.WithTimeout(ctx, helloTimeout)
	hello, err := readPayload(helloCtx, conn)
	cancel()
	if err != nil {
		return fmt.Errorf("discord: read hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("discord: expected hello, got op %d", hello.Op)
	}
	var hd helloData
	if err := json.Unmarshal(hello.D, &hd); err != nil || hd.HeartbeatInterval <= 0 {
		return fmt.Errorf("discord: invalid hello payload: %s", hello.D)
	}

	if resuming {
		err = g.sendResume(ctx, conn)
	} else {
		err = g.sendIdentify(ctx, conn)
	}
	if err != nil {
		return err
	}

	sessCtx, stopHeartbeat := context.WithCancelCause(ctx)
	defer stopHeartbeat(nil)

	var acked atomic.Bool
	acked.Store(true)
	go g.heartbeat(sessCtx, conn, time.Duration(hd.HeartbeatInterval)*time.Millisecond, &acked, stopHeartbeat)

	for {
		p, err := readPayload(sessCtx, conn)
		if err != nil {
			if cause := context.Cause(sessCtx); cause != nil && !errors.Is(cause, context.Canceled) {
				return cause
			}
			return err
		}
		if p.S != nil {
			g.seq.Store(*p.S)
		}

		switch p.Op {
		case opDispatch:
			g.dispatch(p)
		case opHeartbeat:
			if err := g.sendHeartbeat(sessCtx, conn); err != nil {
				return err
			}
		case opHeartbeatACK:
			acked.Store(true)
		case opReconnect:
			_ = conn.Close(websocket.StatusCode(4000), "reconnect requested")
			return errReconnect
		case opInvalidSession:
			var resumable bool
			_ = json.Unmarshal(p.D, &resumable)
			if !resumable {
				g.clearSession()
			}
			_ = conn.Close(websocket.StatusCode(4000), "invalid session")
			return errInvalidSession
		}
	}
}

func (g *Gateway) dispatch(p payload) {
	switch p.T {
	case eventReady:
		var rd readyData
		if err := json.Unmarshal(p.D, &rd); err != nil {
			g.logger.Error("discord: decode READY", "error", err)
			return
		}
		g.mu.Lock()
		g.sessionID = rd.SessionID
		g.resumeURL = rd.ResumeGatewayURL
		g.selfID = rd.User.ID
		g.mu.Unlock()
		g.ready.Store(true)
		g.logger.Info("discord: gateway ready", "user", rd.User.Username, "id", rd.User.ID)
	case eventResumed:
		g.ready.Store(true)
		g.logger.Info("discord: gateway session resumed")
	}
	if g.handler != nil {
		g.handler(p.T, p.D)
	}
}

func (g *Gateway) heartbeat(ctx context.Context, conn *websocket.Conn, interval time.Duration, acked *atomic.Bool, fail context.CancelCauseFunc) {
	// The first beat is jittered so reconnecting clients spread out.
	timer := time.NewTimer(time.Duration(g.jitter() * float64(interval)))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if !acked.Swap(false) {
			fail(errZombie)
			_ = conn.Close(websocket.StatusCode(4000), "heartbeat timeout")
			return
		}
		if err := g.sendHeartbeat(ctx, conn); err != nil {
			fail(fmt.Errorf("discord: send heartbeat: %w", err))
			return
		}
		timer.Reset(interval)
	}
}

func (g *Gateway) sendHeartbeat(ctx context.Context, conn *websocket.Conn) error {
	var d any
	if seq := g.seq.Load(); seq > 0 {
		d = seq
	}
	return writePayload(ctx, conn, opHeartbeat, d)
}

func (g *Gateway) sendIdentify(ctx context.Context, conn *websocket.Conn) error {
	g.seq.Store(0)
	return writePayload(ctx, conn, opIdentify, identifyData{
		Token:   g.token,
		Intents: g.intents,
		Properties: identifyProperties{
			OS:      "linux",
			Browser: "llamacord",
			Device:  "llamacord",
		},
	})
}

func (g *Gateway) sendResume(ctx context.Context, conn *websocket.Conn) error {
	g.mu.Lock()
	sessionID := g.sessionID
	g.mu.Unlock()
	return writePayload(ctx, conn, opResume, resumeData{
		Token:     g.token,
		SessionID: sessionID,
		Seq:       g.seq.Load(),
	})
}

func (g *Gateway) clearSession() {
	g.mu.Lock()
	g.sessionID = ""
	g.resumeURL = ""
	g.mu.Unlock()
}

// withQuery copies the version and encoding query of base onto target when
// target has none. resume_gateway_url is announced without them.
func withQuery(target, base string) string {
	t, err := neturl.Parse(target)
	if err != nil || t.RawQuery != "" {
		return target
	}
	if b, err := neturl.Parse(base); err == nil {
		t.RawQuery = b.RawQuery
	}
	return t.String()
}

func readPayload(ctx context.Context, conn *websocket.Conn) (payload, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return payload{}, err
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return payload{}, fmt.Errorf("discord: decode gateway frame: %w", err)
	}
	return p, nil
}

func writePayload(ctx context.Context, conn *websocket.Conn, op int, d any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("discord: marshal op %d: %w", op, err)
	}
	data, err := json.Marshal(payload{Op: op, D: raw})
	if err != nil {
		return fmt.Errorf("discord: marshal frame: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
