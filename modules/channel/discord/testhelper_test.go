package discord

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gatewayScript drives one accepted connection. attempt starts at 1.
type gatewayScript func(ctx context.Context, t *testing.T, conn *websocket.Conn, attempt int)

// newGatewayServer starts a websocket server running script for every
// connection and returns its ws:// URL.
func newGatewayServer(t *testing.T, script gatewayScript) string {
	t.Helper()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow() //nolint:errcheck // test cleanup
		script(r.Context(), t, conn, int(attempts.Add(1)))
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/?v=10&encoding=json"
}

func serverSend(ctx context.Context, t *testing.T, conn *websocket.Conn, op int, event string, seq int64, d any) {
	t.Helper()
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	p := payload{Op: op, D: raw, T: event}
	if seq > 0 {
		p.S = &seq
	}
	data, _ := json.Marshal(p)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Errorf("server write op %d: %v", op, err)
	}
}

func serverRecv(ctx context.Context, t *testing.T, conn *websocket.Conn) (payload, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	p, err := readPayload(ctx, conn)
	if err != nil {
		t.Errorf("server read: %v", err)
		return payload{}, false
	}
	return p, true
}

// drain reads until the client goes away.
func drain(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func sendHello(ctx context.Context, t *testing.T, conn *websocket.Conn) {
	t.Helper()
	serverSend(ctx, t, conn, opHello, "", 0, helloData{HeartbeatInterval: 60000})
}

func sendReady(ctx context.Context, t *testing.T, conn *websocket.Conn, seq int64) {
	t.Helper()
	serverSend(ctx, t, conn, opDispatch, eventReady, seq, readyData{
		SessionID: "sess-1",
		User:      User{ID: "42", Username: "llamacord", Bot: true},
	})
}

func waitFrame[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	var zero T
	return zero
}
