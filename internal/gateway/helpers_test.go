package gateway

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/llamacord/internal/cron"
	"github.com/flemzord/llamacord/internal/history"
	"github.com/flemzord/llamacord/internal/provider"
)

var errStore = errors.New("store unavailable")

// fakeAdmin is an in-memory HistoryAdmin.
type fakeAdmin struct {
	mu       sync.Mutex
	contexts map[history.Key][]provider.Turn
	fail     bool
	resets   []history.Key
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{contexts: map[history.Key][]provider.Turn{
		"u1": {
			{Role: provider.RoleUser, Content: "hi"},
			{Role: provider.RoleAssistant, Content: "hello"},
		},
	}}
}

func (f *fakeAdmin) Contexts() ([]history.KeyInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errStore
	}
	var out []history.KeyInfo
	for k, turns := range f.contexts {
		out = append(out, history.KeyInfo{Key: k, Turns: len(turns)})
	}
	return out, nil
}

func (f *fakeAdmin) Snapshot(key history.Key) ([]provider.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errStore
	}
	return append([]provider.Turn(nil), f.contexts[key]...), nil
}

func (f *fakeAdmin) Reset(key history.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStore
	}
	f.resets = append(f.resets, key)
	delete(f.contexts, key)
	return nil
}

func (f *fakeAdmin) Mode() history.Mode { return history.ModePerIdentity }

// fakeBackend reports a fixed probe result.
type fakeBackend struct {
	health cron.BackendHealth
}

func (f fakeBackend) BackendHealth() cron.BackendHealth { return f.health }

// fakeMetrics serves a fixed exposition body.
type fakeMetrics struct{}

func (fakeMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "llamacord_backend_up 1\n")
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestGateway returns a configured Gateway with the given dependencies
// resolved, without a listener.
func newTestGateway(t *testing.T, auth AuthConfig, admin HistoryAdmin, backend BackendReporter) *Gateway {
	t.Helper()
	g := &Gateway{
		config:  Config{Auth: auth},
		logger:  discardLogger(),
		admin:   admin,
		backend: backend,
		metrics: fakeMetrics{},
	}
	g.config.defaults()
	return g
}

// do runs a request against the full router.
func do(t *testing.T, h http.Handler, method, path string, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func mustYAMLNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	return doc.Content[0]
}
