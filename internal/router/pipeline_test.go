package router_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flemzord/llamacord/internal/channel"
	"github.com/flemzord/llamacord/internal/channel/channeltest"
	"github.com/flemzord/llamacord/internal/history"
	"github.com/flemzord/llamacord/internal/provider"
	"github.com/flemzord/llamacord/internal/provider/providertest"
	"github.com/flemzord/llamacord/internal/router"
	"github.com/flemzord/llamacord/internal/router/routertest"
	"github.com/flemzord/llamacord/pkg/message"
)

type fixture struct {
	pipeline *router.Pipeline
	store    *history.MemoryStore
	sender   *routertest.MockResponseSender
	provider *providertest.MockProvider
}

func newFixture(t *testing.T, maxTurns int, opts ...func(*router.PipelineConfig)) *fixture {
	t.Helper()

	store, err := history.NewMemoryStore(maxTurns)
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	f := &fixture{
		store:    store,
		sender:   &routertest.MockResponseSender{},
		provider: &providertest.MockProvider{CompleteFunc: providertest.Reply("hello there")},
	}
	cfg := router.PipelineConfig{
		History:  store,
		Mode:     history.ModePerIdentity,
		Provider: f.provider,
		Sender:   f.sender,
		Commands: router.Commands{Prefix: "!"},
		Policy: router.Policy{
			Mode: router.GroupPolicyRequireMention,
			AllowLists: map[string]*channel.AllowList{
				"discord": channel.NewAllowList([]string{channel.Wildcard}),
			},
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.pipeline, err = router.NewPipeline(cfg)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return f
}

func dm(sender, content string) message.InboundMessage {
	return message.InboundMessage{
		ID:        "m-" + sender,
		Timestamp: time.Now(),
		Channel:   "discord",
		Sender:    message.Sender{ID: sender, Username: sender},
		Chat:      message.Chat{ID: "dm-" + sender, Type: message.ChatDM},
		Content:   content,
	}
}

func mention(sender, content string) message.InboundMessage {
	m := dm(sender, "<@999> "+content)
	m.Chat = message.Chat{ID: "general", Type: message.ChatGroup, GuildID: "g1"}
	m.Mentions = &message.Mentions{IDs: []string{"999"}, IsMentioned: true}
	return m
}

func mustGet(t *testing.T, s history.Store, key history.Key) []provider.Turn {
	t.Helper()
	turns, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	return turns
}

func TestNewPipeline_MissingDependencies(t *testing.T) {
	t.Parallel()

	store, _ := history.NewMemoryStore(2)
	prov := &providertest.MockProvider{}
	sender := &routertest.MockResponseSender{}

	tests := []struct {
		name string
		cfg  router.PipelineConfig
		want error
	}{
		{"no history", router.PipelineConfig{Provider: prov, Sender: sender}, router.ErrNoHistory},
		{"no provider", router.PipelineConfig{History: store, Sender: sender}, router.ErrNoProvider},
		{"no sender", router.PipelineConfig{History: store, Provider: prov}, router.ErrNoResponseSender},
		{"bad mode", router.PipelineConfig{History: store, Provider: prov, Sender: sender, Mode: "global"}, history.ErrUnknownMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := router.NewPipeline(tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("NewPipeline() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPipeline_Chat(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 20)
	res := f.pipeline.Execute(context.Background(), dm("alice", "hi"))

	if res.Outcome != router.OutcomeChat {
		t.Fatalf("Outcome = %v, want chat (err=%v)", res.Outcome, res.Err)
	}
	if res.Key != "alice" {
		t.Errorf("Key = %q, want alice", res.Key)
	}
	if got := f.sender.SentTexts(); len(got) != 1 || got[0] != "hello there" {
		t.Errorf("sent = %q, want [hello there]", got)
	}

	req := f.provider.LastRequest()
	if len(req.Messages) != 1 || req.Messages[0] != provider.UserTurn("hi") {
		t.Errorf("request messages = %+v, want [user: hi]", req.Messages)
	}

	turns := mustGet(t, f.store, "alice")
	want := []provider.Turn{provider.UserTurn("hi"), provider.AssistantTurn("hello there")}
	if len(turns) != len(want) || turns[0] != want[0] || turns[1] != want[1] {
		t.Errorf("history = %+v, want %+v", turns, want)
	}
}

func TestPipeline_ChatStoresReturnedTurn(t *testing.T) {
	t.Parallel()

	returned := provider.Turn{Role: provider.RoleAssistant, Content: "line one\nline two"}
	f := newFixture(t, 20)
	f.provider.CompleteFunc = func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{Turn: returned, Usage: provider.TokenUsage{PromptTokens: 3, CompletionTokens: 4}}, nil
	}

	res := f.pipeline.Execute(context.Background(), dm("alice", "hi"))
	if res.Outcome != router.OutcomeChat {
		t.Fatalf("Outcome = %v, want chat (err=%v)", res.Outcome, res.Err)
	}

	turns := mustGet(t, f.store, "alice")
	if len(turns) != 2 || turns[1] != returned {
		t.Errorf("history = %+v, want assistant turn %+v last", turns, returned)
	}
	if got := f.sender.SentTexts(); len(got) != 1 || got[0] != returned.Content {
		t.Errorf("sent = %q, want [%q]", got, returned.Content)
	}
}

func TestPipeline_ChatSendsPriorContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 20)
	ctx := context.Background()
	f.pipeline.Execute(ctx, dm("alice", "first"))
	f.pipeline.Execute(ctx, dm("alice", "second"))

	req := f.provider.LastRequest()
	if len(req.Messages) != 3 {
		t.Fatalf("request has %d turns, want 3", len(req.Messages))
	}
	if req.Messages[2] != provider.UserTurn("second") {
		t.Errorf("last turn = %+v, want user: second", req.Messages[2])
	}
}

func TestPipeline_ChatSplitsReply(t *testing.T) {
	t.Parallel()

	ch := channeltest.NewMockChannel("discord", nil)
	ch.MaxLength = 10
	disp := channel.NewDispatcher()
	if err := disp.Register("discord", ch); err != nil {
		t.Fatalf("Register: %v", err)
	}

	f := newFixture(t, 20, func(c *router.PipelineConfig) { c.Channels = disp })
	f.provider.CompleteFunc = providertest.Reply("aaaa\nbbbb\ncccc")

	res := f.pipeline.Execute(context.Background(), dm("alice", "hi"))

	want := []string{"aaaa\nbbbb", "cccc"}
	got := f.sender.SentTexts()
	if len(got) != len(want) {
		t.Fatalf("sent %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fragment %d = %q, want %q", i, got[i], want[i])
		}
	}
	if strings.Join(res.Fragments, "\n") != "aaaa\nbbbb\ncccc" {
		t.Errorf("Fragments = %q", res.Fragments)
	}
}

func TestPipeline_InferenceFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 20)
	ctx := context.Background()
	f.pipeline.Execute(ctx, dm("alice", "first"))

	f.provider.CompleteFunc = func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{}, provider.BackendError(provider.ErrUnavailable, "connection refused")
	}
	res := f.pipeline.Execute(ctx, dm("alice", "second"))

	if res.Outcome != router.OutcomeFailed {
		t.Errorf("Outcome = %v, want failed", res.Outcome)
	}
	if !errors.Is(res.Err, provider.ErrBackend) {
		t.Errorf("Err = %v, want ErrBackend", res.Err)
	}

	sent := f.sender.SentTexts()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	diag := sent[1]
	if !strings.HasPrefix(diag, "Error talking to the model backend: ") || !strings.Contains(diag, "connection refused") {
		t.Errorf("diagnostic = %q", diag)
	}

	turns := mustGet(t, f.store, "alice")
	if len(turns) != 3 {
		t.Fatalf("history has %d turns, want 3", len(turns))
	}
	if turns[2] != provider.UserTurn("second") {
		t.Errorf("last turn = %+v, want user: second", turns[2])
	}
}

func TestPipeline_InferenceFailureBackendName(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 20, func(c *router.PipelineConfig) { c.BackendName = "Ollama" })
	f.provider.CompleteFunc = func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{}, provider.BackendError(provider.ErrBadStatus, "HTTP 500")
	}
	f.pipeline.Execute(context.Background(), dm("alice", "hi"))

	sent := f.sender.SentTexts()
	if len(sent) != 1 || !strings.HasPrefix(sent[0], "Error talking to Ollama: ") {
		t.Errorf("sent = %q", sent)
	}
}

func TestPipeline_CancelledInferenceSendsNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 20)
	f.provider.CompleteFunc = func(ctx context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{}, ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.pipeline.Execute(ctx, dm("alice", "hi"))
	if res.Outcome != router.OutcomeFailed {
		t.Errorf("Outcome = %v, want failed", res.Outcome)
	}
	if n := f.sender.SendCallCount(); n != 0 {
		t.Errorf("sent %d messages, want 0", n)
	}
}

func TestPipeline_Reset(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 20)
	ctx := context.Background()
	f.pipeline.Execute(ctx, dm("alice", "hi"))
	f.pipeline.Execute(ctx, dm("bob", "hi"))

	res := f.pipeline.Execute(ctx, dm("alice", "!reset"))
	if res.Outcome != router.OutcomeReset {
		t.Fatalf("Outcome = %v, want reset", res.Outcome)
	}
	if len(res.Fragments) != 1 || res.Fragments[0] != router.ReplyCleared {
		t.Errorf("Fragments = %q, want [%s]", res.Fragments, router.ReplyCleared)
	}
	if got := mustGet(t, f.store, "alice"); len(got) != 0 {
		t.Errorf("alice history = %+v, want empty", got)
	}
	if got := mustGet(t, f.store, "bob"); len(got) != 2 {
		t.Errorf("bob history has %d turns, want 2", len(got))
	}
	if calls := f.provider.Calls(); calls != 2 {
		t.Errorf("provider calls = %d, want 2", calls)
	}
}

func TestPipeline_ResetEmptyContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 20)
	res := f.pipeline.Execute(context.Background(), dm("alice", "!reset"))

	if res.Outcome != router.OutcomeReset {
		t.Errorf("Outcome = %v, want reset", res.Outcome)
	}
	if got := f.sender.SentTexts(); len(got) != 1 || got[0] != router.ReplyCleared {
		t.Errorf("sent = %q", got)
	}
}

func TestPipeline_History(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 20)
	ctx := context.Background()

	res := f.pipeline.Execute(ctx, dm("alice", "!history"))
	if res.Outcome != router.OutcomeHistory {
		t.Fatalf("Outcome = %v, want history", res.Outcome)
	}
	if len(res.Fragments) != 1 || res.Fragments[0] != router.ReplyEmptyHistory {
		t.Errorf("Fragments = %q, want [%s]", res.Fragments, router.ReplyEmptyHistory)
	}

	f.pipeline.Execute(ctx, dm("alice", "hi"))
	res = f.pipeline.Execute(ctx, dm("alice", "!history"))
	want := "user: hi\nassistant: hello there"
	if len(res.Fragments) != 1 || res.Fragments[0] != want {
		t.Errorf("Fragments = %q, want [%q]", res.Fragments, want)
	}
	if got := mustGet(t, f.store, "alice"); len(got) != 2 {
		t.Errorf("history command changed context: %+v", got)
	}
}

func TestPipeline_Filtered(t *testing.T) {
	t.Parallel()

	bot := dm("bot", "hi")
	bot.Sender.IsBot = true
	unaddressed := mention("alice", "hi")
	unaddressed.Mentions = nil

	tests := []struct {
		name string
		msg  message.InboundMessage
		want router.FilterReason
	}{
		{"bot author", bot, router.FilterBotAuthor},
		{"not addressed", unaddressed, router.FilterNotAddressed},
		{"only a mention", mention("alice", ""), router.FilterEmptyContent},
		{"blank dm", dm("alice", "   "), router.FilterEmptyContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, 20)
			res := f.pipeline.Execute(context.Background(), tt.msg)
			if res.Outcome != router.OutcomeFiltered || res.Reason != tt.want {
				t.Errorf("got %v/%q, want filtered/%q", res.Outcome, res.Reason, tt.want)
			}
			if n := f.sender.SendCallCount(); n != 0 {
				t.Errorf("sent %d messages, want 0", n)
			}
			if n := f.provider.Calls(); n != 0 {
				t.Errorf("provider called %d times, want 0", n)
			}
		})
	}
}

func TestPipeline_ReplyTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 20)
	ctx := context.Background()

	in := mention("alice", "hi")
	f.pipeline.Execute(ctx, in)
	f.pipeline.Execute(ctx, dm("bob", "hi"))

	sent := f.sender.SentMessages()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	if sent[0].ReplyToID != in.ID || sent[0].Chat.ID != "general" {
		t.Errorf("channel reply = %+v, want reference to %s", sent[0], in.ID)
	}
	if sent[1].ReplyToID != "" {
		t.Errorf("dm reply references %q, want none", sent[1].ReplyToID)
	}

	req := f.provider.Requests[0]
	if req.Messages[0].Content != "hi" {
		t.Errorf("user turn = %q, want mention stripped", req.Messages[0].Content)
	}
}

func TestPipeline_SharedMode(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 20, func(c *router.PipelineConfig) { c.Mode = history.ModeShared })
	ctx := context.Background()
	f.pipeline.Execute(ctx, dm("alice", "one"))
	res := f.pipeline.Execute(ctx, dm("bob", "two"))

	if res.Key != history.SharedKey {
		t.Errorf("Key = %q, want %q", res.Key, history.SharedKey)
	}
	if got := mustGet(t, f.store, history.SharedKey); len(got) != 4 {
		t.Errorf("shared context has %d turns, want 4", len(got))
	}
}

func TestPipeline_ZeroMaxTurns(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	res := f.pipeline.Execute(context.Background(), dm("alice", "hi"))

	if res.Outcome != router.OutcomeChat {
		t.Errorf("Outcome = %v, want chat", res.Outcome)
	}
	if got := f.provider.LastRequest().Messages; len(got) != 0 {
		t.Errorf("request messages = %+v, want none", got)
	}
	if got := mustGet(t, f.store, "alice"); len(got) != 0 {
		t.Errorf("history = %+v, want empty", got)
	}
}

func TestPipeline_SkipsBlankFragments(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 20)
	f.provider.CompleteFunc = providertest.Reply("  \n ")

	res := f.pipeline.Execute(context.Background(), dm("alice", "hi"))
	if res.Outcome != router.OutcomeChat {
		t.Errorf("Outcome = %v, want chat", res.Outcome)
	}
	if n := f.sender.SendCallCount(); n != 0 {
		t.Errorf("sent %d messages, want 0", n)
	}
}

func TestPipeline_SendFailureStopsEmission(t *testing.T) {
	t.Parallel()

	ch := channeltest.NewMockChannel("discord", nil)
	ch.MaxLength = 4
	disp := channel.NewDispatcher()
	_ = disp.Register("discord", ch)

	f := newFixture(t, 20, func(c *router.PipelineConfig) { c.Channels = disp })
	f.provider.CompleteFunc = providertest.Reply("aaa\nbbb\nccc")
	errSend := errors.New("boom")
	f.sender.SendFunc = func(context.Context, message.OutboundMessage) error { return errSend }

	res := f.pipeline.Execute(context.Background(), dm("alice", "hi"))
	if !errors.Is(res.Err, errSend) {
		t.Errorf("Err = %v, want %v", res.Err, errSend)
	}
	if n := f.sender.SendCallCount(); n != 1 {
		t.Errorf("send calls = %d, want 1", n)
	}
	if len(res.Fragments) != 0 {
		t.Errorf("Fragments = %q, want none delivered", res.Fragments)
	}
	if got := mustGet(t, f.store, "alice"); len(got) != 2 {
		t.Errorf("history has %d turns, want 2", len(got))
	}
}

func TestPipeline_Typing(t *testing.T) {
	t.Parallel()

	ch := channeltest.NewMockChannel("discord", nil)
	disp := channel.NewDispatcher()
	_ = disp.Register("discord", ch)

	f := newFixture(t, 20, func(c *router.PipelineConfig) {
		c.Channels = disp
		c.Typing = true
	})
	f.provider.CompleteFunc = func(ctx context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
		deadline := time.Now().Add(time.Second)
		for len(ch.TypingChats()) == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		return provider.CompletionResponse{Turn: provider.AssistantTurn("done")}, nil
	}

	in := dm("alice", "hi")
	f.pipeline.Execute(context.Background(), in)

	chats := ch.TypingChats()
	if len(chats) == 0 {
		t.Fatal("no typing indicator sent")
	}
	if chats[0] != in.Chat {
		t.Errorf("typing chat = %+v, want %+v", chats[0], in.Chat)
	}
}

func TestPipeline_SameKeySerialized(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 20)
	var active, peak atomic.Int32
	f.provider.CompleteFunc = func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return provider.CompletionResponse{Turn: provider.AssistantTurn("ok")}, nil
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			f.pipeline.Execute(context.Background(), dm("alice", "hi"))
		})
	}
	wg.Wait()

	if got := peak.Load(); got != 1 {
		t.Errorf("peak concurrent completions = %d, want 1", got)
	}
	turns := mustGet(t, f.store, "alice")
	if len(turns) != 20 {
		t.Fatalf("history has %d turns, want 20", len(turns))
	}
	for i, turn := range turns {
		want := provider.RoleUser
		if i%2 == 1 {
			want = provider.RoleAssistant
		}
		if turn.Role != want {
			t.Fatalf("turn %d role = %s, want %s", i, turn.Role, want)
		}
	}
}

func TestPipeline_AdminOperations(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 20)
	ctx := context.Background()
	f.pipeline.Execute(ctx, dm("alice", "hi"))
	f.pipeline.Execute(ctx, dm("bob", "hi"))

	keys, err := f.pipeline.Contexts()
	if err != nil {
		t.Fatalf("Contexts: %v", err)
	}
	if len(keys) != 2 || keys[0].Key != "alice" || keys[0].Turns != 2 {
		t.Errorf("Contexts = %+v", keys)
	}

	snap, err := f.pipeline.Snapshot("alice")
	if err != nil || len(snap) != 2 {
		t.Fatalf("Snapshot = %+v, %v", snap, err)
	}

	if err := f.pipeline.Reset("alice"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := mustGet(t, f.store, "alice"); len(got) != 0 {
		t.Errorf("alice history = %+v after Reset", got)
	}
	if n := f.sender.SendCallCount(); n != 2 {
		t.Errorf("admin reset sent messages: %d calls", n)
	}
}

func TestRenderHistory(t *testing.T) {
	t.Parallel()

	if got := router.RenderHistory(nil); got != "" {
		t.Errorf("RenderHistory(nil) = %q, want empty", got)
	}
	got := router.RenderHistory([]provider.Turn{
		provider.UserTurn("a\nb"),
		provider.AssistantTurn("c"),
	})
	if want := "user: a\nb\nassistant: c"; got != want {
		t.Errorf("RenderHistory = %q, want %q", got, want)
	}
}
