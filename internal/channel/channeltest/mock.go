// Package channeltest provides test doubles for the channel package.
package channeltest

import (
	"context"
	"sync"

	"github.com/flemzord/llamacord/internal/channel"
	"github.com/flemzord/llamacord/internal/core"
	"github.com/flemzord/llamacord/pkg/message"
)

// MockChannel is a test double that implements channel.TypingChannel. It
// records sent messages and typing indicators, and lets tests push inbound
// messages via Simulate.
type MockChannel struct {
	name      string
	allowList *channel.AllowList

	// MaxLength overrides the message size limit when positive.
	MaxLength int

	// SendFunc, if set, is called after the message is recorded; its error
	// is returned from Send.
	SendFunc func(ctx context.Context, msg message.OutboundMessage) error

	mu     sync.Mutex
	inbox  func(msg message.InboundMessage) error
	sent   []message.OutboundMessage
	typing []message.Chat
}

// Compile-time interface guards.
var (
	_ channel.TypingChannel  = (*MockChannel)(nil)
	_ channel.LimitedChannel = (*MockChannel)(nil)
	_ channel.AllowListed    = (*MockChannel)(nil)
)

// NewMockChannel creates a MockChannel named name. A nil allowList allows
// direct messages only.
func NewMockChannel(name string, allowList *channel.AllowList) *MockChannel {
	return &MockChannel{name: name, allowList: allowList}
}

// ModuleInfo implements core.Module.
func (m *MockChannel) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID: core.ModuleID("channel." + m.name),
		New: func() core.Module {
			return NewMockChannel(m.name, m.allowList)
		},
	}
}

// Send records the outbound message.
func (m *MockChannel) Send(ctx context.Context, msg message.OutboundMessage) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	fn := m.SendFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, msg)
	}
	return nil
}

// SendTyping records the chat.
func (m *MockChannel) SendTyping(_ context.Context, chat message.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, chat)
	return nil
}

// SetInbox stores the inbox callback provided by the router.
func (m *MockChannel) SetInbox(fn func(msg message.InboundMessage) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = fn
}

// MaxMessageLength implements channel.LimitedChannel.
func (m *MockChannel) MaxMessageLength() int {
	return m.MaxLength
}

// AllowList implements channel.AllowListed.
func (m *MockChannel) AllowList() *channel.AllowList {
	return m.allowList
}

// Simulate tags msg with this channel's module ID, as real channels do, and
// pushes it into the inbox.
// It returns channel.ErrNoInbox if SetInbox has not been called.
func (m *MockChannel) Simulate(msg message.InboundMessage) error {
	m.mu.Lock()
	inbox := m.inbox
	m.mu.Unlock()

	if inbox == nil {
		return channel.ErrNoInbox
	}
	msg.Channel = string(m.ModuleInfo().ID)
	return inbox(msg)
}

// SentMessages returns a copy of all outbound messages recorded by Send.
func (m *MockChannel) SentMessages() []message.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]message.OutboundMessage, len(m.sent))
	copy(cp, m.sent)
	return cp
}

// SentTexts returns the text of every recorded outbound message, in order.
func (m *MockChannel) SentTexts() []string {
	sent := m.SentMessages()
	texts := make([]string, len(sent))
	for i, msg := range sent {
		texts[i] = msg.Text
	}
	return texts
}

// TypingChats returns a copy of all chats that received typing indicators.
func (m *MockChannel) TypingChats() []message.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]message.Chat, len(m.typing))
	copy(cp, m.typing)
	return cp
}

// Reset clears recorded messages and typing indicators.
func (m *MockChannel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.typing = nil
}
