// Package routertest provides mock implementations of router interfaces for testing.
package routertest

import (
	"context"
	"sync"

	"github.com/flemzord/llamacord/internal/router"
	"github.com/flemzord/llamacord/pkg/message"
)

// MockResponseSender records sent messages for test assertions.
type MockResponseSender struct {
	SendFunc  func(ctx context.Context, msg message.OutboundMessage) error
	mu        sync.Mutex
	sent      []message.OutboundMessage
	sendCalls int
}

// Send records the outbound message and optionally delegates to SendFunc.
// Messages rejected by SendFunc are still recorded.
func (m *MockResponseSender) Send(ctx context.Context, msg message.OutboundMessage) error {
	m.mu.Lock()
	m.sendCalls++
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return nil
}

// SentMessages returns a copy of all recorded outbound messages.
// Safe for concurrent use.
func (m *MockResponseSender) SentMessages() []message.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]message.OutboundMessage, len(m.sent))
	copy(cp, m.sent)
	return cp
}

// SentTexts returns the text of every recorded message, in order.
func (m *MockResponseSender) SentTexts() []string {
	msgs := m.SentMessages()
	out := make([]string, len(msgs))
	for i, msg := range msgs {
		out[i] = msg.Text
	}
	return out
}

// SendCallCount returns the number of times Send was called.
// Safe for concurrent use.
func (m *MockResponseSender) SendCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendCalls
}

// Interface guards.
var _ router.ResponseSender = (*MockResponseSender)(nil)
