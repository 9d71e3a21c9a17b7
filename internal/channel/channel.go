// Package channel defines the bridge between chat platforms and the router:
// the Channel interface, outbound dispatch, reply chunking, typing
// indicators, and channel allow-lists.
package channel

import (
	"context"

	"github.com/flemzord/llamacord/internal/core"
	"github.com/flemzord/llamacord/pkg/message"
)

// Channel is the bridge between a chat platform and the router.
//
// A channel receives events from its platform, converts them to
// InboundMessage and pushes them to the router via the inbox callback.
// It delivers router replies via Send, one call per fragment.
type Channel interface {
	core.Module

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg message.OutboundMessage) error

	// SetInbox gives the channel a function to push inbound messages to the
	// router. Called during wiring, before Start().
	SetInbox(fn func(msg message.InboundMessage) error)
}

// TypingChannel is implemented by channels that can show a typing
// indicator while a reply is generated.
type TypingChannel interface {
	Channel

	// SendTyping sends a single typing indicator to the platform.
	SendTyping(ctx context.Context, chat message.Chat) error
}

// LimitedChannel is implemented by channels with a per-message size limit.
type LimitedChannel interface {
	// MaxMessageLength returns the maximum characters per message.
	MaxMessageLength() int
}

// AllowListed is implemented by channels that restrict which shared
// conversations the bot answers in.
type AllowListed interface {
	AllowList() *AllowList
}

// MaxLength returns the message size limit of ch, or DefaultMaxLength.
func MaxLength(ch Channel) int {
	if l, ok := ch.(LimitedChannel); ok {
		if n := l.MaxMessageLength(); n > 0 {
			return n
		}
	}
	return DefaultMaxLength
}
