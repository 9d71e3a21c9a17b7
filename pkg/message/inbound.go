package message

import (
	"encoding/json"
	"time"
)

// InboundMessage represents a message received from a channel.
type InboundMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel"`
	Sender    Sender    `json:"sender"`
	Chat      Chat      `json:"chat"`
	// Content is the raw message text, control tokens included.
	Content  string    `json:"content"`
	Mentions *Mentions `json:"mentions,omitempty"`
	// ReplyToID is the ID of the message this one replies to, if any.
	ReplyToID string `json:"reply_to_id,omitempty"`
	// ReplyToSelf is true when the replied-to message was authored by the bot.
	ReplyToSelf bool            `json:"reply_to_self,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// MarshalJSON implements json.Marshaler. It normalizes empty Mentions to nil
// so that the field is omitted from JSON output.
func (m InboundMessage) MarshalJSON() ([]byte, error) {
	if m.Mentions.IsEmpty() {
		m.Mentions = nil
	}
	type alias InboundMessage
	return json.Marshal(alias(m))
}

// IsGroup reports whether the message was sent in a shared channel.
func (m *InboundMessage) IsGroup() bool {
	return m.Chat.IsGroup()
}

// IsDirectMessage reports whether the message is a direct message.
func (m *InboundMessage) IsDirectMessage() bool {
	return m.Chat.IsDirectMessage()
}

// IsMentioned reports whether the bot was mentioned in the message.
func (m *InboundMessage) IsMentioned() bool {
	return m.Mentions != nil && m.Mentions.IsMentioned
}

// IsAddressed reports whether the message targets the bot: a direct message,
// a mention, or a reply to one of the bot's own messages.
func (m *InboundMessage) IsAddressed() bool {
	return m.IsDirectMessage() || m.IsMentioned() || m.ReplyToSelf
}
