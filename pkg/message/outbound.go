package message

// OutboundMessage represents a message to be sent through a channel.
type OutboundMessage struct {
	// Channel is the name of the channel module that delivers the message.
	Channel string `json:"channel"`
	Chat    Chat   `json:"chat"`
	// ReplyToID references the triggering message. Empty in direct messages.
	ReplyToID string `json:"reply_to_id,omitempty"`
	Text      string `json:"text"`
}

// NewTextMessage creates an outbound text message for the given chat.
func NewTextMessage(channel string, chat Chat, text string) OutboundMessage {
	return OutboundMessage{
		Channel: channel,
		Chat:    chat,
		Text:    text,
	}
}

// ReplyTo returns a reply to in, delivered in the same conversation. In shared
// channels the reply references the triggering message.
func ReplyTo(in InboundMessage, text string) OutboundMessage {
	out := NewTextMessage(in.Channel, in.Chat, text)
	if !in.IsDirectMessage() {
		out.ReplyToID = in.ID
	}
	return out
}
