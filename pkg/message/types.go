// Package message defines the platform-agnostic data contract between chat
// channels and the message router.
package message

// ChatType indicates the kind of conversation.
type ChatType string

const (
	// ChatDM is a direct (one-to-one) conversation.
	ChatDM ChatType = "dm"
	// ChatGroup is a shared channel in a server.
	ChatGroup ChatType = "group"
)

// Sender identifies the author of an inbound message.
type Sender struct {
	ID          string `json:"id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	// IsBot is true for automated accounts, including the bot itself.
	IsBot bool `json:"is_bot,omitempty"`
}

// Name returns the best human-readable name for the sender.
func (s Sender) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	if s.Username != "" {
		return s.Username
	}
	return s.ID
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID      string   `json:"id"`
	Type    ChatType `json:"type"`
	GuildID string   `json:"guild_id,omitempty"`
}

// IsGroup reports whether the chat is a shared channel.
func (c Chat) IsGroup() bool {
	return c.Type == ChatGroup
}

// IsDirectMessage reports whether the chat is a direct message.
func (c Chat) IsDirectMessage() bool {
	return c.Type == ChatDM
}

// Mentions holds mention metadata extracted from an inbound message.
type Mentions struct {
	// IDs lists the user identifiers that were mentioned.
	IDs []string `json:"ids,omitempty"`
	// IsMentioned is true when the bot itself was mentioned.
	IsMentioned bool `json:"is_mentioned,omitempty"`
}

// IsEmpty reports whether the Mentions carries no data.
func (m *Mentions) IsEmpty() bool {
	return m == nil || (len(m.IDs) == 0 && !m.IsMentioned)
}
