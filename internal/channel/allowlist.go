package channel

import (
	"strings"

	"github.com/flemzord/llamacord/pkg/message"
)

// Wildcard allows every shared conversation.
const Wildcard = "*"

// AllowList controls which shared conversations (server channels) the bot
// answers in. Direct messages are always allowed. An empty or nil AllowList
// allows direct messages only.
type AllowList struct {
	all   bool
	chats map[string]struct{}
}

// NewAllowList creates an AllowList from conversation IDs. IDs are trimmed
// and lowercased so that lookups are exact map hits.
func NewAllowList(chatIDs []string) *AllowList {
	a := &AllowList{chats: make(map[string]struct{}, len(chatIDs))}
	for _, id := range chatIDs {
		id = normalize(id)
		switch id {
		case "":
		case Wildcard:
			a.all = true
		default:
			a.chats[id] = struct{}{}
		}
	}
	return a
}

// IsAllowed reports whether msg comes from a permitted conversation.
func (a *AllowList) IsAllowed(msg message.InboundMessage) bool {
	if msg.IsDirectMessage() {
		return true
	}
	if a == nil {
		return false
	}
	if a.all {
		return true
	}
	_, ok := a.chats[normalize(msg.Chat.ID)]
	return ok
}

// Len returns the number of explicitly listed conversations.
func (a *AllowList) Len() int {
	if a == nil {
		return 0
	}
	return len(a.chats)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
