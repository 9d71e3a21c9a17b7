package router

import (
	"github.com/flemzord/llamacord/internal/channel"
	"github.com/flemzord/llamacord/pkg/message"
)

// GroupPolicyMode defines how the router handles shared-channel messages.
type GroupPolicyMode string

const (
	// GroupPolicyRequireMention answers channel messages only when the bot
	// is mentioned or replied to.
	GroupPolicyRequireMention GroupPolicyMode = "require_mention"
	// GroupPolicyAllowAll answers every message in allowed channels.
	GroupPolicyAllowAll GroupPolicyMode = "allow_all"
)

// FilterReason explains why a message was ignored. Empty means accepted.
type FilterReason string

// Filter reasons.
const (
	FilterBotAuthor    FilterReason = "bot_author"
	FilterNotAllowed   FilterReason = "channel_not_allowed"
	FilterNotAddressed FilterReason = "not_addressed"
	FilterEmptyContent FilterReason = "empty_content"
)

// Policy decides which inbound messages are processed.
type Policy struct {
	Mode GroupPolicyMode
	// AllowLists holds the conversation allow-list of each channel, keyed
	// by channel name. A channel without an entry only gets direct messages
	// through.
	AllowLists map[string]*channel.AllowList
}

// Check returns the reason msg must be ignored, or "" when it should be
// processed. Direct messages only need a human author.
func (p Policy) Check(msg message.InboundMessage) FilterReason {
	if msg.Sender.IsBot {
		return FilterBotAuthor
	}
	if msg.IsDirectMessage() {
		return ""
	}
	if !p.AllowLists[msg.Channel].IsAllowed(msg) {
		return FilterNotAllowed
	}
	switch p.Mode {
	case GroupPolicyAllowAll:
		return ""
	case GroupPolicyRequireMention, "":
		if msg.IsAddressed() {
			return ""
		}
		return FilterNotAddressed
	default:
		return FilterNotAddressed
	}
}
