package discord

import (
	"encoding/json"
	"slices"

	"github.com/flemzord/llamacord/pkg/message"
)

// convertInbound maps a MESSAGE_CREATE payload to an InboundMessage.
// Messages authored by the bot itself are flagged as bot messages so the
// router ignores them.
func convertInbound(raw json.RawMessage, m *Message, selfID, channelName string) message.InboundMessage {
	chat := message.Chat{ID: m.ChannelID, Type: message.ChatDM}
	if m.GuildID != "" {
		chat.Type = message.ChatGroup
		chat.GuildID = m.GuildID
	}

	msg := message.InboundMessage{
		ID:        m.ID,
		Timestamp: m.Timestamp,
		Channel:   channelName,
		Sender: message.Sender{
			ID:          m.Author.ID,
			Username:    m.Author.Username,
			DisplayName: m.Author.GlobalName,
			IsBot:       m.Author.Bot || (selfID != "" && m.Author.ID == selfID),
		},
		Chat:    chat,
		Content: m.Content,
		Raw:     raw,
	}

	if len(m.Mentions) > 0 {
		ids := make([]string, len(m.Mentions))
		for i, u := range m.Mentions {
			ids[i] = u.ID
		}
		msg.Mentions = &message.Mentions{
			IDs:         ids,
			IsMentioned: selfID != "" && slices.Contains(ids, selfID),
		}
	}

	if m.MessageReference != nil {
		msg.ReplyToID = m.MessageReference.MessageID
	}
	if m.ReferencedMessage != nil && selfID != "" && m.ReferencedMessage.Author.ID == selfID {
		msg.ReplyToSelf = true
	}
	return msg
}

// buildCreateMessage maps an outbound fragment to a create-message request.
// Replies reference the triggering message without failing when it was
// deleted, and never ping anyone but the replied-to author.
func buildCreateMessage(out message.OutboundMessage) CreateMessageRequest {
	req := CreateMessageRequest{
		Content:         out.Text,
		AllowedMentions: &AllowedMentions{Parse: []string{}, RepliedUser: true},
	}
	if out.ReplyToID != "" {
		fail := false
		req.MessageReference = &MessageReference{
			MessageID:       out.ReplyToID,
			ChannelID:       out.Chat.ID,
			GuildID:         out.Chat.GuildID,
			FailIfNotExists: &fail,
		}
	}
	return req
}
