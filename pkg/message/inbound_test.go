package message

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestInboundMessage_IsAddressed(t *testing.T) {
	tests := []struct {
		name string
		msg  InboundMessage
		want bool
	}{
		{"direct message", InboundMessage{Chat: Chat{Type: ChatDM}}, true},
		{"mentioned in channel", InboundMessage{
			Chat:     Chat{Type: ChatGroup},
			Mentions: &Mentions{IDs: []string{"bot"}, IsMentioned: true},
		}, true},
		{"reply to bot", InboundMessage{Chat: Chat{Type: ChatGroup}, ReplyToSelf: true}, true},
		{"other user mentioned", InboundMessage{
			Chat:     Chat{Type: ChatGroup},
			Mentions: &Mentions{IDs: []string{"u2"}},
		}, false},
		{"plain channel message", InboundMessage{Chat: Chat{Type: ChatGroup}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsAddressed(); got != tt.want {
				t.Errorf("IsAddressed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInboundMessage_MarshalJSON_OmitsEmptyMentions(t *testing.T) {
	m := InboundMessage{
		ID:        "42",
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Channel:   "discord",
		Chat:      Chat{ID: "c1", Type: ChatDM},
		Content:   "hello",
		Mentions:  &Mentions{},
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "mentions") {
		t.Errorf("expected mentions to be omitted, got %s", data)
	}

	var decoded InboundMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Content != "hello" || decoded.Chat.ID != "c1" {
		t.Errorf("decoded = %+v", decoded)
	}
}
