package provider

import "time"

// Role identifies the author of a conversation turn.
type Role string

// Turn roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Turn is one message in a conversation context.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn returns a turn authored by the user.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn returns a turn authored by the model.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// CompletionRequest is the input to Provider.Complete.
type CompletionRequest struct {
	// Messages is the ordered conversation context, oldest first.
	Messages []Turn
	// Temperature overrides the provider default when non-nil.
	Temperature *float64
}

// CompletionResponse is the result of Provider.Complete.
type CompletionResponse struct {
	Turn     Turn
	Usage    TokenUsage
	Duration time.Duration
}

// TokenUsage reports token counts for a completion when the backend exposes them.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens returns the sum of prompt and completion tokens.
func (u TokenUsage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}
