package router

import "strings"

// CommandKind enumerates what a message asks the bot to do.
type CommandKind int

// Command kinds.
const (
	CommandChat CommandKind = iota
	CommandReset
	CommandHistory
)

func (k CommandKind) String() string {
	switch k {
	case CommandReset:
		return "reset"
	case CommandHistory:
		return "history"
	default:
		return "chat"
	}
}

// Command is a classified message.
type Command struct {
	Kind CommandKind
	// Text is the cleaned message content. Used as the user turn for chat.
	Text string
}

// Commands recognises control commands by literal prefix.
type Commands struct {
	// Prefix starts every command, e.g. "!" for "!reset".
	Prefix string
}

// Classify maps cleaned message text to a command, ignoring case. Anything
// that does not start with a known command is a chat turn.
func (c Commands) Classify(text string) Command {
	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, strings.ToLower(c.Prefix)+"reset"):
		return Command{Kind: CommandReset, Text: text}
	case strings.HasPrefix(lower, strings.ToLower(c.Prefix)+"history"):
		return Command{Kind: CommandHistory, Text: text}
	default:
		return Command{Kind: CommandChat, Text: text}
	}
}
