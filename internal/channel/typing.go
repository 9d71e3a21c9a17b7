package channel

import (
	"context"
	"time"

	"github.com/flemzord/llamacord/pkg/message"
)

// DefaultTypingInterval refreshes the indicator before Discord's ~10s expiry.
const DefaultTypingInterval = 8 * time.Second

// StartTypingLoop sends typing indicators to chat at the given interval until
// ctx is done. The first indicator is sent immediately. A non-positive
// interval falls back to DefaultTypingInterval.
func StartTypingLoop(ctx context.Context, ch TypingChannel, chat message.Chat, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTypingInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		_ = ch.SendTyping(ctx, chat)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = ch.SendTyping(ctx, chat)
			}
		}
	}()
}
