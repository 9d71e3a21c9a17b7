// Package history stores bounded rolling conversation contexts keyed by
// conversation identity.
package history

import (
	"fmt"

	"github.com/flemzord/llamacord/internal/provider"
)

// DefaultMaxTurns is the default context bound.
const DefaultMaxTurns = 20

// Key identifies a conversation context.
type Key string

// SharedKey is the single key used when all users share one context.
const SharedKey Key = "shared"

// Mode selects how conversation keys are derived from senders.
type Mode string

// Key modes.
const (
	// ModePerIdentity keeps one context per sender.
	ModePerIdentity Mode = "per_identity"
	// ModeShared keeps a single context for everyone.
	ModeShared Mode = "shared"
)

// Validate reports whether m is a known mode.
func (m Mode) Validate() error {
	switch m {
	case ModePerIdentity, ModeShared:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, string(m))
	}
}

// KeyFor returns the context key for a sender.
func (m Mode) KeyFor(senderID string) Key {
	if m == ModeShared {
		return SharedKey
	}
	return Key(senderID)
}

// KeyInfo describes a live conversation context.
type KeyInfo struct {
	Key   Key `json:"key"`
	Turns int `json:"turns"`
}

// Store keeps one ordered, bounded sequence of turns per key.
//
// Every context holds at most Max() turns; appending to a full context evicts
// the oldest turns first. Contexts are created on first append and destroyed
// only by Clear. Implementations must be safe for concurrent use.
type Store interface {
	// Append adds turn to the context for key, evicting the oldest turns
	// so the context never exceeds the bound.
	Append(key Key, turn provider.Turn) error

	// Get returns a snapshot copy of the context for key, oldest first.
	// An absent key yields an empty snapshot.
	Get(key Key) ([]provider.Turn, error)

	// Clear removes the context for key. Clearing an absent key is a no-op.
	Clear(key Key) error

	// Keys lists live contexts, sorted by key.
	Keys() ([]KeyInfo, error)

	// Max returns the context bound.
	Max() int
}

// BackendService is the AppContext service name of an optional Backend.
// Without one the router keeps history in a MemoryStore.
const BackendService = "history.backend"

// Backend is implemented by modules that can build a Store.
type Backend interface {
	NewStore(maxTurns int) (Store, error)
}
