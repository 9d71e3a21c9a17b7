package history

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/flemzord/llamacord/internal/provider"
)

// MemoryStore is a thread-safe, in-memory Store.
type MemoryStore struct {
	max int

	mu       sync.RWMutex
	contexts map[Key][]provider.Turn
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store bounded to maxTurns turns per context.
func NewMemoryStore(maxTurns int) (*MemoryStore, error) {
	if maxTurns < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeMax, maxTurns)
	}
	return &MemoryStore{
		max:      maxTurns,
		contexts: make(map[Key][]provider.Turn),
	}, nil
}

// Append adds a turn, evicting from the front while the context is over bound.
func (s *MemoryStore) Append(key Key, turn provider.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.contexts[key], turn)
	if over := len(turns) - s.max; over > 0 {
		// Shift instead of reslicing so evicted turns are not retained.
		n := copy(turns, turns[over:])
		clear(turns[n:])
		turns = turns[:n]
	}
	if len(turns) == 0 {
		delete(s.contexts, key)
		return nil
	}
	s.contexts[key] = turns
	return nil
}

// Get returns a copy of the context for key.
func (s *MemoryStore) Get(key Key) ([]provider.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.contexts[key]
	result := make([]provider.Turn, len(turns))
	copy(result, turns)
	return result, nil
}

// Clear removes the context for key.
func (s *MemoryStore) Clear(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, key)
	return nil
}

// Keys lists live contexts sorted by key.
func (s *MemoryStore) Keys() ([]KeyInfo, error) {
	s.mu.RLock()
	infos := make([]KeyInfo, 0, len(s.contexts))
	for k, turns := range s.contexts {
		infos = append(infos, KeyInfo{Key: k, Turns: len(turns)})
	}
	s.mu.RUnlock()

	slices.SortFunc(infos, func(a, b KeyInfo) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return infos, nil
}

// Max returns the context bound.
func (s *MemoryStore) Max() int {
	return s.max
}
