// Package historytest provides a behavioural test suite shared by every
// history.Store implementation.
package historytest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/flemzord/llamacord/internal/history"
	"github.com/flemzord/llamacord/internal/provider"
)

// Factory builds a fresh store bounded to maxTurns.
type Factory func(t *testing.T, maxTurns int) history.Store

// Run exercises the Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("get absent key is empty", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 3)
		got, err := s.Get("nobody")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Get(absent) = %v, want empty", got)
		}
	})

	t.Run("append under bound keeps order", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 3)
		mustAppend(t, s, "u1", provider.UserTurn("a"))
		mustAppend(t, s, "u1", provider.AssistantTurn("b"))
		assertContents(t, s, "u1", "a", "b")
	})

	t.Run("fifo eviction at bound", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 3)
		for _, c := range []string{"a", "b", "c", "d"} {
			mustAppend(t, s, "u1", provider.UserTurn(c))
		}
		assertContents(t, s, "u1", "b", "c", "d")
	})

	t.Run("length never exceeds bound", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 5)
		for i := range 12 {
			mustAppend(t, s, "u1", provider.UserTurn(fmt.Sprint(i)))
			got, err := s.Get("u1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if len(got) > 5 {
				t.Fatalf("after %d appends len = %d, want <= 5", i+1, len(got))
			}
		}
		assertContents(t, s, "u1", "7", "8", "9", "10", "11")
	})

	t.Run("zero bound keeps context empty", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 0)
		mustAppend(t, s, "u1", provider.UserTurn("a"))
		mustAppend(t, s, "u1", provider.AssistantTurn("b"))
		assertContents(t, s, "u1")
	})

	t.Run("zero bound leaves no keys", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 0)
		mustAppend(t, s, "u1", provider.UserTurn("a"))
		keys, err := s.Keys()
		if err != nil {
			t.Fatalf("Keys: %v", err)
		}
		if len(keys) != 0 {
			t.Errorf("Keys() = %+v, want none", keys)
		}
	})

	t.Run("snapshot is isolated from later appends", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 2)
		mustAppend(t, s, "u1", provider.UserTurn("a"))
		snap, err := s.Get("u1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		mustAppend(t, s, "u1", provider.UserTurn("b"))
		mustAppend(t, s, "u1", provider.UserTurn("c"))
		if len(snap) != 1 || snap[0].Content != "a" {
			t.Errorf("snapshot changed to %v", snap)
		}
		snap[0].Content = "mutated"
		assertContents(t, s, "u1", "b", "c")
	})

	t.Run("clear removes context", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 3)
		mustAppend(t, s, "u1", provider.UserTurn("a"))
		mustAppend(t, s, "u2", provider.UserTurn("x"))
		if err := s.Clear("u1"); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		assertContents(t, s, "u1")
		assertContents(t, s, "u2", "x")

		keys, err := s.Keys()
		if err != nil {
			t.Fatalf("Keys: %v", err)
		}
		if len(keys) != 1 || keys[0].Key != "u2" || keys[0].Turns != 1 {
			t.Errorf("Keys() = %+v, want [{u2 1}]", keys)
		}
	})

	t.Run("clear absent key is a no-op", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 3)
		if err := s.Clear("ghost"); err != nil {
			t.Errorf("Clear(absent) = %v, want nil", err)
		}
	})

	t.Run("keys are sorted", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 3)
		for _, k := range []history.Key{"c", "a", "b"} {
			mustAppend(t, s, k, provider.UserTurn("hi"))
		}
		keys, err := s.Keys()
		if err != nil {
			t.Fatalf("Keys: %v", err)
		}
		if len(keys) != 3 || keys[0].Key != "a" || keys[1].Key != "b" || keys[2].Key != "c" {
			t.Errorf("Keys() = %+v", keys)
		}
	})

	t.Run("concurrent appends respect bound", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 4)
		var wg sync.WaitGroup
		for i := range 32 {
			wg.Go(func() {
				if err := s.Append("u1", provider.UserTurn(fmt.Sprint(i))); err != nil {
					t.Errorf("Append: %v", err)
				}
			})
		}
		wg.Wait()
		got, err := s.Get("u1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got) != 4 {
			t.Errorf("len = %d, want 4", len(got))
		}
	})

	t.Run("max reports bound", func(t *testing.T) {
		t.Parallel()
		if got := newStore(t, 7).Max(); got != 7 {
			t.Errorf("Max() = %d, want 7", got)
		}
	})
}

func mustAppend(t *testing.T, s history.Store, key history.Key, turn provider.Turn) {
	t.Helper()
	if err := s.Append(key, turn); err != nil {
		t.Fatalf("Append(%q): %v", key, err)
	}
}

func assertContents(t *testing.T, s history.Store, key history.Key, want ...string) {
	t.Helper()
	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	if len(got) != len(want) {
		t.Fatalf("Get(%q) len = %d, want %d (%v)", key, len(got), len(want), got)
	}
	for i := range want {
		if got[i].Content != want[i] {
			t.Errorf("Get(%q)[%d] = %q, want %q", key, i, got[i].Content, want[i])
		}
	}
}
