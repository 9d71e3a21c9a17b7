package router

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flemzord/llamacord/internal/history"
)

func TestLaneLock_SerializesSameKey(t *testing.T) {
	t.Parallel()

	l := NewLaneLock()
	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			l.Acquire("k")
			defer l.Release("k")
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		})
	}
	wg.Wait()

	if got := peak.Load(); got != 1 {
		t.Errorf("peak concurrency = %d, want 1", got)
	}
	if got := l.Active(); got != 0 {
		t.Errorf("Active() = %d after release, want 0", got)
	}
}

func TestLaneLock_DifferentKeysIndependent(t *testing.T) {
	t.Parallel()

	l := NewLaneLock()
	l.Acquire("a")
	defer l.Release("a")

	done := make(chan struct{})
	go func() {
		l.Acquire(history.Key("b"))
		l.Release("b")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lane b blocked by lane a")
	}
	if got := l.Active(); got != 1 {
		t.Errorf("Active() = %d, want 1", got)
	}
}

func TestLaneLock_ReleaseUnknownKey(t *testing.T) {
	t.Parallel()

	l := NewLaneLock()
	l.Release("missing")
	if got := l.Active(); got != 0 {
		t.Errorf("Active() = %d, want 0", got)
	}
}
