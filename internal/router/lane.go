package router

import (
	"sync"

	"github.com/flemzord/llamacord/internal/history"
)

// LaneLock serializes work per conversation key: everything touching one
// context runs one at a time, while different contexts proceed in parallel.
// In shared history mode every message maps to one key, so all turns are
// serialized.
//
// A global mutex guards the lane map and is held only to find or create a
// lane. Lanes are dropped as soon as nobody holds or waits on them.
type LaneLock struct {
	mu    sync.Mutex
	lanes map[history.Key]*lane
}

type lane struct {
	mu   sync.Mutex
	refs int
}

// NewLaneLock creates a ready-to-use LaneLock.
func NewLaneLock() *LaneLock {
	return &LaneLock{lanes: make(map[history.Key]*lane)}
}

// Acquire locks the lane for key. The caller must call Release with the
// same key when done.
func (l *LaneLock) Acquire(key history.Key) {
	l.mu.Lock()
	ln, ok := l.lanes[key]
	if !ok {
		ln = &lane{}
		l.lanes[key] = ln
	}
	ln.refs++
	l.mu.Unlock()

	ln.mu.Lock()
}

// Release unlocks the lane for key.
func (l *LaneLock) Release(key history.Key) {
	l.mu.Lock()
	ln, ok := l.lanes[key]
	if !ok {
		l.mu.Unlock()
		return
	}
	ln.refs--
	if ln.refs == 0 {
		delete(l.lanes, key)
	}
	l.mu.Unlock()

	ln.mu.Unlock()
}

// Active returns the number of lanes currently held or awaited.
func (l *LaneLock) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
