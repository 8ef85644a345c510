// ABOUTME: Thread-safe per-conversation turn guard.
// ABOUTME: Used by the HTTP gateway so only one turn runs per conversation.

package turnlock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrBusy is returned when another turn holds the conversation.
	ErrBusy = errors.New("turnlock: conversation is busy")

	// ErrClosed is returned once the guard is closed or draining.
	ErrClosed = errors.New("turnlock: closed")
)

// Guard hands out exclusive leases keyed by conversation ID. A lease is
// held until its release function runs; leases never expire, since a turn
// that is still running must keep the conversation to itself.
type Guard struct {
	mu     sync.Mutex
	held   map[string]time.Time
	idle   chan struct{}
	now    func() time.Time
	closed bool
}

// New creates an empty guard.
func New() *Guard {
	idle := make(chan struct{})
	close(idle)
	return &Guard{
		held: make(map[string]time.Time),
		idle: idle,
		now:  time.Now,
	}
}

// Acquire takes the lease for key. The returned function releases it and
// is safe to call more than once.
func (g *Guard) Acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrClosed
	}
	if _, ok := g.held[key]; ok {
		return nil, ErrBusy
	}

	if len(g.held) == 0 {
		g.idle = make(chan struct{})
	}
	g.held[key] = g.now()

	var once sync.Once
	return func() {
		once.Do(func() { g.release(key) })
	}, nil
}

// Held reports whether key has an active lease.
func (g *Guard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.held[key]
	return ok
}

// Since reports when the active lease for key was taken.
func (g *Guard) Since(key string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	at, ok := g.held[key]
	return at, ok
}

func (g *Guard) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; !ok {
		return
	}
	delete(g.held, key)
	if len(g.held) == 0 {
		close(g.idle)
	}
}

// Drain rejects further acquisitions and waits until every active lease
// has been released or ctx is done.
func (g *Guard) Drain(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	idle := g.idle
	g.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further acquisitions without waiting. It is safe to call
// multiple times.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}
