// Package inflight tracks at most one live call per key so that overlapping
// requests for the same key share a single execution. Unlike a classic
// singleflight group it separates starting a call from completing it, which
// lets the owner be superseded (forgotten and cancelled) while waiters of the
// old call still receive its outcome.
package inflight

import (
	"context"
	"sync"
)

// Call represents an active or completed execution shared between callers.
type Call struct {
	done chan struct{}
	val  any
	err  error
}

func newCall() *Call {
	return &Call{done: make(chan struct{})}
}

// Wait blocks until the owning execution completes or ctx is cancelled.
func (c *Call) Wait(ctx context.Context) (any, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Group manages the set of in-flight calls.
type Group struct {
	mu    sync.Mutex
	calls map[string]*Call
}

// NewGroup returns an empty Group.
func NewGroup() *Group {
	return &Group{calls: make(map[string]*Call)}
}

// Begin returns the call registered for key. The second result is true when
// the caller created the call and therefore owns its execution; false when an
// existing call was joined.
func (g *Group) Begin(key string) (*Call, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.calls[key]; ok {
		return c, false
	}
	c := newCall()
	g.calls[key] = c
	return c, true
}

// Complete records the outcome of c, releases its waiters and removes the key
// from the group unless the call was already superseded by a newer one.
func (g *Group) Complete(key string, c *Call, val any, err error) {
	c.val = val
	c.err = err
	close(c.done)

	g.mu.Lock()
	if g.calls[key] == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()
}

// Forget removes and returns the current call for key without completing it,
// allowing a new owner to begin immediately. Returns nil when no call is in
// flight.
func (g *Group) Forget(key string) *Call {
	g.mu.Lock()
	defer g.mu.Unlock()

	c := g.calls[key]
	delete(g.calls, key)
	return c
}

// Has reports whether a call is in flight for key.
func (g *Group) Has(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.calls[key]
	return ok
}

// Len returns the number of in-flight calls.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
