package revali

import (
	"context"
	"sort"
	"sync"
)

// cancellationToken is the per-key abort handle. A key has at most one live
// token; creating a new one cancels and replaces the previous.
type cancellationToken struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (t *cancellationToken) aborted() bool {
	return t.ctx.Err() != nil
}

// cancellationRegistry owns the per-key tokens and the sticky cancelled-keys
// ledger, so IsCancelled(key) stays answerable after a token is discarded.
type cancellationRegistry struct {
	mu        sync.Mutex
	tokens    map[string]*cancellationToken
	cancelled map[string]struct{}
}

func newCancellationRegistry() *cancellationRegistry {
	return &cancellationRegistry{
		tokens:    make(map[string]*cancellationToken),
		cancelled: make(map[string]struct{}),
	}
}

// create cancels and replaces any existing token for key, clears the sticky
// cancelled flag, and returns the new token.
func (r *cancellationRegistry) create(key string) *cancellationToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.tokens[key]; ok {
		prev.cancel()
	}
	delete(r.cancelled, key)

	ctx, cancel := context.WithCancel(context.Background())
	tok := &cancellationToken{ctx: ctx, cancel: cancel}
	r.tokens[key] = tok
	return tok
}

// cancelKey aborts the live token for key, if any. It records key in the
// sticky ledger and reports whether an abort actually happened.
func (r *cancellationRegistry) cancelKey(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, ok := r.tokens[key]
	if !ok || tok.aborted() {
		return false
	}
	tok.cancel()
	r.cancelled[key] = struct{}{}
	return true
}

// cancelAll aborts every live token and returns how many were aborted.
func (r *cancellationRegistry) cancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for key, tok := range r.tokens {
		if tok.aborted() {
			continue
		}
		tok.cancel()
		r.cancelled[key] = struct{}{}
		count++
	}
	return count
}

// isCancelled reports whether key was cancelled. The flag is sticky: it
// survives the token being discarded and resets only when a new token is
// created for the key.
func (r *cancellationRegistry) isCancelled(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cancelled[key]; ok {
		return true
	}
	if tok, ok := r.tokens[key]; ok {
		return tok.aborted()
	}
	return false
}

// release drops the bookkeeping for tok without aborting it. Used on the
// coordinator's cleanup path after a fetch settles. The sticky cancelled
// flag is preserved, and a newer token that superseded tok is left alone.
func (r *cancellationRegistry) release(key string, tok *cancellationToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokens[key] == tok {
		delete(r.tokens, key)
	}
}

// activeCount returns the number of live (non-aborted) tokens.
func (r *cancellationRegistry) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, tok := range r.tokens {
		if !tok.aborted() {
			count++
		}
	}
	return count
}

// info returns the live token population. Aborted tokens are excluded.
func (r *cancellationRegistry) info() CancellationInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.tokens))
	for key, tok := range r.tokens {
		if !tok.aborted() {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return CancellationInfo{ActiveCount: len(keys), Keys: keys}
}
