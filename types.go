package revali

import (
	"context"
	"time"
)

// Producer regenerates the value for a cache key. It must honor ctx by
// abandoning its underlying work when the context is cancelled; the engine
// tolerates producers that ignore ctx and still treats the fetch as cancelled
// once it observes the abort itself.
type Producer func(ctx context.Context) (any, error)

// Subscriber observes cache updates for a key. It receives the freshest data
// (which may be stale data retained across a failed refresh) and the most
// recent failure, if any. Subscribers must not panic; if one does, the engine
// recovers, logs, and continues notifying the remaining subscribers.
type Subscriber func(data any, err error)

// Entry is one cached value with its bookkeeping. Err and Data may coexist:
// Data is the last known good value, Err the most recent failure. A
// successful write always clears Err.
type Entry struct {
	Data      any
	HasData   bool
	Timestamp time.Time
	Err       error
	Producer  Producer
	Config    Config
}

// CacheInfo describes the current cache population.
type CacheInfo struct {
	Size int
	Keys []string
}

// PollingInfo describes the currently active polling tasks.
type PollingInfo struct {
	ActiveCount int
	Keys        []string
}

// CancellationInfo describes the live (non-aborted) cancellation tokens.
type CancellationInfo struct {
	ActiveCount int
	Keys        []string
}
