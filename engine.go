package revali

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"

	"github.com/cerebralatlas/revali/internal/backoff"
	"github.com/cerebralatlas/revali/internal/inflight"
)

// Engine is a stale-while-revalidate data-caching engine: given a key and a
// producer it returns cached data immediately when available, refreshes it in
// the background, and notifies subscribers as fresh data or errors arrive.
// All state (cache, in-flight map, subscribers, cancellation tokens) is
// private to the instance; construct one per process for process-wide
// behavior, or several for isolation. It is safe for concurrent use.
type Engine struct {
	defaults             Config
	revalidationDebounce time.Duration

	store       *cacheStore
	inflight    *inflight.Group
	subs        *subscriberRegistry
	canceller   *cancellationRegistry
	poller      *pollingScheduler
	revalidator *revalidationTrigger
	backoff     backoff.Strategy

	clock   clock.Clock
	env     Environment
	logger  Logger
	debug   *DebugConfig
	metrics *MetricsCollector

	validationError error
	closed          atomic.Bool
}

// New constructs an Engine using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Engine {
	e := &Engine{
		defaults:             DefaultConfig(),
		revalidationDebounce: 200 * time.Millisecond,
		backoff:              backoff.Exponential{},
		clock:                clock.New(),
		env:                  NoopEnvironment{},
		debug:                DefaultDebugConfig(),
	}

	for _, option := range options {
		option(e)
	}

	e.canceller = newCancellationRegistry()
	e.inflight = inflight.NewGroup()
	e.subs = newSubscriberRegistry()
	e.store = newCacheStore(e.clock)

	e.poller = newPollingScheduler(e.clock, e.env, e.pollRefresh)
	e.poller.logger = e.logger
	e.poller.debug = e.debug
	e.poller.metrics = e.metrics
	e.store.onWrite = e.poller.start
	e.store.onRemove = e.poller.stopKey

	e.revalidator = newRevalidationTrigger(e.env, e.revalidationDebounce, e.revalidateAll)

	if err := e.ValidateConfiguration(); err != nil {
		e.validationError = err
	}

	return e
}

// pollRefresh is the polling scheduler's way back into the fetch coordinator.
// The producer comes from the live cache entry; a tick whose entry vanished
// in the meantime is dropped.
func (e *Engine) pollRefresh(key string, cfg Config) {
	if e.isClosed() {
		return
	}
	ent, ok := e.store.get(key)
	if !ok || ent.Producer == nil {
		return
	}
	_, err := e.fetch(context.Background(), key, ent.Producer, cfg)
	if err != nil && !IsCancellation(err) && !errors.Is(err, ErrClosed) {
		if e.debugEnabled(func(d *DebugConfig) bool { return d.LogPolling }) {
			e.logger.Warn("Polling refresh failed", "key", key, "error", err.Error())
		}
	}
}

// Cancel aborts the in-flight fetch for key, if any. It reports whether an
// abort actually happened; cancelling a key with nothing in flight is a
// no-op returning false.
func (e *Engine) Cancel(key string) bool {
	return e.canceller.cancelKey(key)
}

// CancelAll aborts every in-flight fetch and returns how many were aborted.
func (e *Engine) CancelAll() int {
	return e.canceller.cancelAll()
}

// IsCancelled reports whether key's fetch was cancelled. The answer is
// sticky: it survives the token being discarded and resets when a new fetch
// for the key begins.
func (e *Engine) IsCancelled(key string) bool {
	return e.canceller.isCancelled(key)
}

// CancellationInfo returns the live (non-aborted) cancellation tokens.
func (e *Engine) CancellationInfo() CancellationInfo {
	return e.canceller.info()
}

// ValidateConfiguration checks the engine defaults, aggregating every
// problem found.
func (e *Engine) ValidateConfiguration() error {
	var result *multierror.Error

	cfg := e.defaults
	if cfg.Retries < 0 {
		result = multierror.Append(result, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries))
	}
	if cfg.RetryDelay < 0 {
		result = multierror.Append(result, fmt.Errorf("retry delay must be >= 0, got %v", cfg.RetryDelay))
	}
	if cfg.BackoffMultiplier < 1 {
		result = multierror.Append(result, fmt.Errorf("backoff multiplier must be >= 1, got %v", cfg.BackoffMultiplier))
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		result = multierror.Append(result, fmt.Errorf("jitter must be within [0, 1], got %v", cfg.Jitter))
	}
	if cfg.TTL < 0 {
		result = multierror.Append(result, fmt.Errorf("ttl must be >= 0, got %v", cfg.TTL))
	}
	if cfg.MaxEntries <= 0 {
		result = multierror.Append(result, fmt.Errorf("max entries must be > 0, got %d", cfg.MaxEntries))
	}
	if cfg.RefreshInterval < 0 {
		result = multierror.Append(result, fmt.Errorf("refresh interval must be >= 0, got %v", cfg.RefreshInterval))
	}
	if cfg.DedupingInterval < 0 {
		result = multierror.Append(result, fmt.Errorf("deduping interval must be >= 0, got %v", cfg.DedupingInterval))
	}
	if cfg.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("timeout must be >= 0, got %v", cfg.Timeout))
	}
	if e.revalidationDebounce < 0 {
		result = multierror.Append(result, fmt.Errorf("revalidation debounce must be >= 0, got %v", e.revalidationDebounce))
	}

	return result.ErrorOrNil()
}

// IsValid reports whether configuration validation passed at construction.
func (e *Engine) IsValid() bool {
	return e.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (e *Engine) ValidationError() error {
	return e.validationError
}

// Close shuts the engine down: polling tasks stop, environment listeners
// detach, and every in-flight fetch is cancelled. Subsequent fetch and
// mutate calls return ErrClosed. Close is idempotent.
func (e *Engine) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.revalidator.stop()
	e.poller.stopAll()
	e.canceller.cancelAll()
}

func (e *Engine) isClosed() bool {
	return e.closed.Load()
}
