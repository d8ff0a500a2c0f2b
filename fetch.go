package revali

import (
	"context"
	"errors"
	"time"
)

// GetOrFetch is the stale-while-revalidate entry point. A fresh entry with
// data resolves immediately and kicks an asynchronous background refresh
// whose failure never reaches this caller. A missing, expired or error-only
// entry delegates to FetchNow and returns its result.
func (e *Engine) GetOrFetch(ctx context.Context, key string, producer Producer, opts ...RequestOption) (any, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := e.resolveConfig(opts)

	if ent, ok := e.store.get(key); ok && ent.HasData && !e.store.isExpired(ent) {
		if e.metrics != nil {
			e.metrics.RecordCacheHit(key)
		}
		if e.debugEnabled(func(d *DebugConfig) bool { return d.LogCache }) {
			e.logger.Debug("Cache hit, revalidating in background", "key", key)
		}
		go e.backgroundRefresh(key, producer, cfg)
		return ent.Data, nil
	}

	if e.metrics != nil {
		e.metrics.RecordCacheMiss(key)
	}
	return e.fetch(ctx, key, producer, cfg)
}

// FetchNow fetches unconditionally, bypassing the freshness check but keeping
// the dedup, retry and cancellation guarantees.
func (e *Engine) FetchNow(ctx context.Context, key string, producer Producer, opts ...RequestOption) (any, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return e.fetch(ctx, key, producer, e.resolveConfig(opts))
}

// backgroundRefresh runs a fetch detached from any caller. Failures are
// recorded on the entry and broadcast to subscribers by the fetch itself;
// here they are only logged.
func (e *Engine) backgroundRefresh(key string, producer Producer, cfg Config) {
	_, err := e.fetch(context.Background(), key, producer, cfg)
	if err != nil && !IsCancellation(err) && !errors.Is(err, ErrClosed) {
		if e.debugEnabled(func(d *DebugConfig) bool { return d.LogFetches }) {
			e.logger.Warn("Background revalidation failed", "key", key, "error", err.Error())
		}
	}
}

// fetch coordinates one logical request: supersession or dedup against the
// in-flight map, then execution by the owning caller. Every fetch path funnels
// through here, including background refreshes, polling ticks and revalidation
// sweeps, so the closed check covers work scheduled before Close that would
// otherwise run after it.
func (e *Engine) fetch(ctx context.Context, key string, producer Producer, cfg Config) (any, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}

	var requestID string
	if e.debug != nil && e.debug.Enabled && e.debug.RequestIDGen != nil {
		requestID = e.debug.RequestIDGen()
	}

	if cfg.CancelOnRevalidate {
		if prev := e.inflight.Forget(key); prev != nil {
			e.canceller.cancelKey(key)
			if e.debugEnabled(func(d *DebugConfig) bool { return d.LogFetches }) {
				e.logger.Debug("Superseding in-flight fetch", "key", key, "requestID", requestID)
			}
		}
	}

	call, owner := e.inflight.Begin(key)
	if !owner {
		if e.metrics != nil {
			e.metrics.RecordDeduplicationHit(key)
		}
		if e.debugEnabled(func(d *DebugConfig) bool { return d.LogFetches }) {
			e.logger.Debug("Joining in-flight fetch", "key", key, "requestID", requestID)
		}
		return call.Wait(ctx)
	}

	if e.debugEnabled(func(d *DebugConfig) bool { return d.LogFetches }) {
		e.logger.Debug("Starting fetch", "key", key, "requestID", requestID)
	}

	val, err := e.execute(ctx, key, producer, cfg, requestID)
	e.inflight.Complete(key, call, val, err)
	return val, err
}

// execute owns one producer run: token creation, composite abort signal,
// retry loop with abortable backoff, and the cache/notify commit. The token
// is released (not cancelled) however the fetch settles.
func (e *Engine) execute(parent context.Context, key string, producer Producer, cfg Config, requestID string) (any, error) {
	start := e.clock.Now()

	if e.metrics != nil {
		e.metrics.RecordFetchStart()
		defer e.metrics.RecordFetchEnd()
	}

	tok := e.canceller.create(key)
	defer e.canceller.release(key, tok)

	// Composite abort signal: token + caller context + optional timeout.
	// Aborting any constituent aborts the fetch at its next suspension point.
	fetchCtx, cancel := context.WithCancel(tok.ctx)
	defer cancel()
	stop := context.AfterFunc(parent, cancel)
	defer stop()
	if cfg.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		fetchCtx, cancelTimeout = context.WithTimeout(fetchCtx, cfg.Timeout)
		defer cancelTimeout()
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		if err := fetchCtx.Err(); err != nil {
			return nil, e.settleCancelled(key, attempt, cfg, start, err)
		}

		if attempt > 0 {
			if e.metrics != nil {
				e.metrics.RecordRetry(key, attempt)
			}
			if e.debugEnabled(func(d *DebugConfig) bool { return d.LogRetries }) {
				e.logger.Info("Retry attempt", "key", key, "requestID", requestID, "attempt", attempt, "maxRetries", cfg.Retries)
			}
		}

		val, err := e.invokeProducer(fetchCtx, key, producer)

		if abortErr := fetchCtx.Err(); abortErr != nil {
			// The composite aborted while the producer ran. The call counts
			// as cancelled even if the producer ignored the signal.
			return nil, e.settleCancelled(key, attempt, cfg, start, abortErr)
		}
		if err == nil {
			e.commitSuccess(key, val, producer, cfg)
			if e.metrics != nil {
				e.metrics.RecordFetch(key, "success", e.clock.Since(start))
			}
			return val, nil
		}
		if IsCancellation(err) {
			return nil, e.settleCancelled(key, attempt, cfg, start, err)
		}

		lastErr = err
		if attempt < cfg.Retries {
			delay := e.backoff.Delay(attempt+1, cfg.RetryDelay, cfg.MaxBackoff, cfg.BackoffMultiplier, cfg.Jitter)
			if e.debugEnabled(func(d *DebugConfig) bool { return d.LogRetries }) {
				e.logger.Info("Scheduling retry", "key", key, "requestID", requestID, "attempt", attempt+1, "backoff", delay)
			}
			timer := e.clock.Timer(delay)
			select {
			case <-timer.C:
			case <-fetchCtx.Done():
				timer.Stop()
				return nil, e.settleCancelled(key, attempt, cfg, start, fetchCtx.Err())
			}
		}
	}

	failure := &EngineError{
		Type:       ErrorTypeProducer,
		Message:    lastErr.Error(),
		Key:        key,
		Attempt:    cfg.Retries,
		MaxRetries: cfg.Retries,
		Timestamp:  e.clock.Now(),
		Duration:   e.clock.Since(start),
		Cause:      lastErr,
	}
	e.commitFailure(key, failure, producer, cfg)
	if e.metrics != nil {
		e.metrics.RecordFetch(key, "error", e.clock.Since(start))
	}
	return nil, failure
}

// invokeProducer shields the engine from panicking producers; a recovered
// panic becomes an ordinary producer failure.
func (e *Engine) invokeProducer(ctx context.Context, key string, producer Producer) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = normalizeError(key, r, e.clock.Now())
		}
	}()
	return producer(ctx)
}

// settleCancelled finalizes a fetch as a cancellation outcome: no cache
// write, no notification, surfaced only to the originating caller.
func (e *Engine) settleCancelled(key string, attempt int, cfg Config, start time.Time, cause error) error {
	if e.metrics != nil {
		e.metrics.RecordCancellation(key)
		e.metrics.RecordFetch(key, "cancelled", e.clock.Since(start))
	}

	typ, msg := ErrorTypeCancelled, "fetch cancelled"
	if errors.Is(cause, context.DeadlineExceeded) {
		typ, msg = ErrorTypeTimeout, "fetch timed out"
	}
	return &EngineError{
		Type:       typ,
		Message:    msg,
		Key:        key,
		Attempt:    attempt,
		MaxRetries: cfg.Retries,
		Timestamp:  e.clock.Now(),
		Duration:   e.clock.Since(start),
		Cause:      cause,
	}
}

// commitSuccess writes the fresh entry, enforces the size bound and notifies
// subscribers. A successful write always clears the entry's error.
func (e *Engine) commitSuccess(key string, val any, producer Producer, cfg Config) {
	e.store.set(key, Entry{
		Data:      val,
		HasData:   true,
		Timestamp: e.clock.Now(),
		Producer:  producer,
		Config:    cfg,
	})
	evicted := e.store.ensureSize(cfg.MaxEntries)
	if e.metrics != nil {
		e.metrics.RecordEvictions(evicted)
		e.metrics.RecordCacheSize(e.store.size())
	}
	e.notify(key, val, nil)
}

// commitFailure records a genuine producer failure on the entry while
// preserving the last known good data, then notifies subscribers with the
// stale data and the failure.
func (e *Engine) commitFailure(key string, failure error, producer Producer, cfg Config) {
	ent := Entry{
		Timestamp: e.clock.Now(),
		Err:       failure,
		Producer:  producer,
		Config:    cfg,
	}
	if prev, ok := e.store.get(key); ok && prev.HasData {
		ent.Data = prev.Data
		ent.HasData = true
	}
	e.store.set(key, ent)
	if e.metrics != nil {
		e.metrics.RecordCacheSize(e.store.size())
	}
	e.notify(key, ent.Data, failure)
}
