package revali

// Mutate writes value for key synchronously, notifies subscribers once, and
// optionally schedules a background refresh through the entry's producer.
// The write goes through the same store path as fetched data, so the polling
// lifecycle and size bound apply identically.
func (e *Engine) Mutate(key string, value any, revalidate bool) (any, error) {
	return e.MutateWith(key, func(any) (any, error) { return value, nil }, revalidate)
}

// MutateWith derives the new value from the previous one. An error from
// update aborts the mutation: the cache is left untouched, nothing is
// notified, and the error surfaces synchronously.
func (e *Engine) MutateWith(key string, update func(prev any) (any, error), revalidate bool) (any, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}

	prev, existed := e.store.get(key)
	var prevData any
	if existed {
		prevData = prev.Data
	}

	next, err := update(prevData)
	if err != nil {
		return nil, err
	}

	ent := Entry{
		Data:      next,
		HasData:   true,
		Timestamp: e.clock.Now(),
	}
	cfg := e.defaults
	if existed {
		ent.Producer = prev.Producer
		ent.Config = prev.Config
		cfg = prev.Config
	} else {
		ent.Config = cfg
	}

	e.store.set(key, ent)
	evicted := e.store.ensureSize(cfg.MaxEntries)
	if e.metrics != nil {
		e.metrics.RecordEvictions(evicted)
		e.metrics.RecordCacheSize(e.store.size())
	}
	if e.debugEnabled(func(d *DebugConfig) bool { return d.LogCache }) {
		e.logger.Debug("Mutated entry", "key", key, "revalidate", revalidate)
	}
	e.notify(key, next, nil)

	if revalidate && ent.Producer != nil {
		go e.backgroundRefresh(key, ent.Producer, cfg)
	}
	return next, nil
}

// Clear removes the given keys, or the whole cache when no keys are given.
// Removing an entry stops its polling task immediately.
func (e *Engine) Clear(keys ...string) {
	e.store.clear(keys...)
	if e.metrics != nil {
		e.metrics.RecordCacheSize(e.store.size())
	}
}

// CacheInfo returns the current cache population.
func (e *Engine) CacheInfo() CacheInfo {
	return e.store.info()
}
