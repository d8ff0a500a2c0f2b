package revali

import "sync"

// subscriberRegistry holds the per-key observer sets for the notification
// bus. Empty sets are pruned immediately so the map never accumulates dead
// keys.
type subscriberRegistry struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]Subscriber
	nextID uint64
}

func newSubscriberRegistry() *subscriberRegistry {
	return &subscriberRegistry{
		subs: make(map[string]map[uint64]Subscriber),
	}
}

// add registers fn for key and returns a function that removes exactly this
// registration. Removing twice is harmless.
func (r *subscriberRegistry) add(key string, fn Subscriber) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subs[key]
	if !ok {
		set = make(map[uint64]Subscriber)
		r.subs[key] = set
	}
	id := r.nextID
	r.nextID++
	set[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if set, ok := r.subs[key]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(r.subs, key)
			}
		}
	}
}

// collect returns the subscribers for key at this instant.
func (r *subscriberRegistry) collect(key string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.subs[key]
	if !ok {
		return nil
	}
	out := make([]Subscriber, 0, len(set))
	for _, fn := range set {
		out = append(out, fn)
	}
	return out
}

func (r *subscriberRegistry) count(key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[key])
}

// notify delivers (data, err) to every subscriber of key. A panicking
// subscriber is isolated: the panic is recovered and logged, and the
// remaining subscribers are still notified.
func (e *Engine) notify(key string, data any, err error) {
	subscribers := e.subs.collect(key)
	if len(subscribers) == 0 {
		return
	}

	if e.metrics != nil {
		e.metrics.RecordNotification(key, len(subscribers))
	}

	for _, fn := range subscribers {
		e.safeNotify(key, fn, data, err)
	}
}

func (e *Engine) safeNotify(key string, fn Subscriber, data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e.metrics != nil {
				e.metrics.RecordSubscriberPanic(key)
			}
			if e.logger != nil {
				e.logger.Error("Subscriber panicked", "key", key, "panic", r)
			}
		}
	}()
	fn(data, err)
}

// Subscribe registers fn to observe cache updates for key. The returned
// function removes the subscription.
func (e *Engine) Subscribe(key string, fn Subscriber) func() {
	return e.subs.add(key, fn)
}
