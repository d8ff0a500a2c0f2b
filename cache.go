package revali

import (
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
)

// cacheStore is the keyed entry store. It is the single owner of cache
// entries; the fetch coordinator and the mutation API both write through it,
// so the TTL, size-bound and polling-lifecycle invariants hold regardless of
// which path performed the write.
type cacheStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	clock   clock.Clock

	// onWrite and onRemove couple cache lifecycle to polling lifecycle: a
	// write with RefreshInterval > 0 starts (or replaces) the key's polling
	// task, and removing an entry stops it. Both run outside the store lock.
	onWrite  func(key string, cfg Config)
	onRemove func(key string)
}

func newCacheStore(c clock.Clock) *cacheStore {
	return &cacheStore{
		entries: make(map[string]*Entry),
		clock:   c,
	}
}

// get returns a copy of the entry for key.
func (s *cacheStore) get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *ent, true
}

func (s *cacheStore) has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

// set stores the entry and syncs the key's polling task with the entry's
// configuration.
func (s *cacheStore) set(key string, ent Entry) {
	s.mu.Lock()
	stored := ent
	s.entries[key] = &stored
	onWrite := s.onWrite
	onRemove := s.onRemove
	s.mu.Unlock()

	if ent.Config.RefreshInterval > 0 {
		if onWrite != nil {
			onWrite(key, ent.Config)
		}
	} else if onRemove != nil {
		onRemove(key)
	}
}

// delete removes the entry and stops any polling task for key.
func (s *cacheStore) delete(key string) {
	s.mu.Lock()
	_, existed := s.entries[key]
	delete(s.entries, key)
	onRemove := s.onRemove
	s.mu.Unlock()

	if existed && onRemove != nil {
		onRemove(key)
	}
}

// snapshot returns a defensive copy of the store contents.
func (s *cacheStore) snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Entry, len(s.entries))
	for key, ent := range s.entries {
		out[key] = *ent
	}
	return out
}

// isExpired reports whether the entry's age exceeds its TTL. A TTL of zero
// means the entry never expires.
func (s *cacheStore) isExpired(ent Entry) bool {
	if ent.Config.TTL == 0 {
		return false
	}
	return s.clock.Now().Sub(ent.Timestamp) > ent.Config.TTL
}

// evictOldest removes the single entry with the minimum write timestamp,
// first found winning ties. No-op on an empty store. Returns the evicted key.
func (s *cacheStore) evictOldest() (string, bool) {
	s.mu.Lock()
	var (
		oldestKey string
		oldest    *Entry
	)
	for key, ent := range s.entries {
		if oldest == nil || ent.Timestamp.Before(oldest.Timestamp) {
			oldestKey = key
			oldest = ent
		}
	}
	if oldest == nil {
		s.mu.Unlock()
		return "", false
	}
	delete(s.entries, oldestKey)
	onRemove := s.onRemove
	s.mu.Unlock()

	if onRemove != nil {
		onRemove(oldestKey)
	}
	return oldestKey, true
}

// ensureSize evicts oldest entries until the store holds at most max. Called
// after every successful write, so a single over-limit entry is tolerated
// transiently and then trimmed.
func (s *cacheStore) ensureSize(max int) int {
	if max <= 0 {
		return 0
	}
	evicted := 0
	for s.size() > max {
		if _, ok := s.evictOldest(); !ok {
			break
		}
		evicted++
	}
	return evicted
}

// clear removes the given keys, or every entry when no keys are given, and
// stops the corresponding polling tasks.
func (s *cacheStore) clear(keys ...string) {
	if len(keys) == 0 {
		s.mu.Lock()
		all := make([]string, 0, len(s.entries))
		for key := range s.entries {
			all = append(all, key)
		}
		s.entries = make(map[string]*Entry)
		onRemove := s.onRemove
		s.mu.Unlock()

		if onRemove != nil {
			for _, key := range all {
				onRemove(key)
			}
		}
		return
	}
	for _, key := range keys {
		s.delete(key)
	}
}

func (s *cacheStore) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// info returns the current cache population with sorted keys.
func (s *cacheStore) info() CacheInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return CacheInfo{Size: len(keys), Keys: keys}
}
