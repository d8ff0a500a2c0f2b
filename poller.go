package revali

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// pollingTask is one per-key recurring refresh. Its config is snapshotted at
// creation; a later write with different options replaces the task rather
// than mutating it.
type pollingTask struct {
	key    string
	cfg    Config
	ticker *clock.Ticker
	stop   chan struct{}
}

// pollingScheduler owns the per-key recurring refresh tasks. Tasks are
// created and destroyed exclusively by cache writes and removals: cache
// lifecycle is polling lifecycle.
type pollingScheduler struct {
	mu      sync.Mutex
	tasks   map[string]*pollingTask
	stopped bool
	clock   clock.Clock

	// refresh re-enters the fetch coordinator for a tick that passed the
	// gates. Failures are the coordinator's to record; ticks ignore them.
	refresh func(key string, cfg Config)

	env     Environment
	logger  Logger
	debug   *DebugConfig
	metrics *MetricsCollector
}

func newPollingScheduler(c clock.Clock, env Environment, refresh func(key string, cfg Config)) *pollingScheduler {
	return &pollingScheduler{
		tasks:   make(map[string]*pollingTask),
		clock:   c,
		env:     env,
		refresh: refresh,
	}
}

// start creates the polling task for key, replacing any existing one. After
// stopAll the scheduler is defunct and refuses new tasks, so a cache write
// racing Close cannot leave a ticker behind.
func (s *pollingScheduler) start(key string, cfg Config) {
	if cfg.RefreshInterval <= 0 {
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	task := &pollingTask{
		key:    key,
		cfg:    cfg,
		ticker: s.clock.Ticker(cfg.RefreshInterval),
		stop:   make(chan struct{}),
	}
	if prev, ok := s.tasks[key]; ok {
		prev.ticker.Stop()
		close(prev.stop)
	}
	s.tasks[key] = task
	count := len(s.tasks)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordPollingTasks(count)
	}
	if s.debugActive() {
		s.logger.Debug("Polling started", "key", key, "interval", cfg.RefreshInterval)
	}

	go s.run(task)
}

// stopKey destroys the polling task for key, if any.
func (s *pollingScheduler) stopKey(key string) {
	s.mu.Lock()
	task, ok := s.tasks[key]
	if ok {
		task.ticker.Stop()
		close(task.stop)
		delete(s.tasks, key)
	}
	count := len(s.tasks)
	s.mu.Unlock()

	if !ok {
		return
	}
	if s.metrics != nil {
		s.metrics.RecordPollingTasks(count)
	}
	if s.debugActive() {
		s.logger.Debug("Polling stopped", "key", key)
	}
}

// stopAll destroys every polling task and marks the scheduler defunct.
func (s *pollingScheduler) stopAll() {
	s.mu.Lock()
	s.stopped = true
	for key, task := range s.tasks {
		task.ticker.Stop()
		close(task.stop)
		delete(s.tasks, key)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordPollingTasks(0)
	}
}

// run is the task loop. lastIssued starts at creation time because the write
// that created the task was itself a fresh issue; the deduping window applies
// from there.
func (s *pollingScheduler) run(task *pollingTask) {
	lastIssued := s.clock.Now()

	for {
		select {
		case <-task.stop:
			return
		case <-task.ticker.C:
			if !s.shouldIssue(task, lastIssued) {
				continue
			}
			lastIssued = s.clock.Now()
			s.refresh(task.key, task.cfg)
		}
	}
}

// shouldIssue applies the visibility, connectivity and deduping-window gates
// to one tick.
func (s *pollingScheduler) shouldIssue(task *pollingTask, lastIssued time.Time) bool {
	if s.env.IsHidden() && !task.cfg.RefreshWhenHidden {
		if s.debugActive() {
			s.logger.Debug("Polling tick skipped, host hidden", "key", task.key)
		}
		return false
	}
	if s.env.IsOffline() && !task.cfg.RefreshWhenOffline {
		if s.debugActive() {
			s.logger.Debug("Polling tick skipped, host offline", "key", task.key)
		}
		return false
	}
	if task.cfg.DedupingInterval > 0 && s.clock.Now().Sub(lastIssued) < task.cfg.DedupingInterval {
		if s.debugActive() {
			s.logger.Debug("Polling tick skipped, within deduping window", "key", task.key)
		}
		return false
	}
	return true
}

func (s *pollingScheduler) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

func (s *pollingScheduler) info() PollingInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.tasks))
	for key := range s.tasks {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return PollingInfo{ActiveCount: len(keys), Keys: keys}
}

func (s *pollingScheduler) debugActive() bool {
	return s.debug != nil && s.debug.Enabled && s.debug.LogPolling && s.logger != nil
}

// HasActivePolling reports whether a recurring refresh task exists for key.
func (e *Engine) HasActivePolling(key string) bool {
	return e.poller.has(key)
}

// PollingInfo returns the active polling task population.
func (e *Engine) PollingInfo() PollingInfo {
	return e.poller.info()
}
