package revali

import (
	"context"
	"errors"
	"time"

	"github.com/bep/debounce"
	"golang.org/x/sync/errgroup"
)

// Revalidation sweep triggers.
const (
	triggerFocus     = "focus"
	triggerReconnect = "reconnect"
	triggerManual    = "manual"
)

// revalidationTrigger listens for focus-regained and network-reconnected
// signals and asks the coordinator to refresh all eligible cached entries,
// debounced so signal bursts collapse into one sweep.
type revalidationTrigger struct {
	env       Environment
	sweep     func(trigger string)
	debounced func(func())
	stopVis   func()
	stopNet   func()
}

func newRevalidationTrigger(env Environment, wait time.Duration, sweep func(trigger string)) *revalidationTrigger {
	t := &revalidationTrigger{
		env:       env,
		sweep:     sweep,
		debounced: debounce.New(wait),
	}
	t.stopVis = env.OnVisibilityChange(t.onVisibility)
	t.stopNet = env.OnNetworkChange(t.onNetwork)
	return t
}

// onVisibility sweeps when the host transitions back to visible.
func (t *revalidationTrigger) onVisibility() {
	if t.env.IsHidden() {
		return
	}
	t.debounced(func() { t.sweep(triggerFocus) })
}

// onNetwork sweeps when the host transitions back online.
func (t *revalidationTrigger) onNetwork() {
	if t.env.IsOffline() {
		return
	}
	t.debounced(func() { t.sweep(triggerReconnect) })
}

func (t *revalidationTrigger) stop() {
	t.stopVis()
	t.stopNet()
}

// TriggerRevalidation refreshes every cached entry that has a producer,
// regardless of its focus/reconnect opt-ins. Failures are recorded on the
// entries and broadcast to subscribers, never returned here.
func (e *Engine) TriggerRevalidation() {
	e.revalidateAll(triggerManual)
}

// revalidateAll sweeps the cache and re-fetches every eligible entry
// concurrently. Eligibility depends on the trigger: focus sweeps honor
// RevalidateOnFocus, reconnect sweeps RevalidateOnReconnect, manual sweeps
// take everything.
func (e *Engine) revalidateAll(trigger string) {
	if e.isClosed() {
		return
	}
	if e.metrics != nil {
		e.metrics.RecordRevalidationSweep(trigger)
	}
	if e.debugEnabled(func(d *DebugConfig) bool { return d.LogRevalidation }) {
		e.logger.Info("Revalidation sweep", "trigger", trigger)
	}

	entries := e.store.snapshot()
	g := new(errgroup.Group)
	for key, ent := range entries {
		if ent.Producer == nil {
			continue
		}
		switch trigger {
		case triggerFocus:
			if !ent.Config.RevalidateOnFocus {
				continue
			}
		case triggerReconnect:
			if !ent.Config.RevalidateOnReconnect {
				continue
			}
		}

		key, ent := key, ent
		g.Go(func() error {
			_, err := e.fetch(context.Background(), key, ent.Producer, ent.Config)
			if err != nil && !IsCancellation(err) && !errors.Is(err, ErrClosed) {
				if e.debugEnabled(func(d *DebugConfig) bool { return d.LogRevalidation }) {
					e.logger.Warn("Revalidation failed", "key", key, "trigger", trigger, "error", err.Error())
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}
