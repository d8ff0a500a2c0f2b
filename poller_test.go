package revali

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPollingStartsOnWriteWithRefreshInterval(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	if _, err := e.FetchNow(context.Background(), "u", func(ctx context.Context) (any, error) {
		return 1, nil
	}, WithRefreshInterval(time.Hour)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if !e.HasActivePolling("u") {
		t.Error("polling task should exist after a write with RefreshInterval > 0")
	}

	info := e.PollingInfo()
	if info.ActiveCount != 1 || len(info.Keys) != 1 || info.Keys[0] != "u" {
		t.Errorf("PollingInfo = %+v, want one task for u", info)
	}
}

func TestNoPollingWithoutRefreshInterval(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	if _, err := e.FetchNow(context.Background(), "u", func(ctx context.Context) (any, error) {
		return 1, nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if e.HasActivePolling("u") {
		t.Error("no polling task expected without RefreshInterval")
	}
}

func TestClearStopsPollingImmediately(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	if _, err := e.FetchNow(context.Background(), "u", func(ctx context.Context) (any, error) {
		return 1, nil
	}, WithRefreshInterval(3*time.Second)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !e.HasActivePolling("u") {
		t.Fatal("polling should be active before Clear")
	}

	e.Clear("u")
	if e.HasActivePolling("u") {
		t.Error("Clear must stop the polling task immediately")
	}
}

func TestPollingTicksReissueFetches(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	var invocations atomic.Int32
	if _, err := e.FetchNow(context.Background(), "u", func(ctx context.Context) (any, error) {
		invocations.Add(1)
		return "v", nil
	}, WithRefreshInterval(20*time.Millisecond), WithDedupingInterval(0)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for invocations.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("producer invoked %d times, want >= 3 via polling", invocations.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPollingDedupingWindowThrottlesTicks(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	var invocations atomic.Int32
	if _, err := e.FetchNow(context.Background(), "u", func(ctx context.Context) (any, error) {
		invocations.Add(1)
		return "v", nil
	}, WithRefreshInterval(10*time.Millisecond), WithDedupingInterval(time.Hour)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if n := invocations.Load(); n != 1 {
		t.Errorf("producer invoked %d times, want 1 (ticks inside the deduping window skip)", n)
	}
	if !e.HasActivePolling("u") {
		t.Error("task should still be active, just throttled")
	}
}

func TestPollingSkipsWhileHidden(t *testing.T) {
	env := NewSignalEnvironment()
	env.SetHidden(true)

	e := newTestEngine(WithEnvironment(env))
	defer e.Close()

	var invocations atomic.Int32
	if _, err := e.FetchNow(context.Background(), "u", func(ctx context.Context) (any, error) {
		invocations.Add(1)
		return "v", nil
	}, WithRefreshInterval(10*time.Millisecond), WithDedupingInterval(0)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if n := invocations.Load(); n != 1 {
		t.Errorf("producer invoked %d times, want 1 (hidden host skips ticks)", n)
	}
}

func TestPollingRefreshWhenHiddenOverridesGate(t *testing.T) {
	env := NewSignalEnvironment()
	env.SetHidden(true)

	e := newTestEngine(WithEnvironment(env))
	defer e.Close()

	var invocations atomic.Int32
	if _, err := e.FetchNow(context.Background(), "u", func(ctx context.Context) (any, error) {
		invocations.Add(1)
		return "v", nil
	}, WithRefreshInterval(20*time.Millisecond), WithDedupingInterval(0), WithRefreshWhenHidden(true)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for invocations.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("producer invoked %d times, want >= 2 despite hidden host", invocations.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPollingSkipsWhileOffline(t *testing.T) {
	env := NewSignalEnvironment()
	env.SetOffline(true)

	e := newTestEngine(WithEnvironment(env))
	defer e.Close()

	var invocations atomic.Int32
	if _, err := e.FetchNow(context.Background(), "u", func(ctx context.Context) (any, error) {
		invocations.Add(1)
		return "v", nil
	}, WithRefreshInterval(10*time.Millisecond), WithDedupingInterval(0)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if n := invocations.Load(); n != 1 {
		t.Errorf("producer invoked %d times, want 1 (offline host skips ticks)", n)
	}
}

func TestPollingTaskReplaceSemantics(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	producer := func(ctx context.Context) (any, error) { return 1, nil }

	if _, err := e.FetchNow(context.Background(), "u", producer, WithRefreshInterval(time.Hour)); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if _, err := e.FetchNow(context.Background(), "u", producer, WithRefreshInterval(30*time.Minute)); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	info := e.PollingInfo()
	if info.ActiveCount != 1 {
		t.Errorf("ActiveCount = %d, want 1 (tasks replace, not accumulate)", info.ActiveCount)
	}
}

func TestCloseStopsAllPolling(t *testing.T) {
	e := newTestEngine()

	producer := func(ctx context.Context) (any, error) { return 1, nil }
	e.FetchNow(context.Background(), "a", producer, WithRefreshInterval(time.Hour))
	e.FetchNow(context.Background(), "b", producer, WithRefreshInterval(time.Hour))

	e.Close()
	if info := e.PollingInfo(); info.ActiveCount != 0 {
		t.Errorf("ActiveCount after Close = %d, want 0", info.ActiveCount)
	}
}
