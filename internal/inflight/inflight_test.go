package inflight

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBeginOwnerAndJoin(t *testing.T) {
	g := NewGroup()

	c1, owner := g.Begin("k")
	if !owner {
		t.Fatal("first Begin should own the call")
	}

	c2, owner := g.Begin("k")
	if owner {
		t.Fatal("second Begin should join, not own")
	}
	if c1 != c2 {
		t.Fatal("joiner should receive the owner's call")
	}
}

func TestCompleteReleasesWaiters(t *testing.T) {
	g := NewGroup()

	c, _ := g.Begin("k")

	const waiters = 10
	var wg sync.WaitGroup
	results := make([]any, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			join, owner := g.Begin("k")
			if owner {
				t.Errorf("waiter %d unexpectedly became owner", i)
				return
			}
			v, err := join.Wait(context.Background())
			if err != nil {
				t.Errorf("waiter %d: unexpected error %v", i, err)
			}
			results[i] = v
		}(i)
	}

	time.Sleep(10 * time.Millisecond)
	g.Complete("k", c, "value", nil)
	wg.Wait()

	for i, v := range results {
		if v != "value" {
			t.Errorf("waiter %d got %v, want value", i, v)
		}
	}
	if g.Has("k") {
		t.Error("key should be removed after Complete")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	g := NewGroup()

	c, _ := g.Begin("k")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Wait with cancelled context: got %v, want context.Canceled", err)
	}
}

func TestForgetAllowsSupersession(t *testing.T) {
	g := NewGroup()

	old, _ := g.Begin("k")

	forgotten := g.Forget("k")
	if forgotten != old {
		t.Fatal("Forget should return the superseded call")
	}

	replacement, owner := g.Begin("k")
	if !owner {
		t.Fatal("Begin after Forget should own a fresh call")
	}
	if replacement == old {
		t.Fatal("replacement call must be distinct from the forgotten one")
	}

	// Completing the superseded call must not remove the replacement.
	g.Complete("k", old, nil, errors.New("superseded"))
	if !g.Has("k") {
		t.Error("replacement call should still be registered")
	}

	g.Complete("k", replacement, "fresh", nil)
	if g.Has("k") {
		t.Error("key should be removed after replacement completes")
	}
}

func TestForgetMissingKey(t *testing.T) {
	g := NewGroup()
	if c := g.Forget("missing"); c != nil {
		t.Errorf("Forget on missing key returned %v, want nil", c)
	}
}

func TestLen(t *testing.T) {
	g := NewGroup()
	if g.Len() != 0 {
		t.Fatalf("empty group Len = %d", g.Len())
	}
	c, _ := g.Begin("a")
	g.Begin("b")
	if g.Len() != 2 {
		t.Fatalf("Len = %d, want 2", g.Len())
	}
	g.Complete("a", c, nil, nil)
	if g.Len() != 1 {
		t.Fatalf("Len after Complete = %d, want 1", g.Len())
	}
}
