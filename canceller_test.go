package revali

import "testing"

func TestCancellationCreateReplacesToken(t *testing.T) {
	r := newCancellationRegistry()

	first := r.create("k")
	second := r.create("k")

	if !first.aborted() {
		t.Error("creating a new token must cancel the previous one")
	}
	if second.aborted() {
		t.Error("fresh token must not start aborted")
	}
}

func TestCancelKey(t *testing.T) {
	r := newCancellationRegistry()

	tok := r.create("k")

	if !r.cancelKey("k") {
		t.Fatal("cancelKey should report an abort happened")
	}
	if !tok.aborted() {
		t.Error("token should be aborted")
	}
	if r.cancelKey("k") {
		t.Error("second cancel of an aborted token is a no-op")
	}
}

func TestCancelMissingKeyIsNoop(t *testing.T) {
	r := newCancellationRegistry()

	if r.cancelKey("nope") {
		t.Error("cancelling a key with no token should return false")
	}
	if r.isCancelled("nope") {
		t.Error("a never-created key is not cancelled")
	}
}

func TestIsCancelledSticky(t *testing.T) {
	r := newCancellationRegistry()

	tok := r.create("k")
	r.cancelKey("k")
	r.release("k", tok)

	if !r.isCancelled("k") {
		t.Error("cancelled flag must survive token release")
	}

	// A new token for the key resets the flag.
	r.create("k")
	if r.isCancelled("k") {
		t.Error("creating a new token must clear the cancelled flag")
	}
}

func TestReleaseDoesNotAbort(t *testing.T) {
	r := newCancellationRegistry()

	tok := r.create("k")
	r.release("k", tok)

	if tok.aborted() {
		t.Error("release must not cancel the token")
	}
	if r.activeCount() != 0 {
		t.Errorf("activeCount = %d, want 0 after release", r.activeCount())
	}
}

func TestReleaseLeavesNewerTokenAlone(t *testing.T) {
	r := newCancellationRegistry()

	old := r.create("k")
	replacement := r.create("k")

	// The superseded fetch releasing its own token must not evict the
	// replacement.
	r.release("k", old)
	if r.activeCount() != 1 {
		t.Fatalf("activeCount = %d, want 1", r.activeCount())
	}

	r.release("k", replacement)
	if r.activeCount() != 0 {
		t.Errorf("activeCount = %d, want 0", r.activeCount())
	}
}

func TestCancelAll(t *testing.T) {
	r := newCancellationRegistry()

	r.create("a")
	r.create("b")
	r.create("c")
	r.cancelKey("c")

	if got := r.cancelAll(); got != 2 {
		t.Errorf("cancelAll = %d, want 2 (c was already aborted)", got)
	}
	if r.activeCount() != 0 {
		t.Errorf("activeCount = %d, want 0", r.activeCount())
	}
}

func TestCancellationInfoExcludesAborted(t *testing.T) {
	r := newCancellationRegistry()

	r.create("b")
	r.create("a")
	r.create("x")
	r.cancelKey("x")

	info := r.info()
	if info.ActiveCount != 2 {
		t.Errorf("ActiveCount = %d, want 2", info.ActiveCount)
	}
	if len(info.Keys) != 2 || info.Keys[0] != "a" || info.Keys[1] != "b" {
		t.Errorf("Keys = %v, want [a b]", info.Keys)
	}
}
