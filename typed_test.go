package revali

import (
	"context"
	"errors"
	"testing"
)

type account struct {
	ID      int
	Balance int
}

func TestGetAsReturnsTypedValue(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	got, err := GetAs(context.Background(), e, "acct:1", func(ctx context.Context) (account, error) {
		return account{ID: 1, Balance: 100}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 1 || got.Balance != 100 {
		t.Errorf("got %+v, want {1 100}", got)
	}
}

func TestGetAsTypeMismatch(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	if _, err := e.Mutate("k", "a string", false); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := GetAs(context.Background(), e, "k", func(ctx context.Context) (account, error) {
		return account{}, nil
	})
	var engErr *EngineError
	if !errors.As(err, &engErr) || engErr.Type != ErrorTypeInternal {
		t.Errorf("got %v, want an Internal type-mismatch error", err)
	}
}

func TestGetAsPropagatesProducerError(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	boom := errors.New("upstream down")
	_, err := GetAs(context.Background(), e, "k", func(ctx context.Context) (account, error) {
		return account{}, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want the producer's error in the chain", err)
	}
}

func TestMutateAsUpdatesTypedValue(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	if _, err := e.Mutate("acct:1", account{ID: 1, Balance: 100}, false); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := MutateAs(e, "acct:1", func(prev account) (account, error) {
		prev.Balance += 50
		return prev, nil
	}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Balance != 150 {
		t.Errorf("Balance = %d, want 150", got.Balance)
	}
}

func TestMutateAsMissingKeyStartsFromZero(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	got, err := MutateAs(e, "fresh", func(prev account) (account, error) {
		if prev != (account{}) {
			t.Errorf("prev = %+v, want zero value", prev)
		}
		prev.ID = 9
		return prev, nil
	}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 9 {
		t.Errorf("ID = %d, want 9", got.ID)
	}
}
