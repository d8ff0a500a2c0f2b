package revali

import (
	"context"
	"fmt"
)

// GetAs is a typed wrapper over Engine.GetOrFetch for callers that know the
// concrete type a producer yields. A cached value of a different type is an
// Internal error.
func GetAs[T any](ctx context.Context, e *Engine, key string, producer func(ctx context.Context) (T, error), opts ...RequestOption) (T, error) {
	var zero T

	v, err := e.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return producer(ctx)
	}, opts...)
	if err != nil {
		return zero, err
	}

	t, ok := v.(T)
	if !ok {
		return zero, &EngineError{
			Type:      ErrorTypeInternal,
			Message:   fmt.Sprintf("cached value is %T, not %T", v, zero),
			Key:       key,
			Timestamp: e.clock.Now(),
		}
	}
	return t, nil
}

// MutateAs is a typed wrapper over Engine.MutateWith. The updater receives
// the zero value of T when no previous value exists or it has another type.
func MutateAs[T any](e *Engine, key string, update func(prev T) (T, error), revalidate bool) (T, error) {
	var zero T

	v, err := e.MutateWith(key, func(prev any) (any, error) {
		t, _ := prev.(T)
		return update(t)
	}, revalidate)
	if err != nil {
		return zero, err
	}

	t, ok := v.(T)
	if !ok {
		return zero, &EngineError{
			Type:      ErrorTypeInternal,
			Message:   fmt.Sprintf("mutated value is %T, not %T", v, zero),
			Key:       key,
			Timestamp: e.clock.Now(),
		}
	}
	return t, nil
}
