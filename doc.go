// Package revali provides a stale-while-revalidate (SWR) data-caching engine
// with composable freshness primitives:
//
//   - Keyed in-memory cache with TTL expiry and an oldest-entry size bound
//   - Request de-duplication (merges concurrent fetches for the same key)
//   - Retries with exponential backoff, abortable at every suspension point
//   - Key-scoped cancellation combining token, timeout and caller signals
//   - Per-key subscriber notification with panic isolation
//   - Background polling gated by host visibility and network state
//   - Debounced revalidation on focus regained / network reconnected
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area – functional options configure everything
//   - One engine instance owns all state; construct several for isolation
//   - Safe concurrent use of a single *Engine instance
//   - The injected producer function is the engine's only contact with the
//     network
//
// Typical usage:
//
//	engine := revali.New(
//	    revali.WithDefaults(
//	        revali.WithTTL(5*time.Second),
//	        revali.WithRetries(2),
//	    ),
//	)
//	defer engine.Close()
//
//	user, err := engine.GetOrFetch(ctx, "user:1", fetchUser)
//
// A fresh cached value resolves immediately while a background refresh runs;
// subscribers registered with Subscribe observe every data or error arrival.
// Cancellation (Cancel, a timeout, or the caller's context) is invisible to
// the cache and to subscribers: it surfaces only to the originating caller.
package revali
