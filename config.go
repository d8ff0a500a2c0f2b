package revali

import "time"

// Config holds the effective per-fetch options. Engine-level defaults are
// established at New via WithDefaults; each call overlays its RequestOptions
// onto a copy of the defaults, resolved once per call.
type Config struct {
	// Retries is the number of retry attempts after the initial one.
	Retries int

	// RetryDelay is the base delay for exponential backoff between attempts.
	RetryDelay time.Duration

	// MaxBackoff caps a single backoff wait. Zero means no cap.
	MaxBackoff time.Duration

	// BackoffMultiplier is the exponential growth factor between retries.
	BackoffMultiplier float64

	// Jitter is the uniform jitter fraction (0..1) applied to backoff waits.
	Jitter float64

	// TTL is the age after which a cache entry is considered expired.
	// Zero means entries never expire.
	TTL time.Duration

	// MaxEntries bounds the cache size; the oldest entry is evicted when the
	// bound is exceeded.
	MaxEntries int

	// RefreshInterval enables background polling for a key when greater than
	// zero. Zero disables polling.
	RefreshInterval time.Duration

	// DedupingInterval is the minimum spacing between two polling-triggered
	// re-issues for the same key. Manual fetches are not throttled by it.
	DedupingInterval time.Duration

	// Timeout bounds a single fetch, including retries and backoff waits.
	// Zero means no timeout.
	Timeout time.Duration

	// RevalidateOnFocus refreshes the entry when the host regains visibility.
	RevalidateOnFocus bool

	// RevalidateOnReconnect refreshes the entry when the network returns.
	RevalidateOnReconnect bool

	// RefreshWhenHidden lets polling proceed while the host is hidden.
	RefreshWhenHidden bool

	// RefreshWhenOffline lets polling proceed while the host is offline.
	RefreshWhenOffline bool

	// CancelOnRevalidate makes a new fetch supersede an in-flight one for the
	// same key instead of joining it.
	CancelOnRevalidate bool
}

// DefaultConfig returns the engine's built-in defaults.
func DefaultConfig() Config {
	return Config{
		Retries:               3,
		RetryDelay:            100 * time.Millisecond,
		MaxBackoff:            30 * time.Second,
		BackoffMultiplier:     2.0,
		Jitter:                0,
		TTL:                   0,
		MaxEntries:            1000,
		RefreshInterval:       0,
		DedupingInterval:      2 * time.Second,
		Timeout:               0,
		RevalidateOnFocus:     true,
		RevalidateOnReconnect: true,
		RefreshWhenHidden:     false,
		RefreshWhenOffline:    false,
		CancelOnRevalidate:    false,
	}
}

// resolveConfig overlays per-call options onto a copy of the engine defaults.
func (e *Engine) resolveConfig(opts []RequestOption) Config {
	cfg := e.defaults
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
