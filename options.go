package revali

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// RequestOption overrides one field of the effective Config for a single
// call (or, through WithDefaults, for the whole engine).
type RequestOption func(*Config)

// WithDefaults overlays the given request options onto the engine's default
// configuration.
func WithDefaults(opts ...RequestOption) Option {
	return func(e *Engine) {
		for _, opt := range opts {
			opt(&e.defaults)
		}
	}
}

// WithLogger sets a custom logger for engine events.
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithDebug enables debug logging with the default configuration. A Logger
// must also be set for any output to appear.
func WithDebug() Option {
	return func(e *Engine) {
		if e.debug == nil {
			e.debug = DefaultDebugConfig()
		}
		e.debug.Enabled = true
	}
}

// WithSimpleLogger enables debug logging with a simple console logger.
func WithSimpleLogger() Option {
	return func(e *Engine) {
		if e.debug == nil {
			e.debug = DefaultDebugConfig()
		}
		e.debug.Enabled = true
		e.logger = NewSimpleLogger()
	}
}

// WithDebugConfig sets custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(e *Engine) {
		e.debug = config
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(e *Engine) {
		e.metrics = NewMetricsCollector()
	}
}

// WithMetricsRegistry enables Prometheus metrics on the supplied registerer.
func WithMetricsRegistry(registry prometheus.Registerer) Option {
	return func(e *Engine) {
		e.metrics = NewMetricsCollectorWithRegistry(registry)
	}
}

// WithClock sets the clock used for timestamps, TTL checks, backoff waits and
// polling tickers. Intended for tests.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithEnvironment sets the host environment observer used to gate polling and
// drive focus/reconnect revalidation.
func WithEnvironment(env Environment) Option {
	return func(e *Engine) {
		e.env = env
	}
}

// WithRevalidationDebounce sets the quiet period applied to focus/reconnect
// revalidation sweeps.
func WithRevalidationDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.revalidationDebounce = d
	}
}

// WithRetries sets the number of retry attempts after the initial one.
func WithRetries(n int) RequestOption {
	return func(c *Config) {
		c.Retries = n
	}
}

// WithRetryDelay sets the base delay for exponential backoff.
func WithRetryDelay(d time.Duration) RequestOption {
	return func(c *Config) {
		c.RetryDelay = d
	}
}

// WithMaxBackoff caps a single backoff wait.
func WithMaxBackoff(d time.Duration) RequestOption {
	return func(c *Config) {
		c.MaxBackoff = d
	}
}

// WithBackoffMultiplier sets the exponential growth factor between retries.
func WithBackoffMultiplier(f float64) RequestOption {
	return func(c *Config) {
		c.BackoffMultiplier = f
	}
}

// WithJitter sets the jitter fraction for backoff (0.0 to 1.0).
func WithJitter(f float64) RequestOption {
	return func(c *Config) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.Jitter = f
	}
}

// WithTTL sets the entry time-to-live. Zero means never expire.
func WithTTL(d time.Duration) RequestOption {
	return func(c *Config) {
		c.TTL = d
	}
}

// WithMaxEntries sets the cache size bound.
func WithMaxEntries(n int) RequestOption {
	return func(c *Config) {
		c.MaxEntries = n
	}
}

// WithRefreshInterval enables background polling at the given cadence.
// Zero disables polling.
func WithRefreshInterval(d time.Duration) RequestOption {
	return func(c *Config) {
		c.RefreshInterval = d
	}
}

// WithDedupingInterval sets the minimum spacing between polling re-issues.
func WithDedupingInterval(d time.Duration) RequestOption {
	return func(c *Config) {
		c.DedupingInterval = d
	}
}

// WithTimeout bounds a single fetch including retries. Zero means no timeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithRevalidateOnFocus controls refresh when the host regains visibility.
func WithRevalidateOnFocus(enabled bool) RequestOption {
	return func(c *Config) {
		c.RevalidateOnFocus = enabled
	}
}

// WithRevalidateOnReconnect controls refresh when the network returns.
func WithRevalidateOnReconnect(enabled bool) RequestOption {
	return func(c *Config) {
		c.RevalidateOnReconnect = enabled
	}
}

// WithRefreshWhenHidden lets polling proceed while the host is hidden.
func WithRefreshWhenHidden(enabled bool) RequestOption {
	return func(c *Config) {
		c.RefreshWhenHidden = enabled
	}
}

// WithRefreshWhenOffline lets polling proceed while the host is offline.
func WithRefreshWhenOffline(enabled bool) RequestOption {
	return func(c *Config) {
		c.RefreshWhenOffline = enabled
	}
}

// WithCancelOnRevalidate makes a new fetch supersede an in-flight one for the
// same key instead of joining it.
func WithCancelOnRevalidate(enabled bool) RequestOption {
	return func(c *Config) {
		c.CancelOnRevalidate = enabled
	}
}
