package revali

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the engine's fetch
// lifecycle, cache behavior and background machinery. It is safe for
// concurrent use.
type MetricsCollector struct {
	fetchesTotal    *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	fetchesInFlight prometheus.Gauge

	retriesTotal       *prometheus.CounterVec
	deduplicationHits  *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheSize      prometheus.Gauge
	cacheEvictions prometheus.Counter

	notificationsTotal *prometheus.CounterVec
	subscriberPanics   *prometheus.CounterVec

	pollingTasks       prometheus.Gauge
	revalidationSweeps *prometheus.CounterVec

	registry prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		fetchesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "revali_fetches_total",
				Help: "Total number of producer fetches, by outcome",
			},
			[]string{"key", "outcome"},
		),
		fetchDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "revali_fetch_duration_seconds",
				Help:    "Duration of producer fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"key", "outcome"},
		),
		fetchesInFlight: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "revali_fetches_in_flight",
				Help: "Number of fetches currently in flight",
			},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "revali_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"key", "attempt"},
		),
		deduplicationHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "revali_deduplication_hits_total",
				Help: "Total number of fetches that joined an in-flight request",
			},
			[]string{"key"},
		),
		cancellationsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "revali_cancellations_total",
				Help: "Total number of fetches aborted by token, timeout or external signal",
			},
			[]string{"key"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "revali_cache_hits_total",
				Help: "Total number of cache hits served stale-while-revalidate",
			},
			[]string{"key"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "revali_cache_misses_total",
				Help: "Total number of cache misses (absent, expired or error-only entries)",
			},
			[]string{"key"},
		),
		cacheSize: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "revali_cache_size",
				Help: "Current number of cache entries",
			},
		),
		cacheEvictions: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "revali_cache_evictions_total",
				Help: "Total number of entries evicted to enforce the size bound",
			},
		),
		notificationsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "revali_notifications_total",
				Help: "Total number of subscriber notification deliveries",
			},
			[]string{"key"},
		),
		subscriberPanics: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "revali_subscriber_panics_total",
				Help: "Total number of recovered subscriber panics",
			},
			[]string{"key"},
		),
		pollingTasks: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "revali_polling_tasks",
				Help: "Number of active polling tasks",
			},
		),
		revalidationSweeps: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "revali_revalidation_sweeps_total",
				Help: "Total number of bulk revalidation sweeps, by trigger",
			},
			[]string{"trigger"},
		),
		registry: registry,
	}
	return mc
}

// RecordFetchStart marks a fetch entering the producer pipeline.
func (mc *MetricsCollector) RecordFetchStart() {
	mc.fetchesInFlight.Inc()
}

// RecordFetchEnd marks a fetch leaving the producer pipeline.
func (mc *MetricsCollector) RecordFetchEnd() {
	mc.fetchesInFlight.Dec()
}

// RecordFetch records a settled fetch with its outcome and duration.
// Outcome is one of "success", "error", "cancelled".
func (mc *MetricsCollector) RecordFetch(key, outcome string, duration time.Duration) {
	mc.fetchesTotal.WithLabelValues(key, outcome).Inc()
	mc.fetchDuration.WithLabelValues(key, outcome).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt.
func (mc *MetricsCollector) RecordRetry(key string, attempt int) {
	mc.retriesTotal.WithLabelValues(key, strconv.Itoa(attempt)).Inc()
}

// RecordDeduplicationHit records a fetch that joined an in-flight request.
func (mc *MetricsCollector) RecordDeduplicationHit(key string) {
	mc.deduplicationHits.WithLabelValues(key).Inc()
}

// RecordCancellation records a fetch settled as cancelled.
func (mc *MetricsCollector) RecordCancellation(key string) {
	mc.cancellationsTotal.WithLabelValues(key).Inc()
}

// RecordCacheHit records a SWR cache hit.
func (mc *MetricsCollector) RecordCacheHit(key string) {
	mc.cacheHits.WithLabelValues(key).Inc()
}

// RecordCacheMiss records a cache miss.
func (mc *MetricsCollector) RecordCacheMiss(key string) {
	mc.cacheMisses.WithLabelValues(key).Inc()
}

// RecordCacheSize records the current entry count.
func (mc *MetricsCollector) RecordCacheSize(size int) {
	mc.cacheSize.Set(float64(size))
}

// RecordEvictions records size-bound evictions.
func (mc *MetricsCollector) RecordEvictions(n int) {
	if n > 0 {
		mc.cacheEvictions.Add(float64(n))
	}
}

// RecordNotification records a notification fan-out to n subscribers.
func (mc *MetricsCollector) RecordNotification(key string, n int) {
	mc.notificationsTotal.WithLabelValues(key).Add(float64(n))
}

// RecordSubscriberPanic records a recovered subscriber panic.
func (mc *MetricsCollector) RecordSubscriberPanic(key string) {
	mc.subscriberPanics.WithLabelValues(key).Inc()
}

// RecordPollingTasks records the number of active polling tasks.
func (mc *MetricsCollector) RecordPollingTasks(n int) {
	mc.pollingTasks.Set(float64(n))
}

// RecordRevalidationSweep records one bulk revalidation sweep.
// Trigger is one of "focus", "reconnect", "manual".
func (mc *MetricsCollector) RecordRevalidationSweep(trigger string) {
	mc.revalidationSweeps.WithLabelValues(trigger).Inc()
}
