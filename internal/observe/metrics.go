// Package observe provides application-wide observability primitives for
// callmark: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all callmark metrics.
const meterName = "github.com/MrWong99/callmark"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// AnalyzeDuration tracks the time to analyse one utterance on a cache
	// miss.
	AnalyzeDuration metric.Float64Histogram

	// BatchDuration tracks the time to analyse a whole conversation.
	BatchDuration metric.Float64Histogram

	// JobDuration tracks inbox job processing time. Use with attribute:
	//   attribute.String("status", ...)
	JobDuration metric.Float64Histogram

	// --- Counters ---

	// CacheLookups counts analysis cache lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	CacheLookups metric.Int64Counter

	// CacheEvictions counts full clears of the analysis cache.
	CacheEvictions metric.Int64Counter

	// Matches counts highlighted spans. Use with attribute:
	//   attribute.String("kind", ...)
	Matches metric.Int64Counter

	// Jobs counts finished inbox jobs. Use with attribute:
	//   attribute.String("status", ...)
	Jobs metric.Int64Counter

	// DictionaryReloads counts dictionary file reloads. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	DictionaryReloads metric.Int64Counter

	// --- Gauges ---

	// ActiveJobs tracks the number of inbox jobs being processed.
	ActiveJobs metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// analyzeBuckets defines histogram bucket boundaries (in seconds) for
// per-utterance analysis, which is CPU-bound and usually sub-millisecond.
var analyzeBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// jobBuckets defines histogram bucket boundaries (in seconds) for whole
// conversations and inbox jobs.
var jobBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AnalyzeDuration, err = m.Float64Histogram("callmark.analyze.duration",
		metric.WithDescription("Latency of analysing one utterance against all dictionaries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analyzeBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BatchDuration, err = m.Float64Histogram("callmark.batch.duration",
		metric.WithDescription("Latency of analysing a whole conversation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(jobBuckets...),
	); err != nil {
		return nil, err
	}
	if met.JobDuration, err = m.Float64Histogram("callmark.job.duration",
		metric.WithDescription("Latency of processing one inbox job by status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(jobBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CacheLookups, err = m.Int64Counter("callmark.cache.lookups",
		metric.WithDescription("Analysis cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.CacheEvictions, err = m.Int64Counter("callmark.cache.evictions",
		metric.WithDescription("Full clears of the analysis cache."),
	); err != nil {
		return nil, err
	}
	if met.Matches, err = m.Int64Counter("callmark.matches",
		metric.WithDescription("Highlighted spans by match kind."),
	); err != nil {
		return nil, err
	}
	if met.Jobs, err = m.Int64Counter("callmark.jobs",
		metric.WithDescription("Finished inbox jobs by status."),
	); err != nil {
		return nil, err
	}
	if met.DictionaryReloads, err = m.Int64Counter("callmark.dictionary.reloads",
		metric.WithDescription("Dictionary file reloads by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveJobs, err = m.Int64UpDownCounter("callmark.active_jobs",
		metric.WithDescription("Number of inbox jobs being processed."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("callmark.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCacheLookup counts one analysis cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordMatch counts one highlighted span of the given kind.
func (m *Metrics) RecordMatch(ctx context.Context, kind string) {
	m.Matches.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordJob counts a finished inbox job and its duration in seconds.
func (m *Metrics) RecordJob(ctx context.Context, status string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Jobs.Add(ctx, 1, attrs)
	m.JobDuration.Record(ctx, seconds, attrs)
}

// RecordDictionaryReload counts one dictionary reload attempt.
func (m *Metrics) RecordDictionaryReload(ctx context.Context, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.DictionaryReloads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
