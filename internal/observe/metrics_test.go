package observe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the counter data point carrying key=value.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	require.NotNil(t, met, "metric %q not found", name)
	sum, ok := met.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %q is not a sum", name)
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q: no data point with %s=%s", name, key, value)
	return 0
}

func TestHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.AnalyzeDuration.Record(ctx, 0.0003)
	m.AnalyzeDuration.Record(ctx, 0.002)
	m.BatchDuration.Record(ctx, 0.4)

	rm := collect(t, reader)
	for name, want := range map[string]uint64{
		"callmark.analyze.duration": 2,
		"callmark.batch.duration":   1,
	} {
		met := findMetric(rm, name)
		require.NotNil(t, met, name)
		hist, ok := met.Data.(metricdata.Histogram[float64])
		require.True(t, ok, name)
		require.NotEmpty(t, hist.DataPoints, name)
		assert.Equal(t, want, hist.DataPoints[0].Count, name)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, false)

	rm := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, rm, "callmark.cache.lookups", "result", "hit"))
	assert.Equal(t, int64(1), sumFor(t, rm, "callmark.cache.lookups", "result", "miss"))
}

func TestRecordMatch(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordMatch(ctx, "exact")
	m.RecordMatch(ctx, "semantic")
	m.RecordMatch(ctx, "exact")

	rm := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, rm, "callmark.matches", "kind", "exact"))
	assert.Equal(t, int64(1), sumFor(t, rm, "callmark.matches", "kind", "semantic"))
}

func TestRecordJob(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordJob(ctx, "finished", 0.2)
	m.RecordJob(ctx, "failed", 0.01)

	rm := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, rm, "callmark.jobs", "status", "finished"))
	assert.Equal(t, int64(1), sumFor(t, rm, "callmark.jobs", "status", "failed"))
	assert.NotNil(t, findMetric(rm, "callmark.job.duration"))
}

func TestRecordDictionaryReload(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordDictionaryReload(ctx, true)
	m.RecordDictionaryReload(ctx, false)

	rm := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, rm, "callmark.dictionary.reloads", "status", "ok"))
	assert.Equal(t, int64(1), sumFor(t, rm, "callmark.dictionary.reloads", "status", "error"))
}

func TestActiveJobs(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveJobs.Add(ctx, 1)
	m.ActiveJobs.Add(ctx, 1)
	m.ActiveJobs.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "callmark.active_jobs")
	require.NotNil(t, met)
	sum, ok := met.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.NotEmpty(t, sum.DataPoints)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	assert.Same(t, DefaultMetrics(), DefaultMetrics())
}
