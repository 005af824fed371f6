// Scheduler metrics tests for rxcore
package rxcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// collectMetrics 按名称收集指标
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	metrics := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			metrics[m.Name] = m
		}
	}
	return metrics
}

func sumValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMonitoredScheduler(t *testing.T) {
	t.Run("记录调度、完成与失败", func(t *testing.T) {
		silenceLogs(t)
		unhandled := captureUnhandled(t)

		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer provider.Shutdown(context.Background())

		s, err := NewMonitoredScheduler(NewImmediateScheduler(), "immediate", provider.Meter("test"))
		require.NoError(t, err)

		s.Schedule(func() {})
		s.Schedule(func() {})
		s.Schedule(func() { panic("boom") })

		metrics := collectMetrics(t, reader)
		assert.Equal(t, int64(3), sumValue(t, metrics["rxcore.scheduler.tasks.scheduled"]))
		assert.Equal(t, int64(2), sumValue(t, metrics["rxcore.scheduler.tasks.completed"]))
		assert.Equal(t, int64(1), sumValue(t, metrics["rxcore.scheduler.tasks.failed"]))

		hist, ok := metrics["rxcore.scheduler.task.duration"].Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		require.Len(t, hist.DataPoints, 1)
		assert.Equal(t, uint64(3), hist.DataPoints[0].Count)

		attr, found := hist.DataPoints[0].Attributes.Value("scheduler")
		assert.True(t, found)
		assert.Equal(t, "immediate", attr.AsString())

		assert.Len(t, unhandled(), 1)
	})

	t.Run("作为流的调度器使用", func(t *testing.T) {
		s, err := NewMonitoredScheduler(NewTrampolineScheduler(), "trampoline", noop.NewMeterProvider().Meter("test"))
		require.NoError(t, err)

		rec := newRecorder()
		Just(1, 2, 3).SubscribeOn(s).ObserveOn(s).Subscribe(rec.observer())
		rec.wait(t)
		assert.Equal(t, []interface{}{1, 2, 3}, rec.values())
	})

	t.Run("meter为nil时使用全局provider", func(t *testing.T) {
		s, err := NewMonitoredScheduler(NewPoolScheduler(1), "pool", nil)
		require.NoError(t, err)
		assert.False(t, s.IsShutdown())
		s.Shutdown()
		assert.True(t, s.IsShutdown())
	})
}
