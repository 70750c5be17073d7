package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector("writer")

	before := testutil.ToFloat64(ColumnsCreated)
	c.ColumnCreated()
	c.ColumnCreated()
	assert.Equal(t, before+2, testutil.ToFloat64(ColumnsCreated))

	backfilled := testutil.ToFloat64(RowsBackfilled)
	c.BackfilledRows(5)
	assert.Equal(t, backfilled+5, testutil.ToFloat64(RowsBackfilled))

	rows := testutil.ToFloat64(RowsWritten.WithLabelValues("Clusters"))
	c.RowsAppended("Clusters", 3)
	assert.Equal(t, rows+3, testutil.ToFloat64(RowsWritten.WithLabelValues("Clusters")))

	errs := testutil.ToFloat64(MaterializeErrors.WithLabelValues("cluster_finder"))
	c.MaterializeError("cluster_finder")
	assert.Equal(t, errs+1, testutil.ToFloat64(MaterializeErrors.WithLabelValues("cluster_finder")))
}

func TestCollectorGauges(t *testing.T) {
	c := NewCollector("writer")

	c.SetActiveColumns(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(ActiveColumns))

	c.SetQueueDepth("events", 42)
	assert.Equal(t, 42.0, testutil.ToFloat64(QueueDepth.WithLabelValues("events")))
}

func TestThroughputTracker(t *testing.T) {
	tracker := NewThroughputTracker("pipeline")
	tracker.Increment(100)
	time.Sleep(10 * time.Millisecond)

	throughput := tracker.GetAndReset()
	assert.Greater(t, throughput, 0.0)

	// Counter resets after read.
	time.Sleep(time.Millisecond)
	assert.Equal(t, 0.0, tracker.countSnapshot())
}

func (t *ThroughputTracker) countSnapshot() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.count)
}

func TestLatencyTrackerPercentiles(t *testing.T) {
	lt := NewLatencyTracker(100)
	for i := 1; i <= 100; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	p50 := lt.GetPercentile(50)
	p99 := lt.GetPercentile(99)
	assert.InDelta(t, 50, p50.Milliseconds(), 2)
	assert.InDelta(t, 99, p99.Milliseconds(), 2)
	assert.LessOrEqual(t, p50, p99)
}

func TestLatencyTrackerEviction(t *testing.T) {
	lt := NewLatencyTracker(4)
	for i := 0; i < 10; i++ {
		lt.Record(time.Duration(i) * time.Second)
	}
	// Only the last four samples remain.
	assert.Equal(t, 6*time.Second, lt.GetPercentile(0))
}

func TestResourceMonitorSample(t *testing.T) {
	rm := NewResourceMonitor()
	rm.Sample()
	assert.Greater(t, testutil.ToFloat64(GoroutineCount), 0.0)
}
