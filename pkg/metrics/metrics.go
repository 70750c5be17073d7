// Package metrics provides performance tracking and observability for evarc
// using Prometheus metrics. It offers collectors for the writer hot path
// (events, rows, columns) plus process-level resource gauges.
//
// # Overview
//
// The metrics package provides:
//   - Prometheus-compatible metrics collection
//   - Pre-defined metrics for writer and pipeline operations
//   - Throughput and latency tracking utilities
//   - Process resource sampling (RSS, CPU, file descriptors)
//   - An optional /metrics HTTP listener
//
// # Basic Usage
//
//	collector := metrics.NewCollector("writer")
//
//	timer := metrics.NewTimer("process_event")
//	writeEvent(evt)
//	collector.EventProcessed("success", timer.Stop())
//
//	// Track throughput
//	tracker := metrics.NewThroughputTracker("pipeline")
//	for evt := range events {
//	    process(evt)
//	    tracker.Increment(1)
//	}
//	throughput := tracker.GetAndReset()
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., total events written)
// Gauge: Values that can go up or down (e.g., active columns)
// Histogram: Distribution of values (e.g., latency percentiles)
package metrics

import (
	"context"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/evarc/evarc/pkg/logger"
)

var (
	// EventsProcessed tracks the total number of events pushed through the
	// writer. Labels: status (success/failure)
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evarc_events_processed_total",
			Help: "Total number of events processed",
		},
		[]string{"status"},
	)

	// RowsWritten tracks the total number of records materialized per
	// collection column.
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evarc_rows_written_total",
			Help: "Total number of records written per collection",
		},
		[]string{"collection"},
	)

	// ColumnsCreated counts lazily created collection columns.
	ColumnsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evarc_columns_created_total",
			Help: "Total number of collection columns created",
		},
	)

	// RowsBackfilled counts placeholder rows written when a column first
	// appears after the start of the run.
	RowsBackfilled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evarc_rows_backfilled_total",
			Help: "Total number of empty placeholder rows backfilled",
		},
	)

	// MaterializeErrors counts per-producer conversion failures. These are
	// logged and skipped, never fatal, so the counter is the only trace of
	// a persistently failing producer besides the log stream.
	MaterializeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evarc_materialize_errors_total",
			Help: "Total number of per-producer materialization errors",
		},
		[]string{"producer"},
	)

	// BytesWritten tracks bytes written per destination (archive, copy).
	BytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evarc_bytes_written_total",
			Help: "Total bytes written per destination",
		},
		[]string{"destination"},
	)

	// ProcessingLatency tracks the distribution of write-path latencies in
	// nanoseconds. Labels: operation (materialize/sync/fill/process)
	ProcessingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "evarc_processing_latency_nanoseconds",
			Help: "Write path latency in nanoseconds",
			Buckets: []float64{
				100,    // 100ns - Ultra-low latency operations
				1000,   // 1μs - Memory operations
				10000,  // 10μs - Fast I/O operations
				100000, // 100μs - Network operations
				1e6,    // 1ms - Standard processing
				1e7,    // 10ms - Complex transformations
				1e8,    // 100ms - Batch operations
				1e9,    // 1s - Large batch processing
			},
		},
		[]string{"operation"},
	)

	// FinalizeDuration tracks how long the finalize step takes in seconds,
	// including archive encode and optional copy.
	FinalizeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evarc_finalize_duration_seconds",
			Help:    "Finalize duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)

	// ActiveColumns tracks the current number of collection columns.
	ActiveColumns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evarc_active_columns",
			Help: "Number of collection columns currently in the schema",
		},
	)

	// QueueDepth tracks queue depths
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evarc_queue_depth",
			Help: "Current queue depth",
		},
		[]string{"queue_name"},
	)

	// Throughput tracks events per second
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evarc_throughput_events_per_second",
			Help: "Current throughput in events per second",
		},
		[]string{"component"},
	)

	// ProcessRSS tracks resident set size of the evarc process.
	ProcessRSS = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evarc_process_resident_memory_bytes",
			Help: "Resident set size in bytes",
		},
	)

	// ProcessCPUPercent tracks CPU usage of the evarc process.
	ProcessCPUPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evarc_process_cpu_percent",
			Help: "Process CPU usage percent since last sample",
		},
	)

	// ProcessOpenFDs tracks open file descriptors.
	ProcessOpenFDs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evarc_process_open_fds",
			Help: "Number of open file descriptors",
		},
	)

	// GoroutineCount tracks the goroutine count.
	GoroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evarc_goroutines",
			Help: "Number of goroutines",
		},
	)

	// SystemMemoryPercent tracks system-wide memory usage.
	SystemMemoryPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evarc_system_memory_used_percent",
			Help: "System memory usage percent",
		},
	)
)

// Collector provides a per-component handle on the shared metric vectors.
// Each component creates its own collector; the methods update the
// underlying Prometheus collectors directly.
type Collector struct {
	name      string
	startTime time.Time
}

// NewCollector creates a new metrics collector for a component.
// The name parameter identifies the component in throughput labels.
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
	}
}

// StartTime returns when the collector was created.
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// Uptime returns how long the component has been running.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// EventProcessed records one processed event with its status and latency.
func (c *Collector) EventProcessed(status string, d time.Duration) {
	EventsProcessed.WithLabelValues(status).Inc()
	ProcessingLatency.WithLabelValues("process").Observe(float64(d.Nanoseconds()))
}

// RowsAppended records n materialized records for a collection.
func (c *Collector) RowsAppended(collection string, n int) {
	RowsWritten.WithLabelValues(collection).Add(float64(n))
}

// ColumnCreated records a lazily created column.
func (c *Collector) ColumnCreated() {
	ColumnsCreated.Inc()
}

// BackfilledRows records n placeholder rows.
func (c *Collector) BackfilledRows(n int64) {
	RowsBackfilled.Add(float64(n))
}

// MaterializeError records a per-producer conversion failure.
func (c *Collector) MaterializeError(producer string) {
	MaterializeErrors.WithLabelValues(producer).Inc()
}

// WroteBytes records bytes written to a destination.
func (c *Collector) WroteBytes(destination string, n int64) {
	BytesWritten.WithLabelValues(destination).Add(float64(n))
}

// ObserveLatency records a latency sample for an operation.
func (c *Collector) ObserveLatency(operation string, d time.Duration) {
	ProcessingLatency.WithLabelValues(operation).Observe(float64(d.Nanoseconds()))
}

// SetActiveColumns updates the active column gauge.
func (c *Collector) SetActiveColumns(n int) {
	ActiveColumns.Set(float64(n))
}

// SetQueueDepth updates a queue depth gauge.
func (c *Collector) SetQueueDepth(queue string, n int) {
	QueueDepth.WithLabelValues(queue).Set(float64(n))
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop returns the elapsed duration since creation. The timer can be
// stopped multiple times, each returning the total elapsed time.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks throughput (events per second) over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	component string
}

// NewThroughputTracker creates a new throughput tracker for a component.
func NewThroughputTracker(component string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		component: component,
	}
}

// Increment adds n to the event count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (events/second), updates
// the Prometheus gauge, resets the counter, and returns the calculated
// throughput. Safe for concurrent use.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.component).Set(throughput)

	return throughput
}

// LatencyTracker keeps a bounded window of latency samples and reports
// percentiles over it. Thread-safe for concurrent use.
type LatencyTracker struct {
	mu      sync.Mutex
	values  []time.Duration
	maxSize int
}

// NewLatencyTracker creates a new latency tracker holding at most maxSize
// samples. Older samples are evicted first.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	return &LatencyTracker{
		values:  make([]time.Duration, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record records a latency value.
func (l *LatencyTracker) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) >= l.maxSize {
		l.values = l.values[1:]
	}
	l.values = append(l.values, d)
}

// GetPercentile returns the percentile value (0-100) over the current window.
func (l *LatencyTracker) GetPercentile(p float64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(l.values))
	copy(sorted, l.values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(float64(len(sorted)) * p / 100)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}

// ResourceMonitor samples process resource usage via gopsutil and publishes
// the samples as gauges.
type ResourceMonitor struct {
	proc         *process.Process
	startCPUTime float64
	lastSample   time.Time
	mu           sync.Mutex
}

// NewResourceMonitor creates a resource monitor for the current process.
func NewResourceMonitor() *ResourceMonitor {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	var startCPU float64
	if proc != nil {
		if times, err := proc.Times(); err == nil {
			startCPU = times.Total()
		}
	}
	return &ResourceMonitor{
		proc:         proc,
		startCPUTime: startCPU,
		lastSample:   time.Now(),
	}
}

// Sample takes one resource sample and updates the process gauges.
func (rm *ResourceMonitor) Sample() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	GoroutineCount.Set(float64(runtime.NumGoroutine()))

	if rm.proc == nil {
		return
	}

	if memInfo, err := rm.proc.MemoryInfo(); err == nil {
		ProcessRSS.Set(float64(memInfo.RSS))
	}

	if times, err := rm.proc.Times(); err == nil {
		elapsed := time.Since(rm.lastSample).Seconds()
		if elapsed > 0 {
			ProcessCPUPercent.Set((times.Total() - rm.startCPUTime) / elapsed * 100)
			rm.startCPUTime = times.Total()
			rm.lastSample = time.Now()
		}
	}

	if fds, err := rm.proc.NumFDs(); err == nil {
		ProcessOpenFDs.Set(float64(fds))
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		SystemMemoryPercent.Set(vmStat.UsedPercent)
	}
}

// StartProcessStats samples process resources on the given interval until
// the context is canceled.
func StartProcessStats(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	rm := NewResourceMonitor()
	rm.Sample()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rm.Sample()
			}
		}
	}()
}

// Serve exposes the default Prometheus registry on addr under /metrics,
// along with the pprof endpoints under /debug/pprof/. The server shuts
// down when the context is canceled.
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Get().Warn("metrics server shutdown failed", zap.Error(err))
		}
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Get().Error("metrics server failed", zap.Error(err))
		}
	}()
}
