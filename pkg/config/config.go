package config

import (
	"fmt"
	"runtime"
	"time"
)

const (
	// DefaultOutputPath is used when the output path carries the
	// use-the-default sentinel.
	DefaultOutputPath = "events.evarc.parquet"

	// OutputPathDefaultSentinel requests the framework default path.
	OutputPathDefaultSentinel = "1"

	// FormatParquet writes the archive as a Parquet file.
	FormatParquet = "parquet"
	// FormatArrow writes the archive as an Arrow IPC file.
	FormatArrow = "arrow"
)

// Config is the root configuration for an evarc run.
type Config struct {
	// Output controls the archive file and post-close copy
	Output OutputConfig `yaml:"output" json:"output"`

	// Filter restricts which collections are written
	Filter FilterConfig `yaml:"filter" json:"filter"`

	// Pipeline configures event delivery into the writer
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`

	// Logging configures the global logger
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics configures Prometheus exposition
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Tracing configures OpenTelemetry tracing
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// OutputConfig contains archive output settings.
type OutputConfig struct {
	// Path is the archive destination. The sentinel value "1" selects
	// DefaultOutputPath. Empty is a configuration error.
	Path string `yaml:"path" json:"path"`
	// CopyTo, if non-empty, duplicates the finalized archive there after
	// close. Accepts a local directory or file path, s3://bucket/prefix,
	// or gs://bucket/prefix. The destination is not checked up front.
	CopyTo string `yaml:"copy_to" json:"copy_to"`
	// CopyCompression optionally compresses the copy stream
	// (none, gzip, zstd, lz4). The primary archive is never wrapped.
	CopyCompression string `yaml:"copy_compression" json:"copy_compression"`
	// CopyRegion overrides the region for s3:// destinations
	CopyRegion string `yaml:"copy_region" json:"copy_region"`
	// CopyPartSizeMB sets the multipart upload part size for s3://
	CopyPartSizeMB int `yaml:"copy_part_size_mb" json:"copy_part_size_mb"`
	// CopyConcurrency sets the multipart upload concurrency for s3://
	CopyConcurrency int `yaml:"copy_concurrency" json:"copy_concurrency"`
	// Format selects the archive encoding: parquet or arrow
	Format string `yaml:"format" json:"format"`
	// Compression selects the archive codec (parquet: zstd, snappy, gzip,
	// none; arrow IPC ignores it)
	Compression string `yaml:"compression" json:"compression"`
	// RowGroupEvents caps events per parquet row group at encode time
	RowGroupEvents int64 `yaml:"row_group_events" json:"row_group_events"`
}

// FilterConfig contains the collection include/exclude lists.
// Both are comma-separated collection names.
type FilterConfig struct {
	// IncludeCollections, if non-empty, admits only the listed names
	IncludeCollections string `yaml:"include_collections" json:"include_collections"`
	// ExcludeCollections lists names never written, even if also included
	ExcludeCollections string `yaml:"exclude_collections" json:"exclude_collections"`
}

// PipelineConfig contains event pipeline settings.
type PipelineConfig struct {
	// Workers is the number of concurrent event processors
	Workers int `yaml:"workers" json:"workers"`
	// QueueDepth is the event channel capacity
	QueueDepth int `yaml:"queue_depth" json:"queue_depth"`
	// ProgressInterval controls how often progress is logged (events)
	ProgressInterval int64 `yaml:"progress_interval" json:"progress_interval"`
	// Source configures where events come from
	Source SourceConfig `yaml:"source" json:"source"`
}

// SourceConfig selects and configures an event source.
type SourceConfig struct {
	// Kind is the source type: synthetic or replay
	Kind string `yaml:"kind" json:"kind"`
	// Events is the number of events to emit (synthetic)
	Events int64 `yaml:"events" json:"events"`
	// Path is the input file for replay sources (JSON lines)
	Path string `yaml:"path" json:"path"`
	// Seed makes synthetic generation deterministic
	Seed int64 `yaml:"seed" json:"seed"`
	// RecordsPerEvent bounds records per collection per event (synthetic)
	RecordsPerEvent int `yaml:"records_per_event" json:"records_per_event"`
	// LateCollectionStart introduces extra collections after this many
	// events to exercise column backfill (synthetic; 0 disables)
	LateCollectionStart int64 `yaml:"late_collection_start" json:"late_collection_start"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	// Level sets verbosity (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`
	// Encoding selects json or console output
	Encoding string `yaml:"encoding" json:"encoding"`
	// Development enables colored, stack-traced output
	Development bool `yaml:"development" json:"development"`
	// OutputPaths overrides log destinations (default stdout)
	OutputPaths []string `yaml:"output_paths" json:"output_paths"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled activates metric collection
	Enabled bool `yaml:"enabled" json:"enabled"`
	// ListenAddr serves /metrics when non-empty (e.g. ":9090")
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	// Namespace prefixes all metric names
	Namespace string `yaml:"namespace" json:"namespace"`
	// ProcessStatsInterval refreshes process RSS/CPU gauges
	ProcessStatsInterval time.Duration `yaml:"process_stats_interval" json:"process_stats_interval"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled activates tracing
	Enabled bool `yaml:"enabled" json:"enabled"`
	// ServiceName identifies this process in traces
	ServiceName string `yaml:"service_name" json:"service_name"`
	// SampleRate controls trace sampling (0.0-1.0)
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate"`
	// Exporter selects the span exporter (stdout, none)
	Exporter string `yaml:"exporter" json:"exporter"`
}

// NewDefaultConfig creates a Config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Path:            DefaultOutputPath,
			Format:          FormatParquet,
			Compression:     "zstd",
			CopyCompression: "none",
			CopyPartSizeMB:  8,
			CopyConcurrency: 4,
			RowGroupEvents:  4096,
		},
		Pipeline: PipelineConfig{
			Workers:          runtime.NumCPU(),
			QueueDepth:       256,
			ProgressInterval: 10000,
			Source: SourceConfig{
				Kind:            "synthetic",
				Events:          1000,
				Seed:            1,
				RecordsPerEvent: 16,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Enabled:              true,
			Namespace:            "evarc",
			ProcessStatsInterval: 30 * time.Second,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "evarc",
			SampleRate:  0.1,
			Exporter:    "stdout",
		},
	}
}

// ResolvedPath returns the archive path with the default sentinel applied.
func (o *OutputConfig) ResolvedPath() string {
	if o.Path == OutputPathDefaultSentinel {
		return DefaultOutputPath
	}
	return o.Path
}

// Validate validates the configuration for correctness. It checks required
// fields and ensures values are within acceptable ranges. Callers should
// validate after loading to catch errors before the writer opens.
func (c *Config) Validate() error {
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	switch c.Output.Format {
	case FormatParquet, FormatArrow:
	default:
		return fmt.Errorf("output.format must be %q or %q, got %q", FormatParquet, FormatArrow, c.Output.Format)
	}
	switch c.Output.Compression {
	case "", "none", "gzip", "snappy", "zstd", "lz4":
	default:
		return fmt.Errorf("output.compression %q is not supported", c.Output.Compression)
	}
	switch c.Output.CopyCompression {
	case "", "none", "gzip", "zstd", "lz4":
	default:
		return fmt.Errorf("output.copy_compression %q is not supported", c.Output.CopyCompression)
	}
	if c.Output.RowGroupEvents < 0 {
		return fmt.Errorf("output.row_group_events cannot be negative")
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers cannot be negative")
	}
	if c.Pipeline.QueueDepth < 0 {
		return fmt.Errorf("pipeline.queue_depth cannot be negative")
	}
	if c.Pipeline.Source.Kind != "" {
		switch c.Pipeline.Source.Kind {
		case "synthetic", "replay":
		default:
			return fmt.Errorf("pipeline.source.kind %q is not supported", c.Pipeline.Source.Kind)
		}
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
	}
	return nil
}

// GetWorkers returns the worker count, ensuring it's at least 1.
func (p *PipelineConfig) GetWorkers() int {
	if p.Workers <= 0 {
		return runtime.NumCPU()
	}
	return p.Workers
}

// CopyEnabled reports whether a post-close copy is configured.
func (o *OutputConfig) CopyEnabled() bool {
	return o.CopyTo != ""
}
