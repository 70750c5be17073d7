package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evarc/evarc/internal/pipeline"
	"github.com/evarc/evarc/pkg/config"
	"github.com/evarc/evarc/pkg/json"
	"github.com/evarc/evarc/pkg/logger"
	"github.com/evarc/evarc/pkg/metrics"
	"github.com/evarc/evarc/pkg/observability"
	"github.com/evarc/evarc/pkg/pool"
	"github.com/evarc/evarc/pkg/rowtable"
	"github.com/evarc/evarc/pkg/writer"
)

// Set via -ldflags at release time.
var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "evarc",
		Short: "evarc - columnar event archive writer",
		Long: `evarc persists per-event physics record collections into a columnar
archive. Collections are discovered as events arrive; columns created late are
backfilled so every column always spans every event.`,
	}

	// Version command
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("evarc v%s\n", version)
			fmt.Printf("Commit: %s\n", commit)
			fmt.Printf("Built: %s\n", date)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	// Main run command
	var (
		configFile  string
		outputPath  string
		copyTo      string
		include     string
		exclude     string
		format      string
		codec       string
		events      int64
		seed        int64
		input       string
		workers     int
		logLevel    string
		metricsAddr string
		traceOn     bool
		timeout     time.Duration
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Generate or replay events and write an archive",
		Long: `Run the event pipeline end to end: events flow from the configured
source through the writer into a columnar archive, which is finalized and
optionally copied to a second destination.

Example:
  evarc run -n 100000 -o run42.parquet --exclude DebugHits
  evarc run --input events.jsonl -o replayed.parquet --copy-to s3://archive/runs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewDefaultConfig()
			if configFile != "" {
				loaded, err := config.LoadConfig(configFile)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			// Command line flags win over the config file.
			flags := cmd.Flags()
			if flags.Changed("output") {
				cfg.Output.Path = outputPath
			}
			if flags.Changed("copy-to") {
				cfg.Output.CopyTo = copyTo
			}
			if flags.Changed("include") {
				cfg.Filter.IncludeCollections = include
			}
			if flags.Changed("exclude") {
				cfg.Filter.ExcludeCollections = exclude
			}
			if flags.Changed("format") {
				cfg.Output.Format = format
			}
			if flags.Changed("compression") {
				cfg.Output.Compression = codec
			}
			if flags.Changed("events") {
				cfg.Pipeline.Source.Events = events
			}
			if flags.Changed("seed") {
				cfg.Pipeline.Source.Seed = seed
			}
			if flags.Changed("workers") {
				cfg.Pipeline.Workers = workers
			}
			if flags.Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if flags.Changed("metrics-listen") {
				cfg.Metrics.ListenAddr = metricsAddr
			}
			if flags.Changed("trace") {
				cfg.Tracing.Enabled = traceOn
			}
			if input != "" {
				cfg.Pipeline.Source.Kind = "replay"
				cfg.Pipeline.Source.Path = input
			}

			return runArchive(cfg, timeout)
		},
	}

	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file (optional)")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultOutputPath, `Archive path ("1" selects the framework default)`)
	runCmd.Flags().StringVar(&copyTo, "copy-to", "", "Copy the finalized archive to a directory, s3:// or gs:// destination")
	runCmd.Flags().StringVar(&include, "include", "", "Comma-separated collection names to write (empty writes everything)")
	runCmd.Flags().StringVar(&exclude, "exclude", "", "Comma-separated collection names to drop, overriding --include")
	runCmd.Flags().StringVar(&format, "format", config.FormatParquet, "Archive format (parquet, arrow)")
	runCmd.Flags().StringVar(&codec, "compression", "zstd", "Parquet compression codec (zstd, snappy, gzip, none)")
	runCmd.Flags().Int64VarP(&events, "events", "n", 1000, "Number of synthetic events to generate")
	runCmd.Flags().Int64Var(&seed, "seed", 1, "Synthetic generation seed")
	runCmd.Flags().StringVar(&input, "input", "", "Replay events from a JSON lines file instead of generating them")
	runCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "Number of concurrent event processors")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-listen", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().BoolVar(&traceOn, "trace", false, "Emit OpenTelemetry spans for event processing")
	runCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Run timeout")

	root.AddCommand(runCmd)

	// Inspect command
	var asJSON bool
	inspectCmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Print schema, row count and metadata of a finished archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectArchive(args[0], asJSON)
		},
	}
	inspectCmd.Flags().BoolVar(&asJSON, "json", false, "Emit the summary as JSON")
	root.AddCommand(inspectCmd)

	// Bench command
	var (
		benchEvents  int64
		benchSeed    int64
		benchFormat  string
		benchCodec   string
		benchWorkers int
		benchOutput  string
		benchKeep    bool
	)
	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure synthetic write throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(benchEvents, benchSeed, benchFormat, benchCodec, benchWorkers, benchOutput, benchKeep)
		},
	}
	benchCmd.Flags().Int64VarP(&benchEvents, "events", "n", 100000, "Number of synthetic events")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 1, "Synthetic generation seed")
	benchCmd.Flags().StringVar(&benchFormat, "format", config.FormatParquet, "Archive format (parquet, arrow)")
	benchCmd.Flags().StringVar(&benchCodec, "compression", "zstd", "Parquet compression codec")
	benchCmd.Flags().IntVar(&benchWorkers, "workers", runtime.NumCPU(), "Number of concurrent event processors")
	benchCmd.Flags().StringVar(&benchOutput, "output", "", "Archive path (default: a temporary file)")
	benchCmd.Flags().BoolVar(&benchKeep, "keep", false, "Keep the archive after the benchmark")
	root.AddCommand(benchCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runArchive executes a full write run with the given configuration.
func runArchive(cfg *config.Config, timeout time.Duration) error {
	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx = context.WithValue(ctx, logger.RunIDKey, pool.GenerateID("run"))

	log := logger.WithContext(ctx).With(zap.String("component", "evarc-cli"))

	if cfg.Tracing.Enabled {
		if err := observability.Initialize(&cfg.Tracing, version); err != nil {
			return fmt.Errorf("tracing initialization failed: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := observability.Shutdown(shutdownCtx); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.ListenAddr != "" {
			metrics.Serve(ctx, cfg.Metrics.ListenAddr)
		}
		metrics.StartProcessStats(ctx, cfg.Metrics.ProcessStatsInterval)
	}

	w, err := writer.New(cfg, nil)
	if err != nil {
		return fmt.Errorf("writer setup failed: %w", err)
	}
	w.SetBuildInfo(writer.BuildInfo{Version: version, Commit: commit, Date: date})

	if err := w.Open(ctx); err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}

	src := pipeline.NewSource(cfg.Pipeline.Source)
	log.Info("starting run",
		zap.String("source", src.Name()),
		zap.String("path", w.Path()),
		zap.String("format", cfg.Output.Format),
		zap.Int("workers", cfg.Pipeline.GetWorkers()))

	stats, err := pipeline.New(cfg, src, w).Run(ctx)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("pipeline execution failed: %w", err)
	}

	if err := w.Finalize(ctx); err != nil {
		return fmt.Errorf("finalize failed: %w", err)
	}

	log.Info("run completed",
		zap.Uint64("events", stats.Events),
		zap.Duration("duration", stats.Duration),
		zap.Float64("events_per_sec", stats.EventsPerSec),
		zap.String("path", w.Path()))
	return nil
}

// inspectArchive prints a summary of a finished archive file.
func inspectArchive(path string, asJSON bool) error {
	summary, err := rowtable.Inspect(path)
	if err != nil {
		return err
	}

	if asJSON {
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("File:    %s\n", summary.Path)
	fmt.Printf("Format:  %s\n", summary.Format)
	fmt.Printf("Rows:    %d\n", summary.Rows)
	fmt.Printf("Columns: %d\n\n", len(summary.Columns))

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE")
	for _, c := range summary.Columns {
		fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.Type)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(summary.Metadata) > 0 {
		fmt.Println("\nMetadata:")
		keys := make([]string, 0, len(summary.Metadata))
		for k := range summary.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", k, summary.Metadata[k])
		}
	}
	return nil
}

// runBench writes a synthetic archive and reports throughput.
func runBench(events, seed int64, format, codec string, workers int, output string, keep bool) error {
	if err := logger.Init(config.LoggingConfig{Level: "error", Encoding: "console"}); err != nil {
		return err
	}

	cfg := config.NewDefaultConfig()
	cfg.Output.Format = format
	cfg.Output.Compression = codec
	cfg.Pipeline.Workers = workers
	cfg.Pipeline.ProgressInterval = 0
	cfg.Pipeline.Source = config.SourceConfig{
		Kind:            "synthetic",
		Events:          events,
		Seed:            seed,
		RecordsPerEvent: 16,
	}

	if output == "" {
		dir, err := os.MkdirTemp("", "evarc-bench-*")
		if err != nil {
			return err
		}
		if !keep {
			defer os.RemoveAll(dir)
		}
		ext := "parquet"
		if format == config.FormatArrow {
			ext = "arrow"
		}
		output = filepath.Join(dir, "bench."+ext)
	}
	cfg.Output.Path = output

	fmt.Println("=== evarc synthetic write benchmark ===")
	fmt.Printf("Events:      %d\n", events)
	fmt.Printf("Format:      %s (%s)\n", format, codec)
	fmt.Printf("Workers:     %d\n\n", cfg.Pipeline.GetWorkers())

	ctx := context.Background()

	w, err := writer.New(cfg, nil)
	if err != nil {
		return err
	}
	w.SetBuildInfo(writer.BuildInfo{Version: version, Commit: commit, Date: date})
	if err := w.Open(ctx); err != nil {
		return err
	}

	stats, err := pipeline.New(cfg, pipeline.NewSource(cfg.Pipeline.Source), w).Run(ctx)
	if err != nil {
		_ = w.Close()
		return err
	}

	finalizeStart := time.Now()
	if err := w.Finalize(ctx); err != nil {
		return err
	}
	finalizeTime := time.Since(finalizeStart)

	info, err := os.Stat(output)
	if err != nil {
		return err
	}

	fmt.Printf("Processed:   %d events in %s\n", stats.Events, stats.Duration.Round(time.Millisecond))
	fmt.Printf("Throughput:  %.0f events/sec\n", stats.EventsPerSec)
	fmt.Printf("Finalize:    %s\n", finalizeTime.Round(time.Millisecond))
	fmt.Printf("File size:   %.2f MB (%.1f bytes/event)\n",
		float64(info.Size())/(1<<20), float64(info.Size())/float64(stats.Events))
	if keep {
		fmt.Printf("Archive:     %s\n", output)
	}
	return nil
}
