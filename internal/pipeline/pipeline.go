// Package pipeline feeds events from a source into the writer with a
// pool of workers, tracking throughput and latency along the way.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/evarc/evarc/pkg/config"
	"github.com/evarc/evarc/pkg/event"
	"github.com/evarc/evarc/pkg/logger"
	"github.com/evarc/evarc/pkg/metrics"
	"github.com/evarc/evarc/pkg/writer"
)

// Source streams events into the pipeline. The events channel closes
// when the source is exhausted; the errors channel reports recoverable
// per-event problems and closes with it.
type Source interface {
	Name() string
	Events(ctx context.Context) (<-chan *event.Event, <-chan error)
}

// NewSource builds the source selected by the configuration.
func NewSource(cfg config.SourceConfig) Source {
	if cfg.Kind == "replay" {
		return NewReplaySource(cfg)
	}
	return NewSyntheticSource(cfg)
}

// RunStats summarizes a completed pipeline run.
type RunStats struct {
	Events       uint64
	SourceErrors int64
	Duration     time.Duration
	EventsPerSec float64
}

// Pipeline drives events from a source through the writer.
type Pipeline struct {
	cfg *config.Config
	src Source
	w   *writer.Writer

	log  *zap.Logger
	coll *metrics.Collector
	thr  *metrics.ThroughputTracker
	lat  *metrics.LatencyTracker

	srcErrs     atomic.Int64
	firstSrcErr error
	errOnce     sync.Once
}

// New creates a pipeline over an already-opened writer.
func New(cfg *config.Config, src Source, w *writer.Writer) *Pipeline {
	return &Pipeline{
		cfg:  cfg,
		src:  src,
		w:    w,
		log:  logger.Get().With(zap.String("component", "pipeline")),
		coll: metrics.NewCollector("pipeline"),
		thr:  metrics.NewThroughputTracker("pipeline"),
		lat:  metrics.NewLatencyTracker(4096),
	}
}

// Run streams the source to completion. Worker errors abort the run;
// source errors are logged and counted but only fail the run when no
// event was delivered at all.
func (p *Pipeline) Run(ctx context.Context) (*RunStats, error) {
	start := time.Now()
	workers := p.cfg.Pipeline.GetWorkers()
	depth := p.cfg.Pipeline.QueueDepth
	if depth <= 0 {
		depth = 256
	}
	interval := p.cfg.Pipeline.ProgressInterval

	p.log.Info("pipeline starting",
		zap.String("source", p.src.Name()),
		zap.Int("workers", workers),
		zap.Int("queue_depth", depth))

	// The source lives under the group context so a failing worker tears
	// it down instead of leaving it blocked on an unread channel.
	g, gctx := errgroup.WithContext(ctx)

	events, srcErrs := p.src.Events(gctx)
	queue := make(chan *event.Event, depth)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for err := range srcErrs {
			if err == nil {
				continue
			}
			p.srcErrs.Add(1)
			p.errOnce.Do(func() { p.firstSrcErr = err })
			p.log.Warn("source error", zap.Error(err))
		}
	}()

	stopSampler := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.coll.SetQueueDepth("events", len(queue))
			case <-stopSampler:
				return
			}
		}
	}()

	var processed atomic.Uint64

	g.Go(func() error {
		defer close(queue)
		for {
			select {
			case evt, ok := <-events:
				if !ok {
					return nil
				}
				select {
				case queue <- evt:
				case <-gctx.Done():
					return gctx.Err()
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for evt := range queue {
				t0 := time.Now()
				if err := p.w.Process(gctx, evt); err != nil {
					return err
				}
				p.lat.Record(time.Since(t0))
				p.thr.Increment(1)

				n := processed.Add(1)
				if interval > 0 && n%uint64(interval) == 0 {
					p.log.Info("progress",
						zap.Uint64("events", n),
						zap.Float64("events_per_sec", p.thr.GetAndReset()),
						zap.Duration("p99_latency", p.lat.GetPercentile(99)))
				}
			}
			return nil
		})
	}

	err := g.Wait()
	close(stopSampler)
	<-drained

	stats := &RunStats{
		Events:       processed.Load(),
		SourceErrors: p.srcErrs.Load(),
		Duration:     time.Since(start),
	}
	if secs := stats.Duration.Seconds(); secs > 0 {
		stats.EventsPerSec = float64(stats.Events) / secs
	}

	if err != nil {
		return stats, err
	}
	if stats.Events == 0 && p.firstSrcErr != nil {
		return stats, p.firstSrcErr
	}

	p.log.Info("pipeline completed",
		zap.Uint64("events", stats.Events),
		zap.Int64("source_errors", stats.SourceErrors),
		zap.Duration("duration", stats.Duration),
		zap.Float64("events_per_sec", stats.EventsPerSec))
	return stats, nil
}
