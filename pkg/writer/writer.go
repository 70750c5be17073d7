// Package writer drives the event archive. It materializes producer
// records into collection buffers, keeps the physical column schema in
// sync as collections appear over the run, and finalizes the archive
// with collection and run metadata.
//
// A Writer moves through a fixed lifecycle:
//
//	Uninitialized -> Open -> Processing -> Finalizing -> Closed
//
// Open creates the output table, Process writes one event at a time,
// Finalize encodes the archive and optionally copies it to a configured
// destination. All writer operations are serialized by one job-wide
// lock; callers may invoke Process from multiple goroutines.
package writer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/evarc/evarc/pkg/config"
	"github.com/evarc/evarc/pkg/errors"
	"github.com/evarc/evarc/pkg/event"
	"github.com/evarc/evarc/pkg/eventstore"
	"github.com/evarc/evarc/pkg/logger"
	"github.com/evarc/evarc/pkg/metrics"
	"github.com/evarc/evarc/pkg/observability"
	"github.com/evarc/evarc/pkg/pool"
	"github.com/evarc/evarc/pkg/registry"
	"github.com/evarc/evarc/pkg/rowtable"
)

// State is the writer lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateOpen
	StateProcessing
	StateFinalizing
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateOpen:
		return "open"
	case StateProcessing:
		return "processing"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// BuildInfo identifies the producing binary in archive metadata.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
}

// Writer persists per-event record collections into a columnar archive.
type Writer struct {
	mu    sync.Mutex
	state atomic.Int32

	cfg    *config.Config
	path   string
	filter config.CollectionFilter
	reg    *registry.Registry

	table    rowtable.Table
	newTable func(rowtable.Options) (rowtable.Table, error)

	stores *pool.Pool[*eventstore.Store]

	runParams  map[int32]event.Params
	collParams map[string]event.Params
	buildInfo  BuildInfo

	eventsWritten atomic.Uint64

	log    *zap.Logger
	coll   *metrics.Collector
	tracer *observability.WriterTracer
}

// New creates a writer in the Uninitialized state. The registry maps
// collection names to stable small integer IDs; passing nil creates a
// fresh one, passing a shared instance lets several writers agree on
// IDs.
func New(cfg *config.Config, reg *registry.Registry) (*Writer, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid writer configuration")
	}
	if reg == nil {
		reg = registry.New()
	}

	w := &Writer{
		cfg:      cfg,
		path:     cfg.Output.ResolvedPath(),
		filter:   config.ParseFilter(cfg.Filter.IncludeCollections, cfg.Filter.ExcludeCollections),
		reg:      reg,
		newTable: rowtable.New,
		stores: pool.New(
			func() *eventstore.Store { return eventstore.NewStore() },
			func(s *eventstore.Store) { s.Reset() },
		),
		runParams:  make(map[int32]event.Params),
		collParams: make(map[string]event.Params),
		buildInfo:  BuildInfo{Version: "dev"},
		log:        logger.Get().With(zap.String("component", "writer")),
		coll:       metrics.NewCollector("writer"),
		tracer:     observability.NewWriterTracer("writer"),
	}
	return w, nil
}

// Open creates the output table. The writer must be Uninitialized.
func (w *Writer) Open(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() != StateUninitialized {
		return errors.New(errors.ErrorTypeState, "writer is already open").
			WithDetail("state", w.State().String())
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "open cancelled")
	}

	if dir := filepath.Dir(w.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeStorage, "failed to create output directory").
				WithDetail("path", dir)
		}
	}

	tbl, err := w.newTable(rowtable.Options{
		Path:           w.path,
		Format:         rowtable.Format(w.cfg.Output.Format),
		Compression:    w.cfg.Output.Compression,
		RowGroupEvents: w.cfg.Output.RowGroupEvents,
	})
	if err != nil {
		return err
	}
	w.table = tbl
	w.setState(StateOpen)

	w.log.Info("archive opened",
		zap.String("path", w.path),
		zap.String("format", w.cfg.Output.Format),
		zap.String("compression", w.cfg.Output.Compression))
	return nil
}

// Close releases the writer. Events buffered but not finalized are
// dropped with a warning. Close is idempotent and safe after Finalize.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.State() {
	case StateClosed:
		return nil
	case StateUninitialized:
		w.setState(StateClosed)
		return nil
	case StateOpen, StateProcessing:
		w.log.Warn("closing archive without finalize, buffered events are dropped",
			zap.Uint64("events", w.eventsWritten.Load()))
	}

	var err error
	if w.table != nil {
		err = w.table.Close()
		w.table = nil
	}
	w.setState(StateClosed)
	return err
}

// State returns the current lifecycle state without locking.
func (w *Writer) State() State {
	return State(w.state.Load())
}

func (w *Writer) setState(s State) {
	w.state.Store(int32(s))
}

// Path returns the resolved archive path.
func (w *Writer) Path() string {
	return w.path
}

// EventsWritten returns the number of events flushed so far.
func (w *Writer) EventsWritten() uint64 {
	return w.eventsWritten.Load()
}

// CollectionIDs returns the registered collection name to ID mapping.
func (w *Writer) CollectionIDs() map[string]int32 {
	return w.reg.Snapshot()
}

// SetBuildInfo records the binary identity stamped into the archive.
func (w *Writer) SetBuildInfo(bi BuildInfo) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buildInfo = bi
}

// SetRunParam attaches one metadata value to a run. Run parameters are
// written to the archive footer at finalize.
func (w *Writer) SetRunParam(run int32, key string, value interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	params, ok := w.runParams[run]
	if !ok {
		params = make(event.Params)
		w.runParams[run] = params
	}
	params[key] = value
}

// SetCollectionParam attaches one metadata value to a collection.
func (w *Writer) SetCollectionParam(collection, key string, value interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	params, ok := w.collParams[collection]
	if !ok {
		params = make(event.Params)
		w.collParams[collection] = params
	}
	params[key] = value
}
