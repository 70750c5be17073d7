package writer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/evarc/evarc/pkg/datamodel"
	"github.com/evarc/evarc/pkg/errors"
	"github.com/evarc/evarc/pkg/event"
	"github.com/evarc/evarc/pkg/eventstore"
	"github.com/evarc/evarc/pkg/json"
)

// Process materializes one event's producer outputs into collection
// buffers and appends one row to every column of the archive.
//
// Producer failures are logged and counted but do not fail the event;
// the affected collection simply stays empty for this row. Schema
// violations (a collection changing its declared type between events)
// fail the call and leave the event unwritten.
//
// The event's store is swapped against a pooled working store for the
// duration of the call and restored before returning, carrying the
// materialized buffers back to the caller.
func (w *Writer) Process(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return errors.New(errors.ErrorTypeValidation, "event cannot be nil")
	}
	return w.tracer.TraceEvent(ctx, evt.Seq, "process_event", func(ctx context.Context) error {
		return w.process(ctx, evt)
	})
}

func (w *Writer) process(ctx context.Context, evt *event.Event) error {
	start := time.Now()

	switch w.State() {
	case StateOpen, StateProcessing:
	default:
		return errors.New(errors.ErrorTypeState, "writer is not open").
			WithDetail("state", w.State().String())
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "event processing cancelled")
	}

	// Materialization is embarrassingly parallel: each event owns its
	// working store, so the job lock is not held here. Concurrent Process
	// calls only queue up for the sync-and-fill below.
	working := w.stores.Get()
	if evt.Store != nil {
		working.Swap(evt.Store)
	}
	defer func() {
		if evt.Store != nil {
			working.Swap(evt.Store)
		}
		working.Reset()
		w.stores.Put(working)
	}()

	w.materialize(evt, working)

	w.mu.Lock()
	defer w.mu.Unlock()

	// Finalize may have raced ahead while this event materialized.
	switch w.State() {
	case StateOpen, StateProcessing:
	default:
		return errors.New(errors.ErrorTypeState, "writer closed during materialization").
			WithDetail("state", w.State().String())
	}
	w.setState(StateProcessing)

	if err := w.syncAndFill(evt, working); err != nil {
		w.coll.EventProcessed("failed", time.Since(start))
		return err
	}

	w.eventsWritten.Add(1)
	w.coll.EventProcessed("written", time.Since(start))
	w.log.Debug("event written",
		zap.Uint64("event_seq", evt.Seq),
		zap.Int("collections", working.Len()))
	return nil
}

// materialize runs every producer holding records against the working
// store. A failed producer is reported and skipped so the rest of the
// event survives.
func (w *Writer) materialize(evt *event.Event, store *eventstore.Store) {
	for _, p := range evt.Producers {
		if p.Count() == 0 {
			continue
		}
		name, res, err := datamodel.ApplyProducer(p, store, &w.filter)
		if res == datamodel.PutFailed {
			w.coll.MaterializeError(p.Name())
			w.log.Error("failed to materialize producer output",
				zap.String("producer", p.Name()),
				zap.String("collection", name),
				zap.Uint64("event_seq", evt.Seq),
				zap.Error(err))
		}
	}
}

// syncAndFill walks the store in stable order, creates missing columns
// (backfilling rows written before the collection existed), binds each
// buffer and flushes one row.
func (w *Writer) syncAndFill(evt *event.Event, store *eventstore.Store) error {
	for i := 0; i < store.Len(); i++ {
		vec := store.At(i)
		name := vec.Name()
		if !w.filter.Allows(name) {
			continue
		}
		id := w.reg.Register(name)

		if !w.table.HasColumn(name) {
			backfilled, err := w.table.CreateColumn(name, vec.TypeName())
			if err != nil {
				return err
			}
			w.coll.ColumnCreated()
			if backfilled > 0 {
				w.coll.BackfilledRows(backfilled)
			}
			w.coll.SetActiveColumns(len(w.table.ColumnNames()))
			w.log.Info("collection column created",
				zap.String("collection", name),
				zap.String("type", vec.TypeName()),
				zap.Int32("id", id),
				zap.Int64("backfilled_rows", backfilled))
		} else if declared, _ := w.table.ColumnType(name); declared != vec.TypeName() {
			return errors.New(errors.ErrorTypeSchema, "collection changed its declared type").
				WithDetail("collection", name).
				WithDetail("declared_type", declared).
				WithDetail("event_type", vec.TypeName())
		}

		if err := w.table.Bind(name, vec.Rows()); err != nil {
			return err
		}
		w.coll.RowsAppended(name, vec.Len())
	}

	meta, err := w.eventMeta(evt)
	if err != nil {
		return err
	}
	return w.table.FillRow(meta)
}

type eventMeta struct {
	Seq    uint64       `json:"seq"`
	Run    int32        `json:"run"`
	Params event.Params `json:"params,omitempty"`
}

func (w *Writer) eventMeta(evt *event.Event) ([]byte, error) {
	data, err := json.Marshal(eventMeta{Seq: evt.Seq, Run: evt.Run, Params: evt.Params})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode event metadata").
			WithDetail("event_seq", evt.Seq)
	}
	return data, nil
}
