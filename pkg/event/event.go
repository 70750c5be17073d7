// Package event defines the unit of work flowing into the writer: an
// event sequence number, the producers that contributed records to it,
// and the store holding the materialized collection buffers.
package event

import (
	"reflect"

	"github.com/evarc/evarc/pkg/eventstore"
)

// Producer describes one source of records within an event. Concrete
// producers additionally implement a typed source interface (for example
// datamodel.ClusterSource) through which the materializer pulls records;
// a producer whose records match no known source interface is silently
// left unmapped.
type Producer interface {
	// Name identifies the producer instance in logs and error counters.
	Name() string

	// OutputTypeName returns the declared name of the produced type.
	OutputTypeName() string

	// Tag returns the producer's variant tag, or "" for the default
	// variant.
	Tag() string

	// ObjectType returns the runtime element type of the produced
	// records.
	ObjectType() reflect.Type

	// Count returns how many records the producer holds for this event.
	Count() int
}

// Params carries free-form metadata attached to an event, a run, or a
// collection. Values must be JSON-encodable.
type Params map[string]interface{}

// Clone returns a shallow copy of the parameter set.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Event is one unit of work for the writer.
type Event struct {
	// Seq is the zero-based event sequence number within the run.
	Seq uint64

	// Run identifies the run the event belongs to.
	Run int32

	// Producers lists the record sources for this event in a stable
	// order chosen by the caller.
	Producers []Producer

	// Store receives the materialized collection buffers. The writer
	// swaps its contents out during processing and restores them before
	// returning, so the caller can pool and reuse stores.
	Store *eventstore.Store

	// Params carries per-event metadata persisted alongside the
	// collection columns.
	Params Params
}

// New creates an event with an empty store.
func New(seq uint64) *Event {
	return &Event{
		Seq:   seq,
		Store: eventstore.NewStore(),
	}
}

// AddProducer appends a producer to the event.
func (e *Event) AddProducer(p Producer) {
	e.Producers = append(e.Producers, p)
}

// SetParam attaches one metadata value to the event.
func (e *Event) SetParam(key string, value interface{}) {
	if e.Params == nil {
		e.Params = make(Params)
	}
	e.Params[key] = value
}
