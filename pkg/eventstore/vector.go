// Package eventstore provides the per-event record buffers that feed the
// columnar writer. A DataVector owns the records one producer contributed
// to the current event; a Store groups the vectors for one event under
// their collection names.
//
// Vectors carry an immutable declared type. Storage can be swapped between
// vectors of the same declared type without copying, which is how the
// writer hands a filled store to the flush path and takes back an empty
// one for the next event.
package eventstore

import (
	"github.com/evarc/evarc/pkg/errors"
)

// DataVector is a type-erased view of one collection buffer. The concrete
// storage lives in DataVectorT; callers that need the records downcast via
// Rows or use the typed helpers on DataVectorT.
type DataVector interface {
	// Name returns the collection name the vector is bound to.
	Name() string

	// TypeName returns the declared element type. Fixed at creation.
	TypeName() string

	// Len returns the number of records held for the current event.
	Len() int

	// Rows returns the records for the current event as a []E slice.
	Rows() interface{}

	// Reset drops the records while keeping name and declared type.
	Reset()

	// Swap exchanges storage with another vector of the same declared
	// type. Identity (name, type) stays with the receiver.
	Swap(other DataVector) error
}

// DataVectorT is the concrete typed buffer behind DataVector.
type DataVectorT[E any] struct {
	name     string
	typeName string
	rows     []E
}

// NewDataVector creates an empty vector bound to a collection name and
// declared element type.
func NewDataVector[E any](name, typeName string) *DataVectorT[E] {
	return &DataVectorT[E]{
		name:     name,
		typeName: typeName,
	}
}

// Name returns the collection name.
func (v *DataVectorT[E]) Name() string { return v.name }

// TypeName returns the declared element type name.
func (v *DataVectorT[E]) TypeName() string { return v.typeName }

// Len returns the number of records for the current event.
func (v *DataVectorT[E]) Len() int { return len(v.rows) }

// Rows returns the current records as []E.
func (v *DataVectorT[E]) Rows() interface{} { return v.rows }

// Records returns the current records with their static type.
func (v *DataVectorT[E]) Records() []E { return v.rows }

// Replace installs rows as the full record set for the current event,
// discarding whatever the vector held before.
func (v *DataVectorT[E]) Replace(rows []E) {
	v.rows = rows
}

// Reset drops the records while keeping the backing array for reuse.
func (v *DataVectorT[E]) Reset() {
	v.rows = v.rows[:0]
}

// Swap exchanges record storage with another vector. Both vectors must
// share the declared type; names are not exchanged.
func (v *DataVectorT[E]) Swap(other DataVector) error {
	o, ok := other.(*DataVectorT[E])
	if !ok || o.typeName != v.typeName {
		return errors.New(errors.ErrorTypeSchema, "cannot swap vectors of different declared types").
			WithDetail("vector", v.name).
			WithDetail("vector_type", v.typeName).
			WithDetail("other_type", other.TypeName())
	}
	v.rows, o.rows = o.rows, v.rows
	return nil
}
