package eventstore

import (
	"github.com/evarc/evarc/pkg/errors"
)

// Store groups the collection vectors of one event. Vectors keep their
// insertion order, which is what makes the writer's schema walk stable
// from event to event.
//
// A Store is not safe for concurrent use; the writer serializes access.
type Store struct {
	order []DataVector
	index map[string]int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		index: make(map[string]int),
	}
}

// Get returns the vector bound to name.
func (s *Store) Get(name string) (DataVector, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.order[i], true
}

// Add registers a new vector under its name. Adding a second vector with
// the same name is a schema error.
func (s *Store) Add(v DataVector) error {
	if _, exists := s.index[v.Name()]; exists {
		return errors.New(errors.ErrorTypeSchema, "collection already present in store").
			WithDetail("collection", v.Name())
	}
	s.index[v.Name()] = len(s.order)
	s.order = append(s.order, v)
	return nil
}

// FindOrCreate returns the vector bound to name, creating it with create
// on first use. The created vector must be bound to the same name.
func (s *Store) FindOrCreate(name string, create func() DataVector) DataVector {
	if v, ok := s.Get(name); ok {
		return v
	}
	v := create()
	s.index[name] = len(s.order)
	s.order = append(s.order, v)
	return v
}

// Len returns the number of vectors in the store.
func (s *Store) Len() int {
	return len(s.order)
}

// At returns the vector at position i in insertion order.
func (s *Store) At(i int) DataVector {
	return s.order[i]
}

// Names returns the collection names in insertion order.
func (s *Store) Names() []string {
	names := make([]string, len(s.order))
	for i, v := range s.order {
		names[i] = v.Name()
	}
	return names
}

// Vectors returns a snapshot of the vectors in insertion order.
func (s *Store) Vectors() []DataVector {
	out := make([]DataVector, len(s.order))
	copy(out, s.order)
	return out
}

// Swap exchanges the entire contents of two stores. Used by the writer to
// take ownership of a filled store while giving the caller an empty one.
func (s *Store) Swap(other *Store) {
	s.order, other.order = other.order, s.order
	s.index, other.index = other.index, s.index
}

// Reset clears the records of every vector while keeping the vectors and
// their order, so a reused store re-derives identical collection layout.
func (s *Store) Reset() {
	for _, v := range s.order {
		v.Reset()
	}
}

// Clear removes all vectors from the store.
func (s *Store) Clear() {
	s.order = s.order[:0]
	for k := range s.index {
		delete(s.index, k)
	}
}
