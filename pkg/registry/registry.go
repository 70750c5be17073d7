// Package registry assigns stable numeric IDs to collection names. The
// writer stamps each archive with the mapping so readers can resolve
// references by ID instead of string.
package registry

import (
	"sync"
)

// Registry maps collection names to small integer IDs. IDs are assigned in
// first-seen order starting at 1 and are never reassigned or reused, even
// if a collection stops appearing in later events.
//
// Registry is safe for concurrent use. It carries no global state; the
// writer owns one instance per output and threads it through explicitly.
type Registry struct {
	mu    sync.RWMutex
	ids   map[string]int32
	names []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		ids: make(map[string]int32),
	}
}

// Register returns the ID for name, assigning the next free ID on first
// sight. Registering an already-known name returns the existing ID.
func (r *Registry) Register(name string) int32 {
	r.mu.RLock()
	id, ok := r.ids[name]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[name]; ok {
		return id
	}
	id = int32(len(r.names) + 1)
	r.ids[name] = id
	r.names = append(r.names, name)
	return id
}

// ID returns the ID for name if it has been registered.
func (r *Registry) ID(name string) (int32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[name]
	return id, ok
}

// Name returns the name registered under id.
func (r *Registry) Name(id int32) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 1 || int(id) > len(r.names) {
		return "", false
	}
	return r.names[id-1], true
}

// Names returns the registered names in first-seen order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Snapshot returns a copy of the full name to ID mapping.
func (r *Registry) Snapshot() map[string]int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int32, len(r.ids))
	for name, id := range r.ids {
		out[name] = id
	}
	return out
}
