// Package pool provides unified high-performance object pooling for evarc.
// It offers zero-allocation memory management with automatic object recycling,
// reducing garbage collection pressure on the per-event hot path.
//
// The package provides:
//   - Generic type-safe object pooling with Pool[T]
//   - Pre-configured global pools for common types (byte slices, string slices)
//   - Buffer pooling with size-based buckets
//   - Pool statistics for monitoring
//
// Example usage:
//
//	storePool := pool.New(
//	    func() *eventstore.Store { return eventstore.NewStore() },
//	    func(s *eventstore.Store) { s.Reset() },
//	)
//	store := storePool.Get()
//	defer storePool.Put(store)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and automatic reset
// functionality. The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	new   func() T
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		hits      int64
		misses    int64
	}
}

// New creates a new typed pool with custom allocation and reset functions.
// The new function is called when the pool is empty and a new object is
// needed. The reset function, if non-nil, is called before returning an
// object to the pool.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{
		new:   new,
		reset: reset,
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return new()
	}
	return p
}

// Get retrieves an object from the pool. If the pool is empty, it creates
// a new object using the factory function provided in New. The method is
// safe for concurrent use and updates pool statistics.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	obj := p.pool.Get().(T)
	atomic.AddInt64(&p.stats.hits, 1)
	return obj
}

// Put returns an object to the pool for reuse. If a reset function was
// provided during pool creation, it is called to clean up the object
// before returning it to the pool. The method is safe for concurrent use.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns current pool statistics: allocation count, objects
// currently checked out, cache hits, and cache misses.
func (p *Pool[T]) Stats() (allocated, inUse, hits, misses int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.hits),
		atomic.LoadInt64(&p.stats.misses)
}

// Global pools shared across the writer and pipeline.
var (
	// StringSlicePool provides pooling for []string slices.
	// Slices are pre-allocated with capacity 32 and cleared on return.
	StringSlicePool = New(
		func() []string {
			return make([]string, 0, 32)
		},
		func(s []string) {
			for i := range s {
				s[i] = ""
			}
		},
	)

	// ByteSlicePool provides pooling for general-purpose byte slices.
	// Slices are pre-allocated with 1KB capacity.
	ByteSlicePool = New(
		func() []byte {
			return make([]byte, 0, 1024)
		},
		nil,
	)

	// IDBufferPool provides pooling for ID generation buffers.
	IDBufferPool = New(
		func() []byte {
			return make([]byte, 0, 64)
		},
		nil,
	)
)

// idCounter provides atomic unique ID generation
var idCounter uint64

// GetStringSlice retrieves a string slice from the global pool.
// The returned slice has zero length and capacity 32.
func GetStringSlice() []string {
	return StringSlicePool.Get()[:0]
}

// PutStringSlice returns a string slice to the global pool for reuse.
func PutStringSlice(s []string) {
	if s != nil {
		StringSlicePool.Put(s)
	}
}

// GetByteSlice retrieves a byte slice from the global pool.
// The returned slice has zero length and capacity 1024.
func GetByteSlice() []byte {
	return ByteSlicePool.Get()[:0]
}

// PutByteSlice returns a byte slice to the global pool for reuse.
func PutByteSlice(b []byte) {
	if b != nil {
		ByteSlicePool.Put(b)
	}
}

// GenerateID generates a unique ID with the specified prefix using pooled
// buffers. The ID format is "prefix-number" where number is an atomic
// counter. Safe for concurrent use.
func GenerateID(prefix string) string {
	buf := IDBufferPool.Get()[:0]
	defer IDBufferPool.Put(buf)

	id := atomic.AddUint64(&idCounter, 1)

	buf = append(buf, prefix...)
	buf = append(buf, '-')
	buf = appendUint64(buf, id)

	return string(buf)
}

// appendUint64 efficiently appends uint64 to byte slice
func appendUint64(buf []byte, n uint64) []byte {
	if n == 0 {
		return append(buf, '0')
	}

	temp := n
	digits := 0
	for temp > 0 {
		temp /= 10
		digits++
	}

	start := len(buf)
	buf = buf[:start+digits]

	for i := digits - 1; i >= 0; i-- {
		buf[start+i] = byte('0' + n%10)
		n /= 10
	}

	return buf
}

// BufferPool manages byte buffer pooling with size-based buckets.
// It maintains multiple pools for different buffer sizes, automatically
// selecting the appropriate pool based on requested size.
type BufferPool struct {
	pools []*Pool[[]byte]
	sizes []int
}

// NewBufferPool creates a new buffer pool with power-of-2 size buckets
// from 512 bytes to 16MB. Buffers larger than 16MB are allocated directly
// without pooling.
func NewBufferPool() *BufferPool {
	sizes := []int{
		512,      // 512B
		1024,     // 1KB
		4096,     // 4KB
		16384,    // 16KB
		65536,    // 64KB
		262144,   // 256KB
		1048576,  // 1MB
		4194304,  // 4MB
		16777216, // 16MB
	}

	pools := make([]*Pool[[]byte], len(sizes))
	for i, size := range sizes {
		size := size
		pools[i] = New(
			func() []byte {
				return make([]byte, size)
			},
			nil,
		)
	}

	return &BufferPool{
		pools: pools,
		sizes: sizes,
	}
}

// Get returns a buffer of at least the requested size from the pool.
// The returned buffer's length is set to the requested size; its capacity
// may be larger. Sizes above the largest bucket allocate directly.
func (p *BufferPool) Get(size int) []byte {
	for i, s := range p.sizes {
		if s >= size {
			buf := p.pools[i].Get()
			return buf[:size]
		}
	}

	return make([]byte, size)
}

// Put returns a buffer to the pool for reuse. Buffers that don't match
// any bucket capacity are released to garbage collection.
func (p *BufferPool) Put(buf []byte) {
	size := cap(buf)

	for i, s := range p.sizes {
		if s == size {
			p.pools[i].Put(buf[:s])
			return
		}
	}
}

// GlobalBufferPool provides size-based byte buffer pooling for I/O
// operations such as archive copies and manifest encoding.
var GlobalBufferPool = NewBufferPool()

// Stats represents pool statistics for monitoring and optimization.
type Stats struct {
	// Allocated is the total number of objects created by the pool
	Allocated int64
	// InUse is the current number of objects checked out from the pool
	InUse int64
	// Hits is the number of successful pool retrievals
	Hits int64
	// Misses is the number of times a new object had to be created
	Misses int64
}

// GetGlobalStats returns statistics for the global pools, keyed by pool
// name ("string_slice", "byte_slice").
func GetGlobalStats() map[string]Stats {
	stringAlloc, stringInUse, stringHits, stringMisses := StringSlicePool.Stats()
	byteAlloc, byteInUse, byteHits, byteMisses := ByteSlicePool.Stats()

	return map[string]Stats{
		"string_slice": {
			Allocated: stringAlloc,
			InUse:     stringInUse,
			Hits:      stringHits,
			Misses:    stringMisses,
		},
		"byte_slice": {
			Allocated: byteAlloc,
			InUse:     byteInUse,
			Hits:      byteHits,
			Misses:    byteMisses,
		},
	}
}
