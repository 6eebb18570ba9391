package heap

import "sync/atomic"

// Bump is a dependency-free HeapAllocator test double: every call to
// AllocateHeap hands back a heap with a freshly bumped ID, and
// DeallocateHeap always succeeds. It never actually fails allocation
// (see [Bump.Limit] to simulate exhaustion), playing the same role for
// this module's tests that a noop HAL backend plays for the rest of a
// GPU driver's test suite: something every other package's tests can
// depend on without pulling in a real platform backend.
type Bump struct {
	nextID  atomic.Uint64
	limit   uint64 // 0 means unlimited
	created atomic.Uint64
}

// NewBump creates an unlimited Bump allocator.
func NewBump() *Bump {
	return &Bump{}
}

// Limit caps the number of heaps Bump will create before returning
// ErrHeapAllocatorExhausted, for exercising the HeapExhausted path.
func (b *Bump) Limit(n uint64) *Bump {
	b.limit = n
	return b
}

// AllocateHeap implements HeapAllocator.
func (b *Bump) AllocateHeap(size uint64) (DeviceHeap, error) {
	if b.limit != 0 && b.created.Load() >= b.limit {
		return DeviceHeap{}, ErrHeapAllocatorExhausted
	}
	id := b.nextID.Add(1)
	b.created.Add(1)
	return DeviceHeap{ID: id, Size: size}, nil
}

// DeallocateHeap implements HeapAllocator.
func (b *Bump) DeallocateHeap(DeviceHeap) error {
	return nil
}

// Live returns the cumulative number of heaps created; deallocations
// are not subtracted. Useful for asserting "at most once per index
// transition".
func (b *Bump) Live() uint64 {
	return b.created.Load()
}

// Counting wraps another HeapAllocator and records call counts, used to
// assert invocation-count invariants such as "at most one AllocateHeap
// call per heap-index transition from zero to positive". It cannot see
// TempBufferManager bucket misses, which go through Device.CreateBuffer
// rather than a HeapAllocator.
type Counting struct {
	Inner       HeapAllocator
	Allocations atomic.Uint64
	Deallocations atomic.Uint64
}

// NewCounting wraps inner with call counters.
func NewCounting(inner HeapAllocator) *Counting {
	return &Counting{Inner: inner}
}

// AllocateHeap implements HeapAllocator.
func (c *Counting) AllocateHeap(size uint64) (DeviceHeap, error) {
	c.Allocations.Add(1)
	return c.Inner.AllocateHeap(size)
}

// DeallocateHeap implements HeapAllocator.
func (c *Counting) DeallocateHeap(h DeviceHeap) error {
	c.Deallocations.Add(1)
	return c.Inner.DeallocateHeap(h)
}
