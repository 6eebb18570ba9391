package suballoc

import (
	"fmt"

	"github.com/gogpu/suballoc/heap"
	"github.com/gogpu/suballoc/internal/leakcheck"
	"github.com/gogpu/suballoc/serialqueue"
)

// DirectAllocator is the simpler sibling of BuddyMemoryAllocator for
// requests too large to suballocate. Each Allocate gets its own whole
// heap; Deallocate defers the heap's release onto a serial-keyed queue
// instead of destroying it immediately, since the GPU may still be
// using it.
//
// Not safe for concurrent use.
type DirectAllocator struct {
	heapAlloc heap.HeapAllocator
	device    heap.Device
	pending   *serialqueue.Queue[heap.ExecutionSerial, heap.DeviceHeap]
}

// NewDirectAllocator creates a DirectAllocator backed by heapAlloc,
// using device for the pending-serial timestamp at which a
// deallocated heap becomes eligible for release.
func NewDirectAllocator(heapAlloc heap.HeapAllocator, device heap.Device) *DirectAllocator {
	return &DirectAllocator{
		heapAlloc: heapAlloc,
		device:    device,
		pending:   serialqueue.New[heap.ExecutionSerial, heap.DeviceHeap](),
	}
}

// Allocate creates a single heap of exactly size bytes and returns it
// as a Direct allocation with MemoryOffset 0.
func (d *DirectAllocator) Allocate(size uint64) (ResourceMemoryAllocation, error) {
	if size == 0 {
		return ResourceMemoryAllocation{}, newValidationError("DirectAllocator", "size", "must be nonzero", ErrInvalidArgument)
	}

	h, err := d.heapAlloc.AllocateHeap(size)
	if err != nil {
		return ResourceMemoryAllocation{}, fmt.Errorf("suballoc: %w: %v", ErrHeapExhausted, err)
	}

	token := leakcheck.NewToken()
	leakcheck.Track(token, "Direct")

	return ResourceMemoryAllocation{
		method: Direct,
		heap:   h,
		token:  token,
	}, nil
}

// Deallocate enqueues alloc's heap for release at the device's current
// pending submission serial; Tick actually frees it once the GPU has
// completed past that point.
func (d *DirectAllocator) Deallocate(alloc ResourceMemoryAllocation) error {
	if alloc.method == Invalid {
		return nil
	}
	if alloc.method != Direct {
		return newValidationError("DirectAllocator", "alloc.Method", "Deallocate requires a Direct allocation", ErrInvalidArgument)
	}
	if err := leakcheck.Release(alloc.token); err != nil {
		return ErrAlreadyDeallocated
	}

	d.pending.Enqueue(alloc.heap, d.device.PendingSerial())
	return nil
}

// Tick releases every heap whose pending serial has retired at or
// before completed. Any allocator that enqueues heaps on a
// serial-keyed queue needs a Tick to drain it.
func (d *DirectAllocator) Tick(completed heap.ExecutionSerial) error {
	var firstErr error
	d.pending.IterateUpTo(completed, func(h heap.DeviceHeap) {
		if err := d.heapAlloc.DeallocateHeap(h); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	d.pending.ClearUpTo(completed)
	return firstErr
}
