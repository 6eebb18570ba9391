package suballoc

import "github.com/gogpu/suballoc/heap"

// Method tags how a ResourceMemoryAllocation's memory was obtained.
type Method int

const (
	// Invalid is the zero value: no memory was obtained. Returned by
	// Allocate on size-bound rejections so callers can fall through to
	// another allocator without treating it as an error.
	Invalid Method = iota

	// Direct means the allocation owns a whole heap by itself,
	// produced by a DirectAllocator.
	Direct

	// SubAllocated means the allocation is a buddy-allocated region
	// inside a shared heap, produced by a BuddyMemoryAllocator.
	SubAllocated
)

func (m Method) String() string {
	switch m {
	case Direct:
		return "Direct"
	case SubAllocated:
		return "SubAllocated"
	default:
		return "Invalid"
	}
}

// ResourceMemoryAllocation is the tagged handle returned by Allocate
// and consumed exactly once by the matching Deallocate. Its zero value
// is Invalid. It is a plain value type at the API level — Go has no
// move semantics to enforce non-copyability, so "must not be copied
// after Deallocate" is a caller discipline backed by
// internal/leakcheck's double-free detection rather than the type
// system.
type ResourceMemoryAllocation struct {
	method Method

	// blockOffset is the raw buddy offset used only to locate the
	// owning HeapTracker on free; it is not an address a client should
	// read from or write to directly. Unused for Direct allocations.
	blockOffset uint64

	// memoryOffset is the offset inside heap at which the client's
	// data begins: blockOffset mod block size for SubAllocated, always
	// 0 for Direct.
	memoryOffset uint64

	heap heap.DeviceHeap

	// token is this allocation's leakcheck registration, 0 for Invalid.
	token uint64
}

// Method reports how this allocation's memory was obtained.
func (a ResourceMemoryAllocation) Method() Method { return a.method }

// BlockOffset returns the raw buddy offset backing a SubAllocated
// allocation. Meaningless for Direct or Invalid allocations.
func (a ResourceMemoryAllocation) BlockOffset() uint64 { return a.blockOffset }

// MemoryOffset returns the byte offset inside Heap at which this
// allocation's memory begins.
func (a ResourceMemoryAllocation) MemoryOffset() uint64 { return a.memoryOffset }

// Heap returns the device heap backing this allocation.
func (a ResourceMemoryAllocation) Heap() heap.DeviceHeap { return a.heap }

// Valid reports whether this allocation carries live memory (i.e. its
// Method is not Invalid).
func (a ResourceMemoryAllocation) Valid() bool { return a.method != Invalid }
