// Package heap defines the external collaborator interfaces this module
// consumes: a serial-timeline clock advanced by the GPU device, and a
// heap allocator that creates and destroys the opaque device memory
// blocks the rest of this module suballocates from.
//
// Nothing in this package talks to an actual GPU. A concrete backend
// (Vulkan, D3D12, Metal...) lives outside this module and satisfies
// [HeapAllocator] and [Device]; see DESIGN.md for why no such backend
// is vendored here.
package heap

import "errors"

// ExecutionSerial is a monotonically increasing counter representing
// GPU completion progress. A resource last used at serial S is safe to
// reuse only once the device's completed serial is >= S.
type ExecutionSerial uint64

// DeviceHeap is an opaque, owned handle to a single underlying device
// memory allocation. At any instant it has exactly one owner: a heap
// tracker slot, a recycle-pool entry, an in-flight direct allocation,
// or the HeapAllocator itself.
type DeviceHeap struct {
	// ID distinguishes heaps for diagnostics and equality checks. A
	// real backend would instead carry a native handle (VkDeviceMemory,
	// ID3D12Heap, MTLHeap...); this module never interprets it.
	ID uint64

	// Size is the fixed byte size the heap was created with.
	Size uint64
}

// Valid reports whether h refers to a real heap rather than the zero
// value returned on allocation failure.
func (h DeviceHeap) Valid() bool {
	return h.Size != 0
}

// ErrHeapAllocatorExhausted is returned by a HeapAllocator when the
// platform refuses to create another heap (device OOM).
var ErrHeapAllocatorExhausted = errors.New("heap: allocator exhausted (platform out of memory)")

// HeapAllocator creates and destroys the device heaps this module
// suballocates from or hands out directly. Implementations are assumed
// to serialize their own internal state; from this module's point of
// view, calls are synchronous points of exclusive access.
type HeapAllocator interface {
	// AllocateHeap creates one heap of exactly size bytes.
	AllocateHeap(size uint64) (DeviceHeap, error)

	// DeallocateHeap destroys a heap previously returned by
	// AllocateHeap. May be asynchronous internally; callers treat it
	// as final once it returns.
	DeallocateHeap(DeviceHeap) error
}

// BufferUsage describes the intended usage of a buffer allocated via
// Device.CreateBuffer, using the WebGPU buffer-usage vocabulary.
type BufferUsage uint32

const (
	UsageCopySrc BufferUsage = 1 << iota
	UsageCopyDst
	UsageUniform
	UsageStorage
	UsageMapRead
	UsageMapWrite
)

// BufferDescriptor describes a buffer to create via Device.CreateBuffer.
type BufferDescriptor struct {
	Size  uint64
	Usage BufferUsage
	Label string
}

// Buffer is an opaque handle to a whole GPU buffer, as created by
// Device.CreateBuffer and pooled by a TempBufferManager.
type Buffer struct {
	ID    uint64
	Size  uint64
	Usage BufferUsage
}

// Device supplies the serial-timeline clock this module's lifecycle
// rules are built on, plus buffer creation for TempBufferManager. The
// core never mutates PendingSerial or CompletedSerial; it only reads
// them.
type Device interface {
	// PendingSerial is the serial of the next submission to be issued.
	PendingSerial() ExecutionSerial

	// CompletedSerial is the highest serial known to have finished on
	// the GPU.
	CompletedSerial() ExecutionSerial

	// CreateBuffer creates a new whole buffer. Used only by
	// TempBufferManager on a free-list bucket miss.
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
}
