// Package tempbuffer implements a power-of-two-bucketed pool of whole
// GPU buffers for short-lived, varying-size transient allocations.
// Unlike BuddyMemoryAllocator it is not layered on package buddy at
// all: it pools whole buffers keyed by exact size, not offsets inside
// a shared heap.
package tempbuffer

import (
	"errors"
	"math/bits"

	"github.com/gogpu/suballoc/heap"
	"github.com/gogpu/suballoc/serialqueue"
)

// Pow2MaxSize is the cutoff above which buffers are tracked by exact
// size rather than rounded up to the next power of two, since rounding
// waste becomes intolerable past this point.
const Pow2MaxSize = 4 << 20 // 4 MiB

// KeepAlive is the number of completed-serial units a freed buffer may
// sit in its bucket before it becomes eligible for the idle sweep:
// roughly 5 seconds at 60 submits/s.
const KeepAlive heap.ExecutionSerial = 300

// ErrInvalidArgument is returned for a zero-sized allocation request.
var ErrInvalidArgument = errors.New("tempbuffer: invalid argument")

// Manager pools whole GPU buffers for transient, varying-size use.
// Not safe for concurrent use: one instance per submission timeline.
type Manager struct {
	device heap.Device
	usage  heap.BufferUsage

	// buckets maps an exact actual_size to its free-list queue,
	// ordered by the serial at which each buffer was returned (oldest
	// first) so recycling drains FIFO, not LIFO: reuse here is
	// memory-pressure-driven rather than latency-driven, so the oldest
	// idle buffer should be the first one offered back out.
	buckets map[uint64]*serialqueue.Queue[heap.ExecutionSerial, heap.Buffer]

	// inflight tracks buffers currently in use, grouped by the serial
	// they were allocated in, so Deallocate can move whole groups to
	// their bucket in one pass once the GPU has caught up.
	inflight *serialqueue.Queue[heap.ExecutionSerial, inflightBuffer]
}

type inflightBuffer struct {
	actualSize uint64
	buf        heap.Buffer
}

// New creates a TempBufferManager that creates buffers through device
// with the given usage flags.
func New(device heap.Device, usage heap.BufferUsage) *Manager {
	return &Manager{
		device:   device,
		usage:    usage,
		buckets:  make(map[uint64]*serialqueue.Queue[heap.ExecutionSerial, heap.Buffer]),
		inflight: serialqueue.New[heap.ExecutionSerial, inflightBuffer](),
	}
}

// Allocate returns a buffer of at least size bytes, reusing one from
// the free-list bucket for its rounded size if available, or creating
// a new one otherwise. useInSerial marks the submission the buffer
// will be used in, driving when Deallocate can recycle it.
func (m *Manager) Allocate(size uint64, useInSerial heap.ExecutionSerial) (heap.Buffer, error) {
	if size == 0 {
		return heap.Buffer{}, ErrInvalidArgument
	}

	actual := actualSize(size)

	var (
		buf      heap.Buffer
		fromPool bool
	)
	if q, ok := m.buckets[actual]; ok {
		if b, ok2 := q.TakeOneFromFirstGroup(); ok2 {
			buf = b
			fromPool = true
			if q.Empty() {
				delete(m.buckets, actual)
			}
		}
	}

	if !fromPool {
		created, err := m.device.CreateBuffer(heap.BufferDescriptor{Size: actual, Usage: m.usage})
		if err != nil {
			return heap.Buffer{}, err
		}
		buf = created
	}

	m.inflight.Enqueue(inflightBuffer{actualSize: actual, buf: buf}, useInSerial)
	return buf, nil
}

// Deallocate moves every in-flight buffer whose use-serial has
// completed into its size bucket, keyed by completed, and then — once
// completed has reached KeepAlive — sweeps every bucket for entries
// whose serial is at or below completed-KeepAlive, erasing any bucket
// that becomes empty.
func (m *Manager) Deallocate(completed heap.ExecutionSerial) {
	m.inflight.IterateUpTo(completed, func(e inflightBuffer) {
		q, ok := m.buckets[e.actualSize]
		if !ok {
			q = serialqueue.New[heap.ExecutionSerial, heap.Buffer]()
			m.buckets[e.actualSize] = q
		}
		q.Enqueue(e.buf, completed)
	})
	m.inflight.ClearUpTo(completed)

	if completed < KeepAlive {
		return
	}
	threshold := completed - KeepAlive
	for size, q := range m.buckets {
		q.ClearUpTo(threshold)
		if q.Empty() {
			delete(m.buckets, size)
		}
	}
}

// Stats reports diagnostic counters: how many distinct bucket sizes
// are currently tracked and how many buffers are in flight.
type Stats struct {
	BucketCount   int
	InFlightCount int
}

// Stats returns a snapshot of this manager's counters.
func (m *Manager) Stats() Stats {
	return Stats{
		BucketCount:   len(m.buckets),
		InFlightCount: m.inflightCount(),
	}
}

func (m *Manager) inflightCount() int {
	n := 0
	m.inflight.IterateUpTo(^heap.ExecutionSerial(0), func(inflightBuffer) { n++ })
	return n
}

// actualSize implements the two-tier bucketing policy: sizes at or
// below Pow2MaxSize round up to the next power of two (so two calls
// with the same size always land in the same bucket); larger sizes
// are tracked exactly, each becoming its own bucket.
func actualSize(size uint64) uint64 {
	if size <= Pow2MaxSize {
		return nextPow2(size)
	}
	return size
}

func nextPow2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	if n&(n-1) == 0 {
		return n
	}
	return 1 << (64 - bits.LeadingZeros64(n))
}
