package suballoc

import (
	"testing"

	"github.com/gogpu/suballoc/heap"
)

func TestDirectAllocatorRoundTrip(t *testing.T) {
	SetDebugMode(true)
	defer func() { SetDebugMode(false); ResetLeakTracker() }()

	bump := heap.NewBump()
	counting := heap.NewCounting(bump)
	dev := heap.NewFakeDevice()
	d := NewDirectAllocator(counting, dev)

	alloc, err := d.Allocate(1 << 20)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if alloc.Method() != Direct {
		t.Fatalf("Method() = %v, want Direct", alloc.Method())
	}
	if alloc.MemoryOffset() != 0 {
		t.Fatalf("MemoryOffset() = %d, want 0", alloc.MemoryOffset())
	}

	dev.Pending = 3
	if err := d.Deallocate(alloc); err != nil {
		t.Fatalf("Deallocate failed: %v", err)
	}

	// Not yet completed: Tick below the pending serial must not free it.
	if err := d.Tick(2); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if bump.Live() == 0 {
		t.Fatalf("heap was never created")
	}
	if n := counting.Deallocations.Load(); n != 0 {
		t.Fatalf("deallocations after Tick(2) = %d, want 0 (pending serial 3 not completed)", n)
	}

	if err := d.Tick(3); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if n := counting.Deallocations.Load(); n != 1 {
		t.Fatalf("deallocations after Tick(3) = %d, want 1", n)
	}

	if err := d.Deallocate(alloc); err == nil {
		t.Fatal("double Deallocate of the same allocation should fail")
	}
}

func TestDirectAllocatorZeroSizeRejected(t *testing.T) {
	d := NewDirectAllocator(heap.NewBump(), heap.NewFakeDevice())
	if _, err := d.Allocate(0); err == nil {
		t.Fatal("Allocate(0) should fail")
	}
}

func TestDirectAllocatorHeapExhausted(t *testing.T) {
	bump := heap.NewBump().Limit(1)
	d := NewDirectAllocator(bump, heap.NewFakeDevice())

	if _, err := d.Allocate(1024); err != nil {
		t.Fatalf("first Allocate failed: %v", err)
	}
	if _, err := d.Allocate(1024); err == nil {
		t.Fatal("second Allocate should fail once the heap allocator is exhausted")
	}
}
