package suballoc

import (
	"testing"

	"github.com/gogpu/suballoc/heap"
)

func newTestAllocator(t *testing.T, maxSystemSize, blockSize uint64) (*BuddyMemoryAllocator, *heap.Bump, *heap.FakeDevice) {
	t.Helper()
	bump := heap.NewBump()
	dev := heap.NewFakeDevice()
	a, err := NewBuddyMemoryAllocator(maxSystemSize, blockSize, bump, dev, DefaultConfig())
	if err != nil {
		t.Fatalf("NewBuddyMemoryAllocator failed: %v", err)
	}
	return a, bump, dev
}

func TestSingleHeapSuballocationAndRecycle(t *testing.T) {
	a, bump, dev := newTestAllocator(t, 256, 128)

	alloc1, err := a.Allocate(128, 1, 0)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if alloc1.Method() != SubAllocated || alloc1.BlockOffset() != 0 || alloc1.MemoryOffset() != 0 {
		t.Fatalf("alloc1 = %+v, want SubAllocated{block_offset=0, memory_offset=0}", alloc1)
	}
	if got := a.Stats().HeapCount; got != 1 {
		t.Fatalf("heap count after 1st alloc = %d, want 1", got)
	}

	alloc2, err := a.Allocate(128, 1, 0)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if alloc2.Method() != SubAllocated || alloc2.BlockOffset() != 128 || alloc2.MemoryOffset() != 0 {
		t.Fatalf("alloc2 = %+v, want SubAllocated{block_offset=128, memory_offset=0}", alloc2)
	}
	if got := a.Stats().HeapCount; got != 2 {
		t.Fatalf("heap count after 2nd alloc = %d, want 2", got)
	}
	if alloc1.Heap() == alloc2.Heap() {
		t.Fatalf("alloc1 and alloc2 must reference different heaps")
	}

	if err := a.Deallocate(alloc1); err != nil {
		t.Fatalf("Deallocate failed: %v", err)
	}
	if got := a.Stats().PoolSize; got != 1 {
		t.Fatalf("pool size before tick = %d, want 1", got)
	}
	if got := a.Stats().HeapCount; got != 1 {
		t.Fatalf("heap count before tick = %d, want 1", got)
	}

	dev.Advance(heap.ExecutionSerial(DefaultConfig().IdleHeapLifetime))

	alloc3, err := a.Allocate(128, 1, 0)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if alloc3.Method() != SubAllocated {
		t.Fatalf("alloc3.Method() = %v, want SubAllocated", alloc3.Method())
	}
	if got := a.Stats().PoolSize; got != 0 {
		t.Errorf("pool size after reuse = %d, want 0", got)
	}
	if bump.Live() != 2 {
		t.Errorf("total heaps created = %d, want 2 (pooled heap reused, not a 3rd created)", bump.Live())
	}
}

func TestOverflowRejection(t *testing.T) {
	a, _, _ := newTestAllocator(t, 512, 128)

	alloc, err := a.Allocate(129, 1, 0)
	if err != nil {
		t.Fatalf("Allocate(129) returned error %v, want nil error with Invalid allocation", err)
	}
	if alloc.Method() != Invalid {
		t.Errorf("Allocate(129).Method() = %v, want Invalid", alloc.Method())
	}

	alloc, err = a.Allocate(1<<63, 1, 0)
	if err != nil {
		t.Fatalf("Allocate(2^63) returned error %v, want nil error with Invalid allocation", err)
	}
	if alloc.Method() != Invalid {
		t.Errorf("Allocate(2^63).Method() = %v, want Invalid", alloc.Method())
	}
}

func TestDeallocateWrongMethodRejected(t *testing.T) {
	a, _, _ := newTestAllocator(t, 256, 128)
	direct := NewDirectAllocator(heap.NewBump(), heap.NewFakeDevice())

	alloc, err := direct.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if err := a.Deallocate(alloc); err == nil {
		t.Fatal("Deallocate of a Direct allocation through a BuddyMemoryAllocator should fail")
	}
}

func TestDestroyPoolDrainsAndDetectsLeaks(t *testing.T) {
	a, bump, dev := newTestAllocator(t, 256, 128)

	alloc, err := a.Allocate(128, 1, 0)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	// Leaked: alloc is never Deallocated, so the tracker's refcount is
	// still 1 when DestroyPool runs.
	if err := a.DestroyPool(); err == nil {
		t.Fatal("DestroyPool should report the leaked refcount")
	}

	if err := a.Deallocate(alloc); err != nil {
		t.Fatalf("Deallocate failed: %v", err)
	}
	dev.Advance(1)
	if err := a.DestroyPool(); err != nil {
		t.Fatalf("DestroyPool after clean Deallocate failed: %v", err)
	}
	if bump.Live() != 1 {
		t.Errorf("heaps created = %d, want 1", bump.Live())
	}
}

func TestTickIdleTrim(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleHeapLifetime = 10
	bump := heap.NewBump()
	dev := heap.NewFakeDevice()
	a, err := NewBuddyMemoryAllocator(256, 128, bump, dev, cfg)
	if err != nil {
		t.Fatalf("NewBuddyMemoryAllocator failed: %v", err)
	}

	alloc, err := a.Allocate(128, 1, 0)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	dev.Pending = 5
	if err := a.Deallocate(alloc); err != nil {
		t.Fatalf("Deallocate failed: %v", err)
	}
	if got := a.Stats().PoolSize; got != 1 {
		t.Fatalf("pool size = %d, want 1", got)
	}

	// Not yet idle long enough (5 + 10 = 15 > 12).
	if err := a.Tick(12); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if got := a.Stats().PoolSize; got != 1 {
		t.Fatalf("pool size after early Tick = %d, want 1 (not idle yet)", got)
	}

	if err := a.Tick(15); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if got := a.Stats().PoolSize; got != 0 {
		t.Fatalf("pool size after idle Tick = %d, want 0", got)
	}
}
