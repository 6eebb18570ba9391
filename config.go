package suballoc

// Config configures a BuddyMemoryAllocator: a handful of power-of-two
// size knobs with sane defaults, rather than a single constructor
// argument list.
type Config struct {
	// BlockSize is a suggested size for one heap managed by a
	// BuddyMemoryAllocator; must be a power of two. Default: 64 MiB.
	// NewBuddyMemoryAllocator does not read this field: it takes the
	// block size as its own argument and reads only IdleHeapLifetime.
	BlockSize uint64

	// MinAllocationSize is the smallest request size a caller should
	// round up from before calling Allocate; purely advisory, the
	// allocator itself accepts any size >= 1. Default: 256 bytes.
	MinAllocationSize uint64

	// DirectThreshold is the size above which a request should be
	// routed to a DirectAllocator instead of a BuddyMemoryAllocator:
	// allocations that exceed the block size. By default this equals
	// BlockSize.
	DirectThreshold uint64

	// IdleHeapLifetime is how many completed-serial units a pooled
	// heap may sit unused before BuddyMemoryAllocator.Tick releases it
	// back to the HeapAllocator. Default: 300 (5 seconds at 60
	// submits/s, the same horizon TempBufferManager's KeepAlive uses).
	IdleHeapLifetime uint64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BlockSize:         64 << 20, // 64 MiB
		MinAllocationSize: 256,
		DirectThreshold:   64 << 20,
		IdleHeapLifetime:  300,
	}
}
