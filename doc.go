// Package suballoc implements a two-layer GPU memory suballocation
// subsystem: a buddy-backed pool of fixed-size heaps
// (BuddyMemoryAllocator) plus a sibling DirectAllocator for
// oversized requests, both built on top of package buddy and
// package serialqueue.
//
// A BuddyMemoryAllocator maps offsets returned by a buddy.Allocator
// onto a table of device heaps, ref-counting each heap by how many
// live suballocations currently land inside it and recycling whole
// heaps through a LIFO pool once their last use has retired on the
// GPU's completed-serial timeline. Allocations that exceed the
// allocator's block size fall through to a DirectAllocator, which
// gives each such request its own heap and defers its release onto a
// serialqueue.Queue until the GPU catches up.
//
// Neither allocator is safe for concurrent use; each instance belongs
// to exactly one logical execution context (typically a device's
// submission thread), matching the single-producer model most GPU
// APIs impose on command recording.
package suballoc
