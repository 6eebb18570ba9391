// Package buddy implements an offset-returning binary buddy allocator
// over a single power-of-two virtual address range.
//
// It tracks no memory itself — it only hands out aligned (size, offset)
// pairs and later reclaims them. A caller maps the returned offset onto
// whatever backing storage it owns (a suballoc.BuddyMemoryAllocator
// maps it onto a device heap index, for instance).
//
// # Algorithm
//
// Memory is modeled as free lists indexed by level, where level 0 is
// the whole range and level L holds blocks of size maxSize>>L. Alloc
// walks up from the requested level to find the smallest non-empty
// free list, then splits blocks back down, handing the left child out
// first (LIFO: a newly split child is found before its older sibling).
// Free looks the offset up in a map of allocated offsets to find its
// level, then merges eagerly with a free buddy at each level on the
// way up toward the root.
//
// Space overhead is a handful of maps keyed by level and offset rather
// than an arena of linked nodes — the same approach gogpu-wgpu's Vulkan
// backend uses for its own buddy allocator, generalized here with
// alignment-aware allocation and an offset-only Free (the Vulkan
// version carries the order back in the caller's Block value, which
// the tighter offset-only contract below doesn't need).
package buddy
