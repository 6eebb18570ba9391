package suballoc

import "github.com/gogpu/suballoc/internal/leakcheck"

// SetDebugMode enables or disables leak/double-free tracking for every
// ResourceMemoryAllocation produced by this package's allocators: zero
// overhead when disabled, and should be turned on before any
// allocations are made if a test or diagnostic run wants it.
func SetDebugMode(enabled bool) {
	leakcheck.SetEnabled(enabled)
}

// DebugMode reports whether leak/double-free tracking is currently
// enabled.
func DebugMode() bool {
	return leakcheck.Enabled()
}

// LeakReport summarizes allocations that were produced by Allocate but
// never returned to the matching Deallocate.
type LeakReport struct {
	Count int
	Kinds map[string]int
}

// ReportLeaks returns a summary of currently-live, un-deallocated
// allocations, or nil if none (or if debug mode is disabled). Only
// meaningful after SetDebugMode(true).
func ReportLeaks() *LeakReport {
	r := leakcheck.ReportLeaks()
	if r == nil {
		return nil
	}
	return &LeakReport{Count: r.Count, Kinds: r.Kinds}
}

// ResetLeakTracker clears all tracked allocations. Intended for test
// cleanup between cases that enable debug mode.
func ResetLeakTracker() {
	leakcheck.Reset()
}
