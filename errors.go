package suballoc

import (
	"errors"
	"fmt"
)

// Sentinel errors for the suballoc package: a handful of comparable
// sentinels plus one structured type for validation failures.
var (
	// ErrHeapExhausted is returned when the configured HeapAllocator
	// refuses to create another heap and no recycle-pool or direct
	// heap can satisfy the request.
	ErrHeapExhausted = errors.New("suballoc: heap allocator exhausted")

	// ErrSizeTooLarge classifies a requested allocation that exceeds
	// any size an allocator can ever satisfy. BuddyMemoryAllocator does
	// not return it: a request larger than its block size yields an
	// Invalid allocation with a nil error.
	ErrSizeTooLarge = errors.New("suballoc: requested size exceeds allocator limit")

	// ErrInvalidArgument is returned for a caller error detectable
	// without touching any heap: a zero size passed to
	// DirectAllocator.Allocate, a block size that is not a power of two
	// dividing maxSystemSize, or an allocation handed to the wrong
	// allocator's Deallocate. Alignment is never rejected; it is rounded
	// up to a power of two.
	ErrInvalidArgument = errors.New("suballoc: invalid argument")

	// ErrInternal indicates a broken invariant: an allocation slot
	// that should have been tracked was not, or a free was issued
	// against bookkeeping state that doesn't match.
	ErrInternal = errors.New("suballoc: internal invariant violation")

	// ErrAlreadyDeallocated is returned by Deallocate when debug mode
	// is enabled and the allocation's token was already released: a
	// detectable double-free.
	ErrAlreadyDeallocated = errors.New("suballoc: allocation already deallocated")
)

// ValidationError carries a field-level account of why an argument was
// rejected, so callers can pattern-match on allocator, field, and
// underlying cause.
type ValidationError struct {
	Allocator string // "BuddyMemoryAllocator" or "DirectAllocator"
	Field     string
	Message   string
	Cause     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s.%s: %s", e.Allocator, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Allocator, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func newValidationError(allocator, field, message string, cause error) *ValidationError {
	return &ValidationError{Allocator: allocator, Field: field, Message: message, Cause: cause}
}
