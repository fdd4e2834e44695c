// Package vmerr defines the four-kind error taxonomy that every in-scope
// component propagates by value: Resource, Link, Trap, and Limit. All
// per-instance operations are fail-fast, and none of them retry internally;
// the allocator boundary is where propagation stops (spec §7).
package vmerr

import "fmt"

// TrapCode identifies why a Trap error was synthesized during
// initialization. Traps raised during execution (not instantiation) are a
// collaborator's concern, not this package's.
type TrapCode int

const (
	// TrapCodeHeapOutOfBounds means a data segment or paged memory image
	// wrote, or would have written, past the end of a memory.
	TrapCodeHeapOutOfBounds TrapCode = iota + 1
	// TrapCodeTableOutOfBounds means an element segment wrote, or would
	// have written, past the end of a table.
	TrapCodeTableOutOfBounds
)

func (c TrapCode) String() string {
	switch c {
	case TrapCodeHeapOutOfBounds:
		return "out of bounds memory access"
	case TrapCodeTableOutOfBounds:
		return "out of bounds table access"
	default:
		return "unknown trap"
	}
}

// ResourceError means memory/table creation exceeded limits or the OS
// refused the allocation. Non-fatal: the caller may retry with different
// parameters.
type ResourceError struct{ Reason string }

func (e *ResourceError) Error() string { return "resource: " + e.Reason }

// NewResource builds a ResourceError with a formatted reason.
func NewResource(format string, args ...interface{}) *ResourceError {
	return &ResourceError{Reason: fmt.Sprintf(format, args...)}
}

// LinkError means a module/imports inconsistency was detected during
// segment bounds-checking or global-base evaluation. Non-fatal:
// instantiation is aborted cleanly with no observable mutation.
type LinkError struct{ Reason string }

func (e *LinkError) Error() string { return "link: " + e.Reason }

// NewLink builds a LinkError with a formatted reason.
func NewLink(format string, args ...interface{}) *LinkError {
	return &LinkError{Reason: fmt.Sprintf(format, args...)}
}

// TrapError means a Wasm-level trap was synthesized during initialization
// (bulk-memory out-of-bounds, or the paged form's out-of-bounds flag).
// The partially-initialized instance is still destroyed by the caller; the
// observable prefix up to the failure point remains written.
type TrapError struct {
	Code TrapCode
}

func (e *TrapError) Error() string { return "trap: " + e.Code.String() }

// NewTrap builds a TrapError for code.
func NewTrap(code TrapCode) *TrapError { return &TrapError{Code: code} }

// LimitError means an instance or fiber count exceeded an allocator-wide
// ceiling. Only the pooling backend (not implemented in this on-demand
// core) raises this; it is part of the taxonomy so callers can type-switch
// uniformly regardless of backend.
type LimitError struct{ Reason string }

func (e *LimitError) Error() string { return "limit: " + e.Reason }

// NewLimit builds a LimitError with a formatted reason.
func NewLimit(format string, args ...interface{}) *LimitError {
	return &LimitError{Reason: fmt.Sprintf(format, args...)}
}
