// Package interrupt implements the single-word stack-limit/interrupt
// protocol compiled code uses to detect both stack overflow and
// cooperative preemption (spec §4.2). The first word of VMInterrupts is
// part of the ABI (spec §3's first-word discipline invariant) and this
// package is the only place that word's encoding is allowed to live.
package interrupt

import "sync/atomic"

// windowSize (N) bounds how close to the sentinel an interrupt-request
// value can sit. No valid stack address may equal MAX-N for any N in
// [0, windowSize]; the embedder's stack-region policy enforces that.
const windowSize = 32 * 1024

// MaxStackLimit is the "not yet initialized" sentinel: any stack check
// against it must trap as overflow, since it is larger than any real
// stack pointer.
const MaxStackLimit = ^uintptr(0)

// InterruptSentinel is the value a prologue or loop-header check
// interprets as "stack pointer below limit", regardless of the actual
// architectural stack pointer. It sits windowSize below MaxStackLimit so a
// single unsigned comparison, tuned for frames up to windowSize bytes,
// catches it without a second branch (spec §4.2 step 3).
const InterruptSentinel = MaxStackLimit - windowSize

// VMInterrupts is the ABI-fixed shared structure: its first (and, for this
// core, only) word is stack_limit. It must never be moved or resized; the
// VMContext's first field is a pointer to one of these (spec §3 item 1).
type VMInterrupts struct {
	stackLimit uintptr
}

// New returns a VMInterrupts in the "not yet initialized" state.
func New() *VMInterrupts {
	return &VMInterrupts{stackLimit: MaxStackLimit}
}

// SetStackLimit installs the real stack-bottom limit for the currently
// executing activation. Called once per activation by the runtime, never
// concurrently with itself on the same VMInterrupts.
func (v *VMInterrupts) SetStackLimit(limit uintptr) {
	atomic.StoreUintptr(&v.stackLimit, limit)
}

// StackLimit reads the current encoded value. This is what a compiled
// prologue's "load *vmctx -> interrupts -> stack_limit" step performs
// (spec §4.2 step 1); it is also what the post-trap handler re-reads to
// disambiguate a stack-overflow trap from an interrupt.
func (v *VMInterrupts) StackLimit() uintptr {
	return atomic.LoadUintptr(&v.stackLimit)
}

// RequestInterrupt stores the interrupt sentinel, making the very next
// prologue or loop-header check on any thread sharing this VMInterrupts
// trap (spec §4.2, "Interrupt injection"). Safe to call from any
// goroutine, including one other than the one executing the guest code.
func (v *VMInterrupts) RequestInterrupt() {
	atomic.StoreUintptr(&v.stackLimit, InterruptSentinel)
}

// CheckStackPointer implements the prologue's comparison (spec §4.2 steps
// 2-3): it reports whether sp is at or above the current limit. A false
// result means the caller must trap; TrapCode disambiguates which trap.
func (v *VMInterrupts) CheckStackPointer(sp uintptr) bool {
	return sp >= v.StackLimit()
}

// TrapCode names the two trap causes this protocol's post-trap
// disambiguation step can produce (spec §4.2, "Post-trap disambiguation").
type TrapCode int

const (
	TrapCodeStackOverflow TrapCode = iota
	TrapCodeInterrupted
)

func (c TrapCode) String() string {
	if c == TrapCodeInterrupted {
		return "interrupted"
	}
	return "stack overflow"
}

// Disambiguate inspects the current stack_limit value after a stack
// overflow trap has fired and relabels it as TrapCodeInterrupted when the
// value is the interrupt sentinel, matching spec §4.2's handler rule
// exactly; otherwise it remains a genuine stack overflow.
func (v *VMInterrupts) Disambiguate() TrapCode {
	if v.StackLimit() == InterruptSentinel {
		return TrapCodeInterrupted
	}
	return TrapCodeStackOverflow
}
