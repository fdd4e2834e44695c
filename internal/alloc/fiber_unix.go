//go:build unix

package alloc

import (
	"golang.org/x/sys/unix"

	"github.com/wazerocore/vmcore/internal/vmerr"
)

// fiberGuardPageSize is the size of the PROT_NONE page placed on each side
// of a fiber stack's usable region, so a stack overflow (distinct from the
// Wasm-level stack-limit check in internal/interrupt; this guards the Go
// runtime's own fiber/coroutine stack switch) faults instead of corrupting
// an adjacent mapping.
const fiberGuardPageSize = 4096

// FiberStack is a guard-paged stack returned by AllocateFiberStack. Stack
// is the usable region a fiber/coroutine scheduler (out of scope here per
// spec §1 "fiber/async scheduling beyond the allocator's stack-provisioning
// interface") switches its stack pointer into; region is the full mapping,
// including both guard pages, needed to unmap it again.
type FiberStack struct {
	Stack  []byte
	region []byte
}

// AllocateFiberStack reserves a fiber stack of the configured
// Tunables.FiberStackSize, bracketed by PROT_NONE guard pages, via
// unix.Mmap/unix.Mprotect. Returns ErrFiberStackNotSupported when no size
// is configured (spec §4.7).
func (a *Allocator) AllocateFiberStack() (FiberStack, error) {
	size := a.tunables.FiberStackSize
	if size <= 0 {
		return FiberStack{}, ErrFiberStackNotSupported
	}

	total := size + 2*fiberGuardPageSize
	region, err := unix.Mmap(-1, 0, total, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return FiberStack{}, vmerr.NewResource("fiber stack mmap of %d bytes failed: %v", total, err)
	}

	usable := region[fiberGuardPageSize : fiberGuardPageSize+size]
	if err := unix.Mprotect(usable, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		_ = unix.Munmap(region)
		return FiberStack{}, vmerr.NewResource("fiber stack mprotect failed: %v", err)
	}

	return FiberStack{Stack: usable, region: region}, nil
}

// DeallocateFiberStack unmaps a stack returned by AllocateFiberStack,
// guard pages included. The zero FiberStack is a no-op.
func (a *Allocator) DeallocateFiberStack(s FiberStack) error {
	if s.region == nil {
		return nil
	}
	return unix.Munmap(s.region)
}
