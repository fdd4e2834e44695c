// Package experimental holds embedder-facing hooks that sit above the
// stable core but are not yet settled enough to promise source
// compatibility on.
package experimental

import (
	"context"

	"github.com/wazerocore/vmcore/internal/provision"
	"github.com/wazerocore/vmcore/internal/vmerr"
	"github.com/wazerocore/vmcore/internal/wasm"
)

// MemoryAllocator is a memory allocation hook an embedder can supply
// instead of the default Go-heap or mmap-backed MemoryCreator (spec §4.3).
// Make builds a memory's initial buffer; Free releases whatever the
// embedder's own allocation scheme reserved.
type MemoryAllocator interface {
	// Make is invoked to create a new memory, given the declared limits.
	// Implementations must return a []byte min bytes in length, should
	// return a []byte with at least capacity bytes of spare room, and be
	// prepared to allocate up to max bytes of memory.
	Make(min, capacity, max uint64) []byte

	// Free is invoked to free the memory.
	Free()
}

type memoryAllocatorKey struct{}

// WithMemoryAllocator attaches allocator to ctx, for ContextMemoryCreator
// to retrieve when building a provision.MemoryCreator for one
// instantiation. A nil allocator leaves ctx unchanged.
func WithMemoryAllocator(ctx context.Context, allocator MemoryAllocator) context.Context {
	if allocator == nil {
		return ctx
	}
	return context.WithValue(ctx, memoryAllocatorKey{}, allocator)
}

// ContextMemoryCreator adapts the MemoryAllocator attached to ctx (if any)
// into a provision.MemoryCreator, so the allocator façade can back a
// module's memories with an embedder-supplied allocation scheme without
// internal/provision itself depending on context.Context. Falls back to
// provision.DefaultMemoryCreator when ctx carries no MemoryAllocator.
func ContextMemoryCreator(ctx context.Context) provision.MemoryCreator {
	allocator, ok := ctx.Value(memoryAllocatorKey{}).(MemoryAllocator)
	if !ok {
		return provision.DefaultMemoryCreator
	}
	return &allocatorMemoryCreator{allocator: allocator}
}

// allocatorMemoryCreator bridges a MemoryAllocator to provision.MemoryCreator.
// Growth is deliberately not bridged back to the embedder: spec §4.3's
// MemoryCreator contract only covers creation, and wasm.MemoryInstance.Grow
// already reuses an over-provisioned buffer's spare capacity in place (see
// internal/wasm/memory.go), so there is nothing left for an embedder growth
// hook to do that this core's own growth policy does not already handle.
type allocatorMemoryCreator struct{ allocator MemoryAllocator }

func (c *allocatorMemoryCreator) NewMemory(t wasm.MemoryType) (*wasm.MemoryInstance, error) {
	maxPages := wasm.MemoryMaxPages
	if t.HasMax {
		maxPages = uint32(t.Max)
	}
	minBytes := wasm.MemoryPagesToBytesNum(uint32(t.Min))
	maxBytes := wasm.MemoryPagesToBytesNum(maxPages)

	buf := c.allocator.Make(minBytes, minBytes, maxBytes)
	if uint64(len(buf)) < minBytes {
		return nil, vmerr.NewResource(
			"embedder MemoryAllocator.Make returned %d bytes, want at least %d", len(buf), minBytes)
	}

	var max *uint32
	if t.HasMax {
		m := uint32(t.Max)
		max = &m
	}
	return &wasm.MemoryInstance{Buffer: buf[:minBytes], Min: uint32(t.Min), Max: max, Is64: t.Is64}, nil
}

// Release frees the embedder's allocation. Implements provision.Releaser,
// so the allocator façade's rollback and deallocate paths call this the
// same way they call the mmap creator's Release.
func (c *allocatorMemoryCreator) Release(*wasm.MemoryInstance) error {
	c.allocator.Free()
	return nil
}
