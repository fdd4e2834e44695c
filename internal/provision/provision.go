// Package provision creates the defined memory and table instances for a
// module being instantiated (spec §4.3): iterate the module's memory/table
// declarations beyond the imported prefix, invoke a configurable
// MemoryCreator for each memory, run each creation through an optional
// resource-limiter veto, and return dense index-keyed results.
package provision

import (
	"github.com/wazerocore/vmcore/internal/vmerr"
	"github.com/wazerocore/vmcore/internal/wasm"
)

// MemoryCreator is the configurable memory-creation hook (spec §4.3). It is
// the runtime-facing counterpart of wazero's experimental.MemoryAllocator,
// generalized to return an error so a creator backed by a finite address
// space (e.g. a reserved mmap region) can report exhaustion as a Resource
// error rather than panicking.
type MemoryCreator interface {
	// NewMemory allocates the backing buffer for a memory of type t,
	// sized to t.Min pages and able to grow up to t.Max (or
	// wasm.MemoryMaxPages if t.HasMax is false).
	NewMemory(t wasm.MemoryType) (*wasm.MemoryInstance, error)
}

// ResourceLimiter may veto a memory or table creation before it happens,
// yielding a vmerr.ResourceError. A nil ResourceLimiter never vetoes.
// Grounded on wasmtime's ResourceLimiter hook referenced throughout
// allocator.rs's create_memories/create_tables (each creation call is
// "gated by an optional resource-limiter callback that may veto").
type ResourceLimiter interface {
	LimitNewMemory(t wasm.MemoryType) error
	LimitNewTable(t wasm.TableType) error
}

// Releaser is implemented by a MemoryCreator whose memories hold a resource
// beyond the Go heap (e.g. an mmap reservation) that must be released
// explicitly at deallocation time. The allocator façade type-asserts its
// configured creator against this interface rather than releasing
// unconditionally, since calling munmap on a plain Go-heap buffer would
// corrupt the heap.
type Releaser interface {
	Release(mem *wasm.MemoryInstance) error
}

// defaultMemoryCreator backs memories with a plain Go heap allocation. It is
// used when no MemoryCreator is configured; system-mmap-backed creators
// live alongside it behind the same interface (see mmap_unix.go) for
// embedders that want a dedicated reserved address space instead of
// relying on the Go allocator/GC for Wasm linear memory.
type defaultMemoryCreator struct{}

// DefaultMemoryCreator is the MemoryCreator used when an instantiation
// request supplies none.
var DefaultMemoryCreator MemoryCreator = defaultMemoryCreator{}

func (defaultMemoryCreator) NewMemory(t wasm.MemoryType) (*wasm.MemoryInstance, error) {
	buf := make([]byte, wasm.MemoryPagesToBytesNum(uint32(t.Min)))
	var max *uint32
	if t.HasMax {
		m := uint32(t.Max)
		max = &m
	}
	return &wasm.MemoryInstance{Buffer: buf, Min: uint32(t.Min), Max: max, Is64: t.Is64}, nil
}

// CreateMemories allocates one MemoryInstance per entry in m.MemorySection,
// in order, via creator (DefaultMemoryCreator if nil). limiter, if
// non-nil, is consulted before each creation and may veto with a Resource
// error. On failure, memories already created by this call are released
// through creator when it is a Releaser (release errors are dropped).
func CreateMemories(m *wasm.Module, creator MemoryCreator, limiter ResourceLimiter) ([]*wasm.MemoryInstance, error) {
	if creator == nil {
		creator = DefaultMemoryCreator
	}
	memories := make([]*wasm.MemoryInstance, 0, len(m.MemorySection))
	release := func() {
		if r, ok := creator.(Releaser); ok {
			for _, mem := range memories {
				_ = r.Release(mem)
			}
		}
	}
	for _, t := range m.MemorySection {
		if limiter != nil {
			if err := limiter.LimitNewMemory(t); err != nil {
				release()
				return nil, vmerr.NewResource("memory creation vetoed by resource limiter: %v", err)
			}
		}
		mem, err := creator.NewMemory(t)
		if err != nil {
			release()
			return nil, vmerr.NewResource("failed to create memory: %v", err)
		}
		memories = append(memories, mem)
	}
	return memories, nil
}

// CreateTables allocates one TableInstance per entry in m.TableSection, in
// order. limiter, if non-nil, is consulted before each creation.
func CreateTables(m *wasm.Module, limiter ResourceLimiter) ([]*wasm.TableInstance, error) {
	tables := make([]*wasm.TableInstance, 0, len(m.TableSection))
	for _, t := range m.TableSection {
		if limiter != nil {
			if err := limiter.LimitNewTable(t); err != nil {
				return nil, vmerr.NewResource("table creation vetoed by resource limiter: %v", err)
			}
		}
		tables = append(tables, wasm.NewTableInstance(t))
	}
	return tables, nil
}
