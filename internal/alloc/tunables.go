package alloc

import "github.com/wazerocore/vmcore/internal/wasm"

// Tunables configures an Allocator (spec §4.7's adjust_tunables target):
// table/memory growth ceilings for a future pooling backend to honor, plus
// the fiber stack size this on-demand backend itself consumes. Built with
// functional options, mirroring the RuntimeConfig With<Field> idiom used
// elsewhere in this codebase rather than a struct literal with public
// zero-value footguns.
type Tunables struct {
	InitialTableElements uint32
	MaxTableElements      uint32
	InitialMemoryPages    uint32
	MaxMemoryPages        uint32
	// FiberStackSize is the usable (guard pages excluded) size in bytes of
	// a fiber stack allocated by AllocateFiberStack. Zero means fiber
	// stacks are not supported (spec §4.7).
	FiberStackSize int
}

// TunableOption mutates a Tunables under construction.
type TunableOption func(*Tunables)

// WithInitialTableElements sets the starting element count a pooling
// backend should reserve per table.
func WithInitialTableElements(n uint32) TunableOption {
	return func(t *Tunables) { t.InitialTableElements = n }
}

// WithMaxTableElements caps the element count a pooling backend should
// reserve per table.
func WithMaxTableElements(n uint32) TunableOption {
	return func(t *Tunables) { t.MaxTableElements = n }
}

// WithInitialMemoryPages sets the starting page count a pooling backend
// should reserve per memory.
func WithInitialMemoryPages(n uint32) TunableOption {
	return func(t *Tunables) { t.InitialMemoryPages = n }
}

// WithMaxMemoryPages caps the page count a pooling backend should reserve
// per memory.
func WithMaxMemoryPages(n uint32) TunableOption {
	return func(t *Tunables) { t.MaxMemoryPages = n }
}

// WithFiberStackSize sets the usable size of stacks returned by
// AllocateFiberStack. A size of zero (the default) means fiber stacks are
// not supported.
func WithFiberStackSize(n int) TunableOption {
	return func(t *Tunables) { t.FiberStackSize = n }
}

// NewTunables builds a Tunables with the on-demand backend's defaults,
// applying opts in order.
func NewTunables(opts ...TunableOption) Tunables {
	t := Tunables{
		InitialTableElements: 1024,
		MaxTableElements:      1 << 20,
		InitialMemoryPages:    1,
		MaxMemoryPages:        wasm.MemoryMaxPages,
		FiberStackSize:        0,
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}
