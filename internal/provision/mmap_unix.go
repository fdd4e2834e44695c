//go:build unix

package provision

import (
	"golang.org/x/sys/unix"

	"github.com/wazerocore/vmcore/internal/vmerr"
	"github.com/wazerocore/vmcore/internal/wasm"
)

// mmapMemoryCreator backs each memory with its own anonymous mmap region
// reserved up to the memory's maximum size, so Memory.Grow (spec's linear
// memory growth) never needs to move or copy the buffer: growth just
// extends the visible slice length within the already-reserved mapping.
// This is the "system-mmap-backed creator" spec §4.3 names as the default;
// it is opt-in here (see NewMmapMemoryCreator) rather than wired as
// DefaultMemoryCreator, since a plain Go-heap buffer is sufficient for
// memories with a small or absent maximum and avoids reserving address
// space eagerly for every instance.
type mmapMemoryCreator struct{}

// NewMmapMemoryCreator returns a MemoryCreator that reserves each memory's
// full address range up front via mmap(MAP_ANON|MAP_PRIVATE).
func NewMmapMemoryCreator() MemoryCreator { return mmapMemoryCreator{} }

func (mmapMemoryCreator) NewMemory(t wasm.MemoryType) (*wasm.MemoryInstance, error) {
	maxPages := wasm.MemoryMaxPages
	if t.HasMax {
		maxPages = uint32(t.Max)
	}
	reserve := wasm.MemoryPagesToBytesNum(maxPages)
	if reserve == 0 {
		reserve = 1
	}

	b, err := unix.Mmap(-1, 0, int(reserve), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, vmerr.NewResource("mmap reservation of %d bytes failed: %v", reserve, err)
	}

	minBytes := wasm.MemoryPagesToBytesNum(uint32(t.Min))
	var max *uint32
	if t.HasMax {
		m := uint32(t.Max)
		max = &m
	}
	return &wasm.MemoryInstance{Buffer: b[:minBytes], Min: uint32(t.Min), Max: max, Is64: t.Is64}, nil
}

// Release unmaps the memory's reserved region. The on-demand allocator's
// deallocate path calls this, through the Releaser interface, for every
// memory it created through this creator. MemoryInstance.Grow extends
// within the existing capacity whenever it can (see
// wasm.MemoryInstance.Grow), so cap(mem.Buffer) still spans the original
// mmap reservation even after growth.
func (mmapMemoryCreator) Release(mem *wasm.MemoryInstance) error {
	if mem == nil || cap(mem.Buffer) == 0 {
		return nil
	}
	full := mem.Buffer[:cap(mem.Buffer)]
	return unix.Munmap(full)
}
