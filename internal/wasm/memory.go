package wasm

import "encoding/binary"

const (
	// MemoryPageSizeInBits is the number of bits needed to express
	// MemoryPageSize, i.e. log2(MemoryPageSize).
	MemoryPageSizeInBits = 16
	// MemoryPageSize is the Wasm page size: 64KiB.
	MemoryPageSize = uint32(1) << MemoryPageSizeInBits
	// MemoryMaxPages is the absolute ceiling on the number of pages any
	// memory may hold, imposed by the 32-bit address space.
	MemoryMaxPages = uint32(65536)
)

// MemoryPagesToBytesNum converts a page count to a byte count.
func MemoryPagesToBytesNum(pages uint32) uint64 {
	return uint64(pages) << MemoryPageSizeInBits
}

func memoryBytesNumToPages(numBytes uint64) uint32 {
	return uint32(numBytes >> MemoryPageSizeInBits)
}

// MemoryInstance is one memory's live storage, owned exclusively by the
// Instance that holds it (or, for an imported memory, by whichever
// Instance defined it).
type MemoryInstance struct {
	Buffer   []byte
	Min      uint32
	Max      *uint32
	Is64     bool
}

// PageSize returns the current size of the memory in pages.
func (m *MemoryInstance) PageSize() uint32 {
	return memoryBytesNumToPages(uint64(len(m.Buffer)))
}

// Grow increases the memory by delta pages, returning the previous size in
// pages, or 0xffffffff (-1 as a uint32) without growing when the grow would
// exceed Max (or MemoryMaxPages, absent an explicit Max).
func (m *MemoryInstance) Grow(delta uint32) uint32 {
	currentPages := m.PageSize()
	if delta == 0 {
		return currentPages
	}

	maxPages := MemoryMaxPages
	if m.Max != nil {
		maxPages = *m.Max
	}

	newPages := currentPages + delta
	if newPages < currentPages || newPages > maxPages {
		return 0xffffffff
	}

	newLen := MemoryPagesToBytesNum(newPages)
	if uint64(cap(m.Buffer)) >= newLen {
		// The backing array (e.g. an up-front mmap reservation sized to
		// Max) already covers the new size: extend in place rather than
		// copying, so a memory created by a reservation-based MemoryCreator
		// never silently migrates off its reserved mapping.
		grown := m.Buffer[:newLen]
		for i := len(m.Buffer); i < len(grown); i++ {
			grown[i] = 0
		}
		m.Buffer = grown
		return currentPages
	}

	newBuffer := make([]byte, newLen)
	copy(newBuffer, m.Buffer)
	m.Buffer = newBuffer
	return currentPages
}

// ReadByte reads a single byte at offset, or (0, false) if out of range.
func (m *MemoryInstance) ReadByte(offset uint32) (byte, bool) {
	if offset >= uint32(len(m.Buffer)) {
		return 0, false
	}
	return m.Buffer[offset], true
}

// ReadUint32Le reads a little-endian uint32 at offset, or (0, false) if any
// of the four bytes is out of range.
func (m *MemoryInstance) ReadUint32Le(offset uint32) (uint32, bool) {
	b, ok := m.readBytes(offset, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (m *MemoryInstance) readBytes(offset uint32, n uint32) ([]byte, bool) {
	if uint64(offset)+uint64(n) > uint64(len(m.Buffer)) {
		return nil, false
	}
	return m.Buffer[offset : offset+n], true
}

// WriteUint32Le writes a little-endian uint32 at offset, reporting false
// without writing anything if out of range.
func (m *MemoryInstance) WriteUint32Le(offset uint32, v uint32) bool {
	if uint64(offset)+4 > uint64(len(m.Buffer)) {
		return false
	}
	binary.LittleEndian.PutUint32(m.Buffer[offset:], v)
	return true
}

// Write writes v at offset, reporting false without writing anything if
// any byte of the range is out of bounds.
func (m *MemoryInstance) Write(offset uint32, v []byte) bool {
	if uint64(offset)+uint64(len(v)) > uint64(len(m.Buffer)) {
		return false
	}
	copy(m.Buffer[offset:], v)
	return true
}

// fits reports whether a write of n bytes starting at base lies entirely
// within the memory's current size, using saturating arithmetic so a base
// near the top of the address space cannot wrap around to "fits".
func (m *MemoryInstance) fits(base uint64, n uint64) bool {
	end := base + n
	if end < base { // overflow
		return false
	}
	return end <= uint64(len(m.Buffer))
}
