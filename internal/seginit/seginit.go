// Package seginit applies a module's data and element segment initializers
// to a freshly-allocated Instance (spec §4.4): either segmented mode (one
// initializer per table/memory region, resolved and bounds-checked against
// a global-relative base) or paged mode (a precomputed dense map of memory
// pages, applied wholesale). This runs as the second phase of
// instantiation, after the VMContext has been populated and before the
// InstanceHandle is exposed to callers.
package seginit

import (
	"math"

	"github.com/wazerocore/vmcore/internal/vmerr"
	"github.com/wazerocore/vmcore/internal/wasm"
)

// Initialize runs segment initialization for inst, following spec §4.4's
// two modes. isBulkMemory selects the bounds-checking discipline:
//   - false: every initializer is checked against current table/memory
//     sizes before any mutation; a Link error means nothing was written.
//   - true: initializers are applied in declaration order; each segment is
//     still bounds-checked as a whole before it is written, so the first
//     one that doesn't fit produces a Trap with no bytes/slots of its own
//     written, while every earlier, fully-applied segment remains
//     observable (segment-granularity observable-prefix semantics). Every
//     global-relative base is resolved before the first write, so a base
//     overflow is still a Link error with nothing written.
func Initialize(inst *wasm.Instance, isBulkMemory bool) error {
	m := inst.Module

	if !isBulkMemory {
		if err := checkTableInitBounds(inst, m); err != nil {
			return err
		}
		if m.MemoryInit == nil {
			if err := checkMemoryInitBoundsSegmented(inst, m); err != nil {
				return err
			}
		}
	} else {
		// Resolve every global-relative base before any write, so a base
		// overflow is a Link error with nothing written.
		for i := range m.ElementSection {
			if _, err := resolveBase(inst, m.ElementSection[i].Base, m.ElementSection[i].Offset, false, "element"); err != nil {
				return err
			}
		}
		for i := 0; m.MemoryInit == nil && i < len(m.DataSection); i++ {
			seg := &m.DataSection[i]
			if _, err := resolveBase(inst, seg.Base, seg.Offset, inst.Memory(seg.MemoryIndex).Is64, "data"); err != nil {
				return err
			}
		}
	}

	if err := initializeTables(inst, m); err != nil {
		return err
	}

	if m.MemoryInit != nil {
		return initializePagedMemories(inst, m.MemoryInit)
	}
	return initializeSegmentedMemories(inst, m)
}

// resolveBase computes init.offset + (global[base] if present else 0),
// saturating-checked (spec §4.4 "Resolve base"). is64 selects whether the
// global is read as a 32- or 64-bit value; table bases are always 32-bit.
// kind names the segment kind (data/element) for the overflow error message.
func resolveBase(inst *wasm.Instance, base *wasm.Index, offset uint64, is64 bool, kind string) (uint64, error) {
	if base == nil {
		return offset, nil
	}
	g := inst.Global(*base)
	val := g.Get()
	if !is64 {
		val = uint64(uint32(val))
	}
	sum := offset + val
	if sum < offset {
		return 0, vmerr.NewLink("%s segment global base overflows", kind)
	}
	if !is64 && sum > math.MaxUint32 {
		return 0, vmerr.NewLink("%s segment global base overflows", kind)
	}
	return sum, nil
}

func checkTableInitBounds(inst *wasm.Instance, m *wasm.Module) error {
	for i := range m.ElementSection {
		init := &m.ElementSection[i]
		start, err := resolveBase(inst, init.Base, init.Offset, false, "element")
		if err != nil {
			return err
		}
		table := inst.Table(init.TableIndex)
		end := start + uint64(len(init.FuncIndexes))
		if end < start || end > uint64(table.Len()) {
			return vmerr.NewLink("table out of bounds: elements segment does not fit")
		}
	}
	return nil
}

func checkMemoryInitBoundsSegmented(inst *wasm.Instance, m *wasm.Module) error {
	for i := range m.DataSection {
		seg := &m.DataSection[i]
		mem := inst.Memory(seg.MemoryIndex)
		start, err := resolveBase(inst, seg.Base, seg.Offset, mem.Is64, "data")
		if err != nil {
			return err
		}
		end := start + uint64(len(seg.Data))
		if end < start || end > uint64(len(mem.Buffer)) {
			return vmerr.NewLink("memory out of bounds: data segment does not fit")
		}
	}
	return nil
}

// initializeTables writes every element segment's function references into
// its target table. When bounds were not pre-checked (bulk memory path),
// each segment is bounds-checked as a whole before any of its slots are
// written, so a segment that doesn't fit traps with none of its own slots
// written while every earlier, fully-applied segment is left observable
// (segment-granularity observable-prefix semantics), matching table.init.
func initializeTables(inst *wasm.Instance, m *wasm.Module) error {
	for i := range m.ElementSection {
		init := &m.ElementSection[i]
		start, err := resolveBase(inst, init.Base, init.Offset, false, "element")
		if err != nil {
			return err
		}
		table := inst.Table(init.TableIndex)
		end := start + uint64(len(init.FuncIndexes))
		if end < start || end > uint64(table.Len()) {
			return vmerr.NewTrap(vmerr.TrapCodeTableOutOfBounds)
		}
		for j, fidx := range init.FuncIndexes {
			var ref uintptr
			if fidx != nil {
				ref = inst.AnyfuncRef(*fidx)
			}
			table.References[start+uint64(j)] = ref
		}
	}
	return nil
}

// initializeSegmentedMemories writes every data segment's bytes into its
// target memory, with the same segment-granularity observable-prefix
// discipline as initializeTables: a segment that doesn't fit traps with
// none of its own bytes written, matching memory.init.
func initializeSegmentedMemories(inst *wasm.Instance, m *wasm.Module) error {
	for i := range m.DataSection {
		seg := &m.DataSection[i]
		mem := inst.Memory(seg.MemoryIndex)
		start, err := resolveBase(inst, seg.Base, seg.Offset, mem.Is64, "data")
		if err != nil {
			return err
		}
		n := uint64(len(seg.Data))
		end := start + n
		if end < start || end > uint64(len(mem.Buffer)) {
			return vmerr.NewTrap(vmerr.TrapCodeHeapOutOfBounds)
		}
		copy(mem.Buffer[start:end], seg.Data)
	}
	return nil
}

// initializePagedMemories applies every present page image, then traps if
// the module's compiler flagged an unresolved out-of-bounds data segment
// (spec §4.4 "Paged mode"). The flag is checked unconditionally, after all
// pages are written, independent of the bulk-memory setting, since writing
// in-bounds pages is always safe regardless of how the oversized segment
// would have been handled.
func initializePagedMemories(inst *wasm.Instance, init *wasm.PrecomputedMemoryInit) error {
	for memIdx, pages := range init.Pages {
		mem := inst.Memories[memIdx]
		for pageIdx, page := range pages {
			start := uint64(pageIdx) * uint64(wasm.MemoryPageSize)
			end := start + uint64(len(page))
			if end > uint64(len(mem.Buffer)) {
				continue // the page itself was precomputed to fit; this guards a malformed input.
			}
			copy(mem.Buffer[start:end], page)
		}
	}
	if init.OutOfBounds {
		return vmerr.NewTrap(vmerr.TrapCodeHeapOutOfBounds)
	}
	return nil
}
