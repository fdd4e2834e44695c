// Package vmoffsets computes the byte layout of a module's VMContext trailer
// (spec §3, §4.1): the fixed-offset image that JIT-compiled code reads
// through a single context pointer. The layout is per-module (it depends on
// how many imports, tables, memories and globals the module declares) and
// per host pointer width.
package vmoffsets

import (
	"unsafe"

	"github.com/wazerocore/vmcore/internal/wasm"
)

// Offset is a byte offset into a VMContext image. -1 marks a field the
// module in question does not have (e.g. SignatureIDsBegin when the module
// declares no types), mirroring wazevoapi.Offset's sentinel convention.
type Offset int32

// PointerSize is the width, in bytes, of a host pointer on the target the
// VMContext image is being laid out for. Only 4 and 8 are meaningful.
type PointerSize int32

const (
	PointerSize32 PointerSize = 4
	PointerSize64 PointerSize = 8
)

// HostPointerSize returns the running process's native pointer width,
// PointerSize32 or PointerSize64. Callers that lay out a VMContext for
// code running in this same process (rather than cross-compiling for a
// different target) use this instead of hardcoding a width.
func HostPointerSize() PointerSize { return PointerSize(unsafe.Sizeof(uintptr(0))) }

// pairSize, anyfuncSize and signatureIDSize return the byte size of the
// fixed-shape descriptors this
// layout embeds, scaled to the host pointer width. A {body, vmctx} or
// {base, length} pair is two pointer-sized words; an anyfunc descriptor
// additionally carries a type id, stored pointer-sized for uniform
// alignment regardless of host width (matching wazevoapi.FunctionInstanceSize
// storing its 32-bit typeID in a pointer-sized slot on 64-bit hosts).
func (p PointerSize) pairSize() Offset      { return Offset(p) * 2 }
func (p PointerSize) anyfuncSize() Offset   { return Offset(p) * 3 }
func (p PointerSize) signatureIDSize() Offset { return 4 }

// globalStorageSize is the fixed per-global storage slot: 16 bytes holds the
// widest scalar (v128) regardless of host pointer width.
const globalStorageSize Offset = 16

// NumBuiltinFunctions is the size of the builtin-functions table (spec §3
// item 3): a fixed, statically-initialized array of pointers to runtime
// helpers (memory.grow, table.grow, table.fill, table.copy, ref.func,
// elem.drop), mirroring wasmtime's VMBuiltinFunctionsArray.
const NumBuiltinFunctions = 6

// Offsets is the computed layout for one module. Every field is relative to
// the start of the VMContext trailer (offset 0 is always the VMInterrupts
// pointer, per the first-word discipline invariant).
type Offsets struct {
	PointerSize PointerSize
	TotalSize   Offset

	VMInterruptsPtr     Offset // always 0
	SignatureIDsBegin   Offset
	BuiltinsBegin        Offset
	ImportedFunctionsBegin Offset
	ImportedTablesBegin    Offset
	ImportedMemoriesBegin  Offset
	ImportedGlobalsBegin   Offset
	DefinedTablesBegin     Offset
	DefinedMemoriesBegin   Offset
	AnyfuncsBegin          Offset
	DefinedGlobalsBegin    Offset

	numTypes            int
	numImportedFuncs    int
	numImportedTables   int
	numImportedMemories int
	numImportedGlobals  int
	numDefinedTables    int
	numDefinedMemories  int
	numDefinedGlobals   int
	numTotalFuncs       int
}

// New computes the VMContext layout for m on a host with the given pointer
// width. The accumulation order matches the field order in spec §3's
// VMContext description and wazevoapi.NewModuleContextOffsetData's
// conditional-section-or-sentinel technique.
func New(m *wasm.Module, ptr PointerSize) Offsets {
	o := Offsets{
		PointerSize:         ptr,
		numTypes:            len(m.TypeSection),
		numImportedFuncs:    int(m.ImportFunctionCount),
		numImportedTables:   int(m.ImportTableCount),
		numImportedMemories: int(m.ImportMemoryCount),
		numImportedGlobals:  int(m.ImportGlobalCount),
		numDefinedTables:    len(m.TableSection),
		numDefinedMemories:  len(m.MemorySection),
		numDefinedGlobals:   len(m.GlobalSection),
	}
	o.numTotalFuncs = o.numImportedFuncs + len(m.FunctionSection)

	var off Offset
	o.VMInterruptsPtr = 0
	off += Offset(ptr) // one pointer-sized word.

	if o.numTypes > 0 {
		o.SignatureIDsBegin = off
		off += Offset(o.numTypes) * ptr.signatureIDSize()
	} else {
		o.SignatureIDsBegin = -1
	}

	o.BuiltinsBegin = off
	off += Offset(NumBuiltinFunctions) * Offset(ptr)

	if o.numImportedFuncs > 0 {
		o.ImportedFunctionsBegin = off
		off += Offset(o.numImportedFuncs) * ptr.anyfuncSize()
	} else {
		o.ImportedFunctionsBegin = -1
	}

	if o.numImportedTables > 0 {
		o.ImportedTablesBegin = off
		off += Offset(o.numImportedTables) * ptr.pairSize()
	} else {
		o.ImportedTablesBegin = -1
	}

	if o.numImportedMemories > 0 {
		o.ImportedMemoriesBegin = off
		off += Offset(o.numImportedMemories) * ptr.pairSize()
	} else {
		o.ImportedMemoriesBegin = -1
	}

	if o.numImportedGlobals > 0 {
		o.ImportedGlobalsBegin = off
		off += Offset(o.numImportedGlobals) * Offset(ptr)
	} else {
		o.ImportedGlobalsBegin = -1
	}

	if o.numDefinedTables > 0 {
		o.DefinedTablesBegin = off
		off += Offset(o.numDefinedTables) * ptr.pairSize()
	} else {
		o.DefinedTablesBegin = -1
	}

	if o.numDefinedMemories > 0 {
		o.DefinedMemoriesBegin = off
		off += Offset(o.numDefinedMemories) * ptr.pairSize()
	} else {
		o.DefinedMemoriesBegin = -1
	}

	if o.numTotalFuncs > 0 {
		o.AnyfuncsBegin = off
		off += Offset(o.numTotalFuncs) * ptr.anyfuncSize()
	} else {
		o.AnyfuncsBegin = -1
	}

	if o.numDefinedGlobals > 0 {
		o.DefinedGlobalsBegin = off
		off += Offset(o.numDefinedGlobals) * globalStorageSize
	} else {
		o.DefinedGlobalsBegin = -1
	}

	o.TotalSize = off
	return o
}

// ImportedFunctionOffset returns the {body, vmctx, typeID} triple offsets
// for the i-th imported function, stored as a 3-word anyfunc-shaped
// descriptor (spec §3 item 4).
func (o *Offsets) ImportedFunctionOffset(i wasm.Index) (body, vmctx, typeID Offset) {
	base := o.ImportedFunctionsBegin + Offset(i)*o.PointerSize.anyfuncSize()
	return base, base + Offset(o.PointerSize), base + Offset(o.PointerSize)*2
}

// ImportedTableOffset returns the {instancePtr, ownerVMContext} pair offset
// for the i-th imported table.
func (o *Offsets) ImportedTableOffset(i wasm.Index) Offset {
	return o.ImportedTablesBegin + Offset(i)*o.PointerSize.pairSize()
}

// ImportedMemoryOffset returns the {instancePtr, ownerVMContext} pair offset
// for the i-th imported memory.
func (o *Offsets) ImportedMemoryOffset(i wasm.Index) Offset {
	return o.ImportedMemoriesBegin + Offset(i)*o.PointerSize.pairSize()
}

// ImportedGlobalOffset returns the offset of the pointer to the i-th
// imported global's GlobalInstance.
func (o *Offsets) ImportedGlobalOffset(i wasm.Index) Offset {
	return o.ImportedGlobalsBegin + Offset(i)*Offset(o.PointerSize)
}

// DefinedTableOffset returns the {base, length} pair offset for the i-th
// defined (non-imported) table.
func (o *Offsets) DefinedTableOffset(i wasm.Index) Offset {
	return o.DefinedTablesBegin + Offset(i)*o.PointerSize.pairSize()
}

// DefinedMemoryOffset returns the {base, length} pair offset for the i-th
// defined (non-imported) memory.
func (o *Offsets) DefinedMemoryOffset(i wasm.Index) Offset {
	return o.DefinedMemoriesBegin + Offset(i)*o.PointerSize.pairSize()
}

// AnyfuncOffset returns the offset of the {func_ptr, vmctx, type_index}
// descriptor (one pointer-sized word each, in that order) for function
// index i in the per-instance anyfunc table (spec §3 item 7).
// i ranges over defined and imported functions alike.
func (o *Offsets) AnyfuncOffset(i wasm.Index) Offset {
	return o.AnyfuncsBegin + Offset(i)*o.PointerSize.anyfuncSize()
}

// DefinedGlobalOffset returns the storage-slot offset for the i-th defined
// (non-imported) global.
func (o *Offsets) DefinedGlobalOffset(i wasm.Index) Offset {
	return o.DefinedGlobalsBegin + Offset(i)*globalStorageSize
}

// SignatureIDOffset returns the offset of the canonical-id slot for module
// type index i.
func (o *Offsets) SignatureIDOffset(i wasm.Index) Offset {
	return o.SignatureIDsBegin + Offset(i)*o.PointerSize.signatureIDSize()
}
