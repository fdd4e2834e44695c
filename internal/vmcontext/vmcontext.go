// Package vmcontext populates a freshly-allocated Instance's VMContext
// trailer (spec §4.5): the signature table, builtins, bulk-copied imports,
// the per-instance anyfunc table, defined table/memory descriptors, and
// defined globals, in the exact order spec §4.5 enumerates, mirroring
// wasmtime's initialize_vmcontext/initialize_vmcontext_globals.
package vmcontext

import (
	"encoding/binary"
	"unsafe"

	"github.com/wazerocore/vmcore/internal/interrupt"
	"github.com/wazerocore/vmcore/internal/vmoffsets"
	"github.com/wazerocore/vmcore/internal/wasm"
)

// Imports bundles the resolved import descriptors an Instance is wired to
// at instantiation time. TableOwners/MemoryOwners are the owning
// instance's VMContext base address for each imported table/memory,
// parallel to Tables/Memories; they exist only for the raw VMContext
// image (spec §3 item 5's {instancePtr, ownerVMContext} pair) since the
// typed accessors (Instance.Table/Instance.Memory) never need them.
type Imports struct {
	Functions    []wasm.ImportedFunction
	Tables       []*wasm.TableInstance
	TableOwners  []uintptr
	Memories     []*wasm.MemoryInstance
	MemoryOwners []uintptr
	Globals      []*wasm.GlobalInstance
}

// Populate runs spec §4.5 steps 1-6 (global initialization is step 7, done
// separately by InitializeGlobals once defined memories/tables/globals
// exist on inst but before the instance is exposed). offs must have been
// computed from inst.Module with New; sigIDs must have one entry per
// inst.Module.TypeSection entry (see internal/sigid); builtins must have
// exactly vmoffsets.NumBuiltinFunctions entries; definedFuncPtrs must have
// one entry per inst.Module.FunctionSection entry (the compiled body
// address for each defined function, supplied by the codegen collaborator,
// out of scope here).
func Populate(
	inst *wasm.Instance,
	offs vmoffsets.Offsets,
	interrupts *interrupt.VMInterrupts,
	sigIDs []wasm.FunctionTypeID,
	builtins []uintptr,
	imports Imports,
	definedFuncPtrs []uintptr,
) error {
	if len(builtins) != vmoffsets.NumBuiltinFunctions {
		return errBuiltinsLen
	}
	m := inst.Module

	buf := make([]byte, offs.TotalSize)
	inst.VMContext = buf
	selfVMContext := vmctxSelfPtr(buf)

	// Step 1: install the interrupts pointer. This core has no store
	// abstraction to back-link to (spec §1 places the outer embedder API
	// out of scope); the interrupts pointer is the one piece of that step
	// every instance needs regardless.
	putPointer(buf, offs.VMInterruptsPtr, offs.PointerSize, uintptr(unsafe.Pointer(interrupts)))

	// Step 2: signature ids.
	for i, id := range sigIDs {
		putU32(buf, offs.SignatureIDOffset(wasm.Index(i)), id)
	}

	// Step 3: builtins table (static content, supplied by the caller).
	for i, b := range builtins {
		putPointer(buf, offs.BuiltinsBegin+vmoffsets.Offset(i)*vmoffsets.Offset(offs.PointerSize), offs.PointerSize, b)
	}

	// Step 4: bulk-copy imported descriptors.
	inst.ImportedFunctions = imports.Functions
	inst.ImportedTables = imports.Tables
	inst.ImportedMemories = imports.Memories
	inst.ImportedGlobals = imports.Globals

	for i, f := range imports.Functions {
		bodyOff, vmctxOff, typeOff := offs.ImportedFunctionOffset(wasm.Index(i))
		putPointer(buf, bodyOff, offs.PointerSize, f.Body)
		putPointer(buf, vmctxOff, offs.PointerSize, f.VMContext)
		putU32(buf, typeOff, f.TypeID)
	}
	for i, t := range imports.Tables {
		off := offs.ImportedTableOffset(wasm.Index(i))
		putPointer(buf, off, offs.PointerSize, tablePtr(t))
		putPointer(buf, off+vmoffsets.Offset(offs.PointerSize), offs.PointerSize, imports.TableOwners[i])
	}
	for i, mem := range imports.Memories {
		off := offs.ImportedMemoryOffset(wasm.Index(i))
		putPointer(buf, off, offs.PointerSize, memoryPtr(mem))
		putPointer(buf, off+vmoffsets.Offset(offs.PointerSize), offs.PointerSize, imports.MemoryOwners[i])
	}
	for i, g := range imports.Globals {
		putPointer(buf, offs.ImportedGlobalOffset(wasm.Index(i)), offs.PointerSize, uintptr(unsafe.Pointer(g)))
	}

	// Step 5: the per-instance anyfunc table, imports first then defined.
	total := m.TotalFunctionCount()
	inst.Anyfuncs = make([]wasm.Anyfunc, total)
	for i := wasm.Index(0); i < total; i++ {
		var entry wasm.Anyfunc
		if i < m.ImportFunctionCount {
			imp := imports.Functions[i]
			entry = wasm.Anyfunc{Func: imp.Body, TypeID: imp.TypeID, VMContext: imp.VMContext}
		} else {
			definedIdx := i - m.ImportFunctionCount
			typeIdx := m.FunctionSection[definedIdx]
			entry = wasm.Anyfunc{
				Func:      definedFuncPtrs[definedIdx],
				TypeID:    sigIDs[typeIdx],
				VMContext: selfVMContext,
			}
		}
		inst.Anyfuncs[i] = entry
		off := offs.AnyfuncOffset(i)
		putPointer(buf, off, offs.PointerSize, entry.Func)
		putPointer(buf, off+vmoffsets.Offset(offs.PointerSize), offs.PointerSize, entry.VMContext)
		putU32(buf, off+vmoffsets.Offset(offs.PointerSize)*2, entry.TypeID)
	}

	// Step 6: defined table and memory descriptors.
	for i, t := range inst.Tables {
		off := offs.DefinedTableOffset(wasm.Index(i))
		putPointer(buf, off, offs.PointerSize, tableBase(t))
		putU32(buf, off+vmoffsets.Offset(offs.PointerSize), t.Len())
	}
	for i, mem := range inst.Memories {
		off := offs.DefinedMemoryOffset(wasm.Index(i))
		putPointer(buf, off, offs.PointerSize, memoryBase(mem))
		putU32(buf, off+vmoffsets.Offset(offs.PointerSize), uint32(len(mem.Buffer)))
	}

	return nil
}

var errBuiltinsLen = &builtinsLenError{}

type builtinsLenError struct{}

func (*builtinsLenError) Error() string { return "vmcontext: builtins table has the wrong length" }

func vmctxSelfPtr(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}

func tablePtr(t *wasm.TableInstance) uintptr  { return uintptr(unsafe.Pointer(t)) }
func memoryPtr(m *wasm.MemoryInstance) uintptr { return uintptr(unsafe.Pointer(m)) }

func tableBase(t *wasm.TableInstance) uintptr {
	if len(t.References) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&t.References[0]))
}

func memoryBase(m *wasm.MemoryInstance) uintptr {
	if len(m.Buffer) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&m.Buffer[0]))
}

func putPointer(buf []byte, off vmoffsets.Offset, width vmoffsets.PointerSize, v uintptr) {
	if width == vmoffsets.PointerSize32 {
		binary.LittleEndian.PutUint32(buf[off:], uint32(v))
		return
	}
	binary.LittleEndian.PutUint64(buf[off:], uint64(v))
}

func putU32(buf []byte, off vmoffsets.Offset, v uint32) {
	binary.LittleEndian.PutUint32(buf[off:], v)
}

func putU64(buf []byte, off vmoffsets.Offset, v uint64) {
	binary.LittleEndian.PutUint64(buf[off:], v)
}
