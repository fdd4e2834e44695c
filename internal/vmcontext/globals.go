package vmcontext

import (
	"github.com/wazerocore/vmcore/internal/vmoffsets"
	"github.com/wazerocore/vmcore/internal/wasm"
)

// InitializeGlobals runs spec §4.5 step 7 / §4.6: allocate and evaluate
// every defined global's initializer, in declaration order, mirroring
// wasmtime's initialize_vmcontext_globals. It must run after Populate (so
// inst.Anyfuncs exists for RefFunc initializers) and after inst's
// ImportedGlobals are wired (so GetGlobal can reach an imported source).
func InitializeGlobals(inst *wasm.Instance, offs vmoffsets.Offsets) {
	m := inst.Module
	inst.Globals = make([]*wasm.GlobalInstance, len(m.GlobalSection))

	for i := range m.GlobalSection {
		g := &m.GlobalSection[i]
		// "Initialize the global before writing to it": zero it first.
		cur := &wasm.GlobalInstance{Type: g.Type}
		inst.Globals[i] = cur

		switch wasm.GlobalInitKind(g.Init.Kind) {
		case wasm.GlobalInitConst:
			cur.Raw = g.Init.ConstValue
			cur.RawHi = g.Init.ConstValueHi
		case wasm.GlobalInitGetGlobal:
			// Validation upstream guarantees GetGlobal(y) only ever names an
			// imported, immutable global, so this always resolves through
			// ImportedGlobals and never races against this same loop.
			// Every type, externref included, is a plain bit copy; no
			// reference count is adjusted here (that belongs to the
			// embedder that owns the referenced object).
			from := inst.Global(g.Init.GlobalIndex)
			cur.Raw = from.Raw
			cur.RawHi = from.RawHi
		case wasm.GlobalInitRefFunc:
			cur.Raw = uint64(inst.AnyfuncRef(g.Init.FuncIndex))
		case wasm.GlobalInitRefNull:
			// VMGlobalDefinition was already zeroed above; nothing to do.
		case wasm.GlobalInitImport:
			panic("BUG: locally-defined global initialized as import")
		}

		off := offs.DefinedGlobalOffset(wasm.Index(i))
		putU64(inst.VMContext, off, cur.Raw)
		putU64(inst.VMContext, off+8, cur.RawHi)
	}
}
