// Package wasm is the read-only, reference-counted-by-convention data
// model shared by every instance created from one compiled Module, plus
// the per-instance runtime objects (Instance, MemoryInstance,
// TableInstance, GlobalInstance) that those instances own exclusively.
//
// Everything here describes *what* a module contains; none of it runs
// Wasm parsing, validation, or code generation; those are external
// collaborators this core receives already-resolved data from.
package wasm

import "math"

// Index is a position in one of a module's index spaces (function, table,
// memory, global, type), imports counted first.
type Index = uint32

// FunctionTypeID is a canonical, process-wide identifier for a Wasm
// function type, used for O(1) indirect-call type checks across
// instances that can interoperate. See internal/sigid for how these are
// assigned; this package only stores and threads them through.
type FunctionTypeID = uint32

// InvalidFunctionTypeID is the reserved id written for module types that
// are not function types, or otherwise have no canonical signature. Any
// interaction with a module that legitimately allocates this id as a real
// canonical id is undefined; the signature mapper must never hand it out.
const InvalidFunctionTypeID FunctionTypeID = math.MaxUint32

// ExternType classifies an import or export.
type ExternType byte

const (
	ExternTypeFunc ExternType = iota
	ExternTypeTable
	ExternTypeMemory
	ExternTypeGlobal
)

// FunctionType is a Wasm function signature.
type FunctionType struct {
	Params, Results []byte // api.ValueType, avoiding an import cycle on api.
}

// EqualSignature reports whether t and o have identical params and results,
// the notion of equality the signature mapper uses to assign canonical ids.
func (t *FunctionType) EqualSignature(o *FunctionType) bool {
	if len(t.Params) != len(o.Params) || len(t.Results) != len(o.Results) {
		return false
	}
	for i, p := range t.Params {
		if o.Params[i] != p {
			return false
		}
	}
	for i, r := range t.Results {
		if o.Results[i] != r {
			return false
		}
	}
	return true
}

// Import describes a single imported function, table, memory, or global.
type Import struct {
	Type ExternType
	// Module and Name identify the host-provided or other-instance origin.
	Module, Name string
	// DescFunc is the type index, valid when Type == ExternTypeFunc.
	DescFunc Index
	// DescTable is valid when Type == ExternTypeTable.
	DescTable TableType
	// DescMem is valid when Type == ExternTypeMemory.
	DescMem MemoryType
	// DescGlobal is valid when Type == ExternTypeGlobal.
	DescGlobal GlobalType
}

// Export names a function, table, memory, or global reachable from outside
// the module. The escape set (see EscapeSet) is derived from these plus
// any ref.func initializer, not from exports alone.
type Export struct {
	Type  ExternType
	Name  string
	Index Index
}

// MemoryType is a memory's limits, as declared (imported or defined).
type MemoryType struct {
	Min, Max uint64
	HasMax   bool
	// Is64 selects the 64-bit memory addressing mode (offsets/bases read
	// and written as u64 rather than u32). See spec §4.4.
	Is64 bool
}

// TableType is a table's limits and element type, as declared.
type TableType struct {
	Min, Max uint32
	HasMax   bool
	RefType  byte // api.ValueTypeFuncref or api.ValueTypeExternref
}

// GlobalType is a global's value type and mutability, as declared.
type GlobalType struct {
	ValType byte // api.ValueType
	Mutable bool
}

// GlobalInitKind discriminates the forms a defined global's initializer
// expression can take (spec §4.6).
type GlobalInitKind int

const (
	GlobalInitConst GlobalInitKind = iota
	GlobalInitGetGlobal
	GlobalInitRefFunc
	GlobalInitRefNull
	// GlobalInitImport never appears on a *defined* global; reaching it
	// during initialization is a program invariant violation, not a
	// recoverable error (spec §4.6 table, last row).
	GlobalInitImport
)

// GlobalInitializer is the initializer expression of one defined global.
type GlobalInitializer struct {
	Kind Index // GlobalInitKind, stored widened for alignment with index fields below.
	// ConstValue holds the raw little-endian-significant bit pattern for
	// Const(x): i32/f32 use the low 32 bits, i64/f64/v128-lo use all 64.
	ConstValue uint64
	// ConstValueHi holds the high 64 bits for a v128 Const(x).
	ConstValueHi uint64
	// GlobalIndex is the source global for GetGlobal(y).
	GlobalIndex Index
	// FuncIndex is the target function for RefFunc(f).
	FuncIndex Index
}

// Global is one defined global's declaration: its type plus initializer.
type Global struct {
	Type GlobalType
	Init GlobalInitializer
}

// DataSegment is a data segment initializer for a memory, in segmented
// mode (spec §4.4 "Segmented mode").
type DataSegment struct {
	MemoryIndex Index
	// Base, if non-nil, names a global whose current value is added to
	// Offset to form the segment's base address.
	Base *Index
	Offset uint64
	Data   []byte
}

// TableInitializer is an element segment initializer for a table, in
// segmented mode. FuncIndexes holds one entry per table slot written;
// a nil entry represents ref.null.
type TableInitializer struct {
	TableIndex Index
	Base       *Index
	Offset     uint64
	FuncIndexes []*Index
}

// PrecomputedMemoryInit is the paged, dense alternative to DataSection
// (spec §4.4 "Paged mode"): a sparse map from defined-memory index to a
// sparse list of page images, plus a flag for whether applying every page
// image still leaves an out-of-bounds write unresolved.
type PrecomputedMemoryInit struct {
	// Pages maps a defined-memory index to page index to a page image no
	// larger than MemoryPageSize bytes.
	Pages map[Index]map[uint32][]byte
	// OutOfBounds, if true, means the module's compiler detected a data
	// segment that extends past the memory's declared bound; all pages
	// that do fit are still present in Pages and must be applied before
	// surfacing the trap (spec §4.4, observable-prefix semantics).
	OutOfBounds bool
}

// Module is the read-only, compiled description of a Wasm module. One
// Module is shared by every Instance created from it; nothing here is
// mutated after compilation.
type Module struct {
	TypeSection     []FunctionType
	ImportSection   []Import
	FunctionSection []Index // type index per defined function.
	TableSection    []TableType
	MemorySection   []MemoryType
	GlobalSection   []Global
	ExportSection   []Export
	DataSection     []DataSegment
	ElementSection  []TableInitializer

	// MemoryInit, when non-nil, selects paged mode for every defined
	// memory; DataSection is ignored for memories it covers. This choice
	// is made upstream, at compile time (spec §4.4, §9).
	MemoryInit *PrecomputedMemoryInit

	// ImportFunctionCount etc. are cached so that offset and index
	// arithmetic never has to re-scan ImportSection by type.
	ImportFunctionCount, ImportTableCount, ImportMemoryCount, ImportGlobalCount Index

	// EscapeSet holds the defined-function indices whose pointer may leak
	// outside the module: exported functions, plus any function index
	// named by a RefFunc initializer in a global or element segment. The
	// call-ABI synthesizer (internal/callabi) uses this, and only this, to
	// choose between the Fast and Default calling conventions (spec §4.1,
	// §9 "Calling-convention choice is a closed optimization").
	EscapeSet map[Index]struct{}

	// ID is an opaque, comparable identity for this Module, used by
	// collaborators (e.g. engine-side compiled-code caches) that are out
	// of scope here but need a stable key.
	ID string
}

// BuildEscapeSet computes m's escape set (spec §4.1 "Calling-convention
// choice"): every defined function named by an Export, plus every defined
// function named by a RefFunc element-segment entry or a RefFunc global
// initializer, matching wazevo's "possibly exported" rule rather than an
// export-only reading. Callers that already have an EscapeSet (e.g. one
// computed upstream by the module-construction collaborator) do not need
// to call this; internal/alloc calls it for any Module that arrives with a
// nil EscapeSet.
func BuildEscapeSet(m *Module) map[Index]struct{} {
	set := make(map[Index]struct{})
	for i := range m.ExportSection {
		exp := &m.ExportSection[i]
		if exp.Type == ExternTypeFunc {
			set[exp.Index] = struct{}{}
		}
	}
	for i := range m.ElementSection {
		for _, fidx := range m.ElementSection[i].FuncIndexes {
			if fidx != nil {
				set[*fidx] = struct{}{}
			}
		}
	}
	for i := range m.GlobalSection {
		init := &m.GlobalSection[i].Init
		if GlobalInitKind(init.Kind) == GlobalInitRefFunc {
			set[init.FuncIndex] = struct{}{}
		}
	}
	return set
}

// TotalFunctionCount is the number of functions reachable from this
// module, imported and defined.
func (m *Module) TotalFunctionCount() Index {
	return m.ImportFunctionCount + Index(len(m.FunctionSection))
}

// TotalTableCount is the number of tables, imported and defined.
func (m *Module) TotalTableCount() Index {
	return m.ImportTableCount + Index(len(m.TableSection))
}

// TotalMemoryCount is the number of memories, imported and defined.
func (m *Module) TotalMemoryCount() Index {
	return m.ImportMemoryCount + Index(len(m.MemorySection))
}

// TotalGlobalCount is the number of globals, imported and defined.
func (m *Module) TotalGlobalCount() Index {
	return m.ImportGlobalCount + Index(len(m.GlobalSection))
}

// TypeIndexOfFunction returns the type index of the funcIdx-th function in
// the combined (imports-first) function index space.
func (m *Module) TypeIndexOfFunction(funcIdx Index) Index {
	if funcIdx < m.ImportFunctionCount {
		var cnt Index
		for i := range m.ImportSection {
			imp := &m.ImportSection[i]
			if imp.Type != ExternTypeFunc {
				continue
			}
			if cnt == funcIdx {
				return imp.DescFunc
			}
			cnt++
		}
		panic("BUG: import function index out of range")
	}
	return m.FunctionSection[funcIdx-m.ImportFunctionCount]
}

// IsPossiblyExported reports whether funcIdx is in the escape set, i.e.
// whether its pointer may leak outside the module (spec §4.1, §9).
func (m *Module) IsPossiblyExported(funcIdx Index) bool {
	if m.EscapeSet == nil {
		return false
	}
	_, ok := m.EscapeSet[funcIdx]
	return ok
}
