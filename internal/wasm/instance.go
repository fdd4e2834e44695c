package wasm

// Anyfunc is the {func_ptr, type_index, vmctx} triple that represents one
// first-class function reference: the identity a funcref value, a table
// element, or an indirect call target resolves to. func_ptr and vmctx are
// opaque to this package (they are addresses the compiler collaborator
// assigns meaning to). vmctx equals the owning Instance's VMContext address
// for a defined function, or the origin instance's for an imported one
// (spec §3 "Anyfunc reachability"); the VMContext initializer
// (internal/vmcontext) fills entries that way, and this package does not
// check it.
type Anyfunc struct {
	Func      uintptr
	TypeID    FunctionTypeID
	VMContext uintptr
}

// IsNull reports whether a is the null function reference.
func (a Anyfunc) IsNull() bool { return a.Func == 0 }

// ImportedFunction is the resolved {body, vmctx} descriptor for one
// imported function (spec §3 item 4).
type ImportedFunction struct {
	Body      uintptr
	VMContext uintptr
	TypeID    FunctionTypeID
}

// Bitset is a fixed-size set of booleans addressed by index,
// used for the dropped-segment bits (spec §3 invariant: "Dropped-segment
// monotonicity").
type Bitset struct {
	words []uint64
}

// NewBitset returns a Bitset with room for at least n bits, all clear.
func NewBitset(n int) Bitset {
	return Bitset{words: make([]uint64, (n+63)/64)}
}

// Set marks bit i. Bitset has no way to clear a bit, so a dropped-segment
// bit stays set for the instance's lifetime.
func (b *Bitset) Set(i int) {
	b.words[i/64] |= 1 << (uint(i) % 64)
}

// IsSet reports whether bit i is set.
func (b *Bitset) IsSet(i int) bool {
	return b.words[i/64]&(1<<(uint(i)%64)) != 0
}

// Instance is exclusively owned by exactly one InstanceHandle and is never
// relocated after allocation: its VMContext address is embedded in the
// Anyfunc entries it contains (spec §9 "Self-referential instance
// pointer"). Callers must heap-allocate an Instance once (the allocator
// façade does this) and never copy it by value thereafter.
type Instance struct {
	Module *Module

	// Memories and Tables are this instance's defined (not imported)
	// objects, indexed by DefinedMemoryIndex / DefinedTableIndex.
	Memories []*MemoryInstance
	Tables   []*TableInstance
	// Globals holds this instance's defined globals only; imported
	// globals are reached through ImportedGlobals.
	Globals []*GlobalInstance

	ImportedFunctions []ImportedFunction
	ImportedTables    []*TableInstance
	ImportedMemories  []*MemoryInstance
	ImportedGlobals   []*GlobalInstance

	// TypeIDs holds one canonical FunctionTypeID per module type,
	// InvalidFunctionTypeID for non-function types (spec §3 invariant
	// "Signature completeness").
	TypeIDs []FunctionTypeID

	// Anyfuncs holds one entry per function in the combined (imports
	// first) function index space.
	Anyfuncs []Anyfunc

	DroppedData, DroppedElem Bitset

	// HostState is an opaque, type-erased slot for whatever the embedder
	// wants to hang off an instance; this package never reads it.
	HostState interface{}

	// VMContext is the trailing byte image read by compiled code at fixed
	// offsets (spec §3 "VMContext"). It is populated by the VMContext
	// initializer (internal/vmcontext) and never read or written
	// directly by this package after that.
	VMContext []byte
}

// Memory returns the idx-th memory in the combined index space, imported
// or defined.
func (i *Instance) Memory(idx Index) *MemoryInstance {
	if idx < Index(len(i.ImportedMemories)) {
		return i.ImportedMemories[idx]
	}
	return i.Memories[idx-Index(len(i.ImportedMemories))]
}

// Table returns the idx-th table in the combined index space, imported or
// defined.
func (i *Instance) Table(idx Index) *TableInstance {
	if idx < Index(len(i.ImportedTables)) {
		return i.ImportedTables[idx]
	}
	return i.Tables[idx-Index(len(i.ImportedTables))]
}

// Global returns the idx-th global in the combined index space, imported
// or defined.
func (i *Instance) Global(idx Index) *GlobalInstance {
	if idx < Index(len(i.ImportedGlobals)) {
		return i.ImportedGlobals[idx]
	}
	return i.Globals[idx-Index(len(i.ImportedGlobals))]
}

// AnyfuncRef returns the table/global reference value for function funcIdx
// in the combined (imports-first) function index space: the address of its
// entry in Anyfuncs, exactly what a RefFunc initializer or an element
// segment writing that function index stores (spec §3 item 7, §4.6
// "RefFunc(f)").
func (i *Instance) AnyfuncRef(funcIdx Index) uintptr {
	return refOf(i.Anyfuncs, funcIdx)
}

// LookupFunction resolves the Anyfunc stored at tableOffset in table,
// checking that it is non-null and its canonical type matches typeID. It
// panics on any violation, matching the trap semantics of the
// call_indirect instruction: a host-visible error here would imply a
// codegen or validation bug upstream, not a recoverable condition this
// package can report through the §7 taxonomy.
func (i *Instance) LookupFunction(table *TableInstance, typeID FunctionTypeID, tableOffset Index) Anyfunc {
	if uint64(tableOffset) >= uint64(len(table.References)) {
		panic("out of bounds table access")
	}
	ref := table.References[tableOffset]
	if ref == 0 {
		panic("uninitialized element")
	}
	fn := anyfuncFromRef(ref)
	if fn.TypeID != typeID {
		panic("indirect call type mismatch")
	}
	return fn
}

// anyfuncFromRef reinterprets a table reference as the Anyfunc it points
// to. In this package, table references are addresses of entries inside
// some instance's Anyfuncs slice; the conversion the allocator performs
// when populating the anyfunc table is required to uphold that.
func anyfuncFromRef(ref uintptr) Anyfunc {
	return *(*Anyfunc)(ptrOf(ref))
}
