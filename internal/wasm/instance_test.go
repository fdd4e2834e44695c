package wasm

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestBitset_Monotonic(t *testing.T) {
	b := NewBitset(70)
	require.False(t, b.IsSet(0))
	require.False(t, b.IsSet(69))
	b.Set(0)
	b.Set(69)
	require.True(t, b.IsSet(0))
	require.True(t, b.IsSet(69))
	require.False(t, b.IsSet(1))
}

func TestInstance_DefinedAndImportedLookup(t *testing.T) {
	importedMem := &MemoryInstance{Buffer: make([]byte, 8)}
	definedMem := &MemoryInstance{Buffer: make([]byte, 16)}
	inst := &Instance{
		ImportedMemories: []*MemoryInstance{importedMem},
		Memories:         []*MemoryInstance{definedMem},
	}
	require.Same(t, importedMem, inst.Memory(0))
	require.Same(t, definedMem, inst.Memory(1))
}

func TestInstance_LookupFunction(t *testing.T) {
	inst := &Instance{
		Anyfuncs: []Anyfunc{{Func: 0x1000, TypeID: 5, VMContext: 0x2000}},
	}
	ref := uintptr(unsafe.Pointer(&inst.Anyfuncs[0]))
	table := &TableInstance{References: []uintptr{ref}}

	fn := inst.LookupFunction(table, 5, 0)
	require.Equal(t, inst.Anyfuncs[0], fn)

	require.Panics(t, func() { inst.LookupFunction(table, 6, 0) })
	require.Panics(t, func() { inst.LookupFunction(table, 5, 1) })

	nullTable := &TableInstance{References: []uintptr{0}}
	require.Panics(t, func() { inst.LookupFunction(nullTable, 5, 0) })
}

func TestAnyfunc_IsNull(t *testing.T) {
	require.True(t, Anyfunc{}.IsNull())
	require.False(t, Anyfunc{Func: 1}.IsNull())
}
