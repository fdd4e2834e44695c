package seginit

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wazerocore/vmcore/internal/vmerr"
	"github.com/wazerocore/vmcore/internal/wasm"
)

func newInstance(mem *wasm.MemoryInstance, table *wasm.TableInstance, m *wasm.Module) *wasm.Instance {
	return &wasm.Instance{
		Module:   m,
		Memories: []*wasm.MemoryInstance{mem},
		Tables:   []*wasm.TableInstance{table},
		Anyfuncs: []wasm.Anyfunc{{Func: 0x1000, TypeID: 1}, {Func: 0x2000, TypeID: 2}},
	}
}

func TestInitialize_SegmentedMemory_InBounds(t *testing.T) {
	mem := &wasm.MemoryInstance{Buffer: make([]byte, 16)}
	m := &wasm.Module{DataSection: []wasm.DataSegment{{Offset: 4, Data: []byte{1, 2, 3}}}}
	inst := newInstance(mem, wasm.NewTableInstance(wasm.TableType{}), m)

	require.NoError(t, Initialize(inst, false))
	require.Equal(t, []byte{1, 2, 3}, mem.Buffer[4:7])
}

func TestInitialize_SegmentedMemory_OutOfBounds_NoBulkMemory_NoMutation(t *testing.T) {
	mem := &wasm.MemoryInstance{Buffer: make([]byte, 4)}
	m := &wasm.Module{DataSection: []wasm.DataSegment{{Offset: 2, Data: []byte{1, 2, 3}}}}
	inst := newInstance(mem, wasm.NewTableInstance(wasm.TableType{}), m)

	err := Initialize(inst, false)
	require.Error(t, err)
	var linkErr *vmerr.LinkError
	require.ErrorAs(t, err, &linkErr)
	require.Equal(t, []byte{0, 0, 0, 0}, mem.Buffer)
}

func TestInitialize_SegmentedMemory_OutOfBounds_BulkMemory_NoPartialWrite(t *testing.T) {
	mem := &wasm.MemoryInstance{Buffer: make([]byte, 4)}
	m := &wasm.Module{DataSection: []wasm.DataSegment{{Offset: 2, Data: []byte{1, 2, 3}}}}
	inst := newInstance(mem, wasm.NewTableInstance(wasm.TableType{}), m)

	err := Initialize(inst, true)
	require.Error(t, err)
	var trapErr *vmerr.TrapError
	require.ErrorAs(t, err, &trapErr)
	require.Equal(t, vmerr.TrapCodeHeapOutOfBounds, trapErr.Code)
	// The whole 3-byte segment does not fit; none of its bytes are written,
	// even the in-bounds prefix (segment-granularity observable prefix).
	require.Equal(t, []byte{0, 0, 0, 0}, mem.Buffer)
}

func TestInitialize_SegmentedMemory_BulkMemory_ObservablePrefix_PriorSegmentsKept(t *testing.T) {
	// Scenario S4: two data segments on a 2-page memory; the first fits and
	// must remain written, the second does not fit and traps leaving the
	// memory it targets unchanged.
	mem := &wasm.MemoryInstance{Buffer: make([]byte, wasm.MemoryPageSize*2)}
	m := &wasm.Module{
		DataSection: []wasm.DataSegment{
			{Offset: 0, Data: []byte{0xAA, 0xAA, 0xAA, 0xAA}},
			{Offset: 131070, Data: []byte{0xBB, 0xBB, 0xBB, 0xBB}},
		},
	}
	inst := newInstance(mem, wasm.NewTableInstance(wasm.TableType{}), m)

	err := Initialize(inst, true)
	require.Error(t, err)
	var trapErr *vmerr.TrapError
	require.ErrorAs(t, err, &trapErr)
	require.Equal(t, vmerr.TrapCodeHeapOutOfBounds, trapErr.Code)
	require.Equal(t, []byte{0xAA, 0xAA, 0xAA, 0xAA}, mem.Buffer[0:4])
	require.Equal(t, []byte{0, 0}, mem.Buffer[131070:])
}

func TestInitialize_Table_GlobalRelativeBase(t *testing.T) {
	table := wasm.NewTableInstance(wasm.TableType{Min: 4})
	m := &wasm.Module{
		ElementSection: []wasm.TableInitializer{
			{Base: ptrIdx(0), Offset: 1, FuncIndexes: []*wasm.Index{ptrIdx(0), nil}},
		},
	}
	inst := newInstance(&wasm.MemoryInstance{Buffer: make([]byte, 0)}, table, m)
	inst.Globals = []*wasm.GlobalInstance{{Type: wasm.GlobalType{ValType: 0x7f}, Raw: 1}}

	require.NoError(t, Initialize(inst, false))
	require.NotEqual(t, uintptr(0), table.References[2])
	require.Equal(t, uintptr(0), table.References[3])
}

func TestInitialize_Table_BulkMemory_NoPartialWrite(t *testing.T) {
	table := wasm.NewTableInstance(wasm.TableType{Min: 2})
	m := &wasm.Module{
		ElementSection: []wasm.TableInitializer{
			{Offset: 0, FuncIndexes: []*wasm.Index{ptrIdx(0), ptrIdx(1), ptrIdx(0)}},
		},
	}
	inst := newInstance(&wasm.MemoryInstance{Buffer: make([]byte, 0)}, table, m)

	err := Initialize(inst, true)
	require.Error(t, err)
	var trapErr *vmerr.TrapError
	require.ErrorAs(t, err, &trapErr)
	require.Equal(t, vmerr.TrapCodeTableOutOfBounds, trapErr.Code)
	// The 3-slot segment does not fit in a 2-slot table; none of its slots
	// are written, even the in-bounds prefix.
	require.Equal(t, uintptr(0), table.References[0])
	require.Equal(t, uintptr(0), table.References[1])
}

func TestInitialize_Table_OutOfBounds(t *testing.T) {
	table := wasm.NewTableInstance(wasm.TableType{Min: 1})
	m := &wasm.Module{
		ElementSection: []wasm.TableInitializer{
			{Offset: 0, FuncIndexes: []*wasm.Index{ptrIdx(0), ptrIdx(1)}},
		},
	}
	inst := newInstance(&wasm.MemoryInstance{Buffer: make([]byte, 0)}, table, m)

	err := Initialize(inst, false)
	require.Error(t, err)
	var linkErr *vmerr.LinkError
	require.ErrorAs(t, err, &linkErr)
}

func TestInitialize_PagedMemory(t *testing.T) {
	mem := &wasm.MemoryInstance{Buffer: make([]byte, wasm.MemoryPageSize*2)}
	page := make([]byte, wasm.MemoryPageSize)
	page[0] = 0xaa
	m := &wasm.Module{
		MemoryInit: &wasm.PrecomputedMemoryInit{
			Pages: map[wasm.Index]map[uint32][]byte{0: {1: page}},
		},
	}
	inst := newInstance(mem, wasm.NewTableInstance(wasm.TableType{}), m)

	require.NoError(t, Initialize(inst, false))
	require.Equal(t, byte(0xaa), mem.Buffer[wasm.MemoryPageSize])
}

func TestInitialize_PagedMemory_OutOfBoundsFlag(t *testing.T) {
	mem := &wasm.MemoryInstance{Buffer: make([]byte, wasm.MemoryPageSize)}
	m := &wasm.Module{
		MemoryInit: &wasm.PrecomputedMemoryInit{
			Pages:       map[wasm.Index]map[uint32][]byte{},
			OutOfBounds: true,
		},
	}
	inst := newInstance(mem, wasm.NewTableInstance(wasm.TableType{}), m)

	err := Initialize(inst, false)
	require.Error(t, err)
	var trapErr *vmerr.TrapError
	require.ErrorAs(t, err, &trapErr)
	require.Equal(t, vmerr.TrapCodeHeapOutOfBounds, trapErr.Code)
}

func TestResolveBase_32Bit_OverflowsWithoutU64Wrap(t *testing.T) {
	// Scenario S5: offset=0xFFFF_FFF0 plus an imported global of 0x20 sums to
	// 0x1_0000_0010, which does not wrap a u64 addition but does exceed
	// u32::MAX for a 32-bit memory's base.
	mem := &wasm.MemoryInstance{Buffer: make([]byte, 16)}
	m := &wasm.Module{
		DataSection: []wasm.DataSegment{
			{Base: ptrIdx(0), Offset: 0xFFFF_FFF0, Data: []byte{1}},
		},
	}
	inst := newInstance(mem, wasm.NewTableInstance(wasm.TableType{}), m)
	inst.Globals = []*wasm.GlobalInstance{{Type: wasm.GlobalType{ValType: 0x7f}, Raw: 0x20}}

	err := Initialize(inst, false)
	require.Error(t, err)
	var linkErr *vmerr.LinkError
	require.ErrorAs(t, err, &linkErr)
	require.Equal(t, "link: data segment global base overflows", linkErr.Error())
}

func ptrIdx(i wasm.Index) *wasm.Index { return &i }
