package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazerocore/vmcore/api"
	"github.com/wazerocore/vmcore/internal/interrupt"
	"github.com/wazerocore/vmcore/internal/provision"
	"github.com/wazerocore/vmcore/internal/vmerr"
	"github.com/wazerocore/vmcore/internal/wasm"
)

func simpleModule() *wasm.Module {
	return &wasm.Module{
		TypeSection:     []wasm.FunctionType{{}},
		FunctionSection: []wasm.Index{0},
		TableSection:    []wasm.TableType{{Min: 4, RefType: api.ValueTypeFuncref}},
		MemorySection:   []wasm.MemoryType{{Min: 1}},
		DataSection:     []wasm.DataSegment{{Offset: 0, Data: []byte{1, 2, 3}}},
		ElementSection:  []wasm.TableInitializer{{Offset: 0, FuncIndexes: []*wasm.Index{idx(0)}}},
	}
}

func idx(i wasm.Index) *wasm.Index { return &i }

func TestAllocate_Initialize_Deallocate(t *testing.T) {
	a := NewOnDemandAllocator()
	m := simpleModule()

	h, err := a.Allocate(AllocationRequest{
		Module:          m,
		Interrupts:      interrupt.New(),
		Builtins:        make([]uintptr, 6),
		DefinedFuncPtrs: []uintptr{0x1000},
	})
	require.NoError(t, err)
	require.NotNil(t, h.Instance)
	require.NotEmpty(t, h.Instance.VMContext)
	require.Len(t, h.Instance.Memories, 1)
	require.Len(t, h.Instance.Tables, 1)

	require.NoError(t, a.Initialize(h, false))
	require.Equal(t, []byte{1, 2, 3}, h.Instance.Memories[0].Buffer[:3])
	require.NotEqual(t, uintptr(0), h.Instance.Tables[0].References[0])

	require.NoError(t, a.Deallocate(h))
	require.Nil(t, h.Instance)
}

func TestAllocate_NilModule(t *testing.T) {
	a := NewOnDemandAllocator()
	_, err := a.Allocate(AllocationRequest{Interrupts: interrupt.New(), Builtins: make([]uintptr, 6)})
	require.Error(t, err)
	var linkErr *vmerr.LinkError
	require.ErrorAs(t, err, &linkErr)
}

type vetoLimiter struct{}

func (vetoLimiter) LimitNewMemory(wasm.MemoryType) error { return errVeto }
func (vetoLimiter) LimitNewTable(wasm.TableType) error   { return nil }

var errVeto = &vetoError{}

type vetoError struct{}

func (*vetoError) Error() string { return "vetoed" }

func TestAllocate_ResourceLimiterVeto_NoLeak(t *testing.T) {
	a := NewOnDemandAllocator(WithResourceLimiter(vetoLimiter{}))
	_, err := a.Allocate(AllocationRequest{
		Module:     simpleModule(),
		Interrupts: interrupt.New(),
		Builtins:   make([]uintptr, 6),
	})
	require.Error(t, err)
	var resErr *vmerr.ResourceError
	require.ErrorAs(t, err, &resErr)
}

func TestAllocate_WithMmapMemoryCreator_DeallocateReleases(t *testing.T) {
	a := NewOnDemandAllocator(WithMemoryCreator(provision.NewMmapMemoryCreator()))
	m := simpleModule()

	h, err := a.Allocate(AllocationRequest{
		Module:          m,
		Interrupts:      interrupt.New(),
		Builtins:        make([]uintptr, 6),
		DefinedFuncPtrs: []uintptr{0x1000},
	})
	require.NoError(t, err)
	require.NoError(t, a.Initialize(h, false))
	require.NoError(t, a.Deallocate(h))
}

func TestAllocator_ValidateAndAdjustTunables_AreNoOps(t *testing.T) {
	a := NewOnDemandAllocator()
	require.NoError(t, a.Validate(simpleModule()))
	tn := NewTunables()
	a.AdjustTunables(&tn)
}

func TestAllocateFiberStack_NotSupportedByDefault(t *testing.T) {
	a := NewOnDemandAllocator()
	_, err := a.AllocateFiberStack()
	require.ErrorIs(t, err, ErrFiberStackNotSupported)
}
