package provision

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wazerocore/vmcore/internal/vmerr"
	"github.com/wazerocore/vmcore/internal/wasm"
)

func TestCreateMemories_Default(t *testing.T) {
	m := &wasm.Module{MemorySection: []wasm.MemoryType{{Min: 2}}}
	mems, err := CreateMemories(m, nil, nil)
	require.NoError(t, err)
	require.Len(t, mems, 1)
	require.Equal(t, wasm.MemoryPagesToBytesNum(2), uint64(len(mems[0].Buffer)))
}

func TestCreateMemories_Empty(t *testing.T) {
	mems, err := CreateMemories(&wasm.Module{}, nil, nil)
	require.NoError(t, err)
	require.Len(t, mems, 0)
}

type vetoLimiter struct{}

func (vetoLimiter) LimitNewMemory(wasm.MemoryType) error { return errors.New("no more memories") }
func (vetoLimiter) LimitNewTable(wasm.TableType) error   { return errors.New("no more tables") }

func TestCreateMemories_LimiterVetoes(t *testing.T) {
	m := &wasm.Module{MemorySection: []wasm.MemoryType{{Min: 1}}}
	_, err := CreateMemories(m, nil, vetoLimiter{})
	require.Error(t, err)
	var resErr *vmerr.ResourceError
	require.ErrorAs(t, err, &resErr)
}

func TestCreateTables_Default(t *testing.T) {
	max := uint32(5)
	m := &wasm.Module{TableSection: []wasm.TableType{{Min: 2, Max: max, HasMax: true}}}
	tables, err := CreateTables(m, nil)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	require.Equal(t, uint32(2), tables[0].Len())
}

func TestCreateTables_LimiterVetoes(t *testing.T) {
	m := &wasm.Module{TableSection: []wasm.TableType{{Min: 1}}}
	_, err := CreateTables(m, vetoLimiter{})
	require.Error(t, err)
}
