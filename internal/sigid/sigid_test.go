package sigid

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wazerocore/vmcore/internal/wasm"
)

func TestRegistry_CanonicalID_SameSignatureSharesID(t *testing.T) {
	r := NewRegistry()
	a := &wasm.FunctionType{Params: []byte{0x7f}, Results: []byte{0x7e}}
	b := &wasm.FunctionType{Params: []byte{0x7f}, Results: []byte{0x7e}}
	c := &wasm.FunctionType{Params: []byte{0x7e}, Results: []byte{0x7e}}

	idA := r.CanonicalID(a)
	idB := r.CanonicalID(b)
	idC := r.CanonicalID(c)

	require.Equal(t, idA, idB)
	require.NotEqual(t, idA, idC)
	require.NotEqual(t, wasm.InvalidFunctionTypeID, idA)
}

func TestRegistry_TypeIDsForModule(t *testing.T) {
	r := NewRegistry()
	m := &wasm.Module{TypeSection: []wasm.FunctionType{
		{Params: []byte{0x7f}},
		{Results: []byte{0x7e}},
	}}
	ids := r.TypeIDsForModule(m)
	require.Len(t, ids, 2)
	require.NotEqual(t, ids[0], ids[1])

	// A second module reusing the same signatures gets the same ids.
	m2 := &wasm.Module{TypeSection: []wasm.FunctionType{{Results: []byte{0x7e}}}}
	require.Equal(t, ids[1], r.TypeIDsForModule(m2)[0])
}

func TestRegistry_ConcurrentSafe(t *testing.T) {
	r := NewRegistry()
	done := make(chan wasm.FunctionTypeID, 16)
	t1 := &wasm.FunctionType{Params: []byte{0x7f, 0x7f}}
	for i := 0; i < 16; i++ {
		go func() { done <- r.CanonicalID(t1) }()
	}
	first := <-done
	for i := 1; i < 16; i++ {
		require.Equal(t, first, <-done)
	}
}
