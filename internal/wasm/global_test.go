package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGlobalInstance_GetSet(t *testing.T) {
	g := &GlobalInstance{Type: GlobalType{ValType: 0x7f, Mutable: true}}
	require.Equal(t, uint64(0), g.Get())
	g.Set(42)
	require.Equal(t, uint64(42), g.Get())
}
