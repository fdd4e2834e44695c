package callabi

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wazerocore/vmcore/api"
	"github.com/wazerocore/vmcore/internal/wasm"
)

func TestMapValueType(t *testing.T) {
	require.Equal(t, ArgInt32, MapValueType(api.ValueTypeI32))
	require.Equal(t, ArgInt64, MapValueType(api.ValueTypeI64))
	require.Equal(t, ArgFloat32, MapValueType(api.ValueTypeF32))
	require.Equal(t, ArgFloat64, MapValueType(api.ValueTypeF64))
	require.Equal(t, ArgVector128, MapValueType(api.ValueTypeV128))
	require.Equal(t, ArgReference, MapValueType(api.ValueTypeFuncref))
	require.Equal(t, ArgReference, MapValueType(api.ValueTypeExternref))
	require.Panics(t, func() { MapValueType(0x00) })
}

func TestSynthesize_FastVsDefault(t *testing.T) {
	ft := &wasm.FunctionType{Params: []byte{api.ValueTypeI32}, Results: []byte{api.ValueTypeI64}}

	// Defined, not possibly exported: Fast.
	sig := Synthesize(0, false, false, ft)
	require.Equal(t, Fast, sig.Convention)
	require.Equal(t, []ArgKind{ArgInt32}, sig.Params)
	require.Equal(t, []ArgKind{ArgInt64}, sig.Results)

	// Defined, possibly exported (escape set): Default.
	sig = Synthesize(0, false, true, ft)
	require.Equal(t, Default, sig.Convention)

	// Imported: Default, regardless of escape set.
	sig = Synthesize(0, true, false, ft)
	require.Equal(t, Default, sig.Convention)
}

func TestSynthesizeIndirect_AlwaysDefault(t *testing.T) {
	ft := &wasm.FunctionType{}
	sig := SynthesizeIndirect(ft)
	require.Equal(t, Default, sig.Convention)
}

func TestHostDefaultVariant_Deterministic(t *testing.T) {
	// The variant choice is a pure function of GOOS/GOARCH; calling it
	// twice must agree.
	require.Equal(t, HostDefaultVariant(), HostDefaultVariant())
}

func TestConvention_String(t *testing.T) {
	require.Equal(t, "fast", Fast.String())
	require.Equal(t, "default", Default.String())
}

func TestDefaultVariant_String(t *testing.T) {
	require.Equal(t, "systemv", SystemV.String())
	require.Equal(t, "windows-fastcall", WindowsFastcall.String())
	require.Equal(t, "apple-aarch64", AppleAArch64.String())
}
