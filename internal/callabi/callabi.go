// Package callabi synthesizes the calling-convention descriptor for each
// Wasm function a module declares (spec §4.1): the Wasm-to-host type
// mapping of its parameters and results, and the Fast-vs-Default convention choice that
// depends on whether a function's address can ever leak outside its module.
package callabi

import (
	"runtime"

	"github.com/wazerocore/vmcore/api"
	"github.com/wazerocore/vmcore/internal/wasm"
)

// Convention names the calling convention chosen for one function.
type Convention int

const (
	// Fast is the internal-only, implementation-defined convention used
	// for functions that are defined in this module and never possibly
	// exported. It is free to be register-heavy because no code outside
	// the module's own compiled output ever calls through it directly.
	Fast Convention = iota
	// Default is the convention used for anything whose address can
	// leak outside the module: imports, exports, and functions reachable
	// through ref.func in globals/elements. Its exact shape is target
	// dependent (DefaultVariant below).
	Default
)

func (c Convention) String() string {
	if c == Fast {
		return "fast"
	}
	return "default"
}

// DefaultVariant names the target-specific flavor of the Default
// convention. Indirect calls always target this, never Fast, since the
// callee may be exported.
type DefaultVariant int

const (
	SystemV DefaultVariant = iota
	WindowsFastcall
	AppleAArch64
)

func (v DefaultVariant) String() string {
	switch v {
	case WindowsFastcall:
		return "windows-fastcall"
	case AppleAArch64:
		return "apple-aarch64"
	default:
		return "systemv"
	}
}

// HostDefaultVariant selects the Default convention variant for the
// process's own OS/architecture, a runtime.GOARCH (and here also
// runtime.GOOS) switch used to pick a backend at process startup rather
// than at compile time per function.
func HostDefaultVariant() DefaultVariant {
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return AppleAArch64
	}
	if runtime.GOOS == "windows" {
		return WindowsFastcall
	}
	return SystemV
}

// ArgKind is the host-level representation a Wasm value type is passed as.
type ArgKind int

const (
	ArgInt32 ArgKind = iota
	ArgInt64
	ArgFloat32
	ArgFloat64
	ArgVector128
	ArgReference
)

// MapValueType implements spec §4.1's type mapping. It panics on a value
// type this core does not recognize; callers validate types before this
// point (there is no Wasm encoding for an unmapped ValueType).
func MapValueType(t byte) ArgKind {
	switch t {
	case api.ValueTypeI32:
		return ArgInt32
	case api.ValueTypeI64:
		return ArgInt64
	case api.ValueTypeF32:
		return ArgFloat32
	case api.ValueTypeF64:
		return ArgFloat64
	case api.ValueTypeV128:
		return ArgVector128
	case api.ValueTypeFuncref, api.ValueTypeExternref:
		return ArgReference
	default:
		panic("callabi: unrecognized value type")
	}
}

// Signature is the synthesized descriptor for one function: the mapped Wasm
// parameter and result kinds. Params lists only the Wasm-typed parameters;
// the (callee-VMContext, caller-VMContext) pointer pair is not represented
// in it.
type Signature struct {
	Convention     Convention
	DefaultVariant DefaultVariant // meaningful only when Convention == Default
	Params         []ArgKind
	Results        []ArgKind
}

// Synthesize produces the calling-convention descriptor for the function at
// funcIdx in m, whose declared type is t. possiblyExported reports whether
// funcIdx is in the module's escape set (wasm.Module.IsPossiblyExported);
// it is threaded in explicitly rather than recomputed so callers that
// already have the escape set (e.g. after internal/alloc's Allocate has
// filled wasm.Module.EscapeSet once per module) don't pay to rebuild it per
// function.
func Synthesize(funcIdx wasm.Index, isImported bool, possiblyExported bool, t *wasm.FunctionType) Signature {
	sig := Signature{
		Params:  mapAll(t.Params),
		Results: mapAll(t.Results),
	}
	if !isImported && !possiblyExported {
		sig.Convention = Fast
		return sig
	}
	sig.Convention = Default
	sig.DefaultVariant = HostDefaultVariant()
	return sig
}

// SynthesizeIndirect produces the descriptor used at an indirect call site:
// always Default, since the callee may turn out to be exported (spec §4.1,
// "Indirect calls always target the Default convention").
func SynthesizeIndirect(t *wasm.FunctionType) Signature {
	return Signature{
		Convention:     Default,
		DefaultVariant: HostDefaultVariant(),
		Params:         mapAll(t.Params),
		Results:        mapAll(t.Results),
	}
}

func mapAll(types []byte) []ArgKind {
	if len(types) == 0 {
		return nil
	}
	kinds := make([]ArgKind, len(types))
	for i, t := range types {
		kinds[i] = MapValueType(t)
	}
	return kinds
}
