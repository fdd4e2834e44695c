// Package api includes the value vocabulary shared by every in-scope
// component: the host-visible encoding of Wasm value types, plus handle
// interfaces (Function, Memory, Global) for post-instantiation access. No
// type in this module implements those interfaces.
package api

import (
	"context"
	"fmt"
	"math"
)

// ValueType describes a numeric or reference type in the Wasm value space.
// Function parameters, results, and globals are all typed this way.
//
// The encoding matches the Wasm binary format's valtype byte, which lets
// the rest of this module pass types through without re-encoding them.
type ValueType = byte

const (
	// ValueTypeI32 is a 32-bit integer.
	ValueTypeI32 ValueType = 0x7f
	// ValueTypeI64 is a 64-bit integer.
	ValueTypeI64 ValueType = 0x7e
	// ValueTypeF32 is a 32-bit IEEE-754 float.
	ValueTypeF32 ValueType = 0x7d
	// ValueTypeF64 is a 64-bit IEEE-754 float.
	ValueTypeF64 ValueType = 0x7c
	// ValueTypeV128 is a 128-bit vector.
	ValueTypeV128 ValueType = 0x7b
	// ValueTypeFuncref is a pointer-sized function reference. Its zero value
	// is the null function reference.
	ValueTypeFuncref ValueType = 0x70
	// ValueTypeExternref is a pointer-sized opaque host reference. Its zero
	// value is the null external reference.
	ValueTypeExternref ValueType = 0x6f
)

// ValueTypeName returns the Wasm text format name of t, or "unknown".
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	}
	return "unknown"
}

// IsReference returns true if t is funcref or externref, i.e. its value is
// a pointer-sized reference rather than a numeric value.
func IsReference(t ValueType) bool {
	return t == ValueTypeFuncref || t == ValueTypeExternref
}

// EncodeI32 encodes input as a ValueTypeI32.
func EncodeI32(input int32) uint64 { return uint64(uint32(input)) }

// EncodeI64 encodes input as a ValueTypeI64.
func EncodeI64(input int64) uint64 { return uint64(input) }

// EncodeF32 encodes input as a ValueTypeF32. See DecodeF32.
func EncodeF32(input float32) uint64 { return uint64(math.Float32bits(input)) }

// DecodeF32 decodes input as a ValueTypeF32. See EncodeF32.
func DecodeF32(input uint64) float32 { return math.Float32frombits(uint32(input)) }

// EncodeF64 encodes input as a ValueTypeF64. See DecodeF64.
func EncodeF64(input float64) uint64 { return math.Float64bits(input) }

// DecodeF64 decodes input as a ValueTypeF64. See EncodeF64.
func DecodeF64(input uint64) float64 { return math.Float64frombits(input) }

// Function is a single Wasm function reachable after instantiation, either
// defined in the instance or imported into it.
type Function interface {
	// Definition describes the function's module-relative identity and
	// signature.
	Definition() FunctionDefinition

	// Call invokes the function. params must match ParamTypes in length;
	// the returned slice matches ResultTypes in length.
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// FunctionDefinition is the static, signature-level description of a
// function, independent of any particular call.
type FunctionDefinition interface {
	fmt.Stringer

	// ModuleName is the name of the module defining the function.
	ModuleName() string
	// Index is the function's position in the module's function index
	// space, imports first.
	Index() uint32
	// ParamTypes are the function's parameter types.
	ParamTypes() []ValueType
	// ResultTypes are the function's result types.
	ResultTypes() []ValueType
}

// Memory allows restricted access to one memory's bytes.
type Memory interface {
	// Size returns the current size in bytes.
	Size() uint32
	// Grow increases the memory by deltaPages (64KiB each), returning the
	// previous size in pages and whether the grow succeeded.
	Grow(deltaPages uint32) (previousPages uint32, ok bool)
	// Read returns a byteCount-length view of the buffer at offset, or false
	// if the range is out of bounds. The view aliases live memory.
	Read(offset, byteCount uint32) ([]byte, bool)
}

// Global is a single mutable or immutable Wasm global.
type Global interface {
	// Type is the global's value type.
	Type() ValueType
	// Get returns the raw 64-bit storage of the current value.
	Get() uint64
}

// MutableGlobal is a Global that can be updated.
type MutableGlobal interface {
	Global
	// Set updates the raw 64-bit storage of the value.
	Set(v uint64)
}
