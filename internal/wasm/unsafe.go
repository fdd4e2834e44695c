package wasm

import "unsafe"

// ptrOf converts a raw address back to an unsafe.Pointer. Centralizing
// this one conversion keeps `go vet`'s unsafe-pointer checks pointed at a
// single, well-understood line rather than scattered across the package.
func ptrOf(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr) //nolint:govet // addr always originates from unsafe.Pointer(&anyfuncEntry).
}

// refOf is ptrOf's inverse: the address of an Anyfunc entry, suitable for
// storing as a table reference (TableInstance.References) or a funcref
// global's raw bits. i must be a valid index into the Anyfuncs slice.
func refOf(anyfuncs []Anyfunc, i Index) uintptr {
	return uintptr(unsafe.Pointer(&anyfuncs[i]))
}
