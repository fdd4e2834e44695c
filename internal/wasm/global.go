package wasm

// GlobalInstance is one global's live storage. Raw holds the numeric bit
// pattern for a value type, or a pointer-sized reference for funcref /
// externref, exactly as it is mirrored into the VMContext trailer.
type GlobalInstance struct {
	Type GlobalType
	Raw  uint64
	// RawHi holds the high 64 bits for a v128 value; zero for every other
	// type.
	RawHi uint64
}

// Get returns the current raw value.
func (g *GlobalInstance) Get() uint64 { return g.Raw }

// Set updates the raw value. Callers are responsible for only calling this
// on a global declared Mutable.
func (g *GlobalInstance) Set(v uint64) { g.Raw = v }
