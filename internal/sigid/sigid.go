// Package sigid maps per-instance function type indices to process-wide
// canonical identifiers, so that an indirect call can check a callee's
// type in O(1) regardless of which module declared the matching type
// (spec §2 "Signature mapper", §3 invariant "Signature completeness").
//
// This core only reads canonical ids; the store above it is the thing
// responsible for agreeing them across instances that can interoperate.
// This package provides that store-facing allocation service.
package sigid

import (
	"sync"

	"github.com/wazerocore/vmcore/internal/wasm"
)

// Registry assigns and remembers canonical FunctionTypeIDs, keyed by
// signature equality, not by identity: two modules that declare the same
// (params, results) pair receive the same canonical id so that an
// indirect call from one into the other's table passes its type check.
type Registry struct {
	mu    sync.Mutex
	byKey map[string]wasm.FunctionTypeID
	next  wasm.FunctionTypeID
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]wasm.FunctionTypeID)}
}

// CanonicalID returns the process-wide id for t, assigning a new one the
// first time an equal signature is seen. It never returns
// wasm.InvalidFunctionTypeID.
func (r *Registry) CanonicalID(t *wasm.FunctionType) wasm.FunctionTypeID {
	key := signatureKey(t)

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byKey[key]; ok {
		return id
	}
	id := r.next
	if id == wasm.InvalidFunctionTypeID {
		// The 32-bit space is exhausted; this is a process-lifetime
		// invariant violation upstream (spec §9 open question), not a
		// recoverable error this registry can signal through a normal
		// return.
		panic("sigid: canonical id space exhausted")
	}
	r.byKey[key] = id
	r.next++
	return id
}

// TypeIDsForModule computes the per-module-type signature-identifier array
// (spec §3 item 2, §4.5 step 2): one canonical id per entry in
// m.TypeSection, in order. Only function types are possible in
// m.TypeSection here (this data model has no other kind), so this never
// writes wasm.InvalidFunctionTypeID; non-function module entities (e.g. an
// import whose type index is reused conceptually for tables/memories/
// globals in other representations) are simply not represented in
// TypeSection and so do not appear in the returned slice.
func (r *Registry) TypeIDsForModule(m *wasm.Module) []wasm.FunctionTypeID {
	ids := make([]wasm.FunctionTypeID, len(m.TypeSection))
	for i := range m.TypeSection {
		ids[i] = r.CanonicalID(&m.TypeSection[i])
	}
	return ids
}

func signatureKey(t *wasm.FunctionType) string {
	// A short, unambiguous encoding: params, a separator byte that cannot
	// appear in a ValueType, then results. ValueType bytes are all in
	// 0x6f-0x7f, so 0xff is a safe separator.
	buf := make([]byte, 0, len(t.Params)+len(t.Results)+1)
	buf = append(buf, t.Params...)
	buf = append(buf, 0xff)
	buf = append(buf, t.Results...)
	return string(buf)
}
