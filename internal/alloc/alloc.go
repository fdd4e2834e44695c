// Package alloc implements the allocator façade (spec §4.7): the single
// entry point that turns a compiled Module plus resolved Imports into a
// ready-to-run Instance, then tears it down again. It wires together
// internal/provision (memory/table creation), internal/vmoffsets (layout),
// internal/vmcontext (VMContext + global population) and internal/seginit
// (segment application) into the allocate -> initialize -> deallocate
// pipeline spec §2's data-flow diagram describes, and is the on-demand
// backend named in spec §4.7 ("holds only an optional custom memory
// creator and a stack size; it owns no instance pools").
package alloc

import (
	"errors"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/wazerocore/vmcore/internal/interrupt"
	"github.com/wazerocore/vmcore/internal/provision"
	"github.com/wazerocore/vmcore/internal/seginit"
	"github.com/wazerocore/vmcore/internal/sigid"
	"github.com/wazerocore/vmcore/internal/vmcontext"
	"github.com/wazerocore/vmcore/internal/vmerr"
	"github.com/wazerocore/vmcore/internal/vmoffsets"
	"github.com/wazerocore/vmcore/internal/wasm"
)

// ErrFiberStackNotSupported is returned by AllocateFiberStack when the
// allocator's Tunables configure a zero stack size (spec §4.7: "Return a
// stack of configured size or NotSupported when size is zero"). It is
// deliberately not part of the vmerr four-kind taxonomy: it reports a
// capability the allocator was never configured to provide, not a failure
// of an instantiation operation.
var ErrFiberStackNotSupported = errors.New("alloc: fiber stacks not configured (FiberStackSize is zero)")

// AllocationRequest bundles everything Allocate needs beyond the module
// itself: resolved imports (spec §6 "Imports input"), the shared
// VMInterrupts word for this store, the builtins table and the compiled
// addresses for the module's defined functions (both produced by the
// codegen collaborator; out of scope here per spec §1), and an opaque
// HostState the embedder wants attached to the Instance.
type AllocationRequest struct {
	Module          *wasm.Module
	Imports         vmcontext.Imports
	Interrupts      *interrupt.VMInterrupts
	Builtins        []uintptr
	DefinedFuncPtrs []uintptr
	HostState       interface{}
}

// InstanceHandle is the caller-facing result of Allocate: it owns the
// Instance and is the only thing that may be passed to Initialize or
// Deallocate. Per spec §9 "Self-referential instance pointer", the
// Instance it wraps must never be copied or relocated; InstanceHandle
// exists precisely so callers hold an indirection instead of the Instance
// value itself.
type InstanceHandle struct {
	ID       uuid.UUID
	Instance *wasm.Instance

	allocator *Allocator
}

// Allocator is the on-demand instance allocator: every Allocate call backs
// its memories with a fresh allocation from the configured MemoryCreator
// (the Go heap by default) and its tables with fresh Go-heap slices, and
// Deallocate releases them again, with no
// pooling or reuse across instances, matching allocator.rs's
// OnDemandInstanceAllocator.
type Allocator struct {
	memoryCreator provision.MemoryCreator
	limiter       provision.ResourceLimiter
	tunables      Tunables
	logger        logr.Logger
	registry      *sigid.Registry
}

// Option configures an Allocator constructed by NewOnDemandAllocator.
type Option func(*Allocator)

// WithMemoryCreator overrides the MemoryCreator used for every memory this
// allocator creates. Defaults to provision.DefaultMemoryCreator.
func WithMemoryCreator(c provision.MemoryCreator) Option {
	return func(a *Allocator) { a.memoryCreator = c }
}

// WithResourceLimiter installs the resource-limit callback consulted
// before every memory/table creation (spec §6 "Resource-limit callback").
func WithResourceLimiter(l provision.ResourceLimiter) Option {
	return func(a *Allocator) { a.limiter = l }
}

// WithTunables installs a pre-built Tunables, e.g. one produced by
// NewTunables with non-default options.
func WithTunables(t Tunables) Option {
	return func(a *Allocator) { a.tunables = t }
}

// WithLogger installs a logr.Logger for diagnostics this allocator emits
// (a verbose record of each allocated instance, and memory release failures
// during rollback or Deallocate). Defaults to a discarding logger.
func WithLogger(l logr.Logger) Option {
	return func(a *Allocator) { a.logger = l }
}

// WithSignatureRegistry installs the process-wide sigid.Registry this
// allocator's store uses. Defaults to a fresh, private Registry, which is
// only correct for a single-store embedder; a store sharing canonical ids
// across multiple allocators must supply its own.
func WithSignatureRegistry(r *sigid.Registry) Option {
	return func(a *Allocator) { a.registry = r }
}

// NewOnDemandAllocator builds an Allocator with the given options applied
// over the on-demand backend's defaults.
func NewOnDemandAllocator(opts ...Option) *Allocator {
	a := &Allocator{
		memoryCreator: provision.DefaultMemoryCreator,
		tunables:      NewTunables(),
		logger:        logr.Discard(),
		registry:      sigid.NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Validate is the on-demand backend's validate hook (spec §4.7): a
// default no-op. A pooling backend overrides this to check the module
// against its pool's fixed per-instance limits.
func (a *Allocator) Validate(*wasm.Module) error { return nil }

// AdjustTunables is the on-demand backend's adjust_tunables hook (spec
// §4.7): a default no-op, since this backend has no pool sizing to
// reconcile the requested Tunables against.
func (a *Allocator) AdjustTunables(*Tunables) {}

// Allocate runs spec §4.7's allocate operation: create this module's
// defined memories and tables, compute the VMContext layout, populate the
// VMContext image and the per-instance anyfunc table, and initialize
// every defined global (spec §4.5 steps 1-7 / §4.6). The returned
// instance is not yet segment-initialized; call Initialize next. On any
// failure, every memory and table already created for this call is
// released before returning, so a failed Allocate leaves no resources
// behind (spec §4.8).
func (a *Allocator) Allocate(req AllocationRequest) (*InstanceHandle, error) {
	m := req.Module
	if m == nil {
		return nil, vmerr.NewLink("allocate: nil module")
	}
	if m.EscapeSet == nil {
		m.EscapeSet = wasm.BuildEscapeSet(m)
	}

	memories, err := provision.CreateMemories(m, a.memoryCreator, a.limiter)
	if err != nil {
		return nil, err
	}
	tables, err := provision.CreateTables(m, a.limiter)
	if err != nil {
		a.releaseMemories(memories)
		return nil, err
	}

	typeIDs := a.registry.TypeIDsForModule(m)
	offs := vmoffsets.New(m, vmoffsets.HostPointerSize())

	inst := &wasm.Instance{
		Module:      m,
		Memories:    memories,
		Tables:      tables,
		TypeIDs:     typeIDs,
		DroppedData: wasm.NewBitset(len(m.DataSection)),
		DroppedElem: wasm.NewBitset(len(m.ElementSection)),
		HostState:   req.HostState,
	}

	if err := vmcontext.Populate(inst, offs, req.Interrupts, typeIDs, req.Builtins, req.Imports, req.DefinedFuncPtrs); err != nil {
		a.releaseMemories(memories)
		return nil, err
	}
	vmcontext.InitializeGlobals(inst, offs)

	id := uuid.New()
	a.logger.V(1).Info("allocated instance", "id", id.String(),
		"memories", len(memories), "tables", len(tables))

	return &InstanceHandle{ID: id, Instance: inst, allocator: a}, nil
}

// Initialize runs spec §4.7's initialize operation: segment application in
// the mode spec §4.4 describes. A Trap or Link error from this step still
// leaves the handle valid to pass to Deallocate; the caller decides
// whether a failed Initialize still destroys the instance (spec §4.8 says
// it must).
func (a *Allocator) Initialize(h *InstanceHandle, isBulkMemory bool) error {
	return seginit.Initialize(h.Instance, isBulkMemory)
}

// Deallocate runs spec §4.7's deallocate operation: release every
// resource this handle's memories hold beyond the Go heap (an mmap
// reservation, when the allocator's MemoryCreator is one that holds one),
// then drop the handle's reference to its Instance so nothing in this
// package keeps its self-referential VMContext/Anyfunc graph reachable.
// Multiple release failures (one per memory) are aggregated with
// go-multierror rather than only reporting the first.
func (a *Allocator) Deallocate(h *InstanceHandle) error {
	if h == nil || h.Instance == nil {
		return nil
	}

	var result *multierror.Error
	if releaser, ok := a.memoryCreator.(provision.Releaser); ok {
		for _, mem := range h.Instance.Memories {
			if err := releaser.Release(mem); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	h.Instance = nil
	if err := result.ErrorOrNil(); err != nil {
		a.logger.Error(err, "deallocate: releasing memories", "id", h.ID.String())
		return err
	}
	return nil
}

func (a *Allocator) releaseMemories(memories []*wasm.MemoryInstance) {
	releaser, ok := a.memoryCreator.(provision.Releaser)
	if !ok {
		return
	}
	for _, mem := range memories {
		if err := releaser.Release(mem); err != nil {
			a.logger.Error(err, "rollback: releasing memory after failed allocate")
		}
	}
}
