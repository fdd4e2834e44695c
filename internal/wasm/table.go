package wasm

// TableInstance is one table's live storage. Elements are stored as a
// pointer-sized reference: for a funcref table this is the address of an
// Anyfunc entry (see instance.go); zero means ref.null.
type TableInstance struct {
	References []uintptr
	Min        uint32
	Max        *uint32
	Type       byte // api.ValueTypeFuncref or api.ValueTypeExternref
}

// NewTableInstance allocates a table of the given type's minimum size,
// every element initialized to the null reference.
func NewTableInstance(t TableType) *TableInstance {
	return &TableInstance{
		References: make([]uintptr, t.Min),
		Min:        t.Min,
		Max:        maxPtr(t),
		Type:       t.RefType,
	}
}

func maxPtr(t TableType) *uint32 {
	if !t.HasMax {
		return nil
	}
	m := t.Max
	return &m
}

// Len returns the current number of elements.
func (t *TableInstance) Len() uint32 { return uint32(len(t.References)) }

// Grow increases the table by delta elements filled with init, returning
// the previous length, or (0, false) if the grow would exceed Max.
func (t *TableInstance) Grow(delta uint32, init uintptr) (uint32, bool) {
	current := uint32(len(t.References))
	if delta == 0 {
		return current, true
	}
	newLen := current + delta
	if newLen < current {
		return 0, false
	}
	if t.Max != nil && newLen > *t.Max {
		return 0, false
	}
	grown := make([]uintptr, newLen)
	copy(grown, t.References)
	for i := current; i < newLen; i++ {
		grown[i] = init
	}
	t.References = grown
	return current, true
}

// fits reports whether writing n elements starting at base lies entirely
// within the table's current length.
func (t *TableInstance) fits(base uint64, n uint64) bool {
	end := base + n
	if end < base {
		return false
	}
	return end <= uint64(len(t.References))
}
