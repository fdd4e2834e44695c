//go:build !unix

package provision

// NewMmapMemoryCreator is unavailable on non-unix hosts; DefaultMemoryCreator
// (a plain Go-heap allocation) is the only creator available there.
func NewMmapMemoryCreator() MemoryCreator { return DefaultMemoryCreator }

