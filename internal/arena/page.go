// Package arena provides the reference-counted page allocator underlying a
// lodestone store.
package arena

import "errors"

// DefaultPageSize is the default page size in bytes.
const DefaultPageSize = 4096

// MemType is the tag byte stored at offset 0 of every page. It selects how
// the remainder of the page is interpreted. Decoding a page whose tag does
// not match the requested role is a corruption error, never a silent cast.
type MemType uint8

const (
	// MemFree marks a page that carries no live data.
	MemFree MemType = iota
	// MemNodeRoot marks the root node of a tree version.
	MemNodeRoot
	// MemNodeInternal marks an interior tree node.
	MemNodeInternal
	// MemNodeLeaf marks a leaf tree node.
	MemNodeLeaf
	// MemEntryDirect marks a byte-string entry stored inline in one page.
	MemEntryDirect
	// MemEntryAlias marks a byte-string entry stored as a list of segments.
	MemEntryAlias
	// MemRefCount marks a page holding reference counters for its group.
	MemRefCount
)

// String returns the string representation of a MemType.
func (t MemType) String() string {
	switch t {
	case MemFree:
		return "Free"
	case MemNodeRoot:
		return "NodeRoot"
	case MemNodeInternal:
		return "NodeInternal"
	case MemNodeLeaf:
		return "NodeLeaf"
	case MemEntryDirect:
		return "EntryDirect"
	case MemEntryAlias:
		return "EntryAlias"
	case MemRefCount:
		return "RefCount"
	default:
		return "Unknown"
	}
}

// IsNode reports whether the tag marks one of the three node variants.
func (t MemType) IsNode() bool {
	return t == MemNodeRoot || t == MemNodeInternal || t == MemNodeLeaf
}

// IsEntry reports whether the tag marks a byte-string entry.
func (t MemType) IsEntry() bool {
	return t == MemEntryDirect || t == MemEntryAlias
}

// PageID identifies a page within a store's page space. IDs are relative to
// the start of the page space, never absolute offsets, so a store can be
// remapped or reopened at a different base without invalidating references.
type PageID uint32

// Errors for page operations.
var (
	ErrCorrupted         = errors.New("store corrupted")
	ErrOutOfSpace        = errors.New("out of space")
	ErrPageOutOfRange    = errors.New("page ID out of range")
	ErrRefCountUnderflow = errors.New("reference count underflow")
	ErrArenaClosed       = errors.New("arena is closed")
)
