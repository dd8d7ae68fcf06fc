package arena

import "errors"

// Format-derived geometry constants. All sizes are fixed when the store is
// created and recorded in the store header; reopening with different options
// is rejected rather than silently reinterpreted.
const (
	// DefaultLocationWidth is the default on-disk size of a Location in
	// bytes: a 4-byte page id followed by a 4-byte offset.
	DefaultLocationWidth = 8

	// DefaultHeaderWidth is the default on-disk size of unsigned integer
	// fields in node and entry headers.
	DefaultHeaderWidth = 8

	// refCountWidth is the on-disk size of one reference counter.
	refCountWidth = 4
)

// Errors for format validation.
var (
	ErrInvalidPageSize      = errors.New("invalid page size")
	ErrInvalidLocationWidth = errors.New("invalid location width")
	ErrInvalidHeaderWidth   = errors.New("invalid header width")
)

// Geometry captures the store-wide format parameters and derives every
// layout bound from them. It is shared by the arena, the byte-string codec,
// and the node store so that the three layers agree on sizes byte for byte.
type Geometry struct {
	// PageSize is the size of each page in bytes.
	PageSize int

	// LocationWidth is the encoded size of a Location in bytes, split
	// evenly between page id and offset.
	LocationWidth int

	// HeaderWidth is the encoded size of unsigned integer header fields
	// (transaction ids, entry sizes, data offsets) in bytes.
	HeaderWidth int
}

// DefaultGeometry returns the default format parameters.
func DefaultGeometry() Geometry {
	return Geometry{
		PageSize:      DefaultPageSize,
		LocationWidth: DefaultLocationWidth,
		HeaderWidth:   DefaultHeaderWidth,
	}
}

// Validate checks that the format parameters are supported.
func (g Geometry) Validate() error {
	if g.PageSize < 512 || g.PageSize&(g.PageSize-1) != 0 {
		return ErrInvalidPageSize
	}
	if g.LocationWidth != 4 && g.LocationWidth != 8 {
		return ErrInvalidLocationWidth
	}
	if g.HeaderWidth != 4 && g.HeaderWidth != 8 {
		return ErrInvalidHeaderWidth
	}
	return nil
}

// EntryHeaderSize returns the size of a byte-string entry header:
// one tag byte plus the size field.
func (g Geometry) EntryHeaderSize() int {
	return 1 + g.HeaderWidth
}

// DirectCapacity returns the maximum payload of a Direct entry.
func (g Geometry) DirectCapacity() int {
	return g.PageSize - g.EntryHeaderSize()
}

// MaxSegments returns the maximum number of segment locations an Alias
// entry can hold.
func (g Geometry) MaxSegments() int {
	return (g.PageSize - g.EntryHeaderSize()) / g.LocationWidth
}

// MaxByteStringSize returns the largest byte string the format can
// represent: a full alias record of full direct segments.
func (g Geometry) MaxByteStringSize() int {
	return g.MaxSegments() * g.DirectCapacity()
}

// NodeHeaderSize returns the size of a node header: one tag byte plus the
// transaction id, the subtree height, and the data end offset.
func (g Geometry) NodeHeaderSize() int {
	return 1 + 3*g.HeaderWidth
}

// NodeFanout returns the maximum number of key/child pairs per node,
// derived from the space left for the two parallel location arrays.
func (g Geometry) NodeFanout() int {
	return (g.PageSize - g.NodeHeaderSize()) / (2 * g.LocationWidth)
}

// MaxPageID returns the largest page id the location encoding can express.
func (g Geometry) MaxPageID() PageID {
	half := g.LocationWidth / 2
	return PageID(uint64(1)<<(8*half) - 1)
}

// countersPerGroup returns how many pages one RefCount page covers.
func (g Geometry) countersPerGroup() int {
	return (g.PageSize - 1) / refCountWidth
}

// groupSize returns the span of one refcount group in pages: the RefCount
// page itself plus the pages it covers.
func (g Geometry) groupSize() int {
	return g.countersPerGroup() + 1
}
