package arena

// Reference counts are persisted inside the arena itself, in dedicated
// RefCount pages interleaved with the data pages. Page p is a RefCount page
// exactly when p is a multiple of the group size, and it carries the
// counters for the data pages that follow it, up to the next RefCount page.
//
// Page 0 is therefore always a RefCount page, which keeps the zero Location
// free to serve as the nil location.

// IsRefCountPage reports whether id addresses a reference-count page.
func (g Geometry) IsRefCountPage(id PageID) bool {
	return uint64(id)%uint64(g.groupSize()) == 0
}

// counterSlot returns the RefCount page holding the counter for data page id
// together with the byte offset of the counter inside that page.
func (g Geometry) counterSlot(id PageID) (PageID, int) {
	group := uint64(g.groupSize())
	slot := uint64(id) % group
	return PageID(uint64(id) - slot), 1 + refCountWidth*(int(slot)-1)
}
