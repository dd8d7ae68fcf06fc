package arena

// Location identifies a byte position inside the page space: a page plus an
// in-page offset. All persistent references between pages are Locations.
type Location struct {
	Page   PageID
	Offset uint32
}

// Nil is the zero Location. Page 0 is always a RefCount page, which no
// Location may legally reference, so the zero value doubles as "no location".
var Nil = Location{}

// IsNil reports whether the location is the nil location.
func (l Location) IsNil() bool {
	return l == Nil
}

// EncodeLocation writes the location into buf using the store's location
// width: the page id in the first half, the offset in the second half.
// buf must be at least width bytes long.
func EncodeLocation(buf []byte, width int, loc Location) {
	half := width / 2
	PutUint(buf[:half], half, uint64(loc.Page))
	PutUint(buf[half:width], half, uint64(loc.Offset))
}

// DecodeLocation reads a location encoded by EncodeLocation.
func DecodeLocation(buf []byte, width int) Location {
	half := width / 2
	return Location{
		Page:   PageID(GetUint(buf[:half], half)),
		Offset: uint32(GetUint(buf[half:width], half)),
	}
}

// PutUint writes v little-endian into the first w bytes of b. Header fields
// of nodes and entries are encoded with it at the store's header width.
func PutUint(b []byte, w int, v uint64) {
	for i := 0; i < w; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// GetUint reads a little-endian unsigned integer from the first w bytes of b.
func GetUint(b []byte, w int) uint64 {
	var v uint64
	for i := 0; i < w; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
