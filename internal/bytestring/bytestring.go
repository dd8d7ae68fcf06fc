// Package bytestring encodes arbitrary byte strings into reference-counted
// pages. Short strings live inline in a single Direct entry; longer strings
// are chunked into Direct segments referenced from one Alias entry, so any
// string the format can address is reachable from a single page location.
package bytestring

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/lodestone-db/lodestone/internal/arena"
)

// Codec errors.
var (
	ErrTooLarge    = errors.New("byte string exceeds maximum encodable size")
	ErrBadLocation = errors.New("invalid byte-string location")
)

// Codec reads and writes byte strings on top of an arena. Entries always
// start at offset 0 of their page, so a byte string is identified by its
// page location alone.
type Codec struct {
	arena *arena.Arena
	geom  arena.Geometry
}

// New creates a codec bound to a.
func New(a *arena.Arena) *Codec {
	return &Codec{arena: a, geom: a.Geometry()}
}

// MaxSize returns the largest byte string the codec can store.
func (c *Codec) MaxSize() int {
	return c.geom.MaxByteStringSize()
}

// Write stores data and returns the location of its entry with a reference
// count of one. Strings up to the direct capacity land in a single Direct
// entry; anything longer becomes an Alias entry over Direct segments.
func (c *Codec) Write(data []byte) (arena.Location, error) {
	if len(data) > c.geom.MaxByteStringSize() {
		return arena.Nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	if len(data) <= c.geom.DirectCapacity() {
		return c.writeDirect(data)
	}
	return c.writeAlias(data)
}

func (c *Codec) writeDirect(data []byte) (arena.Location, error) {
	id, err := c.arena.Allocate(arena.MemEntryDirect)
	if err != nil {
		return arena.Nil, err
	}
	buf, err := c.arena.View(id, arena.MemEntryDirect)
	if err != nil {
		return arena.Nil, err
	}
	arena.PutUint(buf[1:], c.geom.HeaderWidth, uint64(len(data)))
	copy(buf[1+c.geom.HeaderWidth:], data)
	return arena.Location{Page: id}, nil
}

func (c *Codec) writeAlias(data []byte) (arena.Location, error) {
	capacity := c.geom.DirectCapacity()
	segCount := (len(data) + capacity - 1) / capacity

	// Claim every page up front: filling only starts once the store cannot
	// grow any further under us.
	aliasID, err := c.arena.Allocate(arena.MemEntryAlias)
	if err != nil {
		return arena.Nil, err
	}
	segIDs := make([]arena.PageID, 0, segCount)
	for i := 0; i < segCount; i++ {
		id, err := c.arena.Allocate(arena.MemEntryDirect)
		if err != nil {
			c.abandon(aliasID, segIDs)
			return arena.Nil, err
		}
		segIDs = append(segIDs, id)
	}

	for i, id := range segIDs {
		start := i * capacity
		end := start + capacity
		if end > len(data) {
			end = len(data)
		}
		buf, err := c.arena.View(id, arena.MemEntryDirect)
		if err != nil {
			return arena.Nil, err
		}
		arena.PutUint(buf[1:], c.geom.HeaderWidth, uint64(end-start))
		copy(buf[1+c.geom.HeaderWidth:], data[start:end])
	}

	buf, err := c.arena.View(aliasID, arena.MemEntryAlias)
	if err != nil {
		return arena.Nil, err
	}
	arena.PutUint(buf[1:], c.geom.HeaderWidth, uint64(segCount))
	lw := c.geom.LocationWidth
	for i, id := range segIDs {
		off := 1 + c.geom.HeaderWidth + i*lw
		arena.EncodeLocation(buf[off:], lw, arena.Location{Page: id})
	}
	return arena.Location{Page: aliasID}, nil
}

// abandon releases pages claimed by a write that could not finish.
func (c *Codec) abandon(aliasID arena.PageID, segIDs []arena.PageID) {
	c.arena.Release(aliasID)
	for _, id := range segIDs {
		c.arena.Release(id)
	}
}

// checkLocation rejects locations that cannot address an entry.
func (c *Codec) checkLocation(loc arena.Location) error {
	if loc.IsNil() || loc.Offset != 0 {
		return fmt.Errorf("%w: %v", ErrBadLocation, loc)
	}
	return nil
}

// segments returns the segment locations of the alias entry at loc.
func (c *Codec) segments(loc arena.Location) ([]arena.Location, error) {
	buf, err := c.arena.View(loc.Page, arena.MemEntryAlias)
	if err != nil {
		return nil, err
	}
	n := int(arena.GetUint(buf[1:], c.geom.HeaderWidth))
	if n > c.geom.MaxSegments() {
		return nil, fmt.Errorf("%w: alias entry at %v claims %d segments", arena.ErrCorrupted, loc, n)
	}
	lw := c.geom.LocationWidth
	segs := make([]arena.Location, n)
	for i := range segs {
		off := 1 + c.geom.HeaderWidth + i*lw
		segs[i] = arena.DecodeLocation(buf[off:], lw)
	}
	return segs, nil
}

// directPayload returns the payload bytes of the Direct entry at loc. The
// slice aliases the page and must not be held across writes.
func (c *Codec) directPayload(loc arena.Location) ([]byte, error) {
	buf, err := c.arena.View(loc.Page, arena.MemEntryDirect)
	if err != nil {
		return nil, err
	}
	size := int(arena.GetUint(buf[1:], c.geom.HeaderWidth))
	if size > c.geom.DirectCapacity() {
		return nil, fmt.Errorf("%w: direct entry at %v claims %d bytes", arena.ErrCorrupted, loc, size)
	}
	start := 1 + c.geom.HeaderWidth
	return buf[start : start+size], nil
}

// Read returns a copy of the byte string at loc.
func (c *Codec) Read(loc arena.Location) ([]byte, error) {
	if err := c.checkLocation(loc); err != nil {
		return nil, err
	}
	typ, err := c.arena.Type(loc.Page)
	if err != nil {
		return nil, err
	}

	switch typ {
	case arena.MemEntryDirect:
		payload, err := c.directPayload(loc)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil

	case arena.MemEntryAlias:
		segs, err := c.segments(loc)
		if err != nil {
			return nil, err
		}
		var out []byte
		for _, seg := range segs {
			payload, err := c.directPayload(seg)
			if err != nil {
				return nil, err
			}
			out = append(out, payload...)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: page %d is %s, not an entry", ErrBadLocation, loc.Page, typ)
	}
}

// Length returns the byte length of the string at loc without copying it.
func (c *Codec) Length(loc arena.Location) (int, error) {
	if err := c.checkLocation(loc); err != nil {
		return 0, err
	}
	typ, err := c.arena.Type(loc.Page)
	if err != nil {
		return 0, err
	}

	switch typ {
	case arena.MemEntryDirect:
		payload, err := c.directPayload(loc)
		if err != nil {
			return 0, err
		}
		return len(payload), nil

	case arena.MemEntryAlias:
		segs, err := c.segments(loc)
		if err != nil {
			return 0, err
		}
		total := 0
		for _, seg := range segs {
			payload, err := c.directPayload(seg)
			if err != nil {
				return 0, err
			}
			total += len(payload)
		}
		return total, nil

	default:
		return 0, fmt.Errorf("%w: page %d is %s, not an entry", ErrBadLocation, loc.Page, typ)
	}
}

// Compare orders the stored string at loc against b, segment by segment,
// without materializing the stored string. The result follows bytes.Compare.
func (c *Codec) Compare(loc arena.Location, b []byte) (int, error) {
	if err := c.checkLocation(loc); err != nil {
		return 0, err
	}
	typ, err := c.arena.Type(loc.Page)
	if err != nil {
		return 0, err
	}

	var segs []arena.Location
	switch typ {
	case arena.MemEntryDirect:
		segs = []arena.Location{loc}
	case arena.MemEntryAlias:
		if segs, err = c.segments(loc); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("%w: page %d is %s, not an entry", ErrBadLocation, loc.Page, typ)
	}

	rest := b
	for _, seg := range segs {
		payload, err := c.directPayload(seg)
		if err != nil {
			return 0, err
		}
		n := len(payload)
		if n > len(rest) {
			n = len(rest)
		}
		if diff := bytes.Compare(payload[:n], rest[:n]); diff != 0 {
			return diff, nil
		}
		if len(payload) > n {
			// Stored string continues past the end of b.
			return 1, nil
		}
		rest = rest[n:]
	}
	if len(rest) > 0 {
		return -1, nil
	}
	return 0, nil
}

// Retain adds a reference to the entry at loc. Alias segments carry no
// extra count: they are owned by their alias page alone.
func (c *Codec) Retain(loc arena.Location) error {
	if err := c.checkLocation(loc); err != nil {
		return err
	}
	return c.arena.Retain(loc.Page)
}

// Release drops a reference to the entry at loc and reports whether the
// entry was freed. Freeing an Alias entry releases each of its segments.
func (c *Codec) Release(loc arena.Location) (bool, error) {
	if err := c.checkLocation(loc); err != nil {
		return false, err
	}
	typ, err := c.arena.Type(loc.Page)
	if err != nil {
		return false, err
	}

	switch typ {
	case arena.MemEntryDirect:
		return c.arena.Release(loc.Page)

	case arena.MemEntryAlias:
		// Capture the segment list while the entry is still live.
		segs, err := c.segments(loc)
		if err != nil {
			return false, err
		}
		freed, err := c.arena.Release(loc.Page)
		if err != nil || !freed {
			return freed, err
		}
		for _, seg := range segs {
			if _, err := c.arena.Release(seg.Page); err != nil {
				return true, err
			}
		}
		return true, nil

	default:
		return false, fmt.Errorf("%w: page %d is %s, not an entry", ErrBadLocation, loc.Page, typ)
	}
}
