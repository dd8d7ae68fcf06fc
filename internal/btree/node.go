// Package btree implements a copy-on-write B+tree over reference-counted
// pages. Every mutation copies the nodes on the path from the root down to
// the touched leaf and leaves the previous version intact, so any number of
// readers can keep traversing an old root while a writer builds the next
// one. Shared subtrees are tracked with the arena's reference counts.
package btree

import (
	"errors"
	"fmt"

	"github.com/lodestone-db/lodestone/internal/arena"
)

// ErrNotANode is returned when a location does not address a tree node.
var ErrNotANode = errors.New("location does not address a tree node")

// Node is the decoded form of a node page.
//
// Keys and Children are parallel: in a leaf (Height 0) Children[i] is the
// value entry for Keys[i]; in an interior node Children[i] is the subtree
// whose smallest key is Keys[i]. Both arrays always have the same length.
//
// On-page layout:
//   - Byte 0:  MemType tag
//   - TxnID:   header-width uint, transaction that created the page
//   - Height:  header-width uint, 0 for leaves
//   - DataEnd: header-width uint, end offset of the location arrays
//   - Keys:    n locations
//   - Children: n locations
type Node struct {
	ID       arena.PageID
	Type     arena.MemType
	TxnID    uint64
	Height   int
	Keys     []arena.Location
	Children []arena.Location
}

// Loc returns the location addressing the node's page.
func (n *Node) Loc() arena.Location {
	return arena.Location{Page: n.ID}
}

// leaf reports whether the node holds value entries rather than subtrees.
func (n *Node) leaf() bool {
	return n.Height == 0
}

// levelType returns the tag for a non-root node at the given height.
func levelType(height int) arena.MemType {
	if height == 0 {
		return arena.MemNodeLeaf
	}
	return arena.MemNodeInternal
}

// readNode decodes the node at loc, consulting the decoded-node cache first.
//
// Only nodes from committed transactions enter the cache. The writer mutates
// its own pages in place, and the cache's buffered writes give no ordering
// guarantee between a Set and a later rewrite of the same page, so a decode
// of a writer-owned page must never be pinned. Committed nodes are immutable
// until freed, which keeps every cached decode valid until evict.
func (s *Store) readNode(loc arena.Location) (*Node, error) {
	if loc.IsNil() || loc.Offset != 0 {
		return nil, fmt.Errorf("%w: %v", ErrNotANode, loc)
	}
	if n, ok := s.cache.Get(uint64(loc.Page)); ok {
		return n, nil
	}

	typ, err := s.arena.Type(loc.Page)
	if err != nil {
		return nil, err
	}
	if !typ.IsNode() {
		return nil, fmt.Errorf("%w: page %d is %s", ErrNotANode, loc.Page, typ)
	}
	buf, err := s.arena.View(loc.Page, typ)
	if err != nil {
		return nil, err
	}

	hw := s.geom.HeaderWidth
	lw := s.geom.LocationWidth
	headerSize := s.geom.NodeHeaderSize()

	n := &Node{
		ID:     loc.Page,
		Type:   typ,
		TxnID:  arena.GetUint(buf[1:], hw),
		Height: int(arena.GetUint(buf[1+hw:], hw)),
	}
	dataEnd := int(arena.GetUint(buf[1+2*hw:], hw))
	span := dataEnd - headerSize
	if span < 0 || dataEnd > s.geom.PageSize || span%(2*lw) != 0 {
		return nil, fmt.Errorf("%w: node at page %d has data end %d", arena.ErrCorrupted, loc.Page, dataEnd)
	}
	count := span / (2 * lw)
	if count > s.geom.NodeFanout() {
		return nil, fmt.Errorf("%w: node at page %d holds %d keys", arena.ErrCorrupted, loc.Page, count)
	}

	n.Keys = make([]arena.Location, count)
	n.Children = make([]arena.Location, count)
	for i := 0; i < count; i++ {
		n.Keys[i] = arena.DecodeLocation(buf[headerSize+i*lw:], lw)
		n.Children[i] = arena.DecodeLocation(buf[headerSize+(count+i)*lw:], lw)
	}

	if _, committed := s.arena.Root(); n.TxnID <= committed {
		s.cache.Set(uint64(loc.Page), n, 1)
	}
	return n, nil
}

// writeNode encodes n back onto its page. Written nodes belong to the
// running transaction and stay out of the cache until they commit.
func (s *Store) writeNode(n *Node) error {
	if len(n.Keys) != len(n.Children) {
		return fmt.Errorf("%w: node has %d keys and %d children", arena.ErrCorrupted, len(n.Keys), len(n.Children))
	}
	if len(n.Keys) > s.geom.NodeFanout() {
		return fmt.Errorf("%w: node holds %d keys", arena.ErrCorrupted, len(n.Keys))
	}

	buf, err := s.arena.View(n.ID, n.Type)
	if err != nil {
		return err
	}

	hw := s.geom.HeaderWidth
	lw := s.geom.LocationWidth
	headerSize := s.geom.NodeHeaderSize()
	count := len(n.Keys)

	arena.PutUint(buf[1:], hw, n.TxnID)
	arena.PutUint(buf[1+hw:], hw, uint64(n.Height))
	arena.PutUint(buf[1+2*hw:], hw, uint64(headerSize+2*count*lw))
	for i := 0; i < count; i++ {
		arena.EncodeLocation(buf[headerSize+i*lw:], lw, n.Keys[i])
		arena.EncodeLocation(buf[headerSize+(count+i)*lw:], lw, n.Children[i])
	}
	return nil
}

// newNode allocates a page for a node of the given type and height.
func (s *Store) newNode(typ arena.MemType, txnID uint64, height int) (*Node, error) {
	id, err := s.arena.Allocate(typ)
	if err != nil {
		return nil, err
	}
	return &Node{ID: id, Type: typ, TxnID: txnID, Height: height}, nil
}

// modifiable returns a node owned by txnID at n's position. A node created
// by this transaction is returned as is; anything else is cloned onto a
// fresh page, with an extra reference taken on every key and child it
// shares with the original.
func (s *Store) modifiable(n *Node, txnID uint64) (*Node, error) {
	if n.TxnID == txnID {
		return n, nil
	}

	clone, err := s.newNode(n.Type, txnID, n.Height)
	if err != nil {
		return nil, err
	}
	clone.Keys = append([]arena.Location(nil), n.Keys...)
	clone.Children = append([]arena.Location(nil), n.Children...)

	for _, key := range clone.Keys {
		if err := s.entries.Retain(key); err != nil {
			return nil, err
		}
	}
	for _, child := range clone.Children {
		if n.leaf() {
			err = s.entries.Retain(child)
		} else {
			err = s.arena.Retain(child.Page)
		}
		if err != nil {
			return nil, err
		}
	}
	return clone, nil
}
