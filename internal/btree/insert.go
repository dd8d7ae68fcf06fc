package btree

import (
	"github.com/lodestone-db/lodestone/internal/arena"
)

// splitResult describes the right half produced by a node split. sep is the
// smallest key of the right node; it carries no reference for the parent,
// which retains it when it stores the separator.
type splitResult struct {
	sep   arena.Location
	right arena.Location
}

// Insert stores value under key in the version rooted at root and returns
// the root of the resulting version. The given version is left intact; a nil
// root inserts into an empty tree. Replacing an existing key releases the
// version's reference on the old value entry.
func (s *Store) Insert(root arena.Location, txnID uint64, key, value []byte) (arena.Location, error) {
	if root.IsNil() {
		return s.bootstrap(txnID, key, value)
	}

	newRoot, split, err := s.insertAt(root, txnID, key, value)
	if err != nil {
		return arena.Nil, err
	}
	if split == nil {
		return newRoot, nil
	}
	return s.growRoot(newRoot, split, txnID)
}

// bootstrap creates a single-key root leaf for an empty tree.
func (s *Store) bootstrap(txnID uint64, key, value []byte) (arena.Location, error) {
	valLoc, err := s.entries.Write(value)
	if err != nil {
		return arena.Nil, err
	}
	keyLoc, err := s.entries.Write(key)
	if err != nil {
		return arena.Nil, err
	}

	n, err := s.newNode(arena.MemNodeRoot, txnID, 0)
	if err != nil {
		return arena.Nil, err
	}
	n.Keys = []arena.Location{keyLoc}
	n.Children = []arena.Location{valLoc}
	if err := s.writeNode(n); err != nil {
		return arena.Nil, err
	}
	return n.Loc(), nil
}

// growRoot adds a level above a split root. The old root page keeps holding
// the left half and trades its root tag for a level tag.
func (s *Store) growRoot(left arena.Location, split *splitResult, txnID uint64) (arena.Location, error) {
	leftNode, err := s.readNode(left)
	if err != nil {
		return arena.Nil, err
	}
	if err := s.arena.Retag(leftNode.ID, arena.MemNodeRoot, levelType(leftNode.Height)); err != nil {
		return arena.Nil, err
	}
	leftNode.Type = levelType(leftNode.Height)

	top, err := s.newNode(arena.MemNodeRoot, txnID, leftNode.Height+1)
	if err != nil {
		return arena.Nil, err
	}
	if err := s.entries.Retain(leftNode.Keys[0]); err != nil {
		return arena.Nil, err
	}
	if err := s.entries.Retain(split.sep); err != nil {
		return arena.Nil, err
	}
	top.Keys = []arena.Location{leftNode.Keys[0], split.sep}
	top.Children = []arena.Location{left, split.right}
	if err := s.writeNode(top); err != nil {
		return arena.Nil, err
	}
	return top.Loc(), nil
}

// insertAt inserts into the subtree at loc and returns the location of its
// copied (or in-place) replacement, plus a split result when the node had to
// divide.
func (s *Store) insertAt(loc arena.Location, txnID uint64, key, value []byte) (arena.Location, *splitResult, error) {
	n, err := s.readNode(loc)
	if err != nil {
		return arena.Nil, nil, err
	}
	if n.leaf() {
		return s.insertLeaf(n, txnID, key, value)
	}

	idx, err := s.childIndex(n, key)
	if err != nil {
		return arena.Nil, nil, err
	}
	childLoc := n.Children[idx]
	newChild, split, err := s.insertAt(childLoc, txnID, key, value)
	if err != nil {
		return arena.Nil, nil, err
	}

	if n, err = s.modifiable(n, txnID); err != nil {
		return arena.Nil, nil, err
	}
	if newChild != childLoc {
		n.Children[idx] = newChild
		if err := s.releaseNode(childLoc); err != nil {
			return arena.Nil, nil, err
		}
	}

	// Inserting a new minimum changes the subtree's smallest key, and the
	// separator has to follow it.
	childMin, err := s.MinKey(n.Children[idx])
	if err != nil {
		return arena.Nil, nil, err
	}
	if childMin != n.Keys[idx] {
		if err := s.entries.Retain(childMin); err != nil {
			return arena.Nil, nil, err
		}
		if _, err := s.entries.Release(n.Keys[idx]); err != nil {
			return arena.Nil, nil, err
		}
		n.Keys[idx] = childMin
	}

	if split != nil {
		if err := s.entries.Retain(split.sep); err != nil {
			return arena.Nil, nil, err
		}
		n.Keys = insertLocation(n.Keys, idx+1, split.sep)
		n.Children = insertLocation(n.Children, idx+1, split.right)
	}
	return s.finishNode(n, txnID)
}

// insertLeaf stores the pair in a leaf, overwriting the value of an existing
// key in place of growing.
func (s *Store) insertLeaf(n *Node, txnID uint64, key, value []byte) (arena.Location, *splitResult, error) {
	idx, found, err := s.searchKeys(n, key)
	if err != nil {
		return arena.Nil, nil, err
	}

	// Write the entries before touching the node, so an oversized value
	// fails without having copied anything.
	valLoc, err := s.entries.Write(value)
	if err != nil {
		return arena.Nil, nil, err
	}
	var keyLoc arena.Location
	if !found {
		if keyLoc, err = s.entries.Write(key); err != nil {
			s.entries.Release(valLoc)
			return arena.Nil, nil, err
		}
	}

	if n, err = s.modifiable(n, txnID); err != nil {
		return arena.Nil, nil, err
	}
	if found {
		old := n.Children[idx]
		n.Children[idx] = valLoc
		if _, err := s.entries.Release(old); err != nil {
			return arena.Nil, nil, err
		}
	} else {
		n.Keys = insertLocation(n.Keys, idx, keyLoc)
		n.Children = insertLocation(n.Children, idx, valLoc)
	}
	return s.finishNode(n, txnID)
}

// finishNode writes n back, splitting it first when it overflows the
// fanout. References move from the left half to the right without count
// changes; ownership transfers with them.
func (s *Store) finishNode(n *Node, txnID uint64) (arena.Location, *splitResult, error) {
	if len(n.Keys) <= s.geom.NodeFanout() {
		if err := s.writeNode(n); err != nil {
			return arena.Nil, nil, err
		}
		return n.Loc(), nil, nil
	}

	mid := len(n.Keys) / 2
	right, err := s.newNode(levelType(n.Height), txnID, n.Height)
	if err != nil {
		return arena.Nil, nil, err
	}
	right.Keys = append([]arena.Location(nil), n.Keys[mid:]...)
	right.Children = append([]arena.Location(nil), n.Children[mid:]...)
	n.Keys = n.Keys[:mid]
	n.Children = n.Children[:mid]

	if err := s.writeNode(n); err != nil {
		return arena.Nil, nil, err
	}
	if err := s.writeNode(right); err != nil {
		return arena.Nil, nil, err
	}
	return n.Loc(), &splitResult{sep: right.Keys[0], right: right.Loc()}, nil
}

// insertLocation inserts loc at index i, shifting the tail right.
func insertLocation(locs []arena.Location, i int, loc arena.Location) []arena.Location {
	locs = append(locs, arena.Nil)
	copy(locs[i+1:], locs[i:])
	locs[i] = loc
	return locs
}
