package btree

import (
	"github.com/lodestone-db/lodestone/internal/arena"
)

// Delete removes key from the version rooted at root and returns the root
// of the resulting version, plus whether the key was present. A miss
// returns the given root untouched, with no pages copied.
//
// Nodes are not rebalanced on the way out; they shrink until they empty,
// at which point they are cut from their parent. Only the root collapses
// eagerly, so the tree height tracks deletions.
func (s *Store) Delete(root arena.Location, txnID uint64, key []byte) (arena.Location, bool, error) {
	if root.IsNil() {
		return root, false, nil
	}

	newRoot, found, err := s.deleteAt(root, txnID, key)
	if err != nil || !found {
		return root, found, err
	}

	for {
		n, err := s.readNode(newRoot)
		if err != nil {
			return arena.Nil, false, err
		}
		if len(n.Keys) == 0 {
			// The last key is gone; the tree is empty.
			if err := s.dropNodePage(n.ID); err != nil {
				return arena.Nil, false, err
			}
			return arena.Nil, true, nil
		}
		if n.leaf() || len(n.Keys) > 1 {
			return newRoot, true, nil
		}

		// A root with a single subtree adds nothing; promote the child.
		child := n.Children[0]
		if _, err := s.entries.Release(n.Keys[0]); err != nil {
			return arena.Nil, false, err
		}
		if err := s.dropNodePage(n.ID); err != nil {
			return arena.Nil, false, err
		}
		if newRoot, err = s.promoteRoot(child, txnID); err != nil {
			return arena.Nil, false, err
		}
	}
}

// promoteRoot turns the node at loc into a root-tagged node. A node owned
// by the transaction is retagged in place; a shared node is cloned first so
// older versions keep their interior node untouched.
func (s *Store) promoteRoot(loc arena.Location, txnID uint64) (arena.Location, error) {
	n, err := s.readNode(loc)
	if err != nil {
		return arena.Nil, err
	}
	if n.TxnID == txnID {
		if err := s.arena.Retag(n.ID, n.Type, arena.MemNodeRoot); err != nil {
			return arena.Nil, err
		}
		n.Type = arena.MemNodeRoot
		if err := s.writeNode(n); err != nil {
			return arena.Nil, err
		}
		return loc, nil
	}

	clone, err := s.modifiable(n, txnID)
	if err != nil {
		return arena.Nil, err
	}
	if err := s.arena.Retag(clone.ID, clone.Type, arena.MemNodeRoot); err != nil {
		return arena.Nil, err
	}
	clone.Type = arena.MemNodeRoot
	if err := s.writeNode(clone); err != nil {
		return arena.Nil, err
	}
	if err := s.releaseNode(loc); err != nil {
		return arena.Nil, err
	}
	return clone.Loc(), nil
}

// deleteAt removes key from the subtree at loc. It only starts copying once
// the key is known to exist on the path.
func (s *Store) deleteAt(loc arena.Location, txnID uint64, key []byte) (arena.Location, bool, error) {
	n, err := s.readNode(loc)
	if err != nil {
		return arena.Nil, false, err
	}

	if n.leaf() {
		idx, found, err := s.searchKeys(n, key)
		if err != nil || !found {
			return loc, false, err
		}
		if n, err = s.modifiable(n, txnID); err != nil {
			return arena.Nil, false, err
		}
		if _, err := s.entries.Release(n.Keys[idx]); err != nil {
			return arena.Nil, false, err
		}
		if _, err := s.entries.Release(n.Children[idx]); err != nil {
			return arena.Nil, false, err
		}
		n.Keys = removeLocation(n.Keys, idx)
		n.Children = removeLocation(n.Children, idx)
		if err := s.writeNode(n); err != nil {
			return arena.Nil, false, err
		}
		return n.Loc(), true, nil
	}

	idx, err := s.childIndex(n, key)
	if err != nil {
		return arena.Nil, false, err
	}
	childLoc := n.Children[idx]
	newChild, found, err := s.deleteAt(childLoc, txnID, key)
	if err != nil || !found {
		return loc, found, err
	}

	if n, err = s.modifiable(n, txnID); err != nil {
		return arena.Nil, false, err
	}
	if newChild != childLoc {
		n.Children[idx] = newChild
		if err := s.releaseNode(childLoc); err != nil {
			return arena.Nil, false, err
		}
	}

	child, err := s.readNode(n.Children[idx])
	if err != nil {
		return arena.Nil, false, err
	}
	if len(child.Keys) == 0 {
		// The subtree emptied out; cut it loose.
		if err := s.dropNodePage(child.ID); err != nil {
			return arena.Nil, false, err
		}
		if _, err := s.entries.Release(n.Keys[idx]); err != nil {
			return arena.Nil, false, err
		}
		n.Keys = removeLocation(n.Keys, idx)
		n.Children = removeLocation(n.Children, idx)
	} else if child.Keys[0] != n.Keys[idx] {
		// Deleting the subtree minimum moves the separator up.
		if err := s.entries.Retain(child.Keys[0]); err != nil {
			return arena.Nil, false, err
		}
		if _, err := s.entries.Release(n.Keys[idx]); err != nil {
			return arena.Nil, false, err
		}
		n.Keys[idx] = child.Keys[0]
	}

	if err := s.writeNode(n); err != nil {
		return arena.Nil, false, err
	}
	return n.Loc(), true, nil
}

// removeLocation removes index i, shifting the tail left.
func removeLocation(locs []arena.Location, i int) []arena.Location {
	copy(locs[i:], locs[i+1:])
	return locs[:len(locs)-1]
}
