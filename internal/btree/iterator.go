package btree

import (
	"github.com/lodestone-db/lodestone/internal/arena"
)

// frame is one level of the iterator's descent path.
type frame struct {
	n   *Node
	idx int
}

// Iterator walks the keys of one tree version in ascending order. It holds
// decoded nodes only; the version's reference count keeps the underlying
// pages alive, so an iterator stays valid for as long as its version does.
type Iterator struct {
	s     *Store
	stack []frame
	err   error
}

// Iter returns an iterator positioned at the smallest key of the version
// rooted at root.
func (s *Store) Iter(root arena.Location) *Iterator {
	it := &Iterator{s: s}
	if !root.IsNil() {
		it.descendMin(root)
	}
	return it
}

// Seek returns an iterator positioned at the smallest key >= key in the
// version rooted at root.
func (s *Store) Seek(root arena.Location, key []byte) *Iterator {
	it := &Iterator{s: s}
	if root.IsNil() {
		return it
	}

	loc := root
	for {
		n, err := s.readNode(loc)
		if err != nil {
			it.fail(err)
			return it
		}
		if n.leaf() {
			idx, _, err := s.searchKeys(n, key)
			if err != nil {
				it.fail(err)
				return it
			}
			it.stack = append(it.stack, frame{n: n, idx: idx})
			if idx >= len(n.Keys) {
				// Past the last key of this leaf; move to the next one.
				it.stack = it.stack[:len(it.stack)-1]
				it.climb()
			}
			return it
		}

		idx, err := s.childIndex(n, key)
		if err != nil {
			it.fail(err)
			return it
		}
		it.stack = append(it.stack, frame{n: n, idx: idx})
		loc = n.Children[idx]
	}
}

// Next returns the key and value entry locations at the current position
// and advances. ok is false once the iterator is exhausted or failed.
func (it *Iterator) Next() (keyLoc, valLoc arena.Location, ok bool) {
	if it.err != nil || len(it.stack) == 0 {
		return arena.Nil, arena.Nil, false
	}
	top := &it.stack[len(it.stack)-1]
	keyLoc = top.n.Keys[top.idx]
	valLoc = top.n.Children[top.idx]
	it.advance()
	return keyLoc, valLoc, true
}

// Err returns the first error the iterator ran into, if any.
func (it *Iterator) Err() error {
	return it.err
}

// advance moves to the next key, climbing out of exhausted frames.
func (it *Iterator) advance() {
	top := &it.stack[len(it.stack)-1]
	top.idx++
	if top.idx < len(top.n.Keys) {
		return
	}
	it.stack = it.stack[:len(it.stack)-1]
	it.climb()
}

// climb pops exhausted interior frames until one has a further subtree to
// descend into, then descends to that subtree's smallest key.
func (it *Iterator) climb() {
	for len(it.stack) > 0 {
		f := &it.stack[len(it.stack)-1]
		f.idx++
		if f.idx < len(f.n.Keys) {
			it.descendMin(f.n.Children[f.idx])
			return
		}
		it.stack = it.stack[:len(it.stack)-1]
	}
}

// descendMin pushes the path down to the leftmost leaf of the subtree at
// loc.
func (it *Iterator) descendMin(loc arena.Location) {
	for {
		n, err := it.s.readNode(loc)
		if err != nil {
			it.fail(err)
			return
		}
		it.stack = append(it.stack, frame{n: n})
		if n.leaf() {
			return
		}
		loc = n.Children[0]
	}
}

func (it *Iterator) fail(err error) {
	it.err = err
	it.stack = nil
}
