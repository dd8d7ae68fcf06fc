package btree

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/lodestone-db/lodestone/internal/arena"
	"github.com/lodestone-db/lodestone/internal/bytestring"
)

// DefaultCacheSize is the default capacity of the decoded-node cache, in
// nodes.
const DefaultCacheSize = 256

// Store reads and mutates tree versions on top of an arena. Keys and values
// are byte-string entries; the store itself only shuffles their locations.
//
// A Store carries no root of its own. Every operation takes the root of the
// version it should work on, and mutations return the root of the version
// they produced, which makes snapshotting a matter of remembering a
// location.
type Store struct {
	arena   *arena.Arena
	entries *bytestring.Codec
	cache   *ristretto.Cache[uint64, *Node]
	geom    arena.Geometry
}

// NewStore creates a store over a. cacheSize is the capacity of the
// decoded-node cache in nodes; zero selects DefaultCacheSize.
func NewStore(a *arena.Arena, entries *bytestring.Codec, cacheSize int64) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, *Node]{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create node cache: %w", err)
	}
	return &Store{
		arena:   a,
		entries: entries,
		cache:   cache,
		geom:    a.Geometry(),
	}, nil
}

// Close releases the decoded-node cache. The arena stays open.
func (s *Store) Close() {
	s.cache.Close()
}

// searchKeys returns the lowest index whose key is >= key, and whether it is
// an exact match. The returned index is len(n.Keys) when every key is
// smaller.
func (s *Store) searchKeys(n *Node, key []byte) (int, bool, error) {
	lo, hi := 0, len(n.Keys)
	for lo < hi {
		mid := (lo + hi) / 2
		diff, err := s.entries.Compare(n.Keys[mid], key)
		if err != nil {
			return 0, false, err
		}
		if diff < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(n.Keys) {
		diff, err := s.entries.Compare(n.Keys[lo], key)
		if err != nil {
			return 0, false, err
		}
		return lo, diff == 0, nil
	}
	return lo, false, nil
}

// childIndex returns the slot of the subtree that covers key: the largest i
// whose separator is <= key, clamped to 0 for keys below the tree minimum.
func (s *Store) childIndex(n *Node, key []byte) (int, error) {
	idx, found, err := s.searchKeys(n, key)
	if err != nil {
		return 0, err
	}
	if found {
		return idx, nil
	}
	if idx == 0 {
		return 0, nil
	}
	return idx - 1, nil
}

// Get returns the value entry location for key in the version rooted at
// root. The boolean reports whether the key exists.
func (s *Store) Get(root arena.Location, key []byte) (arena.Location, bool, error) {
	loc := root
	for !loc.IsNil() {
		n, err := s.readNode(loc)
		if err != nil {
			return arena.Nil, false, err
		}

		idx, found, err := s.searchKeys(n, key)
		if err != nil {
			return arena.Nil, false, err
		}
		if n.leaf() {
			if !found {
				return arena.Nil, false, nil
			}
			return n.Children[idx], true, nil
		}
		if !found {
			if idx == 0 {
				// Below the tree minimum.
				return arena.Nil, false, nil
			}
			idx--
		}
		loc = n.Children[idx]
	}
	return arena.Nil, false, nil
}

// MinKey returns the location of the smallest key in the subtree at loc.
func (s *Store) MinKey(loc arena.Location) (arena.Location, error) {
	n, err := s.readNode(loc)
	if err != nil {
		return arena.Nil, err
	}
	if len(n.Keys) == 0 {
		return arena.Nil, fmt.Errorf("%w: node at page %d is empty", arena.ErrCorrupted, loc.Page)
	}
	return n.Keys[0], nil
}

// ReleaseTree drops one reference from the version rooted at root. Nodes
// whose count reaches zero release everything they reference in turn, so a
// fully private version disappears while shared subtrees survive.
func (s *Store) ReleaseTree(root arena.Location) error {
	if root.IsNil() {
		return nil
	}
	return s.releaseNode(root)
}

func (s *Store) releaseNode(loc arena.Location) error {
	n, err := s.readNode(loc)
	if err != nil {
		return err
	}

	freed, err := s.arena.Release(loc.Page)
	if err != nil {
		return err
	}
	if !freed {
		return nil
	}
	s.evict(loc.Page)

	for _, key := range n.Keys {
		if _, err := s.entries.Release(key); err != nil {
			return err
		}
	}
	for _, child := range n.Children {
		if n.leaf() {
			if _, err := s.entries.Release(child); err != nil {
				return err
			}
		} else {
			if err := s.releaseNode(child); err != nil {
				return err
			}
		}
	}
	return nil
}

// dropNodePage frees a transaction-private node page whose references have
// already been transferred elsewhere, without cascading into its contents.
func (s *Store) dropNodePage(id arena.PageID) error {
	freed, err := s.arena.Release(id)
	if err != nil {
		return err
	}
	if !freed {
		return fmt.Errorf("%w: dropped node page %d was still referenced", arena.ErrCorrupted, id)
	}
	s.evict(id)
	return nil
}

// evict removes a freed page from the decoded-node cache. Deletes flow
// through the cache's write buffer, so flush before the page id can come
// back from the free list as a different node.
func (s *Store) evict(id arena.PageID) {
	s.cache.Del(uint64(id))
	s.cache.Wait()
}
