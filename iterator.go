package lodestone

import (
	"github.com/lodestone-db/lodestone/internal/txn"
)

// Iterator walks the keys of one version in ascending byte order. Keys and
// values are copies and stay valid after the iterator advances.
type Iterator struct {
	inner *txn.Iterator
}

// Next returns the next key/value pair. ok is false when the iterator is
// exhausted or an error occurred; check Err to tell the two apart.
func (it *Iterator) Next() (key, value []byte, ok bool) {
	return it.inner.Next()
}

// Err returns the first error the iterator encountered, if any.
func (it *Iterator) Err() error {
	return it.inner.Err()
}
