package txn

import (
	"github.com/lodestone-db/lodestone/internal/arena"
	"github.com/lodestone-db/lodestone/internal/btree"
)

// ReadTxn is a snapshot read transaction. It sees exactly the version that
// was committed when it began, regardless of later writes.
type ReadTxn struct {
	m    *Manager
	root arena.Location
	id   uint64
	done bool
}

// ID returns the id of the committed transaction this snapshot reads.
func (r *ReadTxn) ID() uint64 {
	return r.id
}

// Get returns a copy of the value stored under key, and whether the key
// exists in this snapshot.
func (r *ReadTxn) Get(key []byte) ([]byte, bool, error) {
	if r.done {
		return nil, false, ErrTxnDone
	}
	return r.m.lookup(r.root, key)
}

// Iter returns an iterator over every key of this snapshot in ascending
// order.
func (r *ReadTxn) Iter() *Iterator {
	if r.done {
		return &Iterator{err: ErrTxnDone}
	}
	return r.m.iterate(r.root, nil)
}

// Seek returns an iterator positioned at the smallest key >= key in this
// snapshot.
func (r *ReadTxn) Seek(key []byte) *Iterator {
	if r.done {
		return &Iterator{err: ErrTxnDone}
	}
	return r.m.iterate(r.root, key)
}

// End unpins the snapshot. The transaction is unusable afterwards.
func (r *ReadTxn) End() error {
	if r.done {
		return ErrTxnDone
	}
	r.done = true
	return r.m.endRead(r.root)
}

// WriteTxn is the exclusive write transaction. Its mutations build a new
// tree version that becomes visible to readers only at Commit.
type WriteTxn struct {
	m        *Manager
	id       uint64
	base     arena.Location
	working  arena.Location
	baseTail arena.PageID
	done     bool
	failed   bool
}

// ID returns the transaction's id.
func (w *WriteTxn) ID() uint64 {
	return w.id
}

func (w *WriteTxn) usable() error {
	if w.done {
		return ErrTxnDone
	}
	if w.failed {
		return ErrTxnFailed
	}
	return nil
}

// Put stores value under key, replacing any existing value. An error leaves
// the transaction failed; only Abort is possible afterwards.
func (w *WriteTxn) Put(key, value []byte) error {
	if err := w.usable(); err != nil {
		return err
	}
	newRoot, err := w.m.tree.Insert(w.working, w.id, key, value)
	if err != nil {
		w.failed = true
		return err
	}
	w.working = newRoot
	return nil
}

// Delete removes key and reports whether it was present.
func (w *WriteTxn) Delete(key []byte) (bool, error) {
	if err := w.usable(); err != nil {
		return false, err
	}
	newRoot, found, err := w.m.tree.Delete(w.working, w.id, key)
	if err != nil {
		w.failed = true
		return false, err
	}
	w.working = newRoot
	return found, nil
}

// Get returns a copy of the value under key as this transaction sees it,
// including its own uncommitted writes.
func (w *WriteTxn) Get(key []byte) ([]byte, bool, error) {
	if err := w.usable(); err != nil {
		return nil, false, err
	}
	return w.m.lookup(w.working, key)
}

// Iter returns an iterator over the transaction's working version,
// uncommitted writes included.
func (w *WriteTxn) Iter() *Iterator {
	if err := w.usable(); err != nil {
		return &Iterator{err: err}
	}
	return w.m.iterate(w.working, nil)
}

// Seek returns an iterator positioned at the smallest key >= key in the
// transaction's working version.
func (w *WriteTxn) Seek(key []byte) *Iterator {
	if err := w.usable(); err != nil {
		return &Iterator{err: err}
	}
	return w.m.iterate(w.working, key)
}

// Commit publishes the working version as the committed state. A failed
// transaction cannot commit.
func (w *WriteTxn) Commit() error {
	if w.done {
		return ErrTxnDone
	}
	if w.failed {
		return ErrTxnFailed
	}
	w.done = true
	return w.m.commit(w)
}

// Abort discards the working version and unpins the base. It never fails:
// the committed state is untouched whatever happens.
func (w *WriteTxn) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.m.abort(w)
}

// lookup materializes the value under key in the version rooted at root.
func (m *Manager) lookup(root arena.Location, key []byte) ([]byte, bool, error) {
	valLoc, found, err := m.tree.Get(root, key)
	if err != nil || !found {
		return nil, false, err
	}
	value, err := m.entries.Read(valLoc)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// iterate opens a materializing iterator over the version rooted at root,
// from the start or from the given seek key.
func (m *Manager) iterate(root arena.Location, seek []byte) *Iterator {
	var inner *btree.Iterator
	if seek == nil {
		inner = m.tree.Iter(root)
	} else {
		inner = m.tree.Seek(root, seek)
	}
	return &Iterator{inner: inner, m: m}
}

// Iterator yields copies of the keys and values of one tree version in
// ascending key order.
type Iterator struct {
	inner *btree.Iterator
	m     *Manager
	err   error
}

// Next returns the next pair. ok is false once the iterator is exhausted or
// an error occurred; check Err after the loop.
func (it *Iterator) Next() (key, value []byte, ok bool) {
	if it.err != nil {
		return nil, nil, false
	}
	keyLoc, valLoc, ok := it.inner.Next()
	if !ok {
		it.err = it.inner.Err()
		return nil, nil, false
	}
	if key, it.err = it.m.entries.Read(keyLoc); it.err != nil {
		return nil, nil, false
	}
	if value, it.err = it.m.entries.Read(valLoc); it.err != nil {
		return nil, nil, false
	}
	return key, value, true
}

// Err returns the first error the iterator ran into, if any.
func (it *Iterator) Err() error {
	return it.err
}
