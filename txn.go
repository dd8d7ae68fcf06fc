package lodestone

import (
	"github.com/lodestone-db/lodestone/internal/txn"
)

// ReadTxn is a snapshot read transaction. It sees exactly the version that
// was committed when it began and must be finished with End.
type ReadTxn struct {
	inner *txn.ReadTxn
}

// ID returns the id of the committed transaction this snapshot reads.
func (r *ReadTxn) ID() uint64 {
	return r.inner.ID()
}

// Get returns a copy of the value stored under key, and whether the key
// exists in this snapshot.
func (r *ReadTxn) Get(key []byte) ([]byte, bool, error) {
	return r.inner.Get(key)
}

// Iter returns an iterator over every key of this snapshot in ascending
// order.
func (r *ReadTxn) Iter() *Iterator {
	return &Iterator{inner: r.inner.Iter()}
}

// Seek returns an iterator positioned at the smallest key >= key.
func (r *ReadTxn) Seek(key []byte) *Iterator {
	return &Iterator{inner: r.inner.Seek(key)}
}

// End unpins the snapshot. The transaction is unusable afterwards.
func (r *ReadTxn) End() error {
	return r.inner.End()
}

// WriteTxn is the exclusive write transaction. Its writes become visible to
// readers atomically at Commit; Abort discards them completely.
type WriteTxn struct {
	inner   *txn.WriteTxn
	maxSize int
}

// ID returns the transaction's id.
func (w *WriteTxn) ID() uint64 {
	return w.inner.ID()
}

// Put stores value under key, replacing any existing value. Keys must be
// non-empty; keys and values are bounded by the format's maximum
// byte-string size.
func (w *WriteTxn) Put(key, value []byte) error {
	if len(key) == 0 {
		return ErrKeyRequired
	}
	if len(key) > w.maxSize {
		return ErrKeyTooLarge
	}
	if len(value) > w.maxSize {
		return ErrValueTooLarge
	}
	return w.inner.Put(key, value)
}

// Delete removes key and reports whether it was present.
func (w *WriteTxn) Delete(key []byte) (bool, error) {
	if len(key) == 0 {
		return false, ErrKeyRequired
	}
	return w.inner.Delete(key)
}

// Get returns a copy of the value under key as this transaction sees it,
// its own uncommitted writes included.
func (w *WriteTxn) Get(key []byte) ([]byte, bool, error) {
	return w.inner.Get(key)
}

// Iter returns an iterator over the transaction's working version.
func (w *WriteTxn) Iter() *Iterator {
	return &Iterator{inner: w.inner.Iter()}
}

// Seek returns an iterator positioned at the smallest key >= key in the
// transaction's working version.
func (w *WriteTxn) Seek(key []byte) *Iterator {
	return &Iterator{inner: w.inner.Seek(key)}
}

// Commit publishes the transaction's writes as the committed state.
func (w *WriteTxn) Commit() error {
	return w.inner.Commit()
}

// Abort discards the transaction's writes. It never fails.
func (w *WriteTxn) Abort() {
	w.inner.Abort()
}
