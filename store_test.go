package lodestone

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Fixtures
// ============================================================================

func newMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// ============================================================================
// Basic operations
// ============================================================================

func TestPutGetCommit(t *testing.T) {
	s := newMemStore(t)

	big := bytes.Repeat([]byte{0xAB}, 5000)

	w, err := s.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, w.Put([]byte("a"), []byte("1")))
	require.NoError(t, w.Put([]byte("b"), big))

	// The writer reads its own uncommitted writes.
	got, ok, err := w.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), got)

	require.NoError(t, w.Commit())

	r, err := s.BeginRead()
	require.NoError(t, err)
	defer r.End()

	got, ok, err = r.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), got)

	got, ok, err = r.Get([]byte("b"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, big, got)

	_, ok, err = r.Get([]byte("c"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIterationOrder(t *testing.T) {
	s := newMemStore(t)

	err := s.Update(func(w *WriteTxn) error {
		for _, k := range []string{"cherry", "apple", "banana"} {
			if err := w.Put([]byte(k), []byte("v-"+k)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var keys []string
	err = s.View(func(r *ReadTxn) error {
		it := r.Iter()
		for {
			k, v, ok := it.Next()
			if !ok {
				break
			}
			assert.Equal(t, "v-"+string(k), string(v))
			keys = append(keys, string(k))
		}
		return it.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "banana", "cherry"}, keys)
}

func TestSeek(t *testing.T) {
	s := newMemStore(t)

	err := s.Update(func(w *WriteTxn) error {
		for _, k := range []string{"a", "c", "e"} {
			if err := w.Put([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = s.View(func(r *ReadTxn) error {
		it := r.Seek([]byte("b"))
		k, _, ok := it.Next()
		require.True(t, ok)
		assert.Equal(t, []byte("c"), k)
		return it.Err()
	})
	require.NoError(t, err)
}

func TestDelete(t *testing.T) {
	s := newMemStore(t)

	require.NoError(t, s.Update(func(w *WriteTxn) error {
		return w.Put([]byte("gone"), []byte("soon"))
	}))

	err := s.Update(func(w *WriteTxn) error {
		found, err := w.Delete([]byte("gone"))
		require.NoError(t, err)
		assert.True(t, found)

		found, err = w.Delete([]byte("never-existed"))
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	})
	require.NoError(t, err)

	err = s.View(func(r *ReadTxn) error {
		_, ok, err := r.Get([]byte("gone"))
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

// ============================================================================
// View / Update helpers
// ============================================================================

func TestUpdateRollsBackOnError(t *testing.T) {
	s := newMemStore(t)

	boom := errors.New("boom")
	err := s.Update(func(w *WriteTxn) error {
		if err := w.Put([]byte("x"), []byte("y")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.View(func(r *ReadTxn) error {
		_, ok, err := r.Get([]byte("x"))
		require.NoError(t, err)
		assert.False(t, ok, "aborted write must not be visible")
		return nil
	})
	require.NoError(t, err)
}

// ============================================================================
// Isolation
// ============================================================================

func TestSnapshotIsolation(t *testing.T) {
	s := newMemStore(t)

	require.NoError(t, s.Update(func(w *WriteTxn) error {
		return w.Put([]byte("k"), []byte("v1"))
	}))

	r, err := s.BeginRead()
	require.NoError(t, err)

	require.NoError(t, s.Update(func(w *WriteTxn) error {
		return w.Put([]byte("k"), []byte("v2"))
	}))

	// The pinned snapshot still sees the old value.
	got, ok, err := r.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), got)
	require.NoError(t, r.End())

	err = s.View(func(r2 *ReadTxn) error {
		got, ok, err := r2.Get([]byte("k"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v2"), got)
		return nil
	})
	require.NoError(t, err)
}

func TestSingleWriter(t *testing.T) {
	s := newMemStore(t)

	w, err := s.BeginWrite()
	require.NoError(t, err)

	_, err = s.BeginWrite()
	require.ErrorIs(t, err, ErrWriterActive)

	w.Abort()

	w2, err := s.BeginWrite()
	require.NoError(t, err)
	w2.Abort()
}

// ============================================================================
// Argument validation
// ============================================================================

func TestPutValidation(t *testing.T) {
	s := newMemStore(t)

	w, err := s.BeginWrite()
	require.NoError(t, err)
	defer w.Abort()

	max := s.entries.MaxSize()

	err = w.Put(nil, []byte("v"))
	assert.ErrorIs(t, err, ErrKeyRequired)

	err = w.Put(make([]byte, max+1), []byte("v"))
	assert.ErrorIs(t, err, ErrKeyTooLarge)

	err = w.Put([]byte("k"), make([]byte, max+1))
	assert.ErrorIs(t, err, ErrValueTooLarge)

	_, err = w.Delete(nil)
	assert.ErrorIs(t, err, ErrKeyRequired)

	// Validation failures do not poison the transaction.
	require.NoError(t, w.Put([]byte("k"), []byte("v")))
	require.NoError(t, w.Commit())
}

// ============================================================================
// Persistence
// ============================================================================

func TestReopenFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	s, err := Open(path, DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, s.Update(func(w *WriteTxn) error {
		for i := 0; i < 100; i++ {
			k := []byte(fmt.Sprintf("key-%03d", i))
			if err := w.Put(k, []byte(fmt.Sprintf("val-%03d", i))); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, s.Close())

	s, err = Open(path, DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	err = s.View(func(r *ReadTxn) error {
		for i := 0; i < 100; i++ {
			got, ok, err := r.Get([]byte(fmt.Sprintf("key-%03d", i)))
			require.NoError(t, err)
			require.True(t, ok, "key-%03d missing after reopen", i)
			assert.Equal(t, fmt.Sprintf("val-%03d", i), string(got))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.Stats().LastTxnID)
}

func TestReadOnlyOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	s, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.Update(func(w *WriteTxn) error {
		return w.Put([]byte("frozen"), []byte("solid"))
	}))
	require.NoError(t, s.Close())

	s, err = Open(path, DefaultOptions().WithReadOnly(true))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.BeginWrite()
	require.ErrorIs(t, err, ErrReadOnly)

	err = s.View(func(r *ReadTxn) error {
		got, ok, err := r.Get([]byte("frozen"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("solid"), got)
		return nil
	})
	require.NoError(t, err)
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestCloseWithActiveTxn(t *testing.T) {
	s, err := OpenMemory(DefaultOptions())
	require.NoError(t, err)

	r, err := s.BeginRead()
	require.NoError(t, err)

	require.ErrorIs(t, s.Close(), ErrActiveTxns)

	require.NoError(t, r.End())
	require.NoError(t, s.Close())

	_, err = s.BeginRead()
	require.ErrorIs(t, err, ErrStoreClosed)
	_, err = s.BeginWrite()
	require.ErrorIs(t, err, ErrStoreClosed)
}

func TestStats(t *testing.T) {
	s := newMemStore(t)

	before := s.Stats()
	assert.Equal(t, uint64(0), before.LastTxnID)

	require.NoError(t, s.Update(func(w *WriteTxn) error {
		return w.Put([]byte("k"), []byte("v"))
	}))

	after := s.Stats()
	assert.Equal(t, uint64(1), after.LastTxnID)
	assert.Greater(t, after.LivePages, uint64(0))
	assert.Greater(t, after.Bytes, int64(0))
}

func TestOptionsValidation(t *testing.T) {
	_, err := OpenMemory(DefaultOptions().WithPageSize(1000))
	require.Error(t, err)

	_, err = OpenMemory(DefaultOptions().WithLocationWidth(5))
	require.Error(t, err)
}
