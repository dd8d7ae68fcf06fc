package arena

import (
	"errors"
	"sync"
)

// Backing errors.
var (
	ErrBackingClosed   = errors.New("backing store is closed")
	ErrBackingReadOnly = errors.New("backing store is read-only")
	ErrBackingTooSmall = errors.New("backing store smaller than requested range")
)

// Growth policy for backings that can grow.
const (
	growthFactor = 2
	minGrowBytes = 8 * DefaultPageSize
)

// Backing is a flat, growable byte region the arena carves into pages.
// Implementations: an anonymous in-memory buffer and a memory-mapped file.
//
// Slices returned by Range alias the backing. After a Grow they may stop
// tracking it: reads of pages that no longer change stay correct, but
// writers must re-fetch their slice after any operation that can grow the
// store.
type Backing interface {
	// Range returns the bytes at [off, off+n). The slice aliases the
	// backing store and stays readable until Close.
	Range(off, n int64) ([]byte, error)

	// Size returns the current size of the backing in bytes.
	Size() int64

	// Grow extends the backing to at least minSize bytes.
	Grow(minSize int64) error

	// Sync flushes outstanding changes to durable storage, where the
	// implementation has any.
	Sync() error

	// Close releases the backing. Further calls fail with ErrBackingClosed.
	Close() error
}

// MemoryBacking is an in-memory Backing used for transient stores and tests.
type MemoryBacking struct {
	buf    []byte
	mu     sync.RWMutex
	closed bool
}

// NewMemoryBacking creates a MemoryBacking of the given initial size.
func NewMemoryBacking(size int64) *MemoryBacking {
	if size < 0 {
		size = 0
	}
	return &MemoryBacking{buf: make([]byte, size)}
}

// Range returns the bytes at [off, off+n).
func (m *MemoryBacking) Range(off, n int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrBackingClosed
	}
	if off < 0 || off+n > int64(len(m.buf)) {
		return nil, ErrBackingTooSmall
	}
	return m.buf[off : off+n], nil
}

// Size returns the current buffer size.
func (m *MemoryBacking) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.buf))
}

// Grow extends the buffer to at least minSize bytes. Existing contents are
// copied over; slices handed out earlier keep the old buffer alive but no
// longer observe new writes.
func (m *MemoryBacking) Grow(minSize int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrBackingClosed
	}
	if minSize <= int64(len(m.buf)) {
		return nil
	}

	newSize := int64(len(m.buf)) * growthFactor
	if newSize < minSize {
		newSize = minSize
	}
	if newSize < int64(len(m.buf))+minGrowBytes {
		newSize = int64(len(m.buf)) + minGrowBytes
	}

	grown := make([]byte, newSize)
	copy(grown, m.buf)
	m.buf = grown
	return nil
}

// Sync is a no-op for memory backings.
func (m *MemoryBacking) Sync() error {
	return nil
}

// Close releases the buffer.
func (m *MemoryBacking) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrBackingClosed
	}
	m.closed = true
	m.buf = nil
	return nil
}
