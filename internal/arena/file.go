package arena

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// FileBacking errors.
var (
	ErrFileNotOpen = errors.New("file not open")
	ErrMmapFailed  = errors.New("failed to memory-map file")
	ErrRemapFailed = errors.New("failed to remap file")
	ErrMsyncFailed = errors.New("failed to sync mapped file")
)

// FileBacking is a memory-mapped file Backing. Reads and writes go straight
// through the mapping; Grow extends the file and maps a larger region.
//
// Growing keeps the superseded mapping alive until Close: snapshot readers
// may still hold slices into it, and every page they can reach through their
// snapshot is immutable, so the retired region stays valid for them.
type FileBacking struct {
	file     *os.File
	data     []byte // current mapped region
	size     int64  // current mapped size
	pageSize int    // alignment unit
	readOnly bool
	mu       sync.RWMutex
	closed   bool

	retired [][]byte // superseded mappings, unmapped on Close

	mapHandle  uintptr   // Windows file mapping handle (unused on Unix)
	retiredMap []uintptr // superseded Windows mapping handles
}

// OpenFileBacking opens or creates the file at path and maps it with at
// least minSize bytes, rounded up to a pageSize boundary.
func OpenFileBacking(path string, minSize int64, pageSize int, readOnly bool) (*FileBacking, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	flags := os.O_RDWR | os.O_CREATE
	if readOnly {
		flags = os.O_RDONLY
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open store file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	size := info.Size()
	if size < minSize {
		size = minSize
	}
	size = alignToPage(size, pageSize)
	if size < int64(pageSize) {
		size = int64(pageSize)
	}

	if info.Size() < size && !readOnly {
		if err := file.Truncate(size); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to extend store file: %w", err)
		}
	}

	fb := &FileBacking{
		file:     file,
		size:     size,
		pageSize: pageSize,
		readOnly: readOnly,
	}

	if err := fb.mapFile(); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %v", ErrMmapFailed, err)
	}

	return fb, nil
}

// alignToPage rounds size up to the nearest pageSize boundary.
func alignToPage(size int64, pageSize int) int64 {
	ps := int64(pageSize)
	if size%ps == 0 {
		return size
	}
	return ((size / ps) + 1) * ps
}

// Range returns the bytes at [off, off+n) of the mapped region.
func (fb *FileBacking) Range(off, n int64) ([]byte, error) {
	fb.mu.RLock()
	defer fb.mu.RUnlock()

	if fb.closed {
		return nil, ErrBackingClosed
	}
	if fb.data == nil {
		return nil, ErrFileNotOpen
	}
	if off < 0 || off+n > fb.size {
		return nil, ErrBackingTooSmall
	}
	return fb.data[off : off+n], nil
}

// Size returns the current mapped size in bytes.
func (fb *FileBacking) Size() int64 {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.size
}

// Grow extends the file to at least minSize bytes and maps the larger
// region. The old mapping is retired, not unmapped: slices handed out before
// the grow keep working until Close.
func (fb *FileBacking) Grow(minSize int64) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.closed {
		return ErrBackingClosed
	}
	if minSize <= fb.size {
		return nil
	}
	if fb.readOnly {
		return ErrBackingReadOnly
	}

	newSize := fb.size * growthFactor
	if newSize < minSize {
		newSize = minSize
	}
	newSize = alignToPage(newSize, fb.pageSize)

	if err := fb.file.Truncate(newSize); err != nil {
		return fmt.Errorf("failed to extend store file: %w", err)
	}

	fb.retired = append(fb.retired, fb.data)
	fb.retiredMap = append(fb.retiredMap, fb.mapHandle)
	fb.data = nil
	fb.mapHandle = 0

	fb.size = newSize
	if err := fb.mapFile(); err != nil {
		return fmt.Errorf("%w: %v", ErrRemapFailed, err)
	}
	return nil
}

// Sync flushes the mapping and the file metadata to disk.
func (fb *FileBacking) Sync() error {
	fb.mu.RLock()
	defer fb.mu.RUnlock()

	if fb.closed {
		return ErrBackingClosed
	}
	if fb.data == nil {
		return ErrFileNotOpen
	}
	if err := fb.syncFile(); err != nil {
		return fmt.Errorf("%w: %v", ErrMsyncFailed, err)
	}
	return fb.file.Sync()
}

// Close unmaps the region and closes the file.
func (fb *FileBacking) Close() error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.closed {
		return ErrBackingClosed
	}
	fb.closed = true

	var unmapErr error
	if fb.data != nil {
		unmapErr = fb.unmapFile()
	}
	for i, region := range fb.retired {
		if err := unmapRegion(region, fb.retiredMap[i]); err != nil && unmapErr == nil {
			unmapErr = err
		}
	}
	fb.retired = nil
	fb.retiredMap = nil

	closeErr := fb.file.Close()
	if unmapErr != nil {
		return unmapErr
	}
	return closeErr
}
