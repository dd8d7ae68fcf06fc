//go:build unix || darwin || linux

package arena

import (
	"golang.org/x/sys/unix"
)

// mapFile maps the backing file into memory.
func (fb *FileBacking) mapFile() error {
	prot := unix.PROT_READ
	if !fb.readOnly {
		prot |= unix.PROT_WRITE
	}

	// MAP_SHARED so stores reach the file, not a private copy.
	data, err := unix.Mmap(int(fb.file.Fd()), 0, int(fb.size), prot, unix.MAP_SHARED)
	if err != nil {
		return err
	}

	fb.data = data
	return nil
}

// unmapFile unmaps the memory-mapped region.
func (fb *FileBacking) unmapFile() error {
	if fb.data == nil {
		return nil
	}

	err := unix.Munmap(fb.data)
	fb.data = nil
	return err
}

// unmapRegion unmaps a retired mapping. The handle argument only matters on
// Windows and is ignored here.
func unmapRegion(data []byte, _ uintptr) error {
	return unix.Munmap(data)
}

// syncFile flushes the mapped region to the file with a synchronous msync.
func (fb *FileBacking) syncFile() error {
	if fb.data == nil {
		return ErrFileNotOpen
	}
	return unix.Msync(fb.data, unix.MS_SYNC)
}
