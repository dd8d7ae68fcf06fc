//go:build windows

package arena

import (
	"syscall"
	"unsafe"
)

var (
	modkernel32           = syscall.NewLazyDLL("kernel32.dll")
	procCreateFileMapping = modkernel32.NewProc("CreateFileMappingW")
	procMapViewOfFile     = modkernel32.NewProc("MapViewOfFile")
	procUnmapViewOfFile   = modkernel32.NewProc("UnmapViewOfFile")
	procFlushViewOfFile   = modkernel32.NewProc("FlushViewOfFile")
)

const (
	pageReadonly  = 0x02
	pageReadWrite = 0x04
	fileMapRead   = 0x04
	fileMapWrite  = 0x02
)

// mapFile maps the backing file into memory using the Windows API.
func (fb *FileBacking) mapFile() error {
	prot := uint32(pageReadonly)
	access := uint32(fileMapRead)
	if !fb.readOnly {
		prot = pageReadWrite
		access = fileMapWrite | fileMapRead
	}

	handle := syscall.Handle(fb.file.Fd())
	sizeLow := uint32(fb.size)
	sizeHigh := uint32(fb.size >> 32)

	mapHandle, _, err := procCreateFileMapping.Call(
		uintptr(handle),
		0,
		uintptr(prot),
		uintptr(sizeHigh),
		uintptr(sizeLow),
		0,
	)
	if mapHandle == 0 {
		return err
	}

	addr, _, err := procMapViewOfFile.Call(
		mapHandle,
		uintptr(access),
		0,
		0,
		uintptr(fb.size),
	)
	if addr == 0 {
		syscall.CloseHandle(syscall.Handle(mapHandle))
		return err
	}

	fb.mapHandle = mapHandle
	fb.data = unsafe.Slice((*byte)(unsafe.Pointer(addr)), fb.size)
	return nil
}

// unmapFile unmaps the memory-mapped region.
func (fb *FileBacking) unmapFile() error {
	if fb.data == nil {
		return nil
	}

	addr := uintptr(unsafe.Pointer(&fb.data[0]))
	ret, _, err := procUnmapViewOfFile.Call(addr)
	if ret == 0 {
		return err
	}

	if fb.mapHandle != 0 {
		syscall.CloseHandle(syscall.Handle(fb.mapHandle))
		fb.mapHandle = 0
	}

	fb.data = nil
	return nil
}

// unmapRegion unmaps a retired mapping and closes its file mapping handle.
func unmapRegion(data []byte, handle uintptr) error {
	addr := uintptr(unsafe.Pointer(&data[0]))
	ret, _, err := procUnmapViewOfFile.Call(addr)
	if ret == 0 {
		return err
	}
	if handle != 0 {
		syscall.CloseHandle(syscall.Handle(handle))
	}
	return nil
}

// syncFile flushes the mapped region to the file.
func (fb *FileBacking) syncFile() error {
	if fb.data == nil {
		return ErrFileNotOpen
	}

	addr := uintptr(unsafe.Pointer(&fb.data[0]))
	ret, _, err := procFlushViewOfFile.Call(addr, uintptr(len(fb.data)))
	if ret == 0 {
		return err
	}
	return nil
}
