//go:build windows

package mmap

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

func osMapFile(f *os.File, size int) ([]byte, func([]byte) error, error) {
	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = windows.CloseHandle(h) }()

	view, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		return nil, nil, err
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(view)), size)
	return b, func([]byte) error { return windows.UnmapViewOfFile(view) }, nil
}

func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	base, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return nil, nil, err
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(base)), size)
	return b, func([]byte) error { return windows.VirtualFree(base, 0, windows.MEM_RELEASE) }, nil
}

// osAdvise has no Windows counterpart worth calling.
func osAdvise([]byte, AccessPattern) error { return nil }
