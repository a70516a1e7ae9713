//go:build unix

package mmap

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func osMapFile(f *os.File, size int) ([]byte, func([]byte) error, error) {
	b, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	return b, unix.Munmap, err
}

func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	return b, unix.Munmap, err
}

func osAdvise(b []byte, p AccessPattern) error {
	if len(b) == 0 {
		return nil
	}
	var advice int
	switch p {
	case AccessSequential:
		advice = unix.MADV_SEQUENTIAL
	case AccessRandom:
		advice = unix.MADV_RANDOM
	case AccessWillNeed:
		advice = unix.MADV_WILLNEED
	case AccessDontNeed:
		advice = unix.MADV_DONTNEED
	default:
		advice = unix.MADV_NORMAL
	}
	// a range not starting on a page boundary gives EINVAL; hints are optional
	if err := unix.Madvise(b, advice); err != nil && !errors.Is(err, unix.EINVAL) {
		return err
	}
	return nil
}
