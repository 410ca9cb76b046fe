//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package backend

import (
	"golang.org/x/sys/unix"
)

const HEAP_PAGE_ALIGNED = true

// heapMap returns n zeroed bytes outside the Go heap. n is a page multiple.
func heapMap(n uintptr) ([]byte, error) {
	return unix.Mmap(-1, 0, int(n), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func heapUnmap(buf []byte) error {
	return unix.Munmap(buf)
}
