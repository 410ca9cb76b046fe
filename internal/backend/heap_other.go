//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package backend

const HEAP_PAGE_ALIGNED = false

// No anonymous mappings here, so fall back to Go memory kept reachable in
// the live map. checkptr builds (-race) reject raw addresses into it.
func heapMap(n uintptr) ([]byte, error) {
	return make([]byte, n), nil
}

func heapUnmap(buf []byte) error {
	return nil
}
