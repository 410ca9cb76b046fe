//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package backend

import (
	"runtime"
	"testing"
	"unsafe"

	c "kslab/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stored addresses are turned back into pointers long after AcquirePages,
// the way the allocator uses them. Must hold under go test -race (checkptr).
func Test_Heap_Stored_Addresses(t *testing.T) {
	h := CreateHeap()

	var addrs []uintptr
	for i := range 8 {
		addr, err := h.AcquirePages(0x8000, 0x8000, 0)
		require.NoError(t, err)
		assert.Zero(t, addr%0x8000)
		addrs = append(addrs, addr)
		*(*uint64)(unsafe.Pointer(addr + uintptr(i)*c.PAGE_SIZE)) = uint64(i) + 1
	}

	runtime.GC()
	runtime.GC()

	for i, addr := range addrs {
		p := unsafe.Pointer(addr + uintptr(i)*c.PAGE_SIZE)
		assert.Equal(t, uint64(i)+1, *(*uint64)(p))
		require.NoError(t, h.ReleasePages(addr, 0x8000))
	}
	assert.Equal(t, int64(0), h.Mapped())

	// page alignment comes from the mapping itself
	addr, err := h.AcquirePages(c.PAGE_SIZE, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, addr&c.PAGE_MASK)
	require.NoError(t, h.ReleasePages(addr, c.PAGE_SIZE))
}
