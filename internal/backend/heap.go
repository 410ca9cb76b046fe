package backend

import (
	"fmt"
	"sync"
	"unsafe"

	c "kslab/internal"
)

// Heap gives every request its own anonymous mapping and checks releases
// against exactly what it handed out, which makes it the backend tests run
// on. Wherever the platform has mmap the memory lives outside the Go heap, so
// raw addresses into it can be turned back into pointers.
type Heap struct {
	mu		sync.Mutex
	live	map[uintptr]heapRange
	mapped	int64
}

type heapRange struct {
	buf		[]byte
	bytes	uintptr
}

func CreateHeap() *Heap {
	return &Heap{ live: make(map[uintptr]heapRange) }
}

func (h *Heap) AcquirePages(bytes uintptr, align uintptr, flags Flags) (uintptr, error) {
	if err := checkRequest(bytes, align); err != nil { return 0, err }
	align = effectiveAlign(align)

	span := bytes
	if align > c.PAGE_SIZE || !HEAP_PAGE_ALIGNED {
		span += align
	}
	buf, err := heapMap(span)
	if err != nil {
		return 0, fmt.Errorf("heap: %d bytes: %v: %w", span, err, ErrExhausted)
	}
	base := uintptr(unsafe.Pointer(&buf[0]))
	addr := c.RoundUp(base, align)

	h.mu.Lock()
	h.live[addr] = heapRange{ buf: buf, bytes: bytes }
	h.mapped += int64(bytes)
	h.mu.Unlock()

	return addr, nil
}

func (h *Heap) ReleasePages(addr uintptr, bytes uintptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.live[addr]
	if !ok { return ErrNotMapped }
	if r.bytes != bytes { return ErrBadAlign }

	if err := heapUnmap(r.buf); err != nil {
		return fmt.Errorf("heap: release %#x: %w", addr, err)
	}
	delete(h.live, addr)
	h.mapped -= int64(bytes)
	return nil
}

func (h *Heap) Mapped() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mapped
}
