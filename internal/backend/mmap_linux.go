//go:build linux

package backend

import (
	"log/slog"
	"sync/atomic"
	"unsafe"

	c "kslab/internal"

	"golang.org/x/sys/unix"
)

const MMAP_MODE   	= unix.MAP_ANON  | unix.MAP_PRIVATE
const MMAP_PROT   	= unix.PROT_READ | unix.PROT_WRITE

// Mmap hands out anonymous private mappings. Alignment above the page size is
// done by over-mapping and trimming the slop off both ends, so every range it
// returns can be unmapped on its own.
type Mmap struct {
	log		*slog.Logger
	mapped	atomic.Int64
}

func CreateMmap() *Mmap {
	return &Mmap{ log: slog.With("src", "Mmap") }
}

func (m *Mmap) AcquirePages(bytes uintptr, align uintptr, flags Flags) (uintptr, error) {
	if err := checkRequest(bytes, align); err != nil { return 0, err }
	align = effectiveAlign(align)

	span := bytes
	if align > c.PAGE_SIZE {
		span += align
	}

	raw, err := unix.MmapPtr(-1, 0, nil, span, MMAP_PROT, MMAP_MODE)
	if err != nil {
		m.log.Error("AcquirePages", "bytes", bytes, "err", err)
		return 0, ErrExhausted
	}

	base := uintptr(raw)
	addr := c.RoundUp(base, align)
	if head := addr - base; head > 0 {
		m.unmap(base, head)
	}
	if tail := base + span - (addr + bytes); tail > 0 {
		m.unmap(addr+bytes, tail)
	}

	m.mapped.Add(int64(bytes))
	return addr, nil
}

func (m *Mmap) ReleasePages(addr uintptr, bytes uintptr) error {
	if err := checkRequest(bytes, 0); err != nil { return err }
	if err := m.unmap(addr, bytes); err != nil { return err }
	m.mapped.Add(-int64(bytes))
	return nil
}

func (m *Mmap) unmap(addr uintptr, bytes uintptr) error {
	err := unix.MunmapPtr(unsafe.Pointer(addr), bytes)
	if err != nil {
		m.log.Error("unmap", "addr", addr, "bytes", bytes, "err", err)
	}
	return err
}

// Mapped is the number of bytes currently handed out.
func (m *Mmap) Mapped() int64 {
	return m.mapped.Load()
}
