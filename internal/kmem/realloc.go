package kmem

import (
	c "kslab/internal"
	"kslab/internal/mtype"
	"kslab/internal/sizeclass"
)

// Realloc resizes p to size bytes. The pointer stays the same when the new
// size rounds to the same chunk size or page count; otherwise the contents
// are copied into a new allocation and p is freed. A nil or zero-size p is a
// plain Alloc, a zero size a plain Free.
//
// On failure p is left untouched.
func (a *Allocator) Realloc(cpu CPU, p Ptr, size uintptr, typ *mtype.Type, flags Flags) (Ptr, error) {
	if p == 0 || p == ZeroSizePtr {
		return a.Alloc(cpu, size, typ, flags)
	}
	if size == 0 {
		a.Free(cpu, p, typ)
		return 0, nil
	}

	old, ov := a.sizeOf(p)
	if ov && a.oversized(size) && c.RoundPage(size) == old {
		return p, nil
	}
	if !ov && !a.oversized(size) {
		if rounded, _, _ := sizeclass.Index(size); rounded == old { return p, nil }
	}

	np, err := a.Alloc(cpu, size, typ, flags&^Zero)
	if err != nil {
		return 0, err
	}
	memCopy(uintptr(np), uintptr(p), min(old, size))
	if flags&Zero != 0 && size > old {
		memZero(uintptr(np)+old, a.UsableSize(np)-old)
	}
	a.Free(cpu, p, typ)
	return np, nil
}

// Strdup copies s into a new NUL-terminated allocation.
func (a *Allocator) Strdup(cpu CPU, s string, typ *mtype.Type, flags Flags) (Ptr, error) {
	n := uintptr(len(s)) + 1
	p, err := a.Alloc(cpu, n, typ, flags&^Zero)
	if err != nil {
		return 0, err
	}
	b := memView(uintptr(p), n)
	copy(b, s)
	b[n-1] = 0
	return p, nil
}

// UsableSize is how many bytes at p the caller may actually use: the chunk
// size for zone memory, the page-rounded span for oversized memory.
func (a *Allocator) UsableSize(p Ptr) uintptr {
	if p == 0 || p == ZeroSizePtr {
		return 0
	}
	n, _ := a.sizeOf(p)
	return n
}

// sizeOf also reports whether p came from the oversized path.
func (a *Allocator) sizeOf(p Ptr) (uintptr, bool) {
	addr := uintptr(p)
	if e := a.usage.get(addr); e.kind == usageOversized && addr&c.PAGE_MASK == 0 {
		return e.pages << c.PAGE_SHIFT, true
	}

	base := addr & a.zoneMask
	if a.usage.get(base).kind != usageZone {
		a.fatal("foreign pointer", "%#x is not an allocator address", addr)
	}
	h := headerAt(base)
	if !h.valid(base) {
		a.fatal("zone corrupted", "size of %#x: bad zone header at %#x", addr, base)
	}

	// The zone struct belongs to the owner, so check the boundary from the
	// header alone.
	size := uintptr(h.chunk)
	first := base + chunkOffset(size)
	if addr < first || (addr-first)%size != 0 || addr+size > base+a.zoneSize {
		a.fatal("foreign pointer", "%#x is not a chunk boundary of zone %#x (chunk %d)",
			addr, base, size)
	}
	return size, false
}
