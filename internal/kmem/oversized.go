package kmem

import (
	c "kslab/internal"
	"kslab/internal/backend"
	"kslab/internal/mtype"
)

// allocOversized takes whole pages straight from the backend and records the
// span in the usage table. Backend pages come zeroed, so Zero is free here.
func (a *Allocator) allocOversized(cpu CPU, d *zoneDir, size uintptr, typ *mtype.Type, flags Flags) (Ptr, error) {
	size = c.RoundPage(size)

	align := uintptr(c.PAGE_SIZE)
	if c.IsPow2(size) && size <= a.zoneSize {
		align = size
	}

	addr, err := a.backend.AcquirePages(size, align, backend.Flags(flags)&backend.FlagMask)
	if err != nil {
		return a.noMemory(flags, size, err)
	}
	if !a.usage.set(addr, usageEntry{kind: usageOversized, core: d.id, pages: size >> c.PAGE_SHIFT}) {
		a.fatal("usage table", "oversized %#x outside the addressable range", addr)
	}

	typ.Charge(d.id, int64(size))
	d.stats.ovAllocs.Add(1)
	a.log.Debug("allocOversized", "core", d.id, "addr", addr, "bytes", size)
	return Ptr(addr), nil
}

// freeOversized undoes allocOversized. If cpu can't block the pages are
// queued on its core and released by a later allocation there.
func (a *Allocator) freeOversized(cpu CPU, d *zoneDir, addr uintptr, e usageEntry, typ *mtype.Type) {
	size := e.pages << c.PAGE_SHIFT
	a.usage.clear(addr)
	typ.Credit(d.id, int64(size))
	d.stats.ovFrees.Add(1)

	if !cpu.CanBlock() {
		cpu.CritEnter()
		d.freeOv.Push(ovFree{addr: addr, bytes: size})
		cpu.CritExit()
		d.stats.ovDeferred.Add(1)
		return
	}
	a.releaseOversized(d, addr, size)
}

func (a *Allocator) releaseOversized(d *zoneDir, addr uintptr, size uintptr) {
	err := a.backend.ReleasePages(addr, size)
	if err != nil {
		a.log.Error("releaseOversized", "core", d.id, "addr", addr, "bytes", size, "err", err)
		return
	}
	a.log.Debug("releaseOversized", "core", d.id, "addr", addr, "bytes", size)
}
