package kmem

import (
	"fmt"

	c "kslab/internal"
	"kslab/internal/backend"
	"kslab/internal/mtype"
	"kslab/internal/sizeclass"

	"github.com/negrel/assert"
)

// Alloc returns at least size bytes charged to typ.
//
// Memory is 8-byte aligned, and aligned to size when size is a power of two
// no larger than the zone size. A zero size returns ZeroSizePtr. Running out
// of memory or quota returns an error if flags has NoWait or NullOK and is
// fatal otherwise. Without NoWait the call may block in the page backend, so
// it must come from a context that can block.
func (a *Allocator) Alloc(cpu CPU, size uintptr, typ *mtype.Type, flags Flags) (Ptr, error) {
	d := a.dir(cpu)

	if flags&NoWait == 0 && !cpu.CanBlock() {
		a.fatal("blocking context", "allocation of %d bytes may block but core %d cannot", size, d.id)
	}

	// Safe point: run frees other cores sent us, then give back what earlier
	// frees couldn't.
	if cpu.CanBlock() {
		a.messenger.Process(d.id)
		if flags&NoWait == 0 {
			a.reclaim(cpu, d)
		}
	}

	a.types.Register(typ)
	if typ.OverQuota() {
		if flags.failable() {
			a.log.Warn("Alloc over quota", "type", typ.Name, "size", size, "limit", a.types.Limit(typ))
			return 0, fmt.Errorf("%s: %d bytes: %w", typ.Name, size, ErrQuotaExceeded)
		}
		a.fatal("quota", "%s: malloc limit of %d bytes exceeded", typ.Name, a.types.Limit(typ))
	}

	if size == 0 {
		return ZeroSizePtr, nil
	}
	if size > a.maxAlloc {
		a.fatal("size ceiling", "request of %d bytes exceeds the %d byte maximum", size, a.maxAlloc)
	}

	if a.oversized(size) {
		return a.allocOversized(cpu, d, size, typ, flags)
	}

	size, _, class := sizeclass.Index(size)

	cpu.CritEnter()
	z := d.zoneAry[class]
	if z == nil {
		// may block in the backend
		cpu.CritExit()
		var err error
		z, err = a.newZone(cpu, d, class, size, flags)
		if err != nil {
			return a.noMemory(flags, size, err)
		}
		cpu.CritEnter()
	}

	assert.Less(0, z.nFree, "active zone with no free chunks")
	z.nFree--
	if z.nFree == 0 {
		d.unlinkActive(z)
	}
	chunk, known, ok := z.take()
	if !ok {
		cpu.CritExit()
		a.fatal("zone corrupted", "zone %#x class %d: free count %d/%d but no chunk reachable",
			z.base, z.class, z.nFree+1, z.nMax)
	}
	if debugChunks && !z.markAllocated(chunk) {
		cpu.CritExit()
		a.fatal("double allocation", "chunk %#x in zone %#x is already allocated", chunk, z.base)
	}
	cpu.CritExit()

	typ.Charge(d.id, int64(size))

	if flags&Zero != 0 && !known {
		memZero(chunk, size)
	}
	return Ptr(chunk), nil
}

// oversized reports whether size bypasses the zones: anything at the zone
// limit or above, and page multiples over two pages, which would waste most
// of a chunk on rounding anyway.
func (a *Allocator) oversized(size uintptr) bool {
	return size >= a.zoneLimit || (size&c.PAGE_MASK == 0 && size > 2*c.PAGE_SIZE)
}

func (a *Allocator) noMemory(flags Flags, size uintptr, err error) (Ptr, error) {
	if flags.failable() {
		a.log.Warn("Alloc failed", "size", size, "err", err)
		return 0, fmt.Errorf("%d bytes: %w: %w", size, ErrNoMemory, err)
	}
	a.fatal("no memory", "%d bytes: %v", size, err)
	return 0, nil
}

// newZone finds memory for a zone of class, preferring a cached empty zone
// over the backend, and links it at the head of the class list.
func (a *Allocator) newZone(cpu CPU, d *zoneDir, class int, size uintptr, flags Flags) (*zone, error) {
	cpu.CritEnter()
	z := d.popFree()
	cpu.CritExit()

	if z != nil {
		z.unotZeroed = true
		d.stats.zonesRecycled.Add(1)
	} else {
		base, err := a.backend.AcquirePages(a.zoneSize, a.zoneSize, backend.Flags(flags)&backend.FlagMask)
		if err != nil {
			return nil, err
		}
		if base&^a.zoneMask != 0 {
			a.fatal("zone alignment", "backend returned %#x for a %d byte aligned zone", base, a.zoneSize)
		}
		if !a.usage.set(base, usageEntry{kind: usageZone, core: d.id}) {
			a.fatal("usage table", "zone %#x outside the addressable range", base)
		}
		z = &zone{base: base}
		cpu.CritEnter()
		z.slot = d.slots.Acq(z)
		cpu.CritExit()
		d.stats.zonesCreated.Add(1)
		d.stats.nZones.Add(1)
	}

	cpu.CritEnter()
	z.setup(a.zoneSize, d.id, class, size, d.nextJunk())
	d.pushActive(z)
	cpu.CritExit()

	a.log.Debug("newZone", "core", d.id, "class", class, "chunk", size, "nMax", z.nMax,
		"recycled", z.unotZeroed)
	return z, nil
}

// releaseZone gives a zone's memory back to the backend. z must already be
// off every list.
func (a *Allocator) releaseZone(d *zoneDir, z *zone) error {
	z.kill()
	a.usage.clear(z.base)
	d.slots.Rel(z.slot)
	d.stats.zonesReleased.Add(1)
	d.stats.nZones.Add(-1)

	err := a.backend.ReleasePages(z.base, a.zoneSize)
	if err != nil {
		a.log.Error("releaseZone", "core", d.id, "base", z.base, "err", err)
	} else {
		a.log.Debug("releaseZone", "core", d.id, "base", z.base)
	}
	return err
}

// reclaim trims the empty zone cache down to the threshold and performs
// deferred oversized frees. It may block.
func (a *Allocator) reclaim(cpu CPU, d *zoneDir) {
	for {
		cpu.CritEnter()
		var z *zone
		if d.nFreeZones > a.relsThresh {
			z = d.popFree()
		}
		cpu.CritExit()
		if z == nil { break }
		a.releaseZone(d, z)
	}

	for {
		cpu.CritEnter()
		if d.freeOv.Cnt() == 0 {
			cpu.CritExit()
			break
		}
		ov := d.freeOv.Pop()
		cpu.CritExit()
		a.releaseOversized(d, ov.addr, ov.bytes)
	}
}

// Reclaim runs the deferred release work for cpu's core right away, along
// with any pending remote frees. cpu must be able to block.
func (a *Allocator) Reclaim(cpu CPU) {
	d := a.dir(cpu)
	if !cpu.CanBlock() {
		a.fatal("blocking context", "reclaim on core %d which cannot block", d.id)
	}
	a.messenger.Process(d.id)
	a.reclaim(cpu, d)
}
