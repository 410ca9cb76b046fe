package kmem

import (
	c "kslab/internal"
	"kslab/internal/mtype"
	"kslab/internal/percpu"
	"kslab/internal/util"

	"github.com/negrel/assert"
)

// Free releases p, which typ was charged for. ZeroSizePtr is ignored; a nil
// pointer, or anything the allocator never handed out, is fatal.
//
// Free never blocks on the owning core. Chunks owned by another core are
// forwarded there and Free returns at once; the owner puts them back the next
// time it reaches a safe point.
func (a *Allocator) Free(cpu CPU, p Ptr, typ *mtype.Type) {
	a.free(cpu, p, typ, false)
}

func (a *Allocator) free(cpu CPU, p Ptr, typ *mtype.Type, remote bool) {
	if p == ZeroSizePtr {
		return
	}
	if p == 0 {
		a.fatal("nil free", "free of a nil pointer")
	}
	d := a.dir(cpu)
	addr := uintptr(p)

	if e := a.usage.get(addr); e.kind == usageOversized {
		if addr&c.PAGE_MASK != 0 {
			a.fatal("foreign pointer", "%#x is inside an oversized allocation", addr)
		}
		a.freeOversized(cpu, d, addr, e, typ)
		return
	}

	base := addr & a.zoneMask
	if e := a.usage.get(base); e.kind != usageZone {
		a.fatal("foreign pointer", "%#x is not an allocator address", addr)
	}
	h := headerAt(base)
	if !h.valid(base) {
		a.fatal("zone corrupted", "free of %#x: bad zone header at %#x\n%s",
			addr, base, util.Dump(headerBytes(base), base))
	}

	owner := int(h.owner)
	if owner != d.id {
		// Only the owner may touch the zone. Hand it over and forget about it.
		d.stats.remoteSent.Add(1)
		a.messenger.Send(owner, func(c percpu.Context) {
			a.free(c, p, typ, true)
		})
		return
	}

	z := d.zoneFor(int(h.slot), base)
	if z == nil {
		a.fatal("zone corrupted", "header at %#x names slot %d which core %d doesn't hold",
			base, h.slot, d.id)
	}
	if !z.owns(addr) {
		a.fatal("foreign pointer", "%#x is not a chunk boundary of zone %#x (chunk %d)",
			addr, base, z.chunk)
	}
	if debugChunks {
		if !z.markFree(addr) {
			a.fatal("double free", "chunk %#x in zone %#x is already free", addr, base)
		}
		memFill(addr, z.chunk)
	}

	cpu.CritEnter()
	z.put(addr)
	z.nFree++
	assert.GreaterOrEqual(z.nMax, z.nFree, "zone free count over capacity")
	if z.nFree == 1 {
		// was full and off the list
		d.pushActive(z)
	}
	if z.nFree == z.nMax && (z.next != nil || d.zoneAry[z.class] != z) {
		// Completely free and not the only zone of its class: park it.
		// Anything past the threshold goes back to the backend the next
		// time this core allocates.
		d.unlinkActive(z)
		z.kill()
		d.pushFree(z)
	}
	cpu.CritExit()

	typ.Credit(d.id, int64(z.chunk))
	if remote {
		d.stats.remoteFreed.Add(1)
	}
}
