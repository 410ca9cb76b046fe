package kmem

import (
	"sync/atomic"

	c "kslab/internal"
	"kslab/internal/sizeclass"
	"kslab/internal/util"
)

// zoneDir is one core's private allocator state.
type zoneDir struct {
	id			int

	// Zones with at least one free chunk, most recently (re)linked first.
	zoneAry		[sizeclass.NZONES]*zone

	// Completely free zones kept mapped for reuse by any class.
	freeZones	*zone
	nFreeZones	int

	// Oversized frees that happened where we couldn't give pages back.
	freeOv		util.Queue[ovFree]

	// Every zone this core owns, active, full or cached. The ticket is what
	// the in-memory header points back with.
	slots		util.TicketQueue[*zone]

	junkIndex	int

	stats		dirStats
	_pad		[64]byte
}

type ovFree struct {
	addr	uintptr
	bytes	uintptr
}

type dirStats struct {
	zonesCreated	atomic.Int64
	zonesRecycled	atomic.Int64
	zonesReleased	atomic.Int64
	ovAllocs		atomic.Int64
	ovFrees			atomic.Int64
	ovDeferred		atomic.Int64
	remoteSent		atomic.Int64
	remoteFreed		atomic.Int64
	nFreeZones		atomic.Int64
	nZones			atomic.Int64
}

func createZoneDir(id int) *zoneDir {
	return &zoneDir{
		id:		id,
		freeOv:	util.CreateQueue[ovFree](8),
		slots:	util.CreateTicketQueue[*zone](16),
	}
}

func (d *zoneDir) pushActive(z *zone) {
	z.next = d.zoneAry[z.class]
	d.zoneAry[z.class] = z
}

func (d *zoneDir) unlinkActive(z *zone) {
	pz := &d.zoneAry[z.class]
	for *pz != z {
		pz = &(*pz).next
	}
	*pz = z.next
	z.next = nil
}

func (d *zoneDir) pushFree(z *zone) {
	z.next = d.freeZones
	d.freeZones = z
	d.nFreeZones++
	d.stats.nFreeZones.Store(int64(d.nFreeZones))
}

func (d *zoneDir) popFree() *zone {
	z := d.freeZones
	if z == nil { return nil }
	d.freeZones = z.next
	z.next = nil
	d.nFreeZones--
	d.stats.nFreeZones.Store(int64(d.nFreeZones))
	return z
}

// nextJunk returns where the next zone's virgin cursor starts and slides it.
func (d *zoneDir) nextJunk() int {
	j := d.junkIndex
	d.junkIndex = (d.junkIndex + c.ZONE_SLIDE) & (c.ZONE_SIZE_MAX - 1)
	return j
}

// zoneFor looks up the zone a header slot names and checks it is the one at
// base.
func (d *zoneDir) zoneFor(slot int, base uintptr) *zone {
	z, ok := d.slots.Get(slot)
	if !ok || z == nil || z.base != base {
		return nil
	}
	return z
}
