package kmem

import (
	"fmt"
	"strings"
)

func (z *zone) String() string {
	if z == nil {
		return "<nil>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Zone | Base: 0x%x, Slot: %d, Class: %d, Chunk: %d, Free: %d/%d, Tag: 0x%016x\n",
		z.base, z.slot, z.class, z.chunk, z.nFree, z.nMax, z.tag)
	fmt.Fprintf(&b, "   | virgin [ Index: %d | End: %d | Left: %d | Dirty: %v ]\n",
		z.uIndex, z.uEndIndex, z.uLeft, z.unotZeroed)

	for pg := range z.pageCount {
		n := 0
		for ch := z.pageAry[pg]; ch != 0 && n <= z.nMax; ch = chunkNext(ch) {
			n++
		}
		if n == 0 { continue }
		var d string
		if pg == z.firstFreePg {
			d = ">"
		} else {
			d = "|"
		}
		fmt.Fprintf(&b, "   %s [%02d] PAGE [ Head: @0x%x | Free: %d ]\n", d, pg, z.pageAry[pg], n)
	}
	return b.String()
}

// dumpZones renders every zone core holds, for fatal diagnostics and tests.
func (a *Allocator) dumpZones(core int) string {
	d := a.dirs[core]
	var b strings.Builder
	fmt.Fprintf(&b, "Core %d | Zones: %d, Cached: %d\n", d.id, d.slots.Held(), d.nFreeZones)
	for slot, seen := 0, 0; seen < d.slots.Held(); slot++ {
		z, ok := d.slots.Get(slot)
		if !ok { break }
		if z == nil { continue }
		seen++
		b.WriteString(z.String())
	}
	return b.String()
}
