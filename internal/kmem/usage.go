package kmem

import (
	"sync/atomic"

	c "kslab/internal"
)

// The usage table maps page numbers to what the allocator put there: the
// first page of every oversized allocation (with its span and the core that
// made it) and the first page of every zone (with its owner). free() uses it
// to tell the two apart from nothing but an address, and to reject addresses
// that were never ours.
//
// It is a three level radix over 48-bit addresses. Interior nodes are
// installed with CAS and never removed; entries are single atomic words.

const USAGE_BITS		= 12
const USAGE_FANOUT		= 1 << USAGE_BITS
const USAGE_ADDR_BITS	= 3*USAGE_BITS + c.PAGE_SHIFT

type usageKind uint64
const (
	usageNone		usageKind = 0
	usageOversized	usageKind = 1
	usageZone		usageKind = 2
)

// entry layout: kind in the top two bits, core in the 16 below, pages below
// that.
const (
	usagePagesMask	= 1<<40 - 1
	usageCoreShift	= 40
	usageCoreMask	= 1<<16 - 1
	usageKindShift	= 62
)

type usageEntry struct {
	kind	usageKind
	core	int
	pages	uintptr
}

func (e usageEntry) pack() uint64 {
	return uint64(e.kind)<<usageKindShift |
		uint64(e.core&usageCoreMask)<<usageCoreShift |
		uint64(e.pages)&usagePagesMask
}

func unpackUsage(v uint64) usageEntry {
	return usageEntry{
		kind:	usageKind(v >> usageKindShift),
		core:	int(v >> usageCoreShift & usageCoreMask),
		pages:	uintptr(v & usagePagesMask),
	}
}

type usageLeaf	[USAGE_FANOUT]atomic.Uint64
type usageMid	[USAGE_FANOUT]atomic.Pointer[usageLeaf]

type usageTable struct {
	root	[USAGE_FANOUT]atomic.Pointer[usageMid]
}

func usageSplit(addr uintptr) (int, int, int, bool) {
	if uint64(addr)>>USAGE_ADDR_BITS != 0 {
		return 0, 0, 0, false
	}
	pg := uint64(addr) >> c.PAGE_SHIFT
	return int(pg >> (2 * USAGE_BITS)),
		int(pg >> USAGE_BITS & (USAGE_FANOUT - 1)),
		int(pg & (USAGE_FANOUT - 1)),
		true
}

// slot finds the word for addr, building the path to it if create is set.
func (t *usageTable) slot(addr uintptr, create bool) *atomic.Uint64 {
	i, j, k, ok := usageSplit(addr)
	if !ok { return nil }

	mid := t.root[i].Load()
	if mid == nil {
		if !create { return nil }
		t.root[i].CompareAndSwap(nil, new(usageMid))
		mid = t.root[i].Load()
	}
	leaf := mid[j].Load()
	if leaf == nil {
		if !create { return nil }
		mid[j].CompareAndSwap(nil, new(usageLeaf))
		leaf = mid[j].Load()
	}
	return &leaf[k]
}

// set records e for the page holding addr. Returns false if addr is outside
// the range the table can describe.
func (t *usageTable) set(addr uintptr, e usageEntry) bool {
	s := t.slot(addr, true)
	if s == nil { return false }
	s.Store(e.pack())
	return true
}

func (t *usageTable) get(addr uintptr) usageEntry {
	s := t.slot(addr, false)
	if s == nil { return usageEntry{} }
	return unpackUsage(s.Load())
}

func (t *usageTable) clear(addr uintptr) {
	if s := t.slot(addr, false); s != nil {
		s.Store(0)
	}
}
