package kmem

import (
	c "kslab/internal"

	"github.com/negrel/assert"
)

// zone is the owner's bookkeeping for one zone. Only the owning core reads or
// writes it.
type zone struct {
	base		uintptr // zone start, where the header lives
	first		uintptr // chunk 0
	next		*zone   // active list or free-zone cache link
	slot		int
	class		int
	chunk		uintptr
	nMax		int
	nFree		int

	// Never-handed-out chunks form a ring starting at uEndIndex; uIndex is the
	// next one to use and uLeft how many remain.
	uIndex		int
	uEndIndex	int
	uLeft		int

	// Freed chunks go on a list per zone page so reallocation favours low
	// pages. firstFreePg is a lower bound on the first page with a nonempty
	// list.
	pageAry		[c.ZONE_PAGES_MAX]uintptr
	pageCount	int
	firstFreePg	int

	unotZeroed	bool // virgin chunks can't be assumed zero
	tag			uint64

	// debug builds only: one bit per chunk, set while allocated
	bitmap		[]uint64
}

// chunkOffset is where chunk 0 of a zone of size byte chunks starts.
func chunkOffset(size uintptr) uintptr {
	if c.IsPow2(size) {
		return c.RoundUp(zoneHeaderSize, size)
	}
	return c.RoundUp(zoneHeaderSize, c.CHUNK_ALIGN)
}

// setup carves z into chunks of size for class. The header offset is
// rounded up to the chunk size when that is a power of two so every chunk
// is naturally aligned, otherwise to the minimum chunk alignment.
func (z *zone) setup(zoneSize uintptr, owner int, class int, size uintptr, junk int) {
	off := chunkOffset(size)

	z.next = nil
	z.class = class
	z.chunk = size
	z.first = z.base + off
	z.nMax = int((zoneSize - off) / size)
	z.nFree = z.nMax
	z.uEndIndex = junk % z.nMax
	z.uIndex = z.uEndIndex
	z.uLeft = z.nMax
	z.pageCount = int(zoneSize / c.PAGE_SIZE)
	z.firstFreePg = z.pageCount
	clear(z.pageAry[:])

	if debugChunks {
		words := (z.nMax + 63) / 64
		if cap(z.bitmap) >= words {
			z.bitmap = z.bitmap[:words]
			clear(z.bitmap)
		} else {
			z.bitmap = make([]uint64, words)
		}
	}

	h := headerAt(z.base)
	h.magic = ZALLOC_SLAB_MAGIC
	h.owner = uint32(owner)
	h.slot = uint32(z.slot)
	h.class = uint32(class)
	h.chunk = uint32(size)
	h.tag = zoneTag(z.base, h)
	z.tag = h.tag
}

// kill invalidates the header so stray frees into a retired zone are caught.
func (z *zone) kill() {
	h := headerAt(z.base)
	h.magic = ZALLOC_DEAD_MAGIC
	h.tag = 0
	z.tag = 0
}

func (z *zone) index(chunk uintptr) int {
	return int((chunk - z.first) / z.chunk)
}

func (z *zone) page(chunk uintptr) int {
	return int((chunk - z.base) >> c.PAGE_SHIFT)
}

// take hands out one chunk. The caller has already checked nFree > 0 and
// decremented it. known reports whether the chunk is known to be zero.
func (z *zone) take() (chunk uintptr, known bool, ok bool) {
	for z.firstFreePg < z.pageCount {
		if head := z.pageAry[z.firstFreePg]; head != 0 {
			z.pageAry[z.firstFreePg] = chunkNext(head)
			return head, false, true
		}
		z.firstFreePg++
	}

	// nFree said there was room, so it has to be in the virgin area
	if z.uLeft == 0 {
		return 0, false, false
	}
	chunk = z.first + uintptr(z.uIndex)*z.chunk
	z.uIndex++
	if z.uIndex == z.nMax {
		z.uIndex = 0
	}
	z.uLeft--
	return chunk, !z.unotZeroed, true
}

// put returns a chunk to its page list.
func (z *zone) put(chunk uintptr) {
	pg := z.page(chunk)
	assert.Less(pg, z.pageCount, "chunk beyond zone")

	setChunkNext(chunk, z.pageAry[pg])
	z.pageAry[pg] = chunk
	if z.firstFreePg > pg {
		z.firstFreePg = pg
	}
}

// owns reports whether chunk is the start of a chunk in z.
func (z *zone) owns(chunk uintptr) bool {
	if chunk < z.first || chunk >= z.first+uintptr(z.nMax)*z.chunk {
		return false
	}
	return (chunk-z.first)%z.chunk == 0
}

// markAllocated and markFree maintain the debug bitmap. They return false on
// a state mismatch: allocating an allocated chunk, or freeing a free one.
func (z *zone) markAllocated(chunk uintptr) bool {
	i := z.index(chunk)
	bit := uint64(1) << (i & 63)
	if z.bitmap[i>>6]&bit != 0 {
		return false
	}
	z.bitmap[i>>6] |= bit
	return true
}

func (z *zone) markFree(chunk uintptr) bool {
	i := z.index(chunk)
	bit := uint64(1) << (i & 63)
	if z.bitmap[i>>6]&bit == 0 {
		return false
	}
	z.bitmap[i>>6] &^= bit
	return true
}
