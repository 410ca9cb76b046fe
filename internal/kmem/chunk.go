package kmem

import (
	"unsafe"

	c "kslab/internal"

	"github.com/cespare/xxhash"
)

// Everything in this file reads or writes allocator memory through raw
// addresses. Nothing outside it should convert a Ptr or a zone address back
// into a Go pointer. The memory comes from the page backend, never from
// ordinary Go allocations the collector could move or free underneath us.

const ZALLOC_SLAB_MAGIC	= 0x736c6162 // "slab"
const ZALLOC_DEAD_MAGIC	= 0xdeadbeef

// Fill pattern for freed chunk bodies in debug builds.
const WEIRD_ADDR		= 0xdeadc0de

// zoneHeader sits at the base of every zone, which is aligned to the zone
// size, so it can be found from any chunk address by masking. It only holds
// plain integers. The real bookkeeping lives in the owner's zone struct,
// found through slot.
type zoneHeader struct {
	magic	uint32
	owner	uint32
	slot	uint32
	class	uint32
	chunk	uint32
	_		uint32
	tag		uint64
}

const zoneHeaderSize = 64

func headerAt(base uintptr) *zoneHeader {
	return (*zoneHeader)(unsafe.Pointer(base))
}

// zoneTag hashes the header fields together with the zone's own address, so
// a header copied or shifted somewhere else, or scribbled over, won't verify.
func zoneTag(base uintptr, h *zoneHeader) uint64 {
	var buf [28]byte
	c.Bin.PutUint64(buf[0:], uint64(base))
	c.Bin.PutUint32(buf[8:], h.magic)
	c.Bin.PutUint32(buf[12:], h.owner)
	c.Bin.PutUint32(buf[16:], h.slot)
	c.Bin.PutUint32(buf[20:], h.class)
	c.Bin.PutUint32(buf[24:], h.chunk)
	return xxhash.Sum64(buf[:])
}

func (h *zoneHeader) valid(base uintptr) bool {
	return h.magic == ZALLOC_SLAB_MAGIC && h.tag == zoneTag(base, h)
}

// headerBytes is the raw header for diagnostics.
func headerBytes(base uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), zoneHeaderSize)
}

// A free chunk's first word is the address of the next free chunk on the same
// zone page, or zero.
func chunkNext(chunk uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(chunk))
}

func setChunkNext(chunk uintptr, next uintptr) {
	*(*uintptr)(unsafe.Pointer(chunk)) = next
}

func memView(addr uintptr, n uintptr) []byte {
	if n == 0 { return nil }
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

func memZero(addr uintptr, n uintptr) {
	clear(memView(addr, n))
}

func memCopy(dst uintptr, src uintptr, n uintptr) {
	copy(memView(dst, n), memView(src, n))
}

// memFill writes the weird pattern over [addr, addr+n), leaving any partial
// trailing word alone.
func memFill(addr uintptr, n uintptr) {
	b := memView(addr, n)
	for i := 0; i+c.LEN_U32 <= len(b); i += c.LEN_U32 {
		c.Bin.PutUint32(b[i:], WEIRD_ADDR)
	}
}
