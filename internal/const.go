// Constants
package internal

import (
	"encoding/binary"
)

const LEN_U32 	= 0x04
const LEN_U64 	= 0x08

const PAGE_SHIFT	= 12
const PAGE_SIZE 	= 1 << PAGE_SHIFT
const PAGE_MASK		= PAGE_SIZE - 1

// Zones are always a power of two between these and aligned to their own size,
// so masking a chunk address with ^(ZoneSize-1) lands on the zone header.
const ZONE_SIZE_MIN		= 0x8000  // 32KiB
const ZONE_SIZE_MAX		= 0x20000 // 128KiB
const ZONE_SIZE_DEFAULT	= ZONE_SIZE_MAX
const ZONE_PAGES_MAX	= ZONE_SIZE_MAX / PAGE_SIZE

// Largest request served from a zone. Anything at or above this is oversized.
const ZONE_LIMIT_MAX	= 0x4000 // 16KiB

const CHUNK_SIZE_MIN	= 0x08
const CHUNK_ALIGN		= CHUNK_SIZE_MIN

// Empty zones kept per core before we start handing them back to the backend.
const ZONE_RELS_THRESH	= 32

// Chunks the virgin cursor of each new zone is slid by, so first allocations
// don't all land on the same cache lines.
const ZONE_SLIDE		= 20

// Quota a type gets unless someone sets one.
const TYPE_LIMIT_DEFAULT	= 1 << 32

// Largest single request the allocator will even consider.
const ALLOC_MAX			= 1<<31 - PAGE_SIZE

func RoundPage(n uintptr) uintptr {
	return (n + PAGE_MASK) &^ PAGE_MASK
}

func RoundUp(n uintptr, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

func IsPow2(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

// Byte order for in-memory headers and tag hashing. Only defined here.
var Bin = binary.LittleEndian
