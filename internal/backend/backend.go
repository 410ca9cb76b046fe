// Page backends: whole-page virtual memory providers sitting under the slab
// allocator. Everything handed out is page aligned at minimum and zero filled.
package backend

import (
	"errors"

	c "kslab/internal"
)

var (
	ErrExhausted	= errors.New("backend: out of pages")
	ErrBadAlign		= errors.New("backend: bad size or alignment")
	ErrNotMapped	= errors.New("backend: release of unknown range")
)

// Request flags understood by backends. The allocator's own flag word reuses
// these bits so it can pass them straight through.
type Flags uint32
const (
	NoWait			Flags = 1 << iota // caller can't sleep
	UseReserve						  // may dip into the reserve pool
	UseIntReserve					  // may dip into the interrupt reserve too
)
const FlagMask = NoWait | UseReserve | UseIntReserve

func checkRequest(bytes uintptr, align uintptr) error {
	if bytes == 0 || bytes&c.PAGE_MASK != 0 {
		return ErrBadAlign
	}
	if align != 0 && !c.IsPow2(align) {
		return ErrBadAlign
	}
	return nil
}

func effectiveAlign(align uintptr) uintptr {
	if align < c.PAGE_SIZE {
		return c.PAGE_SIZE
	}
	return align
}
