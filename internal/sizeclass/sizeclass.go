// Package sizeclass maps request sizes onto the fixed chunk sizes zones are
// carved into.
package sizeclass

import (
	"fmt"

	c "kslab/internal"
)

// Number of distinct classes. Classes on tier boundaries are shared (class 15
// is 128 bytes from both the 8 and 16 byte tiers), so this is the highest
// index Index can return plus one.
const NZONES = 72

// Limit is the first size Index refuses.
const Limit = c.ZONE_LIMIT_MAX

// Index rounds size up to its chunk size and returns the rounded size, the
// chunk alignment the tier guarantees and the class index. It panics for sizes
// at or above Limit; callers route those to the page backend first.
func Index(size uintptr) (rounded uintptr, align uintptr, class int) {
	n := size
	if n < 128 {
		n = (n + 7) &^ 7
		if n == 0 {
			n = 8
		}
		return n, 8, int(n/8) - 1 // 8 byte chunks, 16 zones
	}
	if n < 256 {
		n = (n + 15) &^ 15
		return n, 16, int(n/16) + 7
	}
	if n < 8192 {
		if n < 512 {
			n = (n + 31) &^ 31
			return n, 32, int(n/32) + 15
		}
		if n < 1024 {
			n = (n + 63) &^ 63
			return n, 64, int(n/64) + 23
		}
		if n < 2048 {
			n = (n + 127) &^ 127
			return n, 128, int(n/128) + 31
		}
		if n < 4096 {
			n = (n + 255) &^ 255
			return n, 256, int(n/256) + 39
		}
		n = (n + 511) &^ 511
		return n, 512, int(n/512) + 47
	}
	if n < Limit {
		n = (n + 1023) &^ 1023
		return n, 1024, int(n/1024) + 55
	}
	panic(fmt.Sprintf("sizeclass: unexpected byte count %d", size))
}

// Class describes one entry of the class table.
type Class struct {
	Index	int
	Size	uintptr
	Align	uintptr
	Min		uintptr // smallest request landing here
}

// Table lists every class in index order.
func Table() []Class {
	classes := make([]Class, 0, NZONES)
	last := -1
	for size := uintptr(1); size < Limit; size++ {
		rounded, align, class := Index(size)
		if class == last {
			continue
		}
		classes = append(classes, Class{Index: class, Size: rounded, Align: align, Min: size})
		last = class
	}
	return classes
}
