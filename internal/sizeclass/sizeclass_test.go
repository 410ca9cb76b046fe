package sizeclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndex_Tiers(t *testing.T) {
	table := []struct {
		name    string
		size    uintptr
		rounded uintptr
		align   uintptr
		class   int
	}{
		{name: "one", size: 1, rounded: 8, align: 8, class: 0},
		{name: "eight", size: 8, rounded: 8, align: 8, class: 0},
		{name: "twenty-four", size: 24, rounded: 24, align: 8, class: 2},
		{name: "last-8-tier", size: 127, rounded: 128, align: 8, class: 15},
		{name: "first-16-tier", size: 128, rounded: 128, align: 16, class: 15},
		{name: "129", size: 129, rounded: 144, align: 16, class: 16},
		{name: "256", size: 256, rounded: 256, align: 32, class: 23},
		{name: "1000", size: 1000, rounded: 1024, align: 64, class: 39},
		{name: "4096", size: 4096, rounded: 4096, align: 512, class: 55},
		{name: "8191", size: 8191, rounded: 8192, align: 512, class: 63},
		{name: "last", size: Limit - 1, rounded: Limit, align: 1024, class: NZONES - 1},
	}

	for _, e := range table {
		t.Run(e.name, func(t *testing.T) {
			rounded, align, class := Index(e.size)
			assert.Equal(t, e.rounded, rounded)
			assert.Equal(t, e.align, align)
			assert.Equal(t, e.class, class)
		})
	}
}

func TestIndex_Monotonic(t *testing.T) {
	prevSize, prevClass := uintptr(0), -1
	for size := uintptr(1); size < Limit; size++ {
		rounded, align, class := Index(size)
		assert.GreaterOrEqual(t, rounded, size)
		assert.Equal(t, uintptr(0), rounded%align)
		assert.Equal(t, uintptr(0), rounded%8)
		assert.GreaterOrEqual(t, class, prevClass)
		if class == prevClass {
			assert.Equal(t, prevSize, rounded)
		}
		prevSize, prevClass = rounded, class
	}
}

func TestIndex_PanicsAtLimit(t *testing.T) {
	assert.Panics(t, func() { Index(Limit) })
	assert.Panics(t, func() { Index(1 << 20) })
}

func TestTable(t *testing.T) {
	classes := Table()
	assert.Equal(t, NZONES, len(classes))
	for i, cl := range classes {
		assert.Equal(t, i, cl.Index)
		rounded, _, class := Index(cl.Min)
		assert.Equal(t, cl.Size, rounded)
		assert.Equal(t, i, class)
	}
}
