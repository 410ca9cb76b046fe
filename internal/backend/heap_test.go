package backend

import (
	"errors"
	"testing"
	"unsafe"

	c "kslab/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Heap_Aligned_Zeroed(t *testing.T) {
	h := CreateHeap()

	for _, align := range []uintptr{0, c.PAGE_SIZE, 0x8000, 0x20000} {
		addr, err := h.AcquirePages(0x20000, align, 0)
		require.NoError(t, err)
		assert.Equal(t, uintptr(0), addr%effectiveAlign(align))

		buf := unsafe.Slice((*byte)(unsafe.Pointer(addr)), 0x20000)
		for i := range buf {
			if buf[i] != 0 {
				t.Fatalf("byte %d not zero", i)
			}
		}
		buf[0x1ffff] = 0xff
		assert.NoError(t, h.ReleasePages(addr, 0x20000))
	}
	assert.Equal(t, int64(0), h.Mapped())
}

func Test_Heap_Bad_Requests(t *testing.T) {
	h := CreateHeap()

	_, err := h.AcquirePages(100, 0, 0)
	assert.ErrorIs(t, err, ErrBadAlign)
	_, err = h.AcquirePages(c.PAGE_SIZE, 0x3000, 0)
	assert.ErrorIs(t, err, ErrBadAlign)

	addr, err := h.AcquirePages(2*c.PAGE_SIZE, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, h.ReleasePages(addr, c.PAGE_SIZE), ErrBadAlign)
	assert.NoError(t, h.ReleasePages(addr, 2*c.PAGE_SIZE))
	assert.True(t, errors.Is(h.ReleasePages(addr, 2*c.PAGE_SIZE), ErrNotMapped))
}

func Test_Limited_Reserves(t *testing.T) {
	const PG = c.PAGE_SIZE
	l := CreateLimited(CreateHeap(), 10*PG, 2*PG, 2*PG)

	// ordinary callers get capacity minus both reserves
	a, err := l.AcquirePages(6*PG, 0, 0)
	require.NoError(t, err)
	_, err = l.AcquirePages(PG, 0, 0)
	assert.ErrorIs(t, err, ErrExhausted)

	b, err := l.AcquirePages(2*PG, 0, UseReserve)
	require.NoError(t, err)
	_, err = l.AcquirePages(PG, 0, UseReserve)
	assert.ErrorIs(t, err, ErrExhausted)

	d, err := l.AcquirePages(2*PG, 0, UseIntReserve)
	require.NoError(t, err)
	_, err = l.AcquirePages(PG, 0, UseIntReserve|UseReserve)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, uintptr(10*PG), l.Used())

	require.NoError(t, l.ReleasePages(a, 6*PG))
	require.NoError(t, l.ReleasePages(b, 2*PG))
	require.NoError(t, l.ReleasePages(d, 2*PG))
	assert.Equal(t, uintptr(0), l.Used())

	assert.Panics(t, func() { CreateLimited(CreateHeap(), PG, PG, PG) })
}

func Test_Recorder(t *testing.T) {
	r := CreateRecorder(CreateHeap())

	addr, err := r.AcquirePages(4*c.PAGE_SIZE, 0x8000, NoWait)
	require.NoError(t, err)
	assert.Equal(t, uintptr(4*c.PAGE_SIZE), r.Outstanding())
	require.NoError(t, r.ReleasePages(addr, 4*c.PAGE_SIZE))

	assert.Equal(t, []Call{{Addr: addr, Bytes: 4 * c.PAGE_SIZE, Align: 0x8000, Flags: NoWait}}, r.Acquired())
	assert.Equal(t, []Call{{Addr: addr, Bytes: 4 * c.PAGE_SIZE}}, r.Released())
	assert.Equal(t, uintptr(0), r.Outstanding())
}
