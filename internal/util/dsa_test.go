package util_test

import (
	"kslab/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Queue(t *testing.T) {
	q := util.CreateQueue[int](8)
	assert.Equal(t, q.Cnt(), 0)

	for range 3 {
		for i := range 5 {
			q.Push(i)
		}
		assert.Equal(t, q.Cnt(), 5)
		for i := range 5 {
			res := q.Pop()
			assert.Equal(t, res, i)
		}
		assert.Equal(t, q.Cnt(), 0)
	}

	assert.Panics(t, func() { q.Pop() })
}

func Test_Queue_Grow(t *testing.T) {
	q := util.CreateQueue[int](2)

	// wrap the head first so growth has to unroll the ring
	q.Push(-1)
	q.Pop()

	for i := range 100 {
		q.Push(i)
	}
	assert.Equal(t, 100, q.Cnt())
	for i := range 100 {
		assert.Equal(t, i, q.Pop())
	}

	var zero util.Queue[string]
	zero.Push("a")
	assert.Equal(t, "a", zero.Pop())
}

func Test_TicketQueue(t *testing.T) {
	tq := util.CreateTicketQueue[string](2)

	a := tq.Acq("a")
	b := tq.Acq("b")
	c := tq.Acq("c") // beyond the initial size
	assert.ElementsMatch(t, []int{0, 1, 2}, []int{a, b, c})
	assert.Equal(t, 3, tq.Held())

	v, ok := tq.Get(c)
	assert.True(t, ok)
	assert.Equal(t, "c", v)

	tq.Rel(b)
	v, ok = tq.Get(b)
	assert.True(t, ok)
	assert.Equal(t, "", v)

	// released tickets are reused before the table grows
	d := tq.Acq("d")
	assert.Equal(t, b, d)
	assert.Equal(t, 3, tq.Held())

	_, ok = tq.Get(99)
	assert.False(t, ok)
}
