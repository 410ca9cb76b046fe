package util

import (
	"github.com/negrel/assert"
)

func mod(a int, b int) int {
	return ((a % b) + b) % b
}

// ring-buffer queue, doubles when full
type Queue[T any] struct {
	data	[]T
	head	int // next slot to write to
	cnt 	int
}

func CreateQueue[T any](size int) Queue[T] {
	if size < 1 { size = 1 }
	return Queue[T] {
		head: 	0,
		cnt: 	0,
		data: 	make([]T, size),
	}
}

func (q *Queue[T]) Cnt() int {
	return q.cnt
}

func (q *Queue[T]) grow() {
	data := make([]T, len(q.data) * 2)
	for i := range q.cnt {
		data[i] = q.data[mod(q.head - q.cnt + i, len(q.data))]
	}
	q.head = q.cnt
	q.data = data
}

func (q *Queue[T]) Push(val T) {
	if q.data == nil { q.data = make([]T, 1) }
	if q.cnt == len(q.data) { q.grow() }
	q.data[q.head] = val
	q.head = mod((q.head + 1), len(q.data))
	q.cnt++
}

// will panic if empty.
func (q *Queue[T]) Pop() T {
	if q.cnt == 0 { panic("queue underflow") }
	i := mod((q.head - q.cnt), len(q.data))
	q.cnt--
	val := q.data[i]
	var zero T
	q.data[i] = zero
	return val
}


// TicketQueue hands out small integer "tickets" naming slots in a contiguous
// array, recycling released tickets first. Tickets stay stable for as long as
// they are held, so they can be stored somewhere a Go pointer can't go.
type TicketQueue[T any] struct {
	queue		Queue[int]
	data		[]T
	held		int
}

func CreateTicketQueue[T any](size int) TicketQueue[T] {
	queue := CreateQueue[int](size)
	for i := range size {
		queue.Push(i)
	}
	data := make([]T, size)

	return TicketQueue[T]{
		queue: queue,
		data: data,
	}
}

// This acquires a ticket and sets the slot to the passed value
func (tq *TicketQueue[T]) Acq(val T) int {
	if tq.queue.Cnt() == 0 {
		tq.queue.Push(len(tq.data))
		var zero T
		tq.data = append(tq.data, zero)
	}
	ticket := tq.queue.Pop()
	tq.data[ticket] = val
	tq.held++
	return ticket
}

func (tq *TicketQueue[T]) Rel(ticket int) {
	assert.True(ticket >= 0 && ticket < len(tq.data), "ticket out of range")
	var zero T
	tq.data[ticket] = zero
	tq.queue.Push(ticket)
	tq.held--
}

func (tq *TicketQueue[T]) Get(ticket int) (T, bool) {
	if ticket < 0 || ticket >= len(tq.data) {
		var zero T
		return zero, false
	}
	return tq.data[ticket], true
}

// Held is the number of tickets currently out.
func (tq *TicketQueue[T]) Held() int {
	return tq.held
}
