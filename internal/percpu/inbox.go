package percpu

import "sync/atomic"

type msg struct {
	next	*msg
	fn		func(Context)
}

// inbox is a multi-producer single-consumer queue. Producers push onto a
// lock-free stack; the consumer swaps the whole stack out and reverses it, so
// messages from any one sender come out in the order they went in.
type inbox struct {
	head	atomic.Pointer[msg]
	pending	atomic.Int64
}

func (q *inbox) push(m *msg) {
	q.pending.Add(1)
	for {
		old := q.head.Load()
		m.next = old
		if q.head.CompareAndSwap(old, m) { return }
	}
}

// take returns everything queued so far, oldest first, or nil.
func (q *inbox) take() *msg {
	m := q.head.Swap(nil)
	if m == nil { return nil }

	var list *msg
	n := int64(0)
	for m != nil {
		next := m.next
		m.next = list
		list = m
		m = next
		n++
	}
	q.pending.Add(-n)
	return list
}
