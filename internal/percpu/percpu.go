// Per-core execution contexts.
//
// A Core stands in for one CPU. Whatever goroutine is driving a Core owns it
// exclusively: nothing else touches its private state, and other cores only
// reach it through its inbox. Messages are one-way and fire-and-forget, there
// is no reply, no backpressure and no way to take one back. They run when the
// owner next polls, inside a critical section, in a context that may not
// block.
package percpu

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/negrel/assert"
)

// Context is the view of a core an operation runs under.
type Context interface {
	ID() int
	CritEnter()
	CritExit()
	CanBlock() bool
}

type Set struct {
	log		*slog.Logger
	cores	[]*Core
}

type Core struct {
	id			int
	set			*Set

	// owner-only
	crit		int
	handlers	int
	intr		int
	affinity

	inbox		inbox
	wake		chan struct{}

	sent		atomic.Uint64
	received	atomic.Uint64

	_pad		[64]byte
}

func CreateSet(n int) *Set {
	if n <= 0 { panic(fmt.Sprintf("percpu: bad core count %d", n)) }

	set := &Set{
		log:	slog.With("src", "percpu"),
		cores:	make([]*Core, n),
	}
	for i := range set.cores {
		set.cores[i] = &Core{
			id:		i,
			set:	set,
			wake:	make(chan struct{}, 1),
		}
	}
	return set
}

func (s *Set) Len() int {
	return len(s.cores)
}

func (s *Set) Core(id int) *Core {
	return s.cores[id]
}

// Send queues fn to run on core target. It never blocks and never fails.
func (s *Set) Send(target int, fn func(Context)) {
	c := s.cores[target]
	c.inbox.push(&msg{ fn: fn })
	c.sent.Add(1)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Process runs whatever is queued for core target. Only the goroutine driving
// that core may call it.
func (s *Set) Process(target int) {
	s.cores[target].Poll()
}

func (c *Core) ID() int {
	return c.id
}

func (c *Core) CritEnter() {
	c.crit++
}

func (c *Core) CritExit() {
	assert.True(c.crit > 0, "percpu: unbalanced CritExit")
	c.crit--
}

// InCrit reports whether a critical section is open.
func (c *Core) InCrit() bool {
	return c.crit > 0
}

// IntrEnter marks the core as running interrupt-level code until the matching
// IntrExit. Nothing may block in between.
func (c *Core) IntrEnter() {
	c.intr++
}

func (c *Core) IntrExit() {
	assert.True(c.intr > 0, "percpu: unbalanced IntrExit")
	c.intr--
}

func (c *Core) CanBlock() bool {
	return c.crit == 0 && c.handlers == 0 && c.intr == 0
}

// Pending is a racy count of queued messages.
func (c *Core) Pending() int {
	return int(c.inbox.pending.Load())
}

// Poll drains the inbox, including anything handlers queue while it runs.
// Returns the number of messages handled.
func (c *Core) Poll() int {
	assert.True(c.crit == 0, "percpu: Poll inside a critical section")

	n := 0
	for {
		m := c.inbox.take()
		if m == nil { return n }

		batch := 0
		c.handlers++
		for ; m != nil; m = m.next {
			c.CritEnter()
			m.fn(c)
			c.CritExit()
			batch++
		}
		c.handlers--
		c.received.Add(uint64(batch))
		n += batch
	}
}

// Serve polls every time a message arrives until ctx is done. It is for cores
// that otherwise sit idle; the goroutine calling it becomes the core's owner.
func (c *Core) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.Poll()
			return ctx.Err()
		case <-c.wake:
			c.Poll()
		}
	}
}

type Stats struct {
	Sent		uint64 // messages addressed to this core
	Received	uint64 // messages this core has run
	Pending		int
}

func (c *Core) Stats() Stats {
	return Stats{
		Sent:		c.sent.Load(),
		Received:	c.received.Load(),
		Pending:	c.Pending(),
	}
}
