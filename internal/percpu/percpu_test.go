package percpu

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Send_Poll_Order(t *testing.T) {
	set := CreateSet(2)
	core := set.Core(1)

	var got []int
	for i := range 10 {
		set.Send(1, func(ctx Context) {
			assert.Equal(t, 1, ctx.ID())
			got = append(got, i)
		})
	}
	assert.Equal(t, 10, core.Pending())

	assert.Equal(t, 10, core.Poll())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	assert.Equal(t, 0, core.Pending())
	assert.Equal(t, 0, core.Poll())

	st := core.Stats()
	assert.Equal(t, uint64(10), st.Sent)
	assert.Equal(t, uint64(10), st.Received)
}

func Test_Handlers_Cannot_Block(t *testing.T) {
	set := CreateSet(1)
	core := set.Core(0)
	assert.True(t, core.CanBlock())

	ran := false
	set.Send(0, func(ctx Context) {
		ran = true
		assert.False(t, ctx.CanBlock())
		assert.True(t, core.InCrit())
	})
	set.Process(0)
	assert.True(t, ran)
	assert.True(t, core.CanBlock())
	assert.False(t, core.InCrit())

	core.IntrEnter()
	assert.False(t, core.CanBlock())
	core.IntrExit()
	core.CritEnter()
	assert.False(t, core.CanBlock())
	core.CritExit()
	assert.True(t, core.CanBlock())
}

func Test_Handler_Sends_Are_Drained(t *testing.T) {
	set := CreateSet(1)
	count := 0
	var again func(Context)
	again = func(Context) {
		count++
		if count < 5 {
			set.Send(0, again)
		}
	}
	set.Send(0, again)
	assert.Equal(t, 5, set.Core(0).Poll())
	assert.Equal(t, 5, count)
}

func Test_Many_Senders_Keep_Their_Order(t *testing.T) {
	const SENDERS = 8
	const PER_SENDER = 2000

	set := CreateSet(SENDERS + 1)
	owner := set.Core(SENDERS)

	last := make([]int, SENDERS)
	for i := range last {
		last[i] = -1
	}
	total := 0

	var wg sync.WaitGroup
	for s := range SENDERS {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range PER_SENDER {
				set.Send(SENDERS, func(Context) {
					if i != last[s]+1 {
						t.Errorf("sender %d: got %d after %d", s, i, last[s])
					}
					last[s] = i
					total++
				})
			}
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	// owner drains concurrently with the senders
	for {
		select {
		case <-done:
			owner.Poll()
			assert.Equal(t, SENDERS*PER_SENDER, total)
			return
		default:
			owner.Poll()
		}
	}
}

func Test_Serve(t *testing.T) {
	set := CreateSet(2)
	ctx, cancel := context.WithCancel(context.Background())

	served := make(chan error, 1)
	go func() { served <- set.Core(1).Serve(ctx) }()

	hit := make(chan int, 1)
	set.Send(1, func(c Context) { hit <- c.ID() })

	select {
	case id := <-hit:
		assert.Equal(t, 1, id)
	case <-time.After(5 * time.Second):
		t.Fatal("message never ran")
	}

	cancel()
	require.ErrorIs(t, <-served, context.Canceled)
}

func Test_Bind(t *testing.T) {
	set := CreateSet(1)
	core := set.Core(0)
	core.Bind()
	core.Unbind()
}

func Test_Bad_Count(t *testing.T) {
	assert.Panics(t, func() { CreateSet(0) })
}
