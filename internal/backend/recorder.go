package backend

import "sync"

type Call struct {
	Addr	uintptr
	Bytes	uintptr
	Align	uintptr
	Flags	Flags
}

// Recorder passes through to another backend and remembers every call. Tests
// use it to see what the allocator asked for.
type Recorder struct {
	next		Backend

	mu			sync.Mutex
	acquired	[]Call
	released	[]Call
}

func CreateRecorder(next Backend) *Recorder {
	return &Recorder{ next: next }
}

func (r *Recorder) AcquirePages(bytes uintptr, align uintptr, flags Flags) (uintptr, error) {
	addr, err := r.next.AcquirePages(bytes, align, flags)
	if err == nil {
		r.mu.Lock()
		r.acquired = append(r.acquired, Call{ Addr: addr, Bytes: bytes, Align: align, Flags: flags })
		r.mu.Unlock()
	}
	return addr, err
}

func (r *Recorder) ReleasePages(addr uintptr, bytes uintptr) error {
	err := r.next.ReleasePages(addr, bytes)
	if err == nil {
		r.mu.Lock()
		r.released = append(r.released, Call{ Addr: addr, Bytes: bytes })
		r.mu.Unlock()
	}
	return err
}

func (r *Recorder) Acquired() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.acquired...)
}

func (r *Recorder) Released() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.released...)
}

// Outstanding is acquired minus released bytes.
func (r *Recorder) Outstanding() uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n uintptr
	for _, call := range r.acquired {
		n += call.Bytes
	}
	for _, call := range r.released {
		n -= call.Bytes
	}
	return n
}
