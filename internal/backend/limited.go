package backend

import (
	"fmt"
	"sync"
)

// Backend is what Limited wraps; the allocator consumes the same shape.
type Backend interface {
	AcquirePages(bytes uintptr, align uintptr, flags Flags) (uintptr, error)
	ReleasePages(addr uintptr, bytes uintptr) error
}

// Limited caps the bytes another backend may hand out. The top of the budget
// is split into two reserve pools: ordinary requests stop short of both,
// UseReserve may take the first, UseIntReserve may take everything.
type Limited struct {
	next		Backend

	mu			sync.Mutex
	capacity	uintptr
	reserve		uintptr
	intReserve	uintptr
	used		uintptr
}

func CreateLimited(next Backend, capacity uintptr, reserve uintptr, intReserve uintptr) *Limited {
	if reserve+intReserve > capacity {
		panic(fmt.Sprintf("backend: reserves %d+%d exceed capacity %d", reserve, intReserve, capacity))
	}
	return &Limited{
		next:		next,
		capacity:	capacity,
		reserve:	reserve,
		intReserve:	intReserve,
	}
}

func (l *Limited) ceiling(flags Flags) uintptr {
	switch {
	case flags&UseIntReserve != 0:
		return l.capacity
	case flags&UseReserve != 0:
		return l.capacity - l.intReserve
	default:
		return l.capacity - l.intReserve - l.reserve
	}
}

func (l *Limited) AcquirePages(bytes uintptr, align uintptr, flags Flags) (uintptr, error) {
	if err := checkRequest(bytes, align); err != nil { return 0, err }

	l.mu.Lock()
	if ceiling := l.ceiling(flags); l.used+bytes > ceiling {
		used := l.used
		l.mu.Unlock()
		return 0, fmt.Errorf("%d bytes with %d of %d in use: %w", bytes, used, ceiling, ErrExhausted)
	}
	l.used += bytes
	l.mu.Unlock()

	addr, err := l.next.AcquirePages(bytes, align, flags)
	if err != nil {
		l.mu.Lock()
		l.used -= bytes
		l.mu.Unlock()
		return 0, err
	}
	return addr, nil
}

func (l *Limited) ReleasePages(addr uintptr, bytes uintptr) error {
	if err := l.next.ReleasePages(addr, bytes); err != nil { return err }
	l.mu.Lock()
	l.used -= bytes
	l.mu.Unlock()
	return nil
}

func (l *Limited) Used() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}
