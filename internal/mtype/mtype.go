// Package mtype is the accounting side of the allocator: one Type per
// subsystem, charged on every allocation and credited on every free, with a
// soft byte quota per type.
package mtype

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Type describes one class of allocations for accounting. The zero value
// plus a name is ready to use; per-core counters are set up the first time
// the type is seen by a registry.
type Type struct {
	Name	string
	Desc	string

	state	atomic.Pointer[state]
}

func New(name string, desc string) *Type {
	return &Type{ Name: name, Desc: desc }
}

// Counters touched by one core only, padded so neighbouring cores don't
// share a cache line.
type coreStats struct {
	inuse	atomic.Int64
	memuse	atomic.Int64
	calls	atomic.Int64
	_		[40]byte
}

type state struct {
	reg		*Registry
	cores	[]coreStats
	limit	atomic.Int64
	loose	atomic.Int64 // cheap upper-ish estimate of memuse, see OverQuota
}

type Usage struct {
	InUse	int64 // outstanding allocations
	MemUse	int64 // outstanding bytes
	Calls	int64 // allocations ever made
}

type Registry struct {
	log				*slog.Logger
	ncores			int
	defaultLimit	int64

	mu				sync.Mutex
	types			[]*Type
}

// CreateRegistry makes a registry for ncores cores. Types registered without
// an explicit limit get defaultLimit bytes.
func CreateRegistry(ncores int, defaultLimit int64) *Registry {
	if ncores <= 0 { panic(fmt.Sprintf("mtype: bad core count %d", ncores)) }
	if defaultLimit <= 0 { panic(fmt.Sprintf("mtype: bad default limit %d", defaultLimit)) }
	return &Registry{
		log:			slog.With("src", "mtype"),
		ncores:			ncores,
		defaultLimit:	defaultLimit,
	}
}

func (r *Registry) Cores() int {
	return r.ncores
}

// Register initializes t if it hasn't been already. Allocation paths call it
// on every use, so the already-registered case is a single atomic load.
func (r *Registry) Register(t *Type) {
	if st := t.state.Load(); st != nil {
		if st.reg != r {
			r.fatal(t, "type registered with another registry")
		}
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t.state.Load() != nil {
		return
	}

	st := &state{
		reg:	r,
		cores:	make([]coreStats, r.ncores),
	}
	st.limit.Store(r.defaultLimit)
	t.state.Store(st)
	r.types = append(r.types, t)
	r.log.Debug("Register", "type", t.Name, "limit", r.defaultLimit)
}

// Unregister tears t down. Outstanding usage on any core is fatal: whoever
// unregisters a type is claiming nothing of it is still allocated.
func (r *Registry) Unregister(t *Type) {
	st := t.state.Load()
	if st == nil || st.reg != r {
		r.fatal(t, "unregister of unknown type")
	}

	// single cores can go negative when they free memory another core
	// allocated, so only the sum means anything
	if u := t.Usage(); u.MemUse != 0 || u.InUse != 0 {
		r.fatal(t, fmt.Sprintf("%d bytes in %d allocations still in use", u.MemUse, u.InUse))
	}

	r.mu.Lock()
	for i, other := range r.types {
		if other == t {
			r.types = append(r.types[:i], r.types[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	t.state.Store(nil)
	r.log.Debug("Unregister", "type", t.Name)
}

// Types lists the registered types in registration order.
func (r *Registry) Types() []*Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Type(nil), r.types...)
}

// Limit is the quota of t in bytes, registering t if needed.
func (r *Registry) Limit(t *Type) int64 {
	r.Register(t)
	return t.state.Load().limit.Load()
}

func (r *Registry) SetLimit(t *Type, limit int64) {
	r.Register(t)
	t.state.Load().limit.Store(limit)
}

// FatalError is the panic value for misuse of a type: unregistering it while
// in use, mixing registries, or charging it before registration.
type FatalError struct {
	Type	string
	Detail	string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("mtype: %s: %s", e.Type, e.Detail)
}

func (r *Registry) fatal(t *Type, what string) {
	r.log.Error("fatal", "type", t.Name, "what", what)
	panic(&FatalError{ Type: t.Name, Detail: what })
}

func (t *Type) mustState() *state {
	st := t.state.Load()
	if st == nil {
		panic(&FatalError{ Type: t.Name, Detail: "used before registration" })
	}
	return st
}

// Charge records an allocation of bytes made on core.
func (t *Type) Charge(core int, bytes int64) {
	st := t.mustState()
	cs := &st.cores[core]
	cs.inuse.Add(1)
	cs.memuse.Add(bytes)
	cs.calls.Add(1)
	st.loose.Add(bytes)
}

// Credit records a free of bytes, on whichever core did the freeing.
func (t *Type) Credit(core int, bytes int64) {
	st := t.mustState()
	cs := &st.cores[core]
	cs.inuse.Add(-1)
	cs.memuse.Add(-bytes)
}

// OverQuota reports whether t has reached its limit. The loose estimate only
// grows between checks, so the exact per-core sum is only taken once the
// estimate crosses the limit, and the estimate is reset to it.
func (t *Type) OverQuota() bool {
	st := t.mustState()
	limit := st.limit.Load()
	if st.loose.Load() < limit {
		return false
	}
	ttl := t.Usage().MemUse
	st.loose.Store(ttl)
	return ttl >= limit
}

// Usage sums the counters over all cores.
func (t *Type) Usage() Usage {
	st := t.state.Load()
	if st == nil { return Usage{} }

	var u Usage
	for i := range st.cores {
		u.InUse += st.cores[i].inuse.Load()
		u.MemUse += st.cores[i].memuse.Load()
		u.Calls += st.cores[i].calls.Load()
	}
	return u
}

func (t *Type) CoreUsage(core int) Usage {
	st := t.state.Load()
	if st == nil { return Usage{} }

	cs := &st.cores[core]
	return Usage{
		InUse:	cs.inuse.Load(),
		MemUse:	cs.memuse.Load(),
		Calls:	cs.calls.Load(),
	}
}
