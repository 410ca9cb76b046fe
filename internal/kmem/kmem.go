// Package kmem is a per-core slab allocator.
//
// Small requests are served from zones: ZoneSize-aligned regions carved into
// equal chunks of one size class and owned by exactly one core. Only the
// owner ever touches a zone's free lists, which is what lets the hot paths run
// without locks; a core freeing memory it doesn't own sends the free to the
// owner as a one-way message instead. Large requests go straight to the page
// backend and are remembered in a page usage table so free() can find their
// size from the pointer alone.
//
// Empty zones are cached per core and only handed back to the backend, which
// may block, at the start of a later allocation where blocking is known to be
// safe. Oversized frees from contexts that can't block are deferred the same
// way.
package kmem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	c "kslab/internal"
	"kslab/internal/backend"
	"kslab/internal/mtype"
	"kslab/internal/percpu"
)

var (
	ErrNoMemory			= errors.New("kmem: out of memory")
	ErrQuotaExceeded	= errors.New("kmem: type quota exceeded")
)

// Ptr is an address handed out by the allocator.
type Ptr uintptr

// ZeroSizePtr is what a zero byte allocation returns. It is never backed by
// memory and freeing it does nothing.
const ZeroSizePtr = Ptr(^uintptr(7))

// Flags select how an allocation may behave.
type Flags uint32
const (
	WaitOK			Flags = 0
	NoWait			Flags = Flags(backend.NoWait) // never block; failure returns an error
	UseReserve		Flags = Flags(backend.UseReserve)
	UseIntReserve	Flags = Flags(backend.UseIntReserve)
	NullOK			Flags = 1 << 8 // failure returns an error instead of being fatal
	Zero			Flags = 1 << 9 // zero the memory
)

func (f Flags) failable() bool {
	return f&(NoWait|NullOK) != 0
}

// CPU is the core an operation is running on.
type CPU = percpu.Context

// Backend supplies whole, zeroed pages.
type Backend interface {
	AcquirePages(bytes uintptr, align uintptr, flags backend.Flags) (uintptr, error)
	ReleasePages(addr uintptr, bytes uintptr) error
}

// Messenger delivers one-way messages to other cores. Send must not block;
// Process runs whatever is queued for a core and is only called by that
// core's owner.
type Messenger interface {
	Send(target int, fn func(percpu.Context))
	Process(target int)
}

type Config struct {
	Cores			int
	ZoneSize		uintptr // power of two within [ZONE_SIZE_MIN, ZONE_SIZE_MAX]
	ZoneRelsThresh	int     // empty zones cached per core before release
	MaxAlloc		uintptr // requests above this are a caller bug

	Backend			Backend         // default backend.Default()
	Messenger		Messenger       // default a percpu.Set of Cores cores
	Types			*mtype.Registry // default a registry with TYPE_LIMIT_DEFAULT
	Logger			*slog.Logger
}

func (conf *Config) validate() {
	if conf.Cores <= 0 {
		panic("Cores must > 0")
	}
	if conf.ZoneSize == 0 {
		conf.ZoneSize = c.ZONE_SIZE_DEFAULT
	}
	if !c.IsPow2(conf.ZoneSize) || conf.ZoneSize < c.ZONE_SIZE_MIN || conf.ZoneSize > c.ZONE_SIZE_MAX {
		panic(fmt.Sprintf("ZoneSize must be a power of two in [%d, %d], got %d",
			c.ZONE_SIZE_MIN, c.ZONE_SIZE_MAX, conf.ZoneSize))
	}
	if conf.ZoneRelsThresh == 0 {
		conf.ZoneRelsThresh = c.ZONE_RELS_THRESH
	}
	if conf.ZoneRelsThresh < 0 {
		panic("ZoneRelsThresh must >= 0")
	}
	if conf.MaxAlloc == 0 {
		conf.MaxAlloc = c.ALLOC_MAX
	}
	if conf.Types != nil && conf.Types.Cores() != conf.Cores {
		panic("Types registry core count must match Cores")
	}
}

type Allocator struct {
	log			*slog.Logger

	zoneSize	uintptr
	zoneMask	uintptr
	zoneLimit	uintptr
	relsThresh	int
	maxAlloc	uintptr

	backend		Backend
	messenger	Messenger
	cores		*percpu.Set // nil when the caller brought its own Messenger
	types		*mtype.Registry

	dirs		[]*zoneDir
	usage		usageTable
}

func New(conf Config) *Allocator {
	conf.validate()

	a := &Allocator{
		log:		conf.Logger,
		zoneSize:	conf.ZoneSize,
		zoneMask:	^(conf.ZoneSize - 1),
		zoneLimit:	min(conf.ZoneSize/4, c.ZONE_LIMIT_MAX),
		relsThresh:	conf.ZoneRelsThresh,
		maxAlloc:	conf.MaxAlloc,
		backend:	conf.Backend,
		messenger:	conf.Messenger,
		types:		conf.Types,
		dirs:		make([]*zoneDir, conf.Cores),
	}
	if a.log == nil {
		a.log = slog.With("src", "kmem")
	}
	if a.backend == nil {
		a.backend = backend.Default()
	}
	if a.messenger == nil {
		a.cores = percpu.CreateSet(conf.Cores)
		a.messenger = a.cores
	}
	if a.types == nil {
		a.types = mtype.CreateRegistry(conf.Cores, c.TYPE_LIMIT_DEFAULT)
	}
	for i := range a.dirs {
		a.dirs[i] = createZoneDir(i)
	}

	a.log.Debug("New", "cores", conf.Cores, "zoneSize", a.zoneSize, "zoneLimit", a.zoneLimit,
		"relsThresh", a.relsThresh)
	return a
}

// Core returns the built-in execution context for core id. It panics if the
// allocator was given its own Messenger.
func (a *Allocator) Core(id int) *percpu.Core {
	if a.cores == nil {
		panic("kmem: allocator has no built-in cores")
	}
	return a.cores.Core(id)
}

func (a *Allocator) Cores() int {
	return len(a.dirs)
}

func (a *Allocator) Types() *mtype.Registry {
	return a.types
}

// ZoneLimit is the smallest request size served by the oversized path.
func (a *Allocator) ZoneLimit() uintptr {
	return a.zoneLimit
}

func (a *Allocator) ZoneSize() uintptr {
	return a.zoneSize
}

func (a *Allocator) dir(cpu CPU) *zoneDir {
	id := cpu.ID()
	if id < 0 || id >= len(a.dirs) {
		a.fatal("core id", "core %d outside [0, %d)", id, len(a.dirs))
	}
	return a.dirs[id]
}

// Bytes views n bytes at p. p must be a live allocation of at least n bytes.
func (a *Allocator) Bytes(p Ptr, n uintptr) []byte {
	if p == 0 || p == ZeroSizePtr {
		return nil
	}
	return memView(uintptr(p), n)
}

// Close hands every zone and every deferred oversized free back to the
// backend. All cores must be quiet. Oversized allocations still live are
// left alone.
func (a *Allocator) Close() error {
	var errs []error
	for _, d := range a.dirs {
		if a.log.Enabled(context.Background(), slog.LevelDebug) {
			a.log.Debug("Close", "core", d.id, "zones", a.dumpZones(d.id))
		}
		for d.freeOv.Cnt() > 0 {
			ov := d.freeOv.Pop()
			errs = append(errs, a.backend.ReleasePages(ov.addr, ov.bytes))
		}
		live := 0
		for slot := 0; d.slots.Held() > 0; slot++ {
			z, ok := d.slots.Get(slot)
			if !ok { break }
			if z == nil { continue }
			if z.nFree != z.nMax { live++ }
			errs = append(errs, a.releaseZone(d, z))
		}
		d.freeZones, d.nFreeZones = nil, 0
		clear(d.zoneAry[:])
		if live > 0 {
			a.log.Warn("Close with live chunks", "core", d.id, "zones", live)
		}
	}
	return errors.Join(errs...)
}
