package kmem

import (
	"kslab/internal/percpu"
)

// Stats is a snapshot of one core's allocator state. Fields read from another
// goroutine than the core's owner are only approximately consistent with
// each other.
type Stats struct {
	Core			int
	Zones			int64 // zones mapped by this core, active, full or cached
	ZonesCached		int64
	ZonesCreated	int64
	ZonesRecycled	int64
	ZonesReleased	int64
	OvAllocs		int64
	OvFrees			int64
	OvDeferred		int64 // oversized frees that had to wait for a safe point
	RemoteSent		int64 // frees this core forwarded to an owner
	RemoteFreed		int64 // forwarded frees this core carried out

	Inbox			percpu.Stats // zero unless the built-in cores are in use
}

func (a *Allocator) Stats(core int) Stats {
	if core < 0 || core >= len(a.dirs) {
		a.fatal("core id", "core %d outside [0, %d)", core, len(a.dirs))
	}
	st := &a.dirs[core].stats
	s := Stats{
		Core:			core,
		Zones:			st.nZones.Load(),
		ZonesCached:	st.nFreeZones.Load(),
		ZonesCreated:	st.zonesCreated.Load(),
		ZonesRecycled:	st.zonesRecycled.Load(),
		ZonesReleased:	st.zonesReleased.Load(),
		OvAllocs:		st.ovAllocs.Load(),
		OvFrees:		st.ovFrees.Load(),
		OvDeferred:		st.ovDeferred.Load(),
		RemoteSent:		st.remoteSent.Load(),
		RemoteFreed:	st.remoteFreed.Load(),
	}
	if a.cores != nil {
		s.Inbox = a.cores.Core(core).Stats()
	}
	return s
}

// TotalStats sums Stats over every core.
func (a *Allocator) TotalStats() Stats {
	var t Stats
	t.Core = -1
	for i := range a.dirs {
		s := a.Stats(i)
		t.Zones += s.Zones
		t.ZonesCached += s.ZonesCached
		t.ZonesCreated += s.ZonesCreated
		t.ZonesRecycled += s.ZonesRecycled
		t.ZonesReleased += s.ZonesReleased
		t.OvAllocs += s.OvAllocs
		t.OvFrees += s.OvFrees
		t.OvDeferred += s.OvDeferred
		t.RemoteSent += s.RemoteSent
		t.RemoteFreed += s.RemoteFreed
		t.Inbox.Sent += s.Inbox.Sent
		t.Inbox.Received += s.Inbox.Received
		t.Inbox.Pending += s.Inbox.Pending
	}
	return t
}
