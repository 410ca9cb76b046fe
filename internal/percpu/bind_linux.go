//go:build linux

package percpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)


// Bind pins the calling goroutine to an OS thread and that thread to the
// hardware CPU matching this core (modulo the machine's CPU count). Call it
// from the goroutine that will drive the core; Unbind puts the thread back.
func (c *Core) Bind() {
	runtime.LockOSThread()

	var old unix.CPUSet
	if err := unix.SchedGetaffinity(0, &old); err != nil {
		c.set.log.Warn("Couldn't read core affinity", "core", c.id, "err", err)
		return
	}
	c.mask = old
	c.bound = true

	var cpuSet unix.CPUSet
	cpuSet.Zero()
	cpuSet.Set(c.id % runtime.NumCPU())
	err := unix.SchedSetaffinity(0, &cpuSet)
	if err != nil { c.set.log.Warn("Couldn't set core affinity", "core", c.id, "err", err) }
}

func (c *Core) Unbind() {
	if c.bound {
		err := unix.SchedSetaffinity(0, &c.mask)
		if err != nil { c.set.log.Warn("Couldn't restore core affinity", "core", c.id, "err", err) }
		c.bound = false
	}
	runtime.UnlockOSThread()
}
