//go:build !linux

package percpu

import "runtime"

func (c *Core) Bind() {
	runtime.LockOSThread()
}

func (c *Core) Unbind() {
	runtime.UnlockOSThread()
}
