//go:build linux

package percpu

import "golang.org/x/sys/unix"

type affinity struct {
	mask		unix.CPUSet
	bound		bool
}
