//go:build !linux

package percpu

type affinity struct{}
