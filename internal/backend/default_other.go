//go:build !linux

package backend

func Default() Backend {
	return CreateHeap()
}
