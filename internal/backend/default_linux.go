//go:build linux

package backend

// Default is the backend a production allocator should sit on.
func Default() Backend {
	return CreateMmap()
}
