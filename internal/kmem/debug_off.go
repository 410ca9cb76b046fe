//go:build !slabdebug

package kmem

// Build with -tags slabdebug for per-chunk allocation bitmaps (double free
// and double allocation are fatal) and poisoning of freed chunks.
const debugChunks = false
