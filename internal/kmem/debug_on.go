//go:build slabdebug

package kmem

const debugChunks = true
