package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a reasonable default for most modern CPUs.
const CacheLineSize = 64

// Counter is an atomic uint64 padded to one cache line so that per-store
// hit/miss/evict counters updated from different goroutines do not share a line.
type Counter struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

// must be exactly one cache line
var _ [CacheLineSize - int(unsafe.Sizeof(Counter{}))]byte
