// Package util contains internal helpers (ring hashing, padded counters).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// vnodeSep separates a node id from the virtual point index in PointHash.
const vnodeSep = "-vnode-"

// KeyHash maps a cache key onto the 64-bit ring space.
// Ring positions are compared as full 64-bit values, so short and similar
// inputs must spread across the whole space (plain FNV-1a does not).
func KeyHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

// PointHash returns the ring position of the i-th virtual point of node id.
// It is a pure function of (id, i): a node always maps to the same points.
func PointHash(id string, i int) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(id)
	_, _ = d.WriteString(vnodeSep)
	_, _ = d.WriteString(strconv.Itoa(i))
	return d.Sum64()
}
