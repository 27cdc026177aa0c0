// Package ring implements a consistent hashing ring with virtual nodes.
//
// Each node owns a fixed number of points on a 64-bit ring. A key belongs to
// the node owning the first point at or after the key's hash, wrapping to the
// smallest point. Adding or removing a node only moves the keys of the ring
// segments next to that node's points, roughly 1/N of all keys.
//
// A Ring is safe for concurrent use. Lookups share a read lock; AddNode and
// RemoveNode take the write lock for the duration of the point-set mutation.
// Callers that need to prepare a membership change before making it visible
// (the cache engine does) mutate a Clone and publish it themselves.
package ring
