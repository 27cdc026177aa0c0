package cache

import "context"

// Cache is a consistent-hashed, multi-node in-memory key/value cache.
// All methods are safe for concurrent use by multiple goroutines.
//
// Set and Get cost one ring lookup (binary search over the sorted points)
// plus O(1) work under the owning node's store lock.
type Cache[V any] interface {
	// AddNode joins id to the ring and moves onto it exactly the keys it now
	// owns. Returns ErrDuplicateNode if id is already a member.
	AddNode(id string) error

	// RemoveNode takes id off the ring and hands its keys to their new
	// owners. Returns ErrUnknownNode if id is not a member.
	RemoveNode(id string) error

	// Set writes key->v to the owning node (and to its secondary when
	// replication is enabled). Returns ErrNoNodesAvailable on an empty ring.
	Set(key string, v V) error

	// Get reads key from its owning node, falling back to the secondary if
	// configured. Returns ErrKeyNotFound on a miss and ErrNoNodesAvailable
	// on an empty ring.
	Get(key string) (V, error)

	// GetOrLoad returns the value for key, loading it via Options.Loader on
	// miss. Concurrent loads for the same key are coalesced.
	// If no Loader was configured, returns ErrNoLoader.
	GetOrLoad(ctx context.Context, key string) (V, error)

	// Nodes returns current members in sorted order.
	Nodes() []string

	// Len returns the number of primary entries across all nodes.
	Len() int

	// Stats returns a per-node snapshot of store sizes and counters.
	Stats() Stats

	// LastRedistribution returns the summary of the most recent membership
	// change, or false if there has been none.
	LastRedistribution() (Redistribution, bool)

	// Close marks the cache closed. Later calls return ErrClosed.
	Close() error
}
