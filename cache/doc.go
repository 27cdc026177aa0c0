// Package cache provides a distributed-style in-memory key/value cache that
// spreads keys over a set of named nodes with consistent hashing.
//
// Design
//
//   - Placement: every node owns VirtualNodesPerNode points on a 64-bit hash
//     ring (package ring). A key belongs to the node owning the first point
//     at or after the key's hash, wrapping to the lowest point.
//
//   - Storage: each node has a bounded primary store: a map plus an intrusive
//     MRU<->LRU doubly linked list. A Set that pushes the store past
//     MaxCacheSize evicts exactly the least recently used entry. Ordering is
//     pluggable via the policy package; strict LRU is the default.
//
//   - Replication: with ReplicationEnabled, every Set is mirrored into the
//     secondary store of the next member in sorted node-id order. Get can
//     fall back to it (ReadFallbackToSecondary). The secondary store has the
//     same bound and eviction rule as the primary.
//
//   - Membership: AddNode/RemoveNode build a new ring off to the side, lock
//     every store whose contents change, publish the new ring and move the
//     affected keys. Callers that raced the change block on those store locks
//     and re-resolve against the new ring, so no read or write is served from
//     a half-migrated store.
//
//   - Transport: migrated and replicated entries cross a Transport. The
//     default writes in-process; a failing Transport is retried
//     MigrationRetries times per entry, after which the entry is dropped and
//     counted in the Redistribution summary.
//
//   - Metrics: Options.Metrics receives per-node Hit/Miss/Evict/Size and
//     migration signals. Adapters for Prometheus (metrics/prom) and
//     VictoriaMetrics (metrics/vm) are provided.
//
// Basic usage
//
//	c := cache.New[string](cache.Options[string]{MaxCacheSize: 1024})
//	_ = c.AddNode("node-a")
//	_ = c.AddNode("node-b")
//	_ = c.Set("user:1", "alice")
//	v, err := c.Get("user:1")
//
// With replication
//
//	c := cache.New[[]byte](cache.Options[[]byte]{
//	    MaxCacheSize:            10_000,
//	    ReplicationEnabled:      true,
//	    ReadFallbackToSecondary: true,
//	})
//
// With GetOrLoad
//
//	c := cache.New[string](cache.Options[string]{
//	    Loader: func(ctx context.Context, k string) (string, error) {
//	        return "v:" + k, nil
//	    },
//	})
//	v, err := c.GetOrLoad(context.Background(), "key")
//
// Thread-safety
//
// All methods on Cache are safe for concurrent use. Membership changes are
// serialized with each other and run concurrently with reads and writes to
// stores they do not touch.
package cache
