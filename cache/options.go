package cache

import (
	"context"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/IvanBrykalov/ringcache/policy"
	"github.com/IvanBrykalov/ringcache/ring"
)

const (
	// DefaultMaxCacheSize is the per-node store bound used when Options.MaxCacheSize is 0.
	DefaultMaxCacheSize = 100
	// DefaultVirtualNodes is the ring points per node used when Options.VirtualNodesPerNode is 0.
	DefaultVirtualNodes = ring.DefaultVirtualNodes
	// DefaultMigrationRetries is used when Options.MigrationRetries is 0.
	DefaultMigrationRetries = 2
)

// EvictReason explains why an entry left a store.
type EvictReason int

const (
	// EvictCapacity: a Set pushed the store over MaxCacheSize.
	EvictCapacity EvictReason = iota
	// EvictMigration: the store went over MaxCacheSize while receiving
	// entries during a membership change.
	EvictMigration
)

func (r EvictReason) String() string {
	switch r {
	case EvictMigration:
		return "migration"
	default:
		return "capacity"
	}
}

// Role tells whether a store holds a node's own keys or replicas of its
// predecessor's keys.
type Role int

const (
	RolePrimary Role = iota
	RoleSecondary
)

func (r Role) String() string {
	if r == RoleSecondary {
		return "secondary"
	}
	return "primary"
}

// Eviction describes one evicted entry.
type Eviction[V any] struct {
	Node   string
	Role   Role
	Key    string
	Value  V
	Reason EvictReason
}

// Metrics exposes engine-level observability hooks, labelled by node.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit(node string)
	Miss(node string)
	// FallbackHit counts a primary miss served by the secondary store of node.
	FallbackHit(node string)
	Evict(node string, role Role, reason EvictReason)
	Size(node string, role Role, entries int)
	Migrated(from, to string)
	MigrationFailed(from, to string)
	Members(n int)
}

// Options configures the engine. Zero values are safe;
// defaults are applied in New():
//   - MaxCacheSize == 0        => DefaultMaxCacheSize
//   - VirtualNodesPerNode == 0 => DefaultVirtualNodes
//   - MigrationRetries == 0    => DefaultMigrationRetries (< 0 disables retries)
//   - nil Transport => LocalTransport
//   - nil Policy    => LRU
//   - nil Metrics   => NoopMetrics
//   - nil Logger    => logger.GetLogger("ringcache")
type Options[V any] struct {
	// MaxCacheSize bounds every node store, primary and secondary alike.
	MaxCacheSize int

	// VirtualNodesPerNode is the number of ring points each node owns.
	VirtualNodesPerNode int

	// ReplicationEnabled mirrors every Set onto the primary's secondary node.
	ReplicationEnabled bool
	// ReadFallbackToSecondary lets Get consult the secondary store on a
	// primary miss. Ignored unless ReplicationEnabled is set.
	ReadFallbackToSecondary bool

	// MigrationRetries is the number of extra attempts per entry when the
	// Transport fails during a membership change.
	MigrationRetries int
	// Transport carries migrated and replicated entries to their store.
	Transport Transport[V]

	// Policy orders entries inside each store; nil => LRU.
	Policy policy.Policy

	// Loader fetches a value on miss. Used by GetOrLoad.
	Loader func(ctx context.Context, key string) (V, error)

	// OnEvict is called for every eviction under the store lock.
	// Keep it lightweight and do not call back into the cache from it.
	OnEvict func(Eviction[V])
	Metrics Metrics
	Logger  logger.ILogger
}
