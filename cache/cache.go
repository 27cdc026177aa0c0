package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/IvanBrykalov/ringcache/policy/lru"
	"github.com/IvanBrykalov/ringcache/ring"
)

var plog = logger.GetLogger("ringcache")

// engine is the cache front end: it routes keys through the published
// topology to node stores and runs membership changes.
// All methods are safe for concurrent use by multiple goroutines.
type engine[V any] struct {
	opt Options[V]
	log logger.ILogger

	// topo is replaced, never mutated, by membership changes.
	topo    atomic.Pointer[topology]
	members *xsync.MapOf[string, *member[V]]

	// memberMu serializes AddNode/RemoveNode.
	memberMu sync.Mutex
	last     atomic.Pointer[Redistribution]
	closed   atomic.Bool

	// sf coalesces concurrent loads in GetOrLoad.
	sf singleflight.Group
}

// New constructs an engine with no nodes. Add nodes with AddNode before Set.
// Invalid sizing panics: a negative MaxCacheSize or VirtualNodesPerNode.
func New[V any](opt Options[V]) Cache[V] {
	if opt.MaxCacheSize < 0 {
		panic("MaxCacheSize must be >= 0")
	}
	if opt.VirtualNodesPerNode < 0 {
		panic("VirtualNodesPerNode must be >= 0")
	}
	if opt.MaxCacheSize == 0 {
		opt.MaxCacheSize = DefaultMaxCacheSize
	}
	if opt.VirtualNodesPerNode == 0 {
		opt.VirtualNodesPerNode = DefaultVirtualNodes
	}
	switch {
	case opt.MigrationRetries == 0:
		opt.MigrationRetries = DefaultMigrationRetries
	case opt.MigrationRetries < 0:
		opt.MigrationRetries = 0
	}
	if opt.Transport == nil {
		opt.Transport = LocalTransport[V]{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = plog
	}

	c := &engine[V]{
		opt:     opt,
		log:     opt.Logger,
		members: xsync.NewMapOf[string, *member[V]](),
	}
	c.topo.Store(newTopology(ring.New(opt.VirtualNodesPerNode)))
	return c
}

// ---- Cache[V] implementation ----

// Set writes key->v to its primary store, then mirrors it when replication
// is enabled. A failed mirror is logged; the primary write still stands.
// The mirror is written after the primary lock is released, so concurrent
// Sets of one key may leave the replica one write behind; sequential Sets
// always leave it current.
func (c *engine[V]) Set(key string, v V) error {
	if c.closed.Load() {
		return ErrClosed
	}
	m, err := c.lockOwner(key)
	if err != nil {
		return err
	}
	ev, evicted := m.primary.Put(key, v)
	if evicted {
		c.evicted(ev)
	}
	c.opt.Metrics.Size(m.id, RolePrimary, m.primary.Len())
	m.primary.mu.Unlock()

	if c.opt.ReplicationEnabled {
		c.replicate(m.id, key, v)
	}
	return nil
}

// Get reads key from its primary store. On a primary miss it consults the
// secondary store when ReadFallbackToSecondary is set.
func (c *engine[V]) Get(key string) (V, error) {
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	m, err := c.lockOwner(key)
	if err != nil {
		return zero, err
	}
	v, err := m.primary.Get(key)
	m.primary.mu.Unlock()
	if err == nil {
		c.opt.Metrics.Hit(m.id)
		return v, nil
	}
	c.opt.Metrics.Miss(m.id)

	if c.opt.ReplicationEnabled && c.opt.ReadFallbackToSecondary {
		if v, holder, ok := c.readReplica(key); ok {
			c.opt.Metrics.FallbackHit(holder)
			return v, nil
		}
	}
	return zero, ErrKeyNotFound
}

// GetOrLoad returns the value for key; on miss it loads via Options.Loader,
// coalescing concurrent loads for the same key.
// If no Loader is configured, returns ErrNoLoader.
func (c *engine[V]) GetOrLoad(ctx context.Context, key string) (V, error) {
	var zero V
	// fast path
	v, err := c.Get(key)
	if err == nil || !errors.Is(err, ErrKeyNotFound) {
		return v, err
	}
	if c.opt.Loader == nil {
		return zero, ErrNoLoader
	}

	ch := c.sf.DoChan(key, func() (any, error) {
		// double-check after flight join
		if v, err := c.Get(key); err == nil {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := c.Set(key, v); err != nil {
			return nil, err
		}
		return v, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Nodes returns current members in sorted order.
func (c *engine[V]) Nodes() []string {
	return append([]string(nil), c.topo.Load().members...)
}

// Len returns the number of primary entries across all nodes.
func (c *engine[V]) Len() int {
	total := 0
	for _, id := range c.topo.Load().members {
		m, ok := c.members.Load(id)
		if !ok {
			continue
		}
		m.primary.mu.Lock()
		total += m.primary.Len()
		m.primary.mu.Unlock()
	}
	return total
}

// LastRedistribution returns the summary of the latest membership change.
func (c *engine[V]) LastRedistribution() (Redistribution, bool) {
	r := c.last.Load()
	if r == nil {
		return Redistribution{}, false
	}
	return *r, true
}

// Close marks the cache as closed. Future operations return ErrClosed.
func (c *engine[V]) Close() error {
	c.closed.Store(true)
	return nil
}

// ---- helpers ----

// lockOwner resolves key against the published topology and returns the
// owner's member with its primary store locked. If a membership change was
// published while waiting for the lock, it resolves again.
func (c *engine[V]) lockOwner(key string) (*member[V], error) {
	for {
		t := c.topo.Load()
		id, err := t.owner(key)
		if err != nil {
			return nil, err
		}
		m, ok := c.members.Load(id)
		if !ok {
			// id was removed after t was loaded; t is stale.
			continue
		}
		m.primary.mu.Lock()
		if c.topo.Load() == t {
			return m, nil
		}
		m.primary.mu.Unlock()
	}
}

// evicted reports one eviction (store lock held).
func (c *engine[V]) evicted(ev Eviction[V]) {
	if c.opt.OnEvict != nil {
		c.opt.OnEvict(ev)
	}
	c.opt.Metrics.Evict(ev.Node, ev.Role, ev.Reason)
	c.log.Debugf("node %s: %s store evicted %q (%s)", ev.Node, ev.Role, ev.Key, ev.Reason)
}

// member returns the member for id or panics. Callers hold memberMu or
// resolved id from a topology that is still published.
func (c *engine[V]) member(id string) *member[V] {
	m, ok := c.members.Load(id)
	if !ok {
		panic(fmt.Sprintf("cache: topology names node %q with no stores", id))
	}
	return m
}
